package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RajaShyam/JET-movie-ratings/internal/changelog"
	"github.com/RajaShyam/JET-movie-ratings/internal/config"
	"github.com/RajaShyam/JET-movie-ratings/internal/ingestion"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "input")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "ratings"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(in, "metadata"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "ratings", "part-0.csv"),
		[]byte("U1,A1,4.5,1378944000\nU2,A1,2.0,1388534400\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "metadata", "part-0.json"),
		[]byte(`{"asin": "A1", "title": "Everyday Italian"}`+"\n"), 0o644))

	cfg := config.Default()
	cfg.BatchID = "1613301962"
	cfg.Input.Location = in
	cfg.Output.Location = filepath.Join(dir, "output")
	cfg.Catalog.Backend = "pebble"
	cfg.Catalog.Path = filepath.Join(dir, "catalog")
	cfg.Changelog.Dir = filepath.Join(dir, "changelog")
	cfg.Manifest.Dir = filepath.Join(dir, "manifest")
	cfg.Snapshot.Dir = filepath.Join(dir, "snapshots")
	cfg.Metrics.Textfile = filepath.Join(dir, "ingest.prom")
	return cfg
}

func TestApp_IngestThenResync(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	ing, err := a.Ingestion()
	require.NoError(t, err)
	sum, err := ing.Process(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Partitions)
	require.Zero(t, sum.CatalogFailures)

	events, err := changelog.ReadFile(a.ChangelogPath)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, changelog.OpDrop, events[0].Op)
	require.Equal(t, changelog.OpAdd, events[1].Op)
	require.Equal(t, sum.RunID, events[0].RunID)

	r, err := a.Restorer("resync-run")
	require.NoError(t, err)
	report, err := r.ResyncFromManifest(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Len(t, report.Synced, 2)

	report, err = r.RestoreFromSnapshot(ctx, "")
	require.NoError(t, err)
	require.Len(t, report.Synced, 2)

	parts, err := a.Catalog.Partitions(ctx, cfg.Table)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	a.FlushMetrics(ctx)
	b, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	require.Contains(t, string(b), "ingest_partitions_written_total 2")
}

func TestApp_StreamingMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "streaming"
	cfg.Catalog.Backend = "memory"

	a, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	ing, err := a.Ingestion()
	require.NoError(t, err)
	_, err = ing.Process(context.Background())
	require.ErrorIs(t, err, ingestion.ErrNotImplemented)
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Backend = "hive"
	_, err := Open(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestApp_NoManifestSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Backend = "memory"
	cfg.Manifest.Dir = ""

	a, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Restorer("x")
	require.Error(t, err)
}
