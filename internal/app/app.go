// Package app builds the collaborators shared by the commands from a
// resolved configuration.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/catalog"
	"github.com/RajaShyam/JET-movie-ratings/internal/changelog"
	"github.com/RajaShyam/JET-movie-ratings/internal/config"
	"github.com/RajaShyam/JET-movie-ratings/internal/ingestion"
	"github.com/RajaShyam/JET-movie-ratings/internal/manifest"
	"github.com/RajaShyam/JET-movie-ratings/internal/metrics"
	"github.com/RajaShyam/JET-movie-ratings/internal/reader"
	"github.com/RajaShyam/JET-movie-ratings/internal/repair"
	"github.com/RajaShyam/JET-movie-ratings/internal/restore"
	"github.com/RajaShyam/JET-movie-ratings/internal/snapshot"
	"github.com/RajaShyam/JET-movie-ratings/internal/storage"
	"github.com/RajaShyam/JET-movie-ratings/internal/writer"
)

// ManifestKey keys the latest manifest of a table on the compacted topic.
func ManifestKey(table string) string { return table + "/manifest-latest" }

// App owns the long-lived collaborators of one command invocation.
type App struct {
	Cfg     *config.Config
	Log     *zap.Logger
	Metrics *metrics.Registry

	Catalog   catalog.Catalog
	Changelog changelog.Writer
	Manifests manifest.Publisher
	Latest    manifest.Reader
	Snapshots *snapshot.FilesystemSnapshotter

	// ChangelogPath is the JSONL changelog file, empty when file logging is off.
	ChangelogPath string

	closers []io.Closer
	server  *http.Server
}

// Open validates cfg and opens the catalog and the configured sinks.
func Open(cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: log, Metrics: metrics.NewRegistry()}
	defer func() {
		if err != nil {
			err = errs.Combine(err, a.Close())
		}
	}()

	a.Catalog, err = catalog.Open(cfg.Catalog.Backend, cfg.Catalog.Path, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Catalog)

	var logs []changelog.Writer
	if cfg.Changelog.Dir != "" {
		fw, err := changelog.NewFileWriter(cfg.Changelog.Dir, cfg.Changelog.File)
		if err != nil {
			return nil, err
		}
		a.ChangelogPath = fw.Path()
		logs = append(logs, fw)
	}
	if cfg.Changelog.KafkaTopic != "" {
		kw := changelog.NewKafkaWriter(cfg.Kafka.Bootstrap, cfg.Changelog.KafkaTopic)
		a.closers = append(a.closers, kw)
		logs = append(logs, kw)
	}
	switch len(logs) {
	case 0:
	case 1:
		a.Changelog = logs[0]
	default:
		a.Changelog = changelog.NewMultiWriter(logs...)
	}

	var pubs []manifest.Publisher
	if cfg.Manifest.Dir != "" {
		fm := manifest.NewFilesystemManifest(cfg.Manifest.Dir)
		pubs = append(pubs, fm)
		a.Latest = fm
	}
	if cfg.Manifest.KafkaTopic != "" {
		km := manifest.NewKafkaManifest(cfg.Kafka.Bootstrap, cfg.Manifest.KafkaTopic, ManifestKey(cfg.Table))
		a.closers = append(a.closers, km)
		pubs = append(pubs, km)
		if a.Latest == nil {
			a.Latest = km
		}
	}
	switch len(pubs) {
	case 0:
	case 1:
		a.Manifests = pubs[0]
	default:
		a.Manifests = manifest.MultiPublisher(pubs...)
	}

	if cfg.Snapshot.Dir != "" {
		a.Snapshots = snapshot.NewFilesystemSnapshotter(cfg.Snapshot.Dir, cfg.Table)
	}
	return a, nil
}

// Syncer returns a catalog syncer tagged with runID.
func (a *App) Syncer(runID string) *catalog.Syncer {
	opts := []catalog.Option{
		catalog.WithMetrics(a.Metrics),
		catalog.WithStatementTimeout(a.Cfg.Catalog.StatementTimeout),
		catalog.WithRunID(runID),
	}
	if a.Changelog != nil {
		opts = append(opts, catalog.WithChangelog(a.Changelog))
	}
	return catalog.NewSyncer(a.Catalog, a.Cfg.Table, a.Log, opts...)
}

// Ingestion builds the ingestion for the configured mode. A batch without an
// id gets the current epoch second.
func (a *App) Ingestion() (ingestion.Ingestion, error) {
	cfg := a.Cfg
	if cfg.Mode == "streaming" {
		return ingestion.StreamingIngestion{}, nil
	}
	if cfg.BatchID == "" {
		cfg.BatchID = strconv.FormatInt(time.Now().Unix(), 10)
		a.Log.Info("no batch id given, using epoch", zap.String("batchId", cfg.BatchID))
	}

	in, err := storage.Open(cfg.Input.Location, cfg.S3)
	if err != nil {
		return nil, err
	}
	out, err := storage.Open(cfg.Output.Location, cfg.S3)
	if err != nil {
		return nil, err
	}
	mode, err := writer.ParseMode(cfg.Output.Overwrite)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	b := ingestion.Batch{
		BatchID:          cfg.BatchID,
		RunID:            runID,
		RatingsLocation:  cfg.Input.Ratings,
		MetadataLocation: cfg.Input.Metadata,
		Reader:           reader.New(in, a.Log, a.Metrics),
		Repairer:         repair.New(a.Log, repair.WithWorkers(cfg.Repair.Workers), repair.WithMetrics(a.Metrics)),
		Writer:           writer.New(out, "batch_id="+cfg.BatchID, a.Log, a.Metrics, writer.WithOverwrite(mode)),
		Syncer:           a.Syncer(runID),
		Catalog:          a.Catalog,
		Manifests:        a.Manifests,
		Metrics:          a.Metrics,
		Log:              a.Log,
	}
	if a.Snapshots != nil {
		b.Snapshots = a.Snapshots
	}
	return ingestion.NewBatchIngestion(b), nil
}

// Restorer builds the recovery entry points over the configured catalog.
func (a *App) Restorer(runID string) (*restore.Restorer, error) {
	if a.Latest == nil {
		return nil, errors.New("no manifest source configured")
	}
	return restore.NewRestorer(a.Catalog, a.Syncer(runID), a.Latest, a.Snapshots, a.Log), nil
}

// ServeMetrics exposes /metrics and /healthz on the configured address.
func (a *App) ServeMetrics() {
	if a.Cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	a.server = &http.Server{Addr: a.Cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// FlushMetrics pushes to the Pushgateway and writes the textfile when
// configured. Failures are logged.
func (a *App) FlushMetrics(ctx context.Context) {
	if url := a.Cfg.Metrics.PushURL; url != "" {
		if err := a.Metrics.Push(ctx, url, a.Cfg.Metrics.Job); err != nil {
			a.Log.Warn("metrics push failed", zap.String("url", url), zap.Error(err))
		}
	}
	if path := a.Cfg.Metrics.Textfile; path != "" {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			a.Log.Warn("metrics textfile failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (a *App) Close() error {
	var group errs.Group
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		group.Add(a.server.Shutdown(ctx))
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		group.Add(a.closers[i].Close())
	}
	return group.Err()
}
