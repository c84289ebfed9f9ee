package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/state"
)

var (
	sept = model.PartitionKey{Year: 2013, Month: 9}
	oct  = model.PartitionKey{Year: 2013, Month: 10}
)

func backends(t *testing.T) map[string]Catalog {
	t.Helper()
	sqlCat, err := OpenSQL(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlCat.Close() })

	pebbleCat, err := Open("pebble", t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pebbleCat.Close() })

	return map[string]Catalog{
		"memory": NewStoreCatalog(state.NewInMemoryStore()),
		"pebble": pebbleCat,
		"sqlite": sqlCat,
	}
}

func TestCatalog_DropAddSemantics(t *testing.T) {
	ctx := context.Background()
	for name, cat := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cat.DropPartitionIfExists(ctx, "db.t", sept), "drop of a missing partition is a no-op")

			require.NoError(t, cat.AddPartition(ctx, "db.t", sept, "/out/1/year=2013/month=9/"))
			require.NoError(t, cat.AddPartition(ctx, "db.t", sept, "/out/2/year=2013/month=9/"), "add if not exists")
			require.NoError(t, cat.AddPartition(ctx, "db.t", oct, "/out/1/year=2013/month=10/"))
			require.NoError(t, cat.AddPartition(ctx, "other", oct, "/x/"))

			parts, err := cat.Partitions(ctx, "db.t")
			require.NoError(t, err)
			require.Len(t, parts, 2)
			require.Equal(t, sept, parts[0].Key())
			require.Equal(t, "/out/1/year=2013/month=9/", parts[0].Location)
			require.Equal(t, oct, parts[1].Key())

			require.NoError(t, cat.DropPartitionIfExists(ctx, "db.t", sept))
			require.NoError(t, cat.AddPartition(ctx, "db.t", sept, "/out/2/year=2013/month=9/"))
			parts, err = cat.Partitions(ctx, "db.t")
			require.NoError(t, err)
			require.Equal(t, "/out/2/year=2013/month=9/", parts[0].Location, "drop then add replaces the location")

			require.NoError(t, cat.DropPartitionIfExists(ctx, "db.t", oct))
			parts, err = cat.Partitions(ctx, "db.t")
			require.NoError(t, err)
			require.Len(t, parts, 1)
		})
	}
}

func TestStatements(t *testing.T) {
	require.Equal(t,
		"ALTER TABLE shyam.movie_ratings DROP IF EXISTS PARTITION (year=2013,month=9)",
		DropStatement("shyam.movie_ratings", sept))
	require.Equal(t,
		"ALTER TABLE shyam.movie_ratings ADD IF NOT EXISTS PARTITION (year=2013,month=9) LOCATION 's3://b/o/year=2013/month=9/'",
		AddStatement("shyam.movie_ratings", sept, "s3://b/o/year=2013/month=9/"))
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open("hive", t.TempDir(), nil)
	require.Error(t, err)
	require.True(t, Error.Has(err))
}
