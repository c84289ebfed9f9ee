package writer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/storage"
)

func ptr(s string) *string { return &s }

func sampleRows() []model.JoinedRecord {
	return []model.JoinedRecord{
		{ReviewerID: "U2", ASIN: "A1", Rating: 3, RatingTime: 1378944001, RatingDate: "2013-09-12", Year: 2013, Month: 9, MetaASIN: "A1", Title: ptr("T")},
		{ReviewerID: "U1", ASIN: "A1", Rating: 4.5, RatingTime: 1378944000, RatingDate: "2013-09-12", Year: 2013, Month: 9, MetaASIN: "A1", Title: ptr("T")},
		{ReviewerID: "U3", ASIN: "A2", Rating: 1, RatingTime: 1388534400, RatingDate: "2014-01-01", Year: 2014, Month: 1, MetaASIN: "A2"},
	}
}

func newStore(t *testing.T) (*storage.LocalStore, string) {
	t.Helper()
	root := t.TempDir()
	st, err := storage.NewLocalStore(root)
	require.NoError(t, err)
	return st, root
}

func TestWrite_Partitions(t *testing.T) {
	ctx := context.Background()
	st, root := newStore(t)
	w := New(st, "batch_id=1", zaptest.NewLogger(t), nil)

	parts, err := w.Write(ctx, sampleRows())
	require.NoError(t, err)
	require.Len(t, parts, 2)

	require.Equal(t, model.PartitionKey{Year: 2013, Month: 9}, parts[0].Key)
	require.Equal(t, 2, parts[0].Rows)
	require.Equal(t, filepath.Join(root, "batch_id=1", "year=2013", "month=9")+"/", parts[0].Location)
	require.Equal(t, "batch_id=1/year=2013/month=9/part-00000.parquet", parts[0].File)
	require.Equal(t, model.PartitionKey{Year: 2014, Month: 1}, parts[1].Key)

	_, err = os.Stat(filepath.Join(root, "batch_id=1", SuccessMarker))
	require.NoError(t, err)

	got, err := ReadPartition(ctx, st, parts[0])
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "U1", got[0].ReviewerID)
	require.Equal(t, float32(4.5), got[0].Rating)
	require.Equal(t, 2013, got[0].Year)
	require.Equal(t, 9, got[0].Month)
	require.Equal(t, "T", *got[0].Title)

	got, err = ReadPartition(ctx, st, parts[1])
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Nil(t, got[0].Title)
}

func TestWrite_RerunIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	st, root := newStore(t)
	w := New(st, "batch_id=1", zaptest.NewLogger(t), nil)

	parts, err := w.Write(ctx, sampleRows())
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(parts[0].File)))
	require.NoError(t, err)

	rows := sampleRows()
	rows[0], rows[1] = rows[1], rows[0]
	_, err = w.Write(ctx, rows)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(parts[0].File)))
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))
}

func TestWrite_OverwriteModes(t *testing.T) {
	ctx := context.Background()
	st, root := newStore(t)
	stale := filepath.Join(root, "batch_id=1", "year=2013", "month=9", "part-00001.parquet")

	_, err := New(st, "batch_id=1", zaptest.NewLogger(t), nil).Write(ctx, sampleRows())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	onlySept := sampleRows()[:2]
	_, err = New(st, "batch_id=1", zaptest.NewLogger(t), nil, WithOverwrite(ModePartition)).Write(ctx, onlySept)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err), "stale file in a rewritten partition must be removed")
	_, err = os.Stat(filepath.Join(root, "batch_id=1", "year=2014", "month=1", FileName))
	require.NoError(t, err, "untouched partition survives partition overwrite")

	_, err = New(st, "batch_id=1", zaptest.NewLogger(t), nil, WithOverwrite(ModeRoot)).Write(ctx, onlySept)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "batch_id=1", "year=2014", "month=1", FileName))
	require.True(t, os.IsNotExist(err), "root overwrite clears other partitions")
}

type failingStore struct {
	storage.Store
}

func (failingStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	return errors.New("disk full")
}

func TestWrite_Failure(t *testing.T) {
	st, _ := newStore(t)
	w := New(failingStore{st}, "batch_id=1", zaptest.NewLogger(t), nil)
	_, err := w.Write(context.Background(), sampleRows())
	require.Error(t, err)
	require.True(t, WriteFailure.Has(err))
}

type unlistableStore struct {
	storage.Store
}

func (unlistableStore) RemovePrefix(ctx context.Context, prefix string) error {
	return errors.New("list: access denied")
}

func TestWrite_ClearFailureAborts(t *testing.T) {
	st, root := newStore(t)
	for _, mode := range []Mode{ModeRoot, ModePartition} {
		w := New(unlistableStore{st}, "batch_id=1", zaptest.NewLogger(t), nil, WithOverwrite(mode))
		_, err := w.Write(context.Background(), sampleRows())
		require.Error(t, err, mode)
		require.True(t, WriteFailure.Has(err), mode)
	}
	_, err := os.Stat(filepath.Join(root, "batch_id=1", SuccessMarker))
	require.True(t, os.IsNotExist(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModePartition, m)
	m, err = ParseMode("root")
	require.NoError(t, err)
	require.Equal(t, ModeRoot, m)
	_, err = ParseMode("dynamic")
	require.Error(t, err)
}
