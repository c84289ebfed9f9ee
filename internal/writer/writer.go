// Package writer persists joined rows as Hive-style partitioned Parquet.
package writer

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/metrics"
	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/storage"
)

// WriteFailure is fatal for the batch; the catalog must not be touched after it.
var WriteFailure = errs.Class("write failure")

const (
	FileName      = "part-00000.parquet"
	SuccessMarker = "_SUCCESS"
)

// Mode selects what an overwrite replaces.
type Mode string

const (
	// ModePartition replaces only the partitions present in the written rows.
	ModePartition Mode = "partition"
	// ModeRoot clears the whole output root first.
	ModeRoot Mode = "root"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePartition, ModeRoot:
		return Mode(s), nil
	case "":
		return ModePartition, nil
	default:
		return "", errs.New("unknown overwrite mode %q", s)
	}
}

// Partition describes one written partition. Location is the absolute
// partition directory with a trailing slash.
type Partition struct {
	Key      model.PartitionKey
	Location string
	File     string
	Rows     int
}

// Row is the on-disk record. Year and month live in the directory path.
type Row struct {
	ReviewerID string  `parquet:"reviewerID"`
	ASIN       string  `parquet:"asin"`
	Rating     float32 `parquet:"ratings"`
	RatingTime int64   `parquet:"rating_time"`
	RatingDate string  `parquet:"rating_dt"`
	MetaASIN   string  `parquet:"meta_asin"`
	Title      *string `parquet:"title,optional"`
}

type Writer struct {
	store   storage.Store
	root    string
	log     *zap.Logger
	metrics *metrics.Registry
	mode    Mode
}

type Option func(*Writer)

func WithOverwrite(m Mode) Option {
	return func(w *Writer) { w.mode = m }
}

func New(store storage.Store, root string, log *zap.Logger, m *metrics.Registry, opts ...Option) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Writer{store: store, root: root, log: log.Named("writer"), metrics: m, mode: ModePartition}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root is the output location of the batch.
func (w *Writer) Root() string { return w.store.URL(w.root) }

// Write groups rows by partition key and overwrites each partition with a
// single Parquet file. Rows inside a file are sorted so reruns produce
// identical bytes. The success marker is written last.
func (w *Writer) Write(ctx context.Context, rows []model.JoinedRecord) ([]Partition, error) {
	groups := make(map[model.PartitionKey][]model.JoinedRecord)
	for _, r := range rows {
		groups[r.Key()] = append(groups[r.Key()], r)
	}
	keys := make([]model.PartitionKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	if w.mode == ModeRoot {
		if err := w.store.RemovePrefix(ctx, w.root); err != nil {
			return nil, WriteFailure.New("clear root %s: %v", w.Root(), err)
		}
	} else if err := w.store.RemovePrefix(ctx, storage.Join(w.root, SuccessMarker)); err != nil {
		return nil, WriteFailure.New("clear marker: %v", err)
	}

	out := make([]Partition, 0, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, WriteFailure.Wrap(err)
		}
		p, err := w.writePartition(ctx, k, groups[k])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	marker := storage.Join(w.root, SuccessMarker)
	if err := w.store.Put(ctx, marker, bytes.NewReader(nil), 0); err != nil {
		return nil, WriteFailure.New("write marker: %v", err)
	}
	w.log.Info("batch written",
		zap.String("root", w.Root()),
		zap.String("mode", string(w.mode)),
		zap.Int("partitions", len(out)),
		zap.Int("rows", len(rows)))
	return out, nil
}

func (w *Writer) writePartition(ctx context.Context, k model.PartitionKey, rows []model.JoinedRecord) (Partition, error) {
	sortRows(rows)
	data, err := Encode(rows)
	if err != nil {
		return Partition{}, WriteFailure.New("encode %s: %v", k, err)
	}

	dir := storage.Join(w.root, k.Path())
	if err := w.store.RemovePrefix(ctx, dir); err != nil {
		return Partition{}, WriteFailure.New("clear %s: %v", k, err)
	}
	file := storage.Join(dir, FileName)
	if err := w.store.Put(ctx, file, bytes.NewReader(data), int64(len(data))); err != nil {
		return Partition{}, WriteFailure.New("put %s: %v", file, err)
	}

	w.metrics.AddPartitionWritten(len(rows))
	w.log.Debug("partition written", zap.Stringer("partition", k), zap.Int("rows", len(rows)), zap.Int("bytes", len(data)))
	return Partition{
		Key:      k,
		Location: w.store.URL(dir) + "/",
		File:     file,
		Rows:     len(rows),
	}, nil
}

// Encode renders rows as a Snappy-compressed Parquet file.
func Encode(rows []model.JoinedRecord) ([]byte, error) {
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[Row](&buf, parquet.Compression(&parquet.Snappy))
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{
			ReviewerID: r.ReviewerID,
			ASIN:       r.ASIN,
			Rating:     r.Rating,
			RatingTime: r.RatingTime,
			RatingDate: r.RatingDate,
			MetaASIN:   r.MetaASIN,
			Title:      r.Title,
		}
	}
	if _, err := pw.Write(out); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadPartition decodes a written partition file, restoring year and month
// from the partition key.
func ReadPartition(ctx context.Context, store storage.Store, p Partition) ([]model.JoinedRecord, error) {
	rc, err := store.Open(ctx, p.File)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	rows, err := parquet.Read[Row](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	out := make([]model.JoinedRecord, len(rows))
	for i, r := range rows {
		out[i] = model.JoinedRecord{
			ReviewerID: r.ReviewerID,
			ASIN:       r.ASIN,
			Rating:     r.Rating,
			RatingTime: r.RatingTime,
			RatingDate: r.RatingDate,
			Year:       p.Key.Year,
			Month:      p.Key.Month,
			MetaASIN:   r.MetaASIN,
			Title:      r.Title,
		}
	}
	return out, nil
}

func sortRows(rows []model.JoinedRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ReviewerID != b.ReviewerID {
			return a.ReviewerID < b.ReviewerID
		}
		if a.ASIN != b.ASIN {
			return a.ASIN < b.ASIN
		}
		if a.RatingTime != b.RatingTime {
			return a.RatingTime < b.RatingTime
		}
		if a.Rating != b.Rating {
			return a.Rating < b.Rating
		}
		return titleOf(a) < titleOf(b)
	})
}

func titleOf(r model.JoinedRecord) string {
	if r.Title == nil {
		return ""
	}
	return "\x00" + *r.Title
}
