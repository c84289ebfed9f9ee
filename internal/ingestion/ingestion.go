// Package ingestion coordinates one run: read both sources, repair metadata
// and transform ratings, join, write partitions, then register them in the
// catalog.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/catalog"
	"github.com/RajaShyam/JET-movie-ratings/internal/join"
	"github.com/RajaShyam/JET-movie-ratings/internal/manifest"
	"github.com/RajaShyam/JET-movie-ratings/internal/metrics"
	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/reader"
	"github.com/RajaShyam/JET-movie-ratings/internal/repair"
	"github.com/RajaShyam/JET-movie-ratings/internal/snapshot"
	"github.com/RajaShyam/JET-movie-ratings/internal/transform"
	"github.com/RajaShyam/JET-movie-ratings/internal/writer"
)

// ErrNotImplemented is returned by every StreamingIngestion method.
var ErrNotImplemented = errors.New("streaming ingestion is not implemented")

type Ingestion interface {
	Read(ctx context.Context) (Sources, error)
	Save(ctx context.Context, rows []model.JoinedRecord) ([]writer.Partition, error)
	Process(ctx context.Context) (Summary, error)
}

// Sources holds the raw input of a run.
type Sources struct {
	Ratings  reader.RatingsBatch
	Metadata []model.RawMetadataRecord
}

// Summary reports what a run did.
type Summary struct {
	BatchID         string
	RunID           string
	Output          string
	RatingsRead     int
	RatingsSkipped  int
	MetadataRead    int
	Valid           int
	Repaired        int
	Dropped         int
	Matched         int
	Unmatched       int
	RowsWritten     int
	Partitions      int
	CatalogFailures int
	SnapshotID      string
	Duration        time.Duration
}

func (s Summary) Print(w io.Writer) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Ingestion complete")
	fmt.Fprintf(w, "  Batch:           %s\n", s.BatchID)
	fmt.Fprintf(w, "  Run:             %s\n", s.RunID)
	fmt.Fprintf(w, "  Ratings read:    %d (skipped %d)\n", s.RatingsRead, s.RatingsSkipped)
	fmt.Fprintf(w, "  Metadata read:   %d\n", s.MetadataRead)
	fmt.Fprintf(w, "  Valid/repaired:  %d/%d\n", s.Valid, s.Repaired)
	fmt.Fprintf(w, "  Dropped:         %d\n", s.Dropped)
	fmt.Fprintf(w, "  Matched:         %d\n", s.Matched)
	fmt.Fprintf(w, "  Unmatched:       %d\n", s.Unmatched)
	fmt.Fprintf(w, "  Rows written:    %d\n", s.RowsWritten)
	fmt.Fprintf(w, "  Partitions:      %d\n", s.Partitions)
	if s.CatalogFailures > 0 {
		fmt.Fprintf(w, "  Catalog errors:  %d\n", s.CatalogFailures)
	}
	if s.SnapshotID != "" {
		fmt.Fprintf(w, "  Snapshot:        %s\n", s.SnapshotID)
	}
	fmt.Fprintf(w, "  Duration:        %v\n", s.Duration)
	fmt.Fprintf(w, "  Output:          %s\n", s.Output)
	fmt.Fprintln(w, separator)
}

// Batch wires the collaborators of a batch run. Manifests and Snapshots are
// optional.
type Batch struct {
	BatchID          string
	RunID            string
	RatingsLocation  string
	MetadataLocation string

	Reader    *reader.Reader
	Repairer  *repair.Repairer
	Writer    *writer.Writer
	Syncer    *catalog.Syncer
	Catalog   snapshot.Source
	Manifests manifest.Publisher
	Snapshots snapshot.Snapshotter
	Metrics   *metrics.Registry
	Log       *zap.Logger
}

type BatchIngestion struct {
	Batch
	log *zap.Logger
}

func NewBatchIngestion(b Batch) *BatchIngestion {
	if b.RunID == "" {
		b.RunID = uuid.NewString()
	}
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchIngestion{
		Batch: b,
		log:   log.Named("ingestion").With(zap.String("batchId", b.BatchID), zap.String("runId", b.RunID)),
	}
}

// Read loads both sources. Any error is fatal for the run.
func (b *BatchIngestion) Read(ctx context.Context) (Sources, error) {
	start := time.Now()
	defer b.Metrics.ObserveStage("read", start)

	ratings, err := b.Reader.ReadRatings(ctx, b.RatingsLocation)
	if err != nil {
		return Sources{}, err
	}
	meta, err := b.Reader.ReadMetadata(ctx, b.MetadataLocation)
	if err != nil {
		return Sources{}, err
	}
	return Sources{Ratings: ratings, Metadata: meta}, nil
}

func (b *BatchIngestion) Save(ctx context.Context, rows []model.JoinedRecord) ([]writer.Partition, error) {
	start := time.Now()
	defer b.Metrics.ObserveStage("write", start)
	return b.Writer.Write(ctx, rows)
}

// Process runs the whole batch. Only read and write failures are returned;
// catalog, manifest and snapshot problems are logged and reported in the
// Summary.
func (b *BatchIngestion) Process(ctx context.Context) (sum Summary, err error) {
	start := time.Now()
	sum = Summary{BatchID: b.BatchID, RunID: b.RunID, Output: b.Writer.Root()}
	defer func() { sum.Duration = time.Since(start) }()

	src, err := b.Read(ctx)
	if err != nil {
		return sum, err
	}
	sum.RatingsRead = len(src.Ratings.Events)
	sum.RatingsSkipped = src.Ratings.Skipped
	sum.MetadataRead = len(src.Metadata)

	var (
		wg       sync.WaitGroup
		repaired repair.Result
		ratings  []model.TransformedRating
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		t := time.Now()
		repaired = b.Repairer.RepairAll(ctx, src.Metadata)
		b.Metrics.ObserveStage("repair", t)
	}()
	go func() {
		defer wg.Done()
		t := time.Now()
		ratings = transform.TransformAll(src.Ratings.Events)
		b.Metrics.ObserveStage("transform", t)
	}()
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	sum.Valid, sum.Repaired, sum.Dropped = repaired.Valid, repaired.Repaired, repaired.Dropped

	t := time.Now()
	joined := join.Join(ratings, repaired.Metadata)
	b.Metrics.ObserveStage("join", t)
	b.Metrics.AddUnmatched(joined.Unmatched)
	sum.Matched, sum.Unmatched = joined.Matched, joined.Unmatched
	if joined.Unmatched > 0 {
		b.log.Info("ratings without metadata excluded", zap.Int("unmatched", joined.Unmatched))
	}

	parts, err := b.Save(ctx, joined.Rows)
	if err != nil {
		return sum, err
	}
	b.Metrics.MarkSuccess(time.Now())
	sum.Partitions = len(parts)
	for _, p := range parts {
		sum.RowsWritten += p.Rows
	}

	m := manifest.Manifest{
		BatchID:    b.BatchID,
		RunID:      b.RunID,
		Table:      b.Syncer.Table(),
		Root:       b.Writer.Root(),
		Partitions: make([]manifest.Entry, 0, len(parts)),
	}
	targets := make([]catalog.Target, 0, len(parts))
	for _, p := range parts {
		m.Partitions = append(m.Partitions, manifest.Entry{Year: p.Key.Year, Month: p.Key.Month, Location: p.Location, Rows: p.Rows})
		targets = append(targets, catalog.Target{Key: p.Key, Location: p.Location})
	}
	b.publish(ctx, m)

	t = time.Now()
	report := b.Syncer.Sync(ctx, targets)
	b.Metrics.ObserveStage("catalog", t)
	sum.CatalogFailures = len(report.Failures)
	if err := report.Err(); err != nil {
		b.log.Warn("catalog sync incomplete", zap.Error(err))
	}

	if b.Snapshots != nil && b.Catalog != nil {
		id := uuid.NewString()
		if err := b.Snapshots.WriteSnapshot(ctx, id, b.Catalog); err != nil {
			b.log.Warn("catalog snapshot failed", zap.Error(err))
		} else {
			sum.SnapshotID = id
			m.SnapshotID = id
			b.publish(ctx, m)
		}
	}

	b.log.Info("batch processed",
		zap.Int("rows", sum.RowsWritten),
		zap.Int("partitions", sum.Partitions),
		zap.Int("catalogFailures", sum.CatalogFailures),
		zap.Duration("duration", time.Since(start)))
	return sum, nil
}

func (b *BatchIngestion) publish(ctx context.Context, m manifest.Manifest) {
	if b.Manifests == nil {
		return
	}
	if err := b.Manifests.PublishLatest(ctx, m); err != nil {
		b.log.Warn("manifest publish failed", zap.Error(err))
	}
}

// StreamingIngestion is the placeholder for incremental ingestion.
type StreamingIngestion struct{}

func (StreamingIngestion) Read(context.Context) (Sources, error) {
	return Sources{}, ErrNotImplemented
}

func (StreamingIngestion) Save(context.Context, []model.JoinedRecord) ([]writer.Partition, error) {
	return nil, ErrNotImplemented
}

func (StreamingIngestion) Process(context.Context) (Summary, error) {
	return Summary{}, ErrNotImplemented
}
