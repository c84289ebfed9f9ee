package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/changelog"
	"github.com/RajaShyam/JET-movie-ratings/internal/metrics"
	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

// SyncFailure classifies catalog statements that failed during a sync. It is
// recoverable: the batch continues and the failures are reported.
var SyncFailure = errs.Class("catalog sync failure")

// Target is a partition to register and its data location.
type Target struct {
	Key      model.PartitionKey
	Location string
}

// Failure is one failed statement.
type Failure struct {
	Key       model.PartitionKey
	Statement string
	Err       error
}

type Report struct {
	Synced   []model.PartitionKey
	Failures []Failure
}

// Err summarizes the failures as one SyncFailure, or nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	var group errs.Group
	for _, f := range r.Failures {
		group.Add(fmt.Errorf("%s: %w", f.Statement, f.Err))
	}
	return SyncFailure.New("%d of %d partitions failed: %v",
		len(r.Failures), len(r.Failures)+len(r.Synced), group.Err())
}

// Syncer re-registers written partitions: drop if exists, then add, one key
// at a time.
type Syncer struct {
	cat       Catalog
	table     string
	log       *zap.Logger
	changelog changelog.Writer
	metrics   *metrics.Registry
	timeout   time.Duration
	runID     string
	seq       int64
	now       func() time.Time
}

type Option func(*Syncer)

// WithChangelog records every successful statement.
func WithChangelog(w changelog.Writer) Option {
	return func(s *Syncer) { s.changelog = w }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Syncer) { s.metrics = m }
}

// WithStatementTimeout bounds each catalog statement.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.timeout = d }
}

func WithRunID(id string) Option {
	return func(s *Syncer) { s.runID = id }
}

func NewSyncer(cat Catalog, table string, log *zap.Logger, opts ...Option) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Syncer{cat: cat, table: table, log: log.Named("catalog"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) Table() string { return s.table }

// Sync registers each distinct target key in ascending key order. The drop
// is always issued before the add, including for partitions that are new. A
// failed drop skips the add for that key. Failures never stop the loop; once
// ctx is done every remaining key is reported failed.
func (s *Syncer) Sync(ctx context.Context, targets []Target) Report {
	locations := make(map[model.PartitionKey]string, len(targets))
	keys := make([]model.PartitionKey, 0, len(targets))
	for _, t := range targets {
		if _, seen := locations[t.Key]; seen {
			continue
		}
		locations[t.Key] = t.Location
		keys = append(keys, t.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var report Report
	for _, k := range keys {
		drop := DropStatement(s.table, k)
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, s.fail(k, drop, err))
			continue
		}

		s.log.Info("catalog statement", zap.String("statement", drop))
		err := s.exec(ctx, func(ctx context.Context) error {
			return s.cat.DropPartitionIfExists(ctx, s.table, k)
		})
		if err != nil {
			s.metrics.IncCatalogOp(string(changelog.OpDrop), "error")
			report.Failures = append(report.Failures, s.fail(k, drop, err))
			continue
		}
		s.metrics.IncCatalogOp(string(changelog.OpDrop), "ok")
		s.record(ctx, changelog.OpDrop, k, "")

		add := AddStatement(s.table, k, locations[k])
		s.log.Info("catalog statement", zap.String("statement", add))
		err = s.exec(ctx, func(ctx context.Context) error {
			return s.cat.AddPartition(ctx, s.table, k, locations[k])
		})
		if err != nil {
			s.metrics.IncCatalogOp(string(changelog.OpAdd), "error")
			report.Failures = append(report.Failures, s.fail(k, add, err))
			continue
		}
		s.metrics.IncCatalogOp(string(changelog.OpAdd), "ok")
		s.record(ctx, changelog.OpAdd, k, locations[k])
		report.Synced = append(report.Synced, k)
	}

	s.log.Info("catalog synced",
		zap.String("table", s.table),
		zap.Int("synced", len(report.Synced)),
		zap.Int("failed", len(report.Failures)))
	return report
}

func (s *Syncer) exec(ctx context.Context, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (s *Syncer) fail(k model.PartitionKey, statement string, err error) Failure {
	err = SyncFailure.Wrap(err)
	s.log.Error("catalog statement failed",
		zap.Stringer("partition", k),
		zap.String("statement", statement),
		zap.Error(err))
	return Failure{Key: k, Statement: statement, Err: err}
}

// record appends to the changelog. Changelog failures are logged only.
func (s *Syncer) record(ctx context.Context, op changelog.Op, k model.PartitionKey, location string) {
	if s.changelog == nil {
		return
	}
	s.seq++
	ev := changelog.Event{
		Seq:      s.seq,
		RunID:    s.runID,
		Table:    s.table,
		Op:       op,
		Year:     k.Year,
		Month:    k.Month,
		Location: location,
		TS:       s.now().UTC().Unix(),
	}
	if err := s.changelog.Append(ctx, ev); err != nil {
		s.log.Warn("changelog append failed", zap.String("key", ev.Key()), zap.Error(err))
	}
}
