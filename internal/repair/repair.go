// Package repair turns corrupt metadata lines into usable records where the
// malformation is recoverable.
package repair

import (
	"context"
	"runtime"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/literal"
	"github.com/RajaShyam/JET-movie-ratings/internal/metrics"
	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

// Failure classifies a corrupt record that could not be repaired. It only
// appears as the Reason of a Dropped outcome.
var Failure = errs.Class("record repair")

type Kind int

const (
	Valid Kind = iota
	Repaired
	Dropped
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Repaired:
		return "repaired"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Outcome is the result of repairing one record. Fields is set unless Kind is
// Dropped, in which case Reason is non-empty.
type Outcome struct {
	Kind   Kind
	Fields model.MetadataFields
	Reason string
}

// Usable reports whether the outcome carries metadata for the join.
func (o Outcome) Usable() bool { return o.Kind != Dropped }

// Repair classifies one raw record. Valid records pass through unchanged;
// corrupt ones are cleaned and re-parsed.
func Repair(rec model.RawMetadataRecord) Outcome {
	if !rec.IsCorrupt() {
		return Outcome{Kind: Valid, Fields: *rec.Fields}
	}
	cleaned := Cleanup(rec.Corrupt)
	obj, err := literal.ParseMap(cleaned)
	if err != nil {
		return dropped(err, cleaned)
	}
	fields, err := model.MetadataFromLiteral(obj)
	if err != nil {
		return dropped(err, cleaned)
	}
	return Outcome{Kind: Repaired, Fields: fields}
}

func dropped(err error, text string) Outcome {
	return Outcome{Kind: Dropped, Reason: Failure.New("%v: %s", err, text).Error()}
}

// Result aggregates a RepairAll run. Metadata holds the Valid and Repaired
// fields in input order.
type Result struct {
	Metadata   []model.MetadataFields
	Valid      int
	Repaired   int
	Dropped    int
	Reasons    []string
	Incomplete int
}

type Repairer struct {
	log     *zap.Logger
	metrics *metrics.Registry
	workers int
}

type Option func(*Repairer)

// WithWorkers sets the pool size. Values below 1 fall back to runtime.NumCPU.
func WithWorkers(n int) Option {
	return func(r *Repairer) { r.workers = n }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Repairer) { r.metrics = m }
}

func New(log *zap.Logger, opts ...Option) *Repairer {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Repairer{log: log.Named("repair")}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.NumCPU()
	}
	return r
}

// RepairAll repairs records on a worker pool. It never fails: once ctx is
// done no further records are scheduled and the remainder is counted in
// Result.Incomplete.
func (r *Repairer) RepairAll(ctx context.Context, records []model.RawMetadataRecord) Result {
	outcomes := make([]Outcome, len(records))
	processed := make([]bool, len(records))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = Repair(records[i])
				processed[i] = true
			}
		}()
	}
schedule:
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break schedule
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	res := Result{Metadata: make([]model.MetadataFields, 0, len(records))}
	for i, o := range outcomes {
		if !processed[i] {
			res.Incomplete++
			continue
		}
		switch o.Kind {
		case Valid:
			res.Valid++
		case Repaired:
			res.Repaired++
		case Dropped:
			res.Dropped++
			res.Reasons = append(res.Reasons, o.Reason)
			r.log.Warn("dropped metadata record", zap.Int("index", i), zap.String("reason", o.Reason))
			continue
		}
		res.Metadata = append(res.Metadata, o.Fields)
	}

	r.metrics.AddMetadataOutcome(Valid.String(), res.Valid)
	r.metrics.AddMetadataOutcome(Repaired.String(), res.Repaired)
	r.metrics.AddMetadataOutcome(Dropped.String(), res.Dropped)
	if res.Incomplete > 0 {
		r.log.Warn("repair interrupted", zap.Int("unprocessed", res.Incomplete), zap.Error(ctx.Err()))
	}
	r.log.Info("metadata repaired",
		zap.Int("valid", res.Valid),
		zap.Int("repaired", res.Repaired),
		zap.Int("dropped", res.Dropped))
	return res
}
