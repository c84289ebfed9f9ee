package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry bundles the ingestion collectors on a dedicated prometheus registry.
// All recorder methods accept a nil receiver.
type Registry struct {
	reg               *prometheus.Registry
	RecordsRead       *prometheus.CounterVec
	RatingsSkipped    prometheus.Counter
	MetadataOutcomes  *prometheus.CounterVec
	UnmatchedRatings  prometheus.Counter
	RowsWritten       prometheus.Counter
	PartitionsWritten prometheus.Counter
	CatalogOps        *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	LastSuccess       prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	recordsRead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_records_read_total",
		Help: "Records read from the sources.",
	}, []string{"source"})
	ratingsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_ratings_skipped_total",
		Help: "Ratings rows that did not fit the ratings schema.",
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_metadata_outcomes_total",
		Help: "Metadata records by repair outcome.",
	}, []string{"outcome"})
	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_unmatched_ratings_total",
		Help: "Ratings excluded by the join for lack of metadata.",
	})
	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rows_written_total",
		Help: "Joined rows written to partitioned storage.",
	})
	partitions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_partitions_written_total",
		Help: "Partitions overwritten.",
	})
	catalogOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_catalog_operations_total",
		Help: "Catalog statements by operation and status.",
	}, []string{"op", "status"})
	stage := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_stage_duration_seconds",
		Help:    "Duration of each ingestion stage.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
	}, []string{"stage"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_last_success_timestamp_seconds",
		Help: "Unix time of the last run whose data write completed.",
	})

	r.MustRegister(recordsRead, ratingsSkipped, outcomes, unmatched, rows, partitions, catalogOps, stage, lastSuccess)
	return &Registry{
		reg:               r,
		RecordsRead:       recordsRead,
		RatingsSkipped:    ratingsSkipped,
		MetadataOutcomes:  outcomes,
		UnmatchedRatings:  unmatched,
		RowsWritten:       rows,
		PartitionsWritten: partitions,
		CatalogOps:        catalogOps,
		StageDuration:     stage,
		LastSuccess:       lastSuccess,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Push sends the current values to a Pushgateway under job.
func (r *Registry) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(r.reg).PushContext(ctx)
}

// WriteTextfile writes the current values for the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func (r *Registry) AddRecordsRead(source string, n int) {
	if r == nil {
		return
	}
	r.RecordsRead.WithLabelValues(source).Add(float64(n))
}

func (r *Registry) AddRatingsSkipped(n int) {
	if r == nil {
		return
	}
	r.RatingsSkipped.Add(float64(n))
}

func (r *Registry) AddMetadataOutcome(outcome string, n int) {
	if r == nil {
		return
	}
	r.MetadataOutcomes.WithLabelValues(outcome).Add(float64(n))
}

func (r *Registry) AddUnmatched(n int) {
	if r == nil {
		return
	}
	r.UnmatchedRatings.Add(float64(n))
}

func (r *Registry) AddPartitionWritten(rows int) {
	if r == nil {
		return
	}
	r.PartitionsWritten.Inc()
	r.RowsWritten.Add(float64(rows))
}

func (r *Registry) IncCatalogOp(op, status string) {
	if r == nil {
		return
	}
	r.CatalogOps.WithLabelValues(op, status).Inc()
}

// ObserveStage records how long a stage took since start.
func (r *Registry) ObserveStage(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (r *Registry) MarkSuccess(t time.Time) {
	if r == nil {
		return
	}
	r.LastSuccess.Set(float64(t.Unix()))
}
