package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run lifecycle metrics

	RunsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "runs_started_total",
		Help:      "Total sync job runs started.",
	}, []string{"job_name"})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "runs_completed_total",
		Help:      "Total sync job runs finished, by outcome.",
	}, []string{"job_name", "outcome"})

	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pgsyncd",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full sync job run.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"job_name", "outcome"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pgsyncd",
		Name:      "runs_in_flight",
		Help:      "Number of sync job runs currently executing.",
	})

	CancellationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "cancellations_total",
		Help:      "Total run cancellations, by request source.",
	}, []string{"source"})

	// Table-level transfer metrics

	TablesProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "tables_processed_total",
		Help:      "Total target tables synced, by outcome.",
	}, []string{"outcome"})

	RecordsTransferredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "records_transferred_total",
		Help:      "Total records written to destination tables; the orchestrator records every write with strategy=\"batch\".",
	}, []string{"strategy"})

	SchemaDDLTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "schema_ddl_total",
		Help:      "Total DDL statements issued by the schema replicator, by kind.",
	}, []string{"kind"})

	// Scheduler lifecycle

	ScheduledJobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pgsyncd",
		Name:      "scheduled_jobs_active",
		Help:      "Number of jobs currently registered with the in-process cron scheduler.",
	})

	WorkerPoolSaturatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "worker_pool_saturated_total",
		Help:      "Number of scheduled ticks dropped because the worker pool queue was full.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pgsyncd",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgsyncd",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		RunsStartedTotal,
		RunsCompletedTotal,
		RunDuration,
		RunsInFlight,
		CancellationsTotal,
		TablesProcessedTotal,
		RecordsTransferredTotal,
		SchemaDDLTotal,
		ScheduledJobsActive,
		WorkerPoolSaturatedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
