package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	warmed   *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddWarmed counts reference datasets loaded for a tenant by the warmup job.
func (m *Metrics) AddWarmed(tenant string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.warmed.WithLabelValues(tenant).Add(float64(count))
}

func register[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if err := registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "po_console_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"}))
	failures := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "po_console_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"}))
	duration := register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "po_console_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"}))
	warmed := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "po_console_reference_warmed_total",
		Help: "Reference datasets loaded by the warmup job per tenant.",
	}, []string{"tenant"}))
	return &Metrics{runs: runs, failures: failures, duration: duration, warmed: warmed}
}
