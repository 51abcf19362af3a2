package reference

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu          sync.Mutex
	metricsInitialized bool
	metricsErr         error

	cacheHitCounter  *prometheus.CounterVec
	cacheMissCounter *prometheus.CounterVec
	loadHistogram    *prometheus.HistogramVec
	loadFailCounter  *prometheus.CounterVec
)

// SetupMetrics registers the reference cache collectors once. Later calls
// return the first outcome.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsInitialized {
		return metricsErr
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "po_console_reference_cache_hits_total",
		Help: "Reference dataset reads answered from Redis.",
	}, []string{"dataset"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "po_console_reference_cache_miss_total",
		Help: "Reference dataset reads that went upstream.",
	}, []string{"dataset"})
	loads := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "po_console_reference_load_duration_seconds",
		Help:    "Duration of upstream reference loads.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dataset"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "po_console_reference_load_failures_total",
		Help: "Upstream reference loads that failed.",
	}, []string{"dataset"})

	cacheHitCounter = register(reg, hits)
	cacheMissCounter = register(reg, misses)
	loadHistogram = register(reg, loads)
	loadFailCounter = register(reg, failures)
	metricsInitialized = true
	return metricsErr
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		metricsErr = err
	}
	return c
}

func recordHit(dataset string) {
	if cacheHitCounter == nil {
		return
	}
	cacheHitCounter.WithLabelValues(dataset).Inc()
}

func recordMiss(dataset string) {
	if cacheMissCounter == nil {
		return
	}
	cacheMissCounter.WithLabelValues(dataset).Inc()
}

func observeLoad(dataset string, d time.Duration, err error) {
	if loadHistogram != nil {
		loadHistogram.WithLabelValues(dataset).Observe(d.Seconds())
	}
	if err != nil && loadFailCounter != nil {
		loadFailCounter.WithLabelValues(dataset).Inc()
	}
}
