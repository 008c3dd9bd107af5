package libtracker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusTracker counts operations and observes their latency.
type PrometheusTracker struct {
	operations *prometheus.CounterVec
	changes    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusTracker registers the tracker's collectors on reg.
func NewPrometheusTracker(reg prometheus.Registerer, namespace string) (*PrometheusTracker, error) {
	t := &PrometheusTracker{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Tracked operations by operation, subject and outcome.",
		}, []string{"operation", "subject", "status"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_changes_total",
			Help:      "Reported state changes by operation and subject.",
		}, []string{"operation", "subject"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of tracked operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "subject"}),
	}
	for _, c := range []prometheus.Collector{t.operations, t.changes, t.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *PrometheusTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	start := time.Now()
	failed := false
	reportErr := func(err error) {
		if err != nil {
			failed = true
		}
	}
	reportChange := func(string, any) {
		t.changes.WithLabelValues(operation, subject).Inc()
	}
	end := func() {
		status := "ok"
		if failed {
			status = "error"
		}
		t.operations.WithLabelValues(operation, subject, status).Inc()
		t.duration.WithLabelValues(operation, subject).Observe(time.Since(start).Seconds())
	}
	return reportErr, reportChange, end
}

var _ ActivityTracker = (*PrometheusTracker)(nil)
