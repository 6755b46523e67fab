package bridge

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes recorded by Metrics.
const (
	OutcomeOK          = "ok"
	OutcomeRemoteError = "remote_error"
	OutcomeClosed      = "closed"
	OutcomeError       = "error"
)

// Metrics holds Prometheus collectors for bridge round-trips.
// A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the bridge collectors and registers them on reg.
// Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiebridge",
		Subsystem: "bridge",
		Name:      "calls_total",
		Help:      "Total bridge round-trips by RPC method and outcome",
	}, []string{"method", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kiebridge",
		Subsystem: "bridge",
		Name:      "call_duration_seconds",
		Help:      "Bridge round-trip latency by RPC method",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"method"})

	if reg != nil {
		var err error
		if calls, err = registerOrReuse(reg, calls); err != nil {
			return nil, err
		}
		if duration, err = registerOrReuse(reg, duration); err != nil {
			return nil, err
		}
	}

	return &Metrics{calls: calls, duration: duration}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, outcomeOf(err)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsRemoteError(err):
		return OutcomeRemoteError
	case isClosed(err):
		return OutcomeClosed
	default:
		return OutcomeError
	}
}
