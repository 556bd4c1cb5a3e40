package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// CounterVec registers a counter with the default registry, returning the
// already registered collector when one with the same descriptor exists.
func CounterVec(opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}

// HistogramVec is the histogram counterpart of CounterVec.
func HistogramVec(opts prometheus.HistogramOpts, labels ...string) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(histogram); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return histogram
}
