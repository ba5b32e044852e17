package intake

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WithClock overrides the clock stamping archived records.
func WithClock(now func() time.Time) Options {
	return func(o *options) {
		o.now = now
	}
}

// FailuresCounter returns the failure counter of step.
func (p *Pipeline) FailuresCounter(step string) prometheus.Counter {
	return p.failures.WithLabelValues(step)
}

// LeadsCounter returns the processed leads counter.
func (p *Pipeline) LeadsCounter() prometheus.Counter {
	return p.leads
}
