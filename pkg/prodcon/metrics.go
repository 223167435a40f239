package prodcon

import (
	metrics "github.com/rcrowley/go-metrics"
)

// Metrics are the stage timers and outcome counters of a pipeline.
type Metrics struct {
	registry  metrics.Registry
	encode    metrics.Timer
	batch     metrics.Timer
	schedule  metrics.Timer
	commit    metrics.Timer
	committed metrics.Counter
	rejected  metrics.Counter
}

// NewMetrics registers the pipeline metrics in r, a new registry is
// created if r is nil.
func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.NewRegistry()
	}

	return &Metrics{
		registry:  r,
		encode:    metrics.GetOrRegisterTimer("pipeline.encode", r),
		batch:     metrics.GetOrRegisterTimer("pipeline.batch", r),
		schedule:  metrics.GetOrRegisterTimer("pipeline.schedule", r),
		commit:    metrics.GetOrRegisterTimer("pipeline.commit", r),
		committed: metrics.GetOrRegisterCounter("pipeline.committed", r),
		rejected:  metrics.GetOrRegisterCounter("pipeline.rejected", r),
	}
}

func (m *Metrics) Registry() metrics.Registry {
	return m.registry
}

// Committed returns the number of committed commands.
func (m *Metrics) Committed() int64 {
	return m.committed.Count()
}

// Rejected returns the number of commands rejected by the handler.
func (m *Metrics) Rejected() int64 {
	return m.rejected.Count()
}
