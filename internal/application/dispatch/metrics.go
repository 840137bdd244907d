package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts dispatch outcomes and analyzer latency.
type Metrics struct {
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the dispatch collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobsense_dispatch_total",
				Help: "Objects dispatched, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blobsense_analyzer_duration_seconds",
				Help:    "Time spent in an analyzer, download and remote call included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
	for _, c := range []prometheus.Collector{m.dispatched, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Dispatched exposes the counter for a kind/outcome pair.
func (m *Metrics) Dispatched(kind, outcome string) prometheus.Counter {
	return m.dispatched.WithLabelValues(kind, outcome)
}

func (m *Metrics) observe(o Outcome) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(string(o.Kind), o.label()).Inc()
	if o.Analyzed() {
		m.duration.WithLabelValues(string(o.Kind)).Observe(float64(o.DurationMS) / 1000)
	}
}
