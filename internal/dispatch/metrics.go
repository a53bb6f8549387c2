package dispatch

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	calls  *prometheus.CounterVec
	errors *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxdna",
			Name:      "hook_calls_total",
			Help:      "Handler invocations by hook kind and event.",
		}, []string{"kind", "event"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxdna",
			Name:      "hook_errors_total",
			Help:      "Handler failures by hook kind and event.",
		}, []string{"kind", "event"}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	reg.MustRegister(m.calls, m.errors)
}
