package harness

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the harness's prometheus collectors on a private
// registry, so multiple harnesses (tests) never fight over registration.
type metrics struct {
	registry    *prometheus.Registry
	commands    *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockdroid_commands_total",
			Help: "Device-control commands recorded, by action.",
		}, []string{"action"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockdroid_transitions_total",
			Help: "Motion event dispatch outcomes (fired or no_match).",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.commands, m.transitions)
	return m
}
