package keyspace

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	commands *prometheus.CounterVec
	keys     prometheus.Gauge
}

// newMetrics creates the keyspace collectors and registers them with reg
// unless reg is nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tdigest",
			Name:      "commands_total",
			Help:      "Keyspace commands by name and outcome.",
		}, []string{"command", "outcome"}),
		keys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tdigest",
			Name:      "keys",
			Help:      "Number of digests in the keyspace.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.keys)
	}
	return m
}

// observe counts one command and passes err through.
func (m *metrics) observe(command string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	return err
}
