package pool

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics reports pool occupancy and evictions labelled by pool
// name.  A single Metrics can be shared by many pools.
type Metrics struct {
	idle      *prometheus.GaugeVec
	active    *prometheus.GaugeVec
	allocated *prometheus.GaugeVec
	evictions *prometheus.CounterVec
}

// newPoolGaugeVec creates a gauge vec in the courier/pool namespace.
func newPoolGaugeVec(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "courier",
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		},
		[]string{"pool"},
	)
}

// NewMetrics creates unregistered pool metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		idle:      newPoolGaugeVec("idle_items", "Number of idle items waiting to be reused"),
		active:    newPoolGaugeVec("active_items", "Number of items in use"),
		allocated: newPoolGaugeVec("allocated_items", "Number of items created and not yet removed"),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "courier",
				Subsystem: "pool",
				Name:      "evictions_total",
				Help:      "Total number of items removed from the pool",
			},
			[]string{"pool", "reason"},
		),
	}
}

// Register registers the collectors.  Collectors already
// registered are not an error.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	for _, c := range m.Collectors() {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

// Collectors returns the prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.idle, m.active, m.allocated, m.evictions}
}

func (m *Metrics) observe(pool string, idle, active, allocated int) {
	m.idle.WithLabelValues(pool).Set(float64(idle))
	m.active.WithLabelValues(pool).Set(float64(active))
	m.allocated.WithLabelValues(pool).Set(float64(allocated))
}

func (m *Metrics) evicted(pool, reason string) {
	m.evictions.WithLabelValues(pool, reason).Inc()
}
