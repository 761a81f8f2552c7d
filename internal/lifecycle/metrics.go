package lifecycle

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts order lifecycle outcomes. A nil *Metrics disables
// collection, which tests rely on.
type Metrics struct {
	opened  prometheus.Counter
	settled *prometheus.CounterVec
	expired prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_opened_total",
			Help: "Orders created with a provider invoice attached.",
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_orders_settled_total",
			Help: "Orders settled after a confirmed payment, by final status.",
		}, []string{"status"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_expired_total",
			Help: "Orders expired by the payment deadline timer.",
		}),
	}
	reg.MustRegister(m.opened, m.settled, m.expired)
	return m
}

func (m *Metrics) orderOpened() {
	if m != nil {
		m.opened.Inc()
	}
}

func (m *Metrics) orderSettled(status string) {
	if m != nil {
		m.settled.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) orderExpired() {
	if m != nil {
		m.expired.Inc()
	}
}
