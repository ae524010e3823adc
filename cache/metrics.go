package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 语句缓存的 prometheus 指标，需要调用 MustRegister 注册
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	errors *prometheus.CounterVec
}

func NewMetrics(name string) *Metrics {
	labels := []string{"op", "dialect"}
	return &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_statement_cache_hits_total",
			Help: "Total number of statement cache hits",
		}, labels),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_statement_cache_misses_total",
			Help: "Total number of statement cache misses",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_statement_cache_errors_total",
			Help: "Total number of statements that failed to build",
		}, labels),
	}
}

// MustRegister 把指标注册到指定的 registry
func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(m.hits, m.misses, m.errors)
}

func (m *Metrics) hit(key Key) {
	if m != nil {
		m.hits.WithLabelValues(string(key.Op), key.Dialect).Inc()
	}
}

func (m *Metrics) miss(key Key) {
	if m != nil {
		m.misses.WithLabelValues(string(key.Op), key.Dialect).Inc()
	}
}

func (m *Metrics) fail(key Key) {
	if m != nil {
		m.errors.WithLabelValues(string(key.Op), key.Dialect).Inc()
	}
}
