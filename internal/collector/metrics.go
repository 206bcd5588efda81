package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collector's prometheus series.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	JMXValue      *prometheus.GaugeVec
	TargetUp      *prometheus.GaugeVec
}

// NewMetrics creates the series and registers them to reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// jmxbridge_fetch_total counter
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jmxbridge_fetch_total",
				Help: "Fetches per target, by outcome.",
			},
			[]string{"target", "status"},
		),
		// jmxbridge_fetch_duration_seconds histogram
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jmxbridge_fetch_duration_seconds",
				Help:    "Wall time of a fetch, route resolution included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target", "source"},
		),
		// jmxbridge_jmx_value gauge
		JMXValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jmxbridge_jmx_value",
				Help: "Numeric JMX bean attribute from the last successful fetch.",
			},
			[]string{"target", "bean", "attribute"},
		),
		// jmxbridge_target_up gauge
		TargetUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jmxbridge_target_up",
				Help: "1 if the last fetch of the target succeeded.",
			},
			[]string{"target"},
		),
	}
	reg.MustRegister(m.FetchTotal, m.FetchDuration, m.JMXValue, m.TargetUp)
	return m
}
