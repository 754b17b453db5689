package infra

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"http-bridge/bridge/dispatch/domain"
)

// PrometheusStats exporta os desfechos como métricas.
// Use um registry próprio em testes (promauto.With registra nele).
type PrometheusStats struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusStats registra as métricas em reg. inFlight/capacity, se não nil,
// viram gauges lidos na coleta.
func NewPrometheusStats(reg prometheus.Registerer, inFlight, capacity func() int) *PrometheusStats {
	f := promauto.With(reg)
	s := &PrometheusStats{
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "dispatch",
				Name:      "requests_total",
				Help:      "Total number of slot outcomes by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bridge",
				Subsystem: "dispatch",
				Name:      "request_duration_seconds",
				Help:      "Time from slot claim to terminal outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
	}
	if inFlight != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "bridge",
			Subsystem: "dispatch",
			Name:      "slots_in_flight",
			Help:      "Number of busy slots",
		}, func() float64 { return float64(inFlight()) })
	}
	if capacity != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "bridge",
			Subsystem: "dispatch",
			Name:      "slots_capacity",
			Help:      "Size of the slot table",
		}, func() float64 { return float64(capacity()) })
	}
	return s
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	// limita a cardinalidade: métodos não suportados viram "other"
	method := ev.Method
	if !domain.Method(method).Supported() {
		method = "other"
	}
	s.outcomes.WithLabelValues(method, string(ev.Outcome)).Inc()
	if ev.Outcome != domain.OutcomeRejected {
		s.duration.WithLabelValues(method, string(ev.Outcome)).Observe(ev.Duration.Seconds())
	}
	return nil
}
