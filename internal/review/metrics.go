package review

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "qa_review"

// Metrics métricas del controlador de revisión y envío
type Metrics struct {
	// DispatchTotal resultados de envío: sent, already_sent, race_lost, failed, unknown, invalid
	DispatchTotal *prometheus.CounterVec

	// QueryDuration duración de las consultas al almacén por operación
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics registra las métricas en reg. Registrar dos veces en el mismo registro entra en pánico.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_total",
				Help:      "Total de solicitudes de envío de feedback por resultado",
			},
			[]string{"outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "query_duration_seconds",
				Help:      "Duración de las consultas de evaluaciones en segundos",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
	}
}
