package patient

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts service outcomes. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientrecords",
			Subsystem: "patient",
			Name:      "operations_total",
			Help:      "Patient service operations by outcome.",
		}, []string{"operation", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientrecords",
			Subsystem: "patient",
			Name:      "validation_rejections_total",
			Help:      "Patient requests rejected by validation, by field.",
		}, []string{"field"}),
	}
	reg.MustRegister(m.operations, m.rejections)
	return m
}

func (m *Metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome(err)).Inc()

	var ve *ValidationError
	if errors.As(err, &ve) {
		m.rejections.WithLabelValues(ve.Field).Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
