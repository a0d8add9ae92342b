package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/medportal-api/internal/core/port"
)

// IdentityMetrics counts identity lifecycle operations.
type IdentityMetrics struct {
	operations *prometheus.CounterVec
}

// NewIdentityMetrics registers the lifecycle counters with reg, reusing collectors already registered.
func NewIdentityMetrics(reg prometheus.Registerer) (*IdentityMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medportal",
		Subsystem: "identity",
		Name:      "operations_total",
		Help:      "Identity lifecycle operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	if err := reg.Register(operations); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register identity operations collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing identity collector has unexpected type %T", already.ExistingCollector)
		}
		operations = existing
	}

	return &IdentityMetrics{operations: operations}, nil
}

// RecordOperation increments the counter for operation and outcome.
func (m *IdentityMetrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// Operations exposes the underlying collector.
func (m *IdentityMetrics) Operations() *prometheus.CounterVec {
	return m.operations
}

var _ port.LifecycleMetrics = (*IdentityMetrics)(nil)
