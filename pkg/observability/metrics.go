package observability

import (
	"context"

	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the coordinator collectors.
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationSeconds *prometheus.HistogramVec
	Expiries         *prometheus.CounterVec
	Recoveries       *prometheus.CounterVec
	RecoverySeconds  prometheus.Histogram
	ReplayedItems    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartkeeper_operations_total",
				Help: "Cart operations by verb and outcome kind",
			},
			[]string{"op", "kind"},
		),
		OperationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cartkeeper_operation_duration_seconds",
				Help:    "Duration of cart operations, recovery included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "recovered"},
		),
		Expiries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartkeeper_context_expiries_total",
				Help: "Expired contexts detected, by the operation that hit them",
			},
			[]string{"op"},
		),
		Recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartkeeper_recoveries_total",
				Help: "Recovery attempts by result",
			},
			[]string{"result"},
		),
		RecoverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cartkeeper_recovery_duration_seconds",
			Help:    "Duration of the create, replay and rebind sequence",
			Buckets: prometheus.DefBuckets,
		}),
		ReplayedItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cartkeeper_replayed_items",
			Help:    "Items replayed into a fresh context per successful recovery",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),
	}

	collectors := []prometheus.Collector{
		m.Operations, m.OperationSeconds, m.Expiries, m.Recoveries, m.RecoverySeconds, m.ReplayedItems,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m, chained after next.
func (m *Metrics) Hooks(next domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnOperation: func(ctx context.Context, e *domain.OperationEvent) {
			kind := string(e.Kind)
			if e.Kind == domain.KindNone {
				kind = "ok"
			}
			recovered := "false"
			if e.Recovered {
				recovered = "true"
			}
			m.Operations.WithLabelValues(e.Op, kind).Inc()
			m.OperationSeconds.WithLabelValues(e.Op, recovered).Observe(e.Duration.Seconds())
			if next.OnOperation != nil {
				next.OnOperation(ctx, e)
			}
		},
		OnContextExpired: func(ctx context.Context, e *domain.RecoveryEvent) {
			m.Expiries.WithLabelValues(e.Op).Inc()
			if next.OnContextExpired != nil {
				next.OnContextExpired(ctx, e)
			}
		},
		OnRecovered: func(ctx context.Context, e *domain.RecoveryEvent) {
			m.Recoveries.WithLabelValues("success").Inc()
			m.RecoverySeconds.Observe(e.Duration.Seconds())
			m.ReplayedItems.Observe(float64(e.ReplayedItems))
			if next.OnRecovered != nil {
				next.OnRecovered(ctx, e)
			}
		},
		OnRecoveryFailed: func(ctx context.Context, e *domain.RecoveryEvent) {
			m.Recoveries.WithLabelValues("failure").Inc()
			m.RecoverySeconds.Observe(e.Duration.Seconds())
			if next.OnRecoveryFailed != nil {
				next.OnRecoveryFailed(ctx, e)
			}
		},
	}
}
