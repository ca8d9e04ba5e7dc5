package observability

import (
	"context"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/lifecycle"
	"github.com/aretw0/forge/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forge"

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	SessionsCreated  prometheus.Counter
	SessionsReaped   prometheus.Counter
	FragmentsDeleted *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	Outcomes         *prometheus.CounterVec
	RecordsCreated   prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Selection sessions created.",
		}),
		SessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Expired sessions removed by the reaper.",
		}),
		FragmentsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_deleted_total",
			Help:      "UI fragment deletions by level and result.",
		}, []string{"level", "result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_transitions_total",
			Help:      "Handled flow events by step.",
		}, []string{"step"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_outcomes_total",
			Help:      "Handled flow events by outcome.",
		}, []string{"outcome"}),
		RecordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "Durable crafting requests written.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.SessionsCreated, m.SessionsReaped, m.FragmentsDeleted,
		m.Transitions, m.Outcomes, m.RecordsCreated,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SessionHooks feeds session counters.
func (m *Metrics) SessionHooks() session.Hooks {
	return session.Hooks{
		OnCreate: func(string) { m.SessionsCreated.Inc() },
		OnReap:   func(n int) { m.SessionsReaped.Add(float64(n)) },
	}
}

// TrackerHooks feeds fragment deletion counters.
func (m *Metrics) TrackerHooks() lifecycle.Hooks {
	return lifecycle.Hooks{
		OnDelete: func(level domain.Level, result lifecycle.DeleteResult) {
			m.FragmentsDeleted.WithLabelValues(level.String(), string(result)).Inc()
		},
	}
}

// FlowHooks feeds transition, outcome and record counters.
func (m *Metrics) FlowHooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.Step).Inc()
		},
		OnOutcome: func(_ context.Context, e *domain.OutcomeEvent) {
			m.Outcomes.WithLabelValues(string(e.Outcome)).Inc()
			if e.Outcome == domain.OutcomeFinalized {
				m.RecordsCreated.Inc()
			}
		},
	}
}
