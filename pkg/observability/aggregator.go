package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/forge/pkg/domain"
)

// Compose combines several lifecycle hooks into one. Nil callbacks are skipped
// and the rest run in order.
func Compose(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var transitions []func(context.Context, *domain.TransitionEvent)
	var outcomes []func(context.Context, *domain.OutcomeEvent)
	for _, h := range hooks {
		if h.OnTransition != nil {
			transitions = append(transitions, h.OnTransition)
		}
		if h.OnOutcome != nil {
			outcomes = append(outcomes, h.OnOutcome)
		}
	}

	var out domain.LifecycleHooks
	if len(transitions) > 0 {
		out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
			for _, fn := range transitions {
				fn(ctx, e)
			}
		}
	}
	if len(outcomes) > 0 {
		out.OnOutcome = func(ctx context.Context, e *domain.OutcomeEvent) {
			for _, fn := range outcomes {
				fn(ctx, e)
			}
		}
	}
	return out
}

// AuditHooks logs every handled event at Debug and every finished flow at Info.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "flow_transition", "owner", e.OwnerID, "step", e.Step, "session", e.SessionKey)
		},
		OnOutcome: func(ctx context.Context, e *domain.OutcomeEvent) {
			switch e.Outcome {
			case domain.OutcomeFinalized, domain.OutcomeCancelled, domain.OutcomeDuplicate:
				logger.InfoContext(ctx, "flow_finished", "owner", e.OwnerID, "outcome", e.Outcome)
			default:
				logger.DebugContext(ctx, "flow_outcome", "owner", e.OwnerID, "step", e.Step, "outcome", e.Outcome)
			}
		},
	}
}
