package domain

import (
	"context"
	"time"
)

// Outcome summarizes how a flow transition ended.
type Outcome string

const (
	OutcomeRendered    Outcome = "rendered"    // Next step displayed
	OutcomeForm        Outcome = "form"        // A modal form must be opened by the host
	OutcomeFinalized   Outcome = "finalized"   // Durable record written
	OutcomeDuplicate   Outcome = "duplicate"   // Identical submission inside the window, nothing written
	OutcomeExpired     Outcome = "expired"     // Session lost, user must restart
	OutcomeValidation  Outcome = "validation"  // Choice rejected, user re-prompted
	OutcomeUnavailable Outcome = "unavailable" // No delivery surface could be obtained
	OutcomeFailed      Outcome = "failed"      // Delivery layer failure
	OutcomeCancelled   Outcome = "cancelled"   // Owner abandoned the flow
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	OwnerID   string    `json:"owner_id"`
}

// TransitionEvent is emitted when a step handler runs.
type TransitionEvent struct {
	EventBase
	Step       string `json:"step"`
	SessionKey string `json:"session_key,omitempty"`
}

// OutcomeEvent is emitted once per handled event.
type OutcomeEvent struct {
	EventBase
	Step    string  `json:"step"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnOutcome    func(context.Context, *OutcomeEvent)
}
