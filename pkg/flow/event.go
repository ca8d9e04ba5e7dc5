package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/forge/pkg/domain"
)

// ErrUnknownEvent is returned when an identifier does not decode to a known event.
var ErrUnknownEvent = errors.New("unknown event")

// idPrefix namespaces every identifier this package issues.
const idPrefix = "forge"

// EventKind is the closed set of inbound UI events.
type EventKind int

const (
	EventStart EventKind = iota
	EventEntity
	EventCategory
	EventSubcategory
	EventItem
	EventPage
	EventBack
	EventCommit
	EventFormOpen
	EventFormSubmit
	EventCancel
)

var kindCodes = [...]string{
	EventStart:       "start",
	EventEntity:      "entity",
	EventCategory:    "category",
	EventSubcategory: "sub",
	EventItem:        "item",
	EventPage:        "page",
	EventBack:        "back",
	EventCommit:      "commit",
	EventFormOpen:    "form",
	EventFormSubmit:  "submit",
	EventCancel:      "cancel",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindCodes) {
		return "unknown"
	}
	return kindCodes[k]
}

func parseKind(code string) (EventKind, bool) {
	for i, c := range kindCodes {
		if c == code {
			return EventKind(i), true
		}
	}
	return 0, false
}

// Step is a state of the selection flow.
type Step int

const (
	StepEntity Step = iota
	StepCategory
	StepSubcategory
	StepItem
	StepCommitment
	StepFinalized
)

var stepNames = [...]string{
	StepEntity:      "entity",
	StepCategory:    "category",
	StepSubcategory: "subcategory",
	StepItem:        "item",
	StepCommitment:  "commitment",
	StepFinalized:   "finalized",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// ParseStep is the inverse of Step.String.
func ParseStep(name string) (Step, bool) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), true
		}
	}
	return 0, false
}

// Event is one decoded inbound UI event.
type Event struct {
	Kind       EventKind
	OwnerID    string
	Origin     domain.EventContext
	SessionKey string

	// Value is the selected option for pickers or the commit mode.
	Value string
	// Step and Offset address a picker page or a back target.
	Step   Step
	Offset int
	// Index is the form position for form events.
	Index int
	// Fields holds submitted form values keyed by field id.
	Fields map[string]string
}

// EncodeID builds the opaque identifier carried by a UI control.
func EncodeID(kind EventKind, sessionKey, arg string) string {
	return idPrefix + ":" + kind.String() + ":" + sessionKey + ":" + arg
}

func pageArg(step Step, offset int) string {
	return step.String() + "." + strconv.Itoa(offset)
}

// DecodeEvent parses an identifier issued by EncodeID. The host fills in
// OwnerID, Origin, the selected Value of pickers and submitted Fields.
func DecodeEvent(id string) (Event, error) {
	parts := strings.SplitN(id, ":", 4)
	if len(parts) != 4 || parts[0] != idPrefix {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, id)
	}
	kind, ok := parseKind(parts[1])
	if !ok {
		return Event{}, fmt.Errorf("%w: kind %q", ErrUnknownEvent, parts[1])
	}

	ev := Event{Kind: kind, SessionKey: parts[2]}
	arg := parts[3]

	switch kind {
	case EventPage:
		name, off, found := strings.Cut(arg, ".")
		step, ok := ParseStep(name)
		n, err := strconv.Atoi(off)
		if !found || !ok || err != nil || n < 0 {
			return Event{}, fmt.Errorf("%w: page %q", ErrUnknownEvent, arg)
		}
		ev.Step, ev.Offset = step, n
	case EventBack:
		step, ok := ParseStep(arg)
		if !ok {
			return Event{}, fmt.Errorf("%w: back %q", ErrUnknownEvent, arg)
		}
		ev.Step = step
	case EventFormOpen, EventFormSubmit:
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return Event{}, fmt.Errorf("%w: form index %q", ErrUnknownEvent, arg)
		}
		ev.Index = n
	case EventCommit:
		if !domain.CommitMode(arg).Valid() {
			return Event{}, fmt.Errorf("%w: commit %q", ErrUnknownEvent, arg)
		}
		ev.Value = arg
	default:
		ev.Value = arg
	}
	return ev, nil
}

// IsSelect reports whether the event comes from a picker whose value is chosen by the user.
func (k EventKind) IsSelect() bool {
	switch k {
	case EventEntity, EventCategory, EventSubcategory, EventItem:
		return true
	}
	return false
}
