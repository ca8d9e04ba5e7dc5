package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/delivery"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/lifecycle"
	"github.com/aretw0/forge/pkg/ports"
	"github.com/aretw0/forge/pkg/session"
	"github.com/aretw0/forge/pkg/timer"
)

const (
	DefaultMidFlowTimeout        = 10 * time.Minute
	DefaultPostCompletionTimeout = 30 * time.Minute
	DefaultDuplicateWindow       = 5 * time.Second
)

const purposeUI = "ui"

// User-visible messages for recoverable failures.
const (
	msgFailed      = "Something went wrong while updating your request. Please try again."
	msgUnavailable = "I could not open a channel to talk to you. Enable direct messages or ask an officer for help."
	msgDuplicate   = "You already submitted this request a moment ago."
	msgCancelled   = "Request cancelled."
)

// Deps are the collaborators an Engine drives.
type Deps struct {
	Sessions *session.Manager
	Tracker  *lifecycle.Tracker
	Resolver *delivery.Resolver
	Sender   ports.FragmentTransport
	Records  ports.RecordStore
	Catalog  ports.Catalog
	Timers   *timer.Scheduler
}

// Response tells the host how to acknowledge the inbound event.
type Response struct {
	Outcome    domain.Outcome
	SessionKey string
	// Form must be shown as a modal when set.
	Form     *domain.Form
	RecordID string
	// Message is a short text for the host to show privately when nothing
	// could be rendered on the surface.
	Message string
}

// Engine is the selection state machine.
type Engine struct {
	Deps

	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	midFlow        time.Duration
	postCompletion time.Duration
	dupWindow      time.Duration
	now            func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers observability callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithTimeouts sets the mid-flow and post-completion UI teardown delays.
// Post-completion should be the longer of the two so outcomes stay readable.
func WithTimeouts(midFlow, postCompletion time.Duration) Option {
	return func(e *Engine) {
		e.midFlow = midFlow
		e.postCompletion = postCompletion
	}
}

// WithDuplicateWindow sets how far back finalization looks for an identical request.
func WithDuplicateWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.dupWindow = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over deps.
func NewEngine(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		Deps:           deps,
		logger:         logging.NewNop(),
		midFlow:        DefaultMidFlowTimeout,
		postCompletion: DefaultPostCompletionTimeout,
		dupWindow:      DefaultDuplicateWindow,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "flow")
	return e
}

// Handle runs the transition for ev. Recoverable failures are reported
// through the returned Response and never as errors.
func (e *Engine) Handle(ctx context.Context, ev Event) Response {
	step := stepOf(ev)
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase:  domain.EventBase{Timestamp: e.now(), OwnerID: ev.OwnerID},
			Step:       step.String(),
			SessionKey: ev.SessionKey,
		})
	}

	var resp Response
	switch ev.Kind {
	case EventStart:
		resp = e.start(ctx, ev)
	case EventEntity:
		resp = e.selectEntity(ctx, ev)
	case EventCategory:
		resp = e.selectCategory(ctx, ev)
	case EventSubcategory:
		resp = e.selectSubcategory(ctx, ev)
	case EventItem:
		resp = e.selectItem(ctx, ev)
	case EventPage:
		resp = e.paginate(ctx, ev)
	case EventBack:
		resp = e.back(ctx, ev)
	case EventCommit:
		resp = e.commit(ctx, ev)
	case EventFormOpen:
		resp = e.openForm(ctx, ev)
	case EventFormSubmit:
		resp = e.submitForm(ctx, ev)
	case EventCancel:
		resp = e.cancel(ctx, ev)
	default:
		e.logger.Error("unhandled event kind", "kind", int(ev.Kind), "owner", ev.OwnerID)
		resp = Response{Outcome: domain.OutcomeFailed, Message: msgFailed}
	}

	if e.hooks.OnOutcome != nil {
		e.hooks.OnOutcome(ctx, &domain.OutcomeEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), OwnerID: ev.OwnerID},
			Step:      step.String(),
			Outcome:   resp.Outcome,
		})
	}
	return resp
}

func stepOf(ev Event) Step {
	switch ev.Kind {
	case EventStart, EventEntity:
		return StepEntity
	case EventCategory:
		return StepCategory
	case EventSubcategory:
		return StepSubcategory
	case EventItem:
		return StepItem
	case EventPage, EventBack:
		return ev.Step
	case EventCommit, EventFormOpen, EventFormSubmit:
		return StepCommitment
	}
	return StepFinalized
}

// surface resolves where the owner's fragments go.
func (e *Engine) surface(ctx context.Context, ev Event) (domain.Surface, *Response) {
	s, err := e.Resolver.Resolve(ctx, ev.OwnerID, ev.Origin)
	if err != nil {
		e.logger.Warn("no delivery surface", "owner", ev.OwnerID, "err", err)
		return domain.Surface{}, &Response{Outcome: domain.OutcomeUnavailable, Message: msgUnavailable}
	}
	return s, nil
}

// render replaces level and below with frags. Nothing is tracked unless every send succeeds.
//
// A private surface that refuses the fragments moves the owner to an
// ephemeral surface: the render is retried there once and *s is updated so
// the rest of the event renders on the new surface too.
func (e *Engine) render(ctx context.Context, ev Event, s *domain.Surface, level domain.Level, frags ...domain.Fragment) error {
	err := e.renderOn(ctx, ev.OwnerID, *s, level, frags)
	if err == nil || s.Kind != domain.SurfacePrivate || !errors.Is(err, domain.ErrChannelUnavailable) {
		return err
	}

	e.Resolver.Refused(ev.OwnerID, *s)
	next, rerr := e.Resolver.Resolve(ctx, ev.OwnerID, ev.Origin)
	if rerr != nil {
		return rerr
	}
	if next.Kind == domain.SurfacePrivate {
		return err
	}
	e.logger.Info("private surface refused, rendering on ephemeral surface", "owner", ev.OwnerID, "surface", next.ID)
	*s = next
	return e.renderOn(ctx, ev.OwnerID, next, level, frags)
}

func (e *Engine) renderOn(ctx context.Context, owner string, s domain.Surface, level domain.Level, frags []domain.Fragment) error {
	_, err := e.Tracker.RenderLevel(ctx, owner, level, func(ctx context.Context) ([]domain.FragmentRef, error) {
		refs := make([]domain.FragmentRef, 0, len(frags))
		for _, f := range frags {
			ref, err := e.Sender.SendFragment(ctx, s, f)
			if err != nil {
				e.discard(ctx, refs)
				return nil, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
			}
			refs = append(refs, ref)
		}
		return refs, nil
	})
	if err != nil {
		return err
	}
	e.armTeardown(owner, e.midFlow)
	return nil
}

// discard removes fragments of a render that failed half way.
func (e *Engine) discard(ctx context.Context, refs []domain.FragmentRef) {
	for _, ref := range refs {
		if err := e.Sender.DeleteFragment(ctx, ref); err != nil && !errors.Is(err, domain.ErrFragmentGone) {
			e.logger.Warn("failed to discard partial render", "fragment", ref.ID, "err", err)
		}
	}
}

// armTeardown schedules clearing the owner's UI, replacing any pending teardown.
func (e *Engine) armTeardown(owner string, d time.Duration) {
	if e.Timers == nil || d <= 0 {
		return
	}
	e.Timers.Schedule(timer.Key{Owner: owner, Purpose: purposeUI}, d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Tracker.ClearAll(ctx, owner); err != nil {
			e.logger.Warn("ui teardown incomplete", "owner", owner, "err", err)
		}
	})
}

func (e *Engine) deliveryFailed(ev Event, err error) Response {
	// The cached surface may have been removed out from under us.
	e.Resolver.Invalidate(ev.OwnerID)
	if errors.Is(err, domain.ErrChannelUnavailable) {
		e.logger.Warn("no delivery surface", "owner", ev.OwnerID, "kind", ev.Kind.String(), "err", err)
		return Response{Outcome: domain.OutcomeUnavailable, Message: msgUnavailable, SessionKey: ev.SessionKey}
	}
	e.logger.Error("delivery failed", "owner", ev.OwnerID, "kind", ev.Kind.String(), "err", err)
	return Response{Outcome: domain.OutcomeFailed, Message: msgFailed, SessionKey: ev.SessionKey}
}

// reject re-prompts: the current step stays on screen and the reason is shown as output.
func (e *Engine) reject(ctx context.Context, ev Event, s domain.Surface, reason string) Response {
	e.logger.Debug("choice rejected", "owner", ev.OwnerID, "kind", ev.Kind.String(), "reason", reason)
	if err := e.render(ctx, ev, &s, domain.LevelOutput, messageFragment("⚠️ "+reason)); err != nil {
		e.logger.Warn("failed to render validation message", "owner", ev.OwnerID, "err", err)
	}
	return Response{Outcome: domain.OutcomeValidation, Message: reason, SessionKey: ev.SessionKey}
}

// expired replaces the dead submenu with a restart prompt.
func (e *Engine) expired(ctx context.Context, ev Event, s domain.Surface) Response {
	e.logger.Info("session expired", "owner", ev.OwnerID, "session", ev.SessionKey)
	resp := Response{Outcome: domain.OutcomeExpired, Message: "This request expired. Please start again."}
	if err := e.render(ctx, ev, &s, domain.LevelSubmenu, expiredFragment()); err != nil {
		e.logger.Warn("failed to render expiry message", "owner", ev.OwnerID, "err", err)
	}
	return resp
}

// load fetches the event's session, enforcing that it belongs to the event's owner.
func (e *Engine) load(ctx context.Context, ev Event) (domain.Session, error) {
	if ev.SessionKey == "" {
		return domain.Session{}, domain.ErrSessionExpired
	}
	sess, err := e.Sessions.Lookup(ctx, ev.SessionKey)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.OwnerID != ev.OwnerID {
		e.logger.Warn("session used by another owner", "owner", ev.OwnerID, "session", ev.SessionKey)
		return domain.Session{}, domain.ErrSessionExpired
	}
	return sess, nil
}

// update applies fn to the event's session under its lock. When show is set it
// renders from the new payload before anything is written, so a render that
// fails leaves the stored session exactly as it was.
func (e *Engine) update(ctx context.Context, ev Event, fn func(*domain.Payload) error, show func(domain.Payload) error) (domain.Payload, error) {
	if _, err := e.load(ctx, ev); err != nil {
		return domain.Payload{}, err
	}
	return e.Sessions.Update(ctx, ev.SessionKey, func(p *domain.Payload) error {
		if err := fn(p); err != nil {
			return err
		}
		if show == nil {
			return nil
		}
		return show(*p)
	})
}

// sessionFailure maps a session error to a response.
func (e *Engine) sessionFailure(ctx context.Context, ev Event, s domain.Surface, err error) Response {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return e.reject(ctx, ev, s, verr.reason)
	case errors.Is(err, domain.ErrSessionNotFound):
		return e.expired(ctx, ev, s)
	case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrChannelUnavailable):
		return e.deliveryFailed(ev, err)
	default:
		e.logger.Error("session store failure", "owner", ev.OwnerID, "session", ev.SessionKey, "err", err)
		return Response{Outcome: domain.OutcomeFailed, Message: msgFailed, SessionKey: ev.SessionKey}
	}
}

type validationError struct {
	reason string
}

func (v *validationError) Error() string { return v.reason }

func (v *validationError) Unwrap() error { return domain.ErrValidation }

func invalid(format string, args ...any) error {
	return &validationError{reason: fmt.Sprintf(format, args...)}
}

// start enters the flow: clears everything above root and renders the header and character picker.
func (e *Engine) start(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}
	return e.showEntities(ctx, ev, s, 0)
}

func (e *Engine) showEntities(ctx context.Context, ev Event, s domain.Surface, offset int) Response {
	chars, err := e.Records.CharactersFor(ctx, ev.OwnerID)
	if err != nil {
		e.logger.Error("failed to list characters", "owner", ev.OwnerID, "err", err)
		return Response{Outcome: domain.OutcomeFailed, Message: msgFailed}
	}

	if err := e.render(ctx, ev, &s, domain.LevelHeader, headerFragment()); err != nil {
		return e.deliveryFailed(ev, err)
	}
	if len(chars) == 0 {
		if err := e.render(ctx, ev, &s, domain.LevelAnchor, noCharactersFragment()); err != nil {
			return e.deliveryFailed(ev, err)
		}
		return Response{Outcome: domain.OutcomeValidation, Message: noCharactersFragment().Content}
	}
	if err := e.render(ctx, ev, &s, domain.LevelAnchor, entityPicker(chars, offset)); err != nil {
		return e.deliveryFailed(ev, err)
	}
	return Response{Outcome: domain.OutcomeRendered}
}

// selectEntity opens a new flow instance for the chosen character.
func (e *Engine) selectEntity(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}

	chars, err := e.Records.CharactersFor(ctx, ev.OwnerID)
	if err != nil {
		e.logger.Error("failed to list characters", "owner", ev.OwnerID, "err", err)
		return Response{Outcome: domain.OutcomeFailed, Message: msgFailed}
	}
	idx := slices.IndexFunc(chars, func(c domain.Character) bool { return c.ID == ev.Value })
	if idx < 0 {
		return e.reject(ctx, ev, s, "That character is not registered to you.")
	}
	char := chars[idx]

	// Every selection starts its own session so concurrent flows never share state.
	payload := domain.Payload{CharacterID: char.ID, CharacterName: char.Name}
	key, err := e.Sessions.Create(ctx, ev.OwnerID, payload)
	if err != nil {
		e.logger.Error("failed to create session", "owner", ev.OwnerID, "err", err)
		return Response{Outcome: domain.OutcomeFailed, Message: msgFailed}
	}
	ev.SessionKey = key

	if err := e.render(ctx, ev, &s, domain.LevelSubmenu, categoryPicker(key, payload, e.Catalog.Categories(), 0)); err != nil {
		// Nothing on screen carries the key, so the session is unreachable.
		e.dropSession(ctx, key)
		return e.deliveryFailed(ev, err)
	}
	return Response{Outcome: domain.OutcomeRendered, SessionKey: key}
}

func (e *Engine) selectCategory(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}

	_, err := e.update(ctx, ev, func(p *domain.Payload) error {
		if !slices.Contains(e.Catalog.Categories(), ev.Value) {
			return invalid("Unknown category %q.", ev.Value)
		}
		*p = domain.Payload{CharacterID: p.CharacterID, CharacterName: p.CharacterName, Category: ev.Value}
		return nil
	}, func(p domain.Payload) error {
		return e.showStep(ctx, ev, &s, StepSubcategory, p, 0)
	})
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}
	return Response{Outcome: domain.OutcomeRendered, SessionKey: ev.SessionKey}
}

func (e *Engine) selectSubcategory(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}

	_, err := e.update(ctx, ev, func(p *domain.Payload) error {
		if p.Category == "" {
			return invalid("Pick a category first.")
		}
		if !slices.Contains(e.Catalog.Subcategories(p.Category), ev.Value) {
			return invalid("%q is not a subcategory of %s.", ev.Value, p.Category)
		}
		*p = domain.Payload{
			CharacterID:   p.CharacterID,
			CharacterName: p.CharacterName,
			Category:      p.Category,
			Subcategory:   ev.Value,
		}
		return nil
	}, func(p domain.Payload) error {
		return e.showStep(ctx, ev, &s, StepItem, p, 0)
	})
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}
	return Response{Outcome: domain.OutcomeRendered, SessionKey: ev.SessionKey}
}

func (e *Engine) selectItem(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}

	_, err := e.update(ctx, ev, func(p *domain.Payload) error {
		if p.Category == "" || p.Subcategory == "" {
			return invalid("Pick a category and subcategory first.")
		}
		item, ok := e.Catalog.Item(p.Category, p.Subcategory, ev.Value)
		if !ok {
			return invalid("%q is not an item of %s › %s.", ev.Value, p.Category, p.Subcategory)
		}
		p.Item = item.Name
		p.Requirements = append([]domain.Requirement(nil), item.Requirements...)
		p.Mode = ""
		p.Provided = nil
		p.FormIndex = 0
		return nil
	}, func(p domain.Payload) error {
		return e.showStep(ctx, ev, &s, StepCommitment, p, 0)
	})
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}
	return Response{Outcome: domain.OutcomeRendered, SessionKey: ev.SessionKey}
}

// showStep renders the prompt of step from the payload at the submenu level.
func (e *Engine) showStep(ctx context.Context, ev Event, s *domain.Surface, step Step, p domain.Payload, offset int) error {
	var frag domain.Fragment
	switch step {
	case StepCategory:
		frag = categoryPicker(ev.SessionKey, p, e.Catalog.Categories(), offset)
	case StepSubcategory:
		frag = subcategoryPicker(ev.SessionKey, p, e.Catalog.Subcategories(p.Category), offset)
	case StepItem:
		frag = itemPicker(ev.SessionKey, p, e.Catalog.Items(p.Category, p.Subcategory), offset)
	case StepCommitment:
		frag = commitmentPrompt(ev.SessionKey, p)
	default:
		e.logger.Error("no prompt for step", "step", step.String())
		return fmt.Errorf("no prompt for step %s", step)
	}
	return e.render(ctx, ev, s, domain.LevelSubmenu, frag)
}

// reshow renders an earlier or paged step without touching the session.
func (e *Engine) reshow(ctx context.Context, ev Event, s domain.Surface, step Step, p domain.Payload, offset int) Response {
	if err := e.showStep(ctx, ev, &s, step, p, offset); err != nil {
		return e.deliveryFailed(ev, err)
	}
	return Response{Outcome: domain.OutcomeRendered, SessionKey: ev.SessionKey}
}

// paginate re-issues a picker step at another offset.
func (e *Engine) paginate(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}
	if ev.Step == StepEntity {
		chars, err := e.Records.CharactersFor(ctx, ev.OwnerID)
		if err != nil {
			e.logger.Error("failed to list characters", "owner", ev.OwnerID, "err", err)
			return Response{Outcome: domain.OutcomeFailed, Message: msgFailed}
		}
		if err := e.render(ctx, ev, &s, domain.LevelAnchor, entityPicker(chars, ev.Offset)); err != nil {
			return e.deliveryFailed(ev, err)
		}
		return Response{Outcome: domain.OutcomeRendered}
	}
	if ev.Step > StepItem {
		return e.reject(ctx, ev, s, "That prompt has no pages.")
	}

	sess, err := e.load(ctx, ev)
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}
	return e.reshow(ctx, ev, s, ev.Step, sess.Payload, ev.Offset)
}

// back re-renders an earlier step from what the payload already holds.
func (e *Engine) back(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}
	if ev.Step == StepEntity {
		// Leaving the branch: the next character choice starts a new session.
		if ev.SessionKey != "" {
			if err := e.Sessions.Delete(ctx, ev.SessionKey); err != nil {
				e.logger.Warn("failed to delete abandoned session", "session", ev.SessionKey, "err", err)
			}
		}
		if err := e.Tracker.ClearFromLevel(ctx, ev.OwnerID, domain.LevelSubmenu); err != nil {
			e.logger.Warn("clear incomplete", "owner", ev.OwnerID, "err", err)
		}
		return Response{Outcome: domain.OutcomeRendered}
	}
	if ev.Step >= StepFinalized {
		return e.reject(ctx, ev, s, "There is nothing to go back to.")
	}

	sess, err := e.load(ctx, ev)
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}
	return e.reshow(ctx, ev, s, ev.Step, sess.Payload, 0)
}

// commit applies the owner's commitment choice.
func (e *Engine) commit(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}

	mode := domain.CommitMode(ev.Value)
	needsForm := func(p domain.Payload) bool {
		return mode == domain.CommitPartial && len(p.Requirements) > 0
	}
	p, err := e.update(ctx, ev, func(p *domain.Payload) error {
		if !mode.Valid() {
			return invalid("Unknown commitment %q.", ev.Value)
		}
		if p.Item == "" {
			return invalid("Pick an item first.")
		}
		p.Mode = mode
		p.FormIndex = 0
		p.Provided = make(map[string]int, len(p.Requirements))
		for _, r := range p.Requirements {
			if mode == domain.CommitFull {
				p.Provided[r.Resource] = r.Amount
			} else {
				p.Provided[r.Resource] = 0
			}
		}
		return nil
	}, func(p domain.Payload) error {
		if !needsForm(p) {
			return nil
		}
		return e.render(ctx, ev, &s, domain.LevelSubmenu, formPrompt(ev.SessionKey, p))
	})
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}

	if !needsForm(p) {
		return e.finalize(ctx, ev, s, p)
	}
	return Response{Outcome: domain.OutcomeForm, SessionKey: ev.SessionKey, Form: buildForm(ev.SessionKey, p, 0)}
}

// PendingForm returns the first form a partial commitment would open for ev,
// without writing or rendering anything. It is nil when ev opens no form.
// Hosts with a short answer deadline show it before calling Handle.
func (e *Engine) PendingForm(ctx context.Context, ev Event) *domain.Form {
	if ev.Kind != EventCommit || domain.CommitMode(ev.Value) != domain.CommitPartial {
		return nil
	}
	sess, err := e.load(ctx, ev)
	if err != nil {
		return nil
	}
	p := sess.Payload
	if p.Item == "" || len(p.Requirements) == 0 {
		return nil
	}
	p.Provided = nil
	return buildForm(ev.SessionKey, p, 0)
}

// openForm returns the current commitment form.
func (e *Engine) openForm(ctx context.Context, ev Event) Response {
	sess, err := e.load(ctx, ev)
	if err == nil {
		p := sess.Payload
		if p.Mode == domain.CommitPartial && ev.Index == p.FormIndex && ev.Index < formCount(p.Requirements) {
			return Response{Outcome: domain.OutcomeForm, SessionKey: ev.SessionKey, Form: buildForm(ev.SessionKey, p, ev.Index)}
		}
		err = invalid("That form is no longer current.")
	}

	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}
	return e.sessionFailure(ctx, ev, s, err)
}

// parseQuantity reads a form value: blank means zero, the result is clamped to [0, max].
func parseQuantity(raw string, limit int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return min(max(n, 0), limit), nil
}

// submitForm merges one form's clamped values and advances to the next form or finalizes.
func (e *Engine) submitForm(ctx context.Context, ev Event) Response {
	s, fail := e.surface(ctx, ev)
	if fail != nil {
		return *fail
	}

	p, err := e.update(ctx, ev, func(p *domain.Payload) error {
		if p.Mode != domain.CommitPartial || ev.Index != p.FormIndex {
			return invalid("That form is no longer current.")
		}
		chunk, start := formChunk(p.Requirements, ev.Index)
		if len(chunk) == 0 {
			return invalid("That form is no longer current.")
		}

		values := make(map[string]int, len(chunk))
		for j, r := range chunk {
			n, err := parseQuantity(ev.Fields[fieldID(start+j)], r.Amount)
			if err != nil {
				return invalid("%s must be a whole number between 0 and %d.", r.Resource, r.Amount)
			}
			values[r.Resource] = n
		}

		if p.Provided == nil {
			p.Provided = make(map[string]int, len(p.Requirements))
		}
		for k, v := range values {
			p.Provided[k] = v
		}
		p.FormIndex++
		return nil
	}, func(p domain.Payload) error {
		if p.FormIndex >= formCount(p.Requirements) {
			return nil
		}
		return e.render(ctx, ev, &s, domain.LevelSubmenu, formPrompt(ev.SessionKey, p))
	})
	if err != nil {
		return e.sessionFailure(ctx, ev, s, err)
	}

	if p.FormIndex < formCount(p.Requirements) {
		return Response{Outcome: domain.OutcomeRendered, SessionKey: ev.SessionKey}
	}
	return e.finalize(ctx, ev, s, p)
}

// finalize writes the durable record unless an identical one was just written.
func (e *Engine) finalize(ctx context.Context, ev Event, s domain.Surface, p domain.Payload) Response {
	rec := domain.RecordFromPayload(ev.OwnerID, p, e.now())
	key := rec.Key()

	var id string
	err := e.Sessions.WithLock(ctx, "finalize:"+key.String(), func(ctx context.Context) error {
		dup, err := e.Records.FindRecentDuplicate(ctx, key, e.dupWindow)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateSubmission
		}
		id, err = e.Records.CreateRecord(ctx, rec)
		return err
	})

	switch {
	case errors.Is(err, domain.ErrDuplicateSubmission):
		e.dropSession(ctx, ev.SessionKey)
		e.logger.Info("duplicate submission", "owner", ev.OwnerID, "entity", key.String())
		if rerr := e.render(ctx, ev, &s, domain.LevelSubmenu, messageFragment(msgDuplicate)); rerr != nil {
			e.logger.Warn("failed to render duplicate notice", "owner", ev.OwnerID, "err", rerr)
		}
		e.armTeardown(ev.OwnerID, e.postCompletion)
		return Response{Outcome: domain.OutcomeDuplicate, Message: msgDuplicate}
	case err != nil:
		e.logger.Error("failed to write record", "owner", ev.OwnerID, "entity", key.String(), "err", err)
		return Response{Outcome: domain.OutcomeFailed, Message: msgFailed}
	}

	e.dropSession(ctx, ev.SessionKey)
	e.logger.Info("request recorded", "owner", ev.OwnerID, "record", id, "item", rec.Item, "mode", string(rec.Mode))

	// The confirmation replaces the anchor, taking the submenu and any output with it.
	resp := Response{Outcome: domain.OutcomeFinalized, RecordID: id}
	if rerr := e.render(ctx, ev, &s, domain.LevelAnchor, confirmationFragment(rec, id)); rerr != nil {
		e.logger.Error("failed to render confirmation", "owner", ev.OwnerID, "record", id, "err", rerr)
		e.Resolver.Invalidate(ev.OwnerID)
		resp.Message = fmt.Sprintf("Request %s recorded.", shortID(id))
	}
	e.armTeardown(ev.OwnerID, e.postCompletion)
	e.Resolver.Linger(ev.OwnerID, e.postCompletion)
	return resp
}

func (e *Engine) dropSession(ctx context.Context, key string) {
	if err := e.Sessions.Delete(ctx, key); err != nil {
		e.logger.Warn("failed to delete finished session", "session", key, "err", err)
	}
}

// cancel abandons the flow and removes its UI.
func (e *Engine) cancel(ctx context.Context, ev Event) Response {
	if ev.SessionKey != "" {
		if _, err := e.load(ctx, ev); err == nil {
			if err := e.Sessions.Delete(ctx, ev.SessionKey); err != nil {
				e.logger.Warn("failed to delete cancelled session", "session", ev.SessionKey, "err", err)
			}
		}
	}
	if e.Timers != nil {
		e.Timers.Cancel(timer.Key{Owner: ev.OwnerID, Purpose: purposeUI})
	}
	if err := e.Tracker.ClearAll(ctx, ev.OwnerID); err != nil {
		e.logger.Warn("clear incomplete", "owner", ev.OwnerID, "err", err)
	}
	e.Resolver.Release(ctx, ev.OwnerID)
	return Response{Outcome: domain.OutcomeCancelled, Message: msgCancelled}
}
