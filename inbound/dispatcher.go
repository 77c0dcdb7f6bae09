package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-verification/core"
)

// TransitionRequest is what a handler receives once the state machine let
// the event through.
type TransitionRequest struct {
	Event    core.CanonicalVerification
	Current  core.UserVerification
	Decision core.TransitionDecision
	Now      time.Time
}

type TransitionHandler interface {
	WebhookType() core.WebhookType
	Handle(ctx context.Context, req TransitionRequest) (core.TransitionOutcome, error)
}

type Dispatcher struct {
	Users    core.UserVerificationStore
	Activity core.ActivitySink
	Observer core.Observer
	Now      func() time.Time

	mu       sync.RWMutex
	handlers map[core.WebhookType]TransitionHandler
}

func NewDispatcher(users core.UserVerificationStore, activity core.ActivitySink) *Dispatcher {
	return &Dispatcher{
		Users:    users,
		Activity: activity,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		handlers: map[core.WebhookType]TransitionHandler{},
	}
}

// NewDefaultDispatcher registers the submitted, approved, declined and
// unknown handlers.
func NewDefaultDispatcher(
	users core.UserVerificationStore,
	activity core.ActivitySink,
	reconciler core.Reconciler,
) (*Dispatcher, error) {
	dispatcher := NewDispatcher(users, activity)
	writer := TransitionWriter{Users: users, Activity: activity}
	for _, handler := range []TransitionHandler{
		SubmittedHandler{Writer: writer},
		ApprovedHandler{Writer: writer, Reconciler: reconciler},
		DeclinedHandler{Writer: writer},
		UnknownHandler{Writer: writer},
	} {
		if err := dispatcher.Register(handler); err != nil {
			return nil, err
		}
	}
	return dispatcher, nil
}

func (d *Dispatcher) Register(handler TransitionHandler) error {
	if d == nil {
		return configurationError("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return configurationError("inbound: handler is nil", nil)
	}
	webhookType := normalizeWebhookType(handler.WebhookType())
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[core.WebhookType]TransitionHandler{}
	}
	if _, exists := d.handlers[webhookType]; exists {
		return conflictError(
			fmt.Sprintf("inbound: handler already registered for %q", webhookType),
			map[string]any{"webhook_type": string(webhookType)},
		)
	}
	d.handlers[webhookType] = handler
	return nil
}

// Dispatch loads the user, decides the transition and runs the handler.
// Stale and conflicting events are recorded and reported without error.
func (d *Dispatcher) Dispatch(ctx context.Context, event core.CanonicalVerification) (outcome core.TransitionOutcome, err error) {
	startedAt := time.Now()
	defer func() {
		if d == nil {
			return
		}
		d.Observer.ObserveOperation(ctx, startedAt, "dispatch_transition", err, map[string]any{
			"user_id":      event.UserID,
			"session_id":   event.SessionID,
			"webhook_type": string(event.WebhookType),
			"verdict":      string(outcome.Verdict),
			"duplicate":    outcome.Duplicate,
		})
	}()

	if d == nil || d.Users == nil {
		return core.TransitionOutcome{}, configurationError("inbound: dispatcher requires a user store", nil)
	}
	event.UserID = strings.TrimSpace(event.UserID)
	event.SessionID = strings.TrimSpace(event.SessionID)

	current, err := d.Users.Get(ctx, event.UserID)
	if err != nil {
		return core.TransitionOutcome{}, wrapError(err, core.KindPersistence, "inbound: load user verification", map[string]any{
			"user_id": event.UserID,
		})
	}

	decision := core.DecideTransition(current, event)
	outcome = core.TransitionOutcome{
		UserID:      event.UserID,
		SessionID:   event.SessionID,
		WebhookType: decision.To,
		Verdict:     decision.Verdict,
	}

	if !decision.Proceeds() {
		outcome.Message = decision.Reason
		if err := d.recordRejected(ctx, event, decision); err != nil {
			return core.TransitionOutcome{}, err
		}
		d.Observer.LogWarn(ctx, "verification transition not applied", map[string]any{
			"user_id":      event.UserID,
			"session_id":   event.SessionID,
			"webhook_type": string(decision.To),
			"from":         string(decision.From),
			"verdict":      string(decision.Verdict),
			"reason":       decision.Reason,
		})
		return outcome, nil
	}

	handler := d.handlerFor(decision.To)
	if handler == nil {
		return core.TransitionOutcome{}, configurationError(
			fmt.Sprintf("inbound: no handler registered for %q", decision.To),
			map[string]any{"webhook_type": string(decision.To)},
		)
	}

	handled, err := handler.Handle(ctx, TransitionRequest{
		Event:    event,
		Current:  current,
		Decision: decision,
		Now:      d.now(),
	})
	if err != nil {
		return core.TransitionOutcome{}, err
	}
	handled.UserID = outcome.UserID
	handled.SessionID = outcome.SessionID
	handled.WebhookType = outcome.WebhookType
	handled.Verdict = outcome.Verdict
	return handled, nil
}

func (d *Dispatcher) recordRejected(ctx context.Context, event core.CanonicalVerification, decision core.TransitionDecision) error {
	if d.Activity == nil {
		return nil
	}
	status := core.ActivityStatusStale
	if decision.Verdict == core.TransitionConflict {
		status = core.ActivityStatusConflict
	}
	err := d.Activity.Record(ctx, core.ActivityEntry{
		UserID:    event.UserID,
		SessionID: event.SessionID,
		Action:    activityAction(decision.To),
		Status:    status,
		Metadata: map[string]any{
			"from":         string(decision.From),
			"webhook_type": string(decision.To),
			"event":        event.RawEventMeaning(),
			"event_key":    event.EventKey,
			"reason":       decision.Reason,
		},
		CreatedAt: d.now(),
	})
	return wrapError(err, core.KindPersistence, "inbound: record rejected transition", map[string]any{
		"user_id": event.UserID,
	})
}

func (d *Dispatcher) handlerFor(webhookType core.WebhookType) TransitionHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeWebhookType(webhookType)]
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeWebhookType(webhookType core.WebhookType) core.WebhookType {
	normalized := core.WebhookType(strings.ToLower(strings.TrimSpace(string(webhookType))))
	switch normalized {
	case core.WebhookTypeSubmitted, core.WebhookTypeApproved, core.WebhookTypeDeclined:
		return normalized
	default:
		return core.WebhookTypeUnknown
	}
}

func activityAction(webhookType core.WebhookType) string {
	return "verification_" + string(normalizeWebhookType(webhookType))
}
