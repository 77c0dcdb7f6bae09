package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/retry"
)

const VerificationErrorInvalidSignature = "VERIFICATION_INVALID_SIGNATURE"

// Dispatcher applies a normalized webhook to the user record.
type Dispatcher interface {
	Dispatch(ctx context.Context, event core.CanonicalVerification) (core.TransitionOutcome, error)
}

// Delivery is one inbound webhook call as handed over by the entrypoint.
type Delivery struct {
	Body      []byte
	Signature string
	Headers   map[string]string
}

func (d Delivery) signature() string {
	if signature := strings.TrimSpace(d.Signature); signature != "" {
		return signature
	}
	return SignatureFromHeaders(d.Headers)
}

// Processor runs validate, normalize, log, dispatch and mark for each
// delivery. It never panics on bad input and always returns a result.
type Processor struct {
	Validator  SignatureValidator
	Events     core.WebhookEventStore
	Dispatcher Dispatcher
	Retry      retry.Config
	Observer   core.Observer
	Now        func() time.Time

	// PendingLease is how long a pending row blocks redeliveries before it
	// is taken over.
	PendingLease time.Duration
}

func NewProcessor(validator SignatureValidator, events core.WebhookEventStore, dispatcher Dispatcher) *Processor {
	return &Processor{
		Validator:    validator,
		Events:       events,
		Dispatcher:   dispatcher,
		Retry:        retry.DispatchConfig(),
		PendingLease: core.PendingLease,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Process handles a raw body plus the hex signature header value.
func (p *Processor) Process(ctx context.Context, body []byte, signature string) core.ProcessResult {
	return p.ProcessDelivery(ctx, Delivery{Body: body, Signature: signature})
}

func (p *Processor) ProcessDelivery(ctx context.Context, delivery Delivery) (result core.ProcessResult) {
	startedAt := time.Now()
	defer func() {
		if p == nil {
			return
		}
		p.Observer.ObserveOperation(ctx, startedAt, "process_webhook", result.Error, map[string]any{
			"event_id":     result.EventID,
			"user_id":      result.UserID,
			"session_id":   result.SessionID,
			"webhook_type": string(result.Action),
			"deduped":      result.Deduped,
			"retryable":    result.Retryable,
		})
	}()

	if p == nil || p.Events == nil || p.Dispatcher == nil {
		err := core.NewConfigurationError("webhooks: processor requires event store and dispatcher")
		return core.ProcessResult{Message: err.Error(), Error: err}
	}

	if !p.Validator.Validate(delivery.Body, delivery.signature()) {
		err := goerrors.New("webhooks: invalid signature", goerrors.CategoryAuth).
			WithTextCode(VerificationErrorInvalidSignature)
		return core.ProcessResult{Message: "invalid signature", Error: err}
	}

	event, err := ParseAndNormalize(delivery.Body)
	if err != nil {
		return p.rejectInvalid(ctx, delivery.Body, err)
	}

	event.EventKey = IdempotencyKey(event, delivery.Body)
	stored, created, err := p.Events.LogWebhookEvent(ctx, core.WebhookEvent{
		UserID:          event.UserID,
		SessionID:       event.SessionID,
		EventType:       core.WebhookEventReceived,
		WebhookType:     event.WebhookType,
		Status:          core.WebhookStatusPending,
		IdempotencyKey:  event.EventKey,
		ProviderEventID: event.AttemptID,
		Payload:         snapshotPayload(event.Raw, delivery.Body),
		CreatedAt:       p.now(),
	})
	if err != nil {
		err = core.WrapError(err, core.KindPersistence, "webhooks: log webhook event")
		return failedResult(event, "", err)
	}

	if !created {
		switch stored.Status {
		case core.WebhookStatusSuccess:
			result := baseResult(event, stored.ID)
			result.Success = true
			result.Deduped = true
			result.Message = "webhook already processed"
			return result
		case core.WebhookStatusPending:
			if !p.leaseExpired(stored) {
				result := baseResult(event, stored.ID)
				result.Deduped = true
				result.Retryable = true
				result.Message = "webhook is already being processed"
				return result
			}
			p.Observer.LogWarn(ctx, "taking over stale pending webhook", map[string]any{
				"event_id":    stored.ID,
				"retry_count": stored.RetryCount,
			})
			fallthrough
		default:
			if stored.RetryCount >= core.MaxWebhookRetries {
				result := baseResult(event, stored.ID)
				result.Deduped = true
				result.Message = "webhook exhausted its re-drive budget"
				result.Error = core.NewError(core.KindConflict, result.Message)
				return result
			}
			retried, retryErr := p.Events.MarkWebhookRetry(ctx, stored.ID)
			if retryErr != nil {
				retryErr = core.WrapError(retryErr, core.KindPersistence, "webhooks: mark webhook retry")
				return failedResult(event, stored.ID, retryErr)
			}
			stored = retried
		}
	}

	return p.dispatchAndMark(ctx, stored.ID, event)
}

// Redrive re-runs a stored event from its payload snapshot.
func (p *Processor) Redrive(ctx context.Context, eventID string) core.ProcessResult {
	if p == nil || p.Events == nil || p.Dispatcher == nil {
		err := core.NewConfigurationError("webhooks: processor requires event store and dispatcher")
		return core.ProcessResult{Message: err.Error(), Error: err}
	}
	eventID = strings.TrimSpace(eventID)
	stored, err := p.Events.GetWebhookEvent(ctx, eventID)
	if err != nil {
		return core.ProcessResult{EventID: eventID, Message: err.Error(), Error: err, Retryable: core.IsRetryable(err)}
	}
	if stored.Status == core.WebhookStatusSuccess {
		return core.ProcessResult{
			Success:   true,
			Deduped:   true,
			EventID:   stored.ID,
			UserID:    stored.UserID,
			SessionID: stored.SessionID,
			Action:    stored.WebhookType,
			Message:   "webhook already processed",
		}
	}
	if stored.RetryCount >= core.MaxWebhookRetries {
		err := core.NewError(core.KindConflict, "webhooks: re-drive budget exhausted")
		return core.ProcessResult{EventID: stored.ID, UserID: stored.UserID, SessionID: stored.SessionID, Message: err.Error(), Error: err}
	}

	body, err := json.Marshal(stored.Payload)
	if err != nil {
		err = core.WrapError(err, core.KindValidation, "webhooks: encode payload snapshot")
		return core.ProcessResult{EventID: stored.ID, Message: err.Error(), Error: err}
	}
	event, err := ParseAndNormalize(body)
	if err != nil {
		_ = p.Events.MarkWebhookProcessed(ctx, stored.ID, false, err.Error())
		return failedResult(core.CanonicalVerification{UserID: stored.UserID, SessionID: stored.SessionID}, stored.ID, err)
	}
	event.EventKey = stored.IdempotencyKey
	if _, err := p.Events.MarkWebhookRetry(ctx, stored.ID); err != nil {
		err = core.WrapError(err, core.KindPersistence, "webhooks: mark webhook retry")
		return failedResult(event, stored.ID, err)
	}
	return p.dispatchAndMark(ctx, stored.ID, event)
}

// RedriveFailed re-drives every event still inside its retry budget.
func (p *Processor) RedriveFailed(ctx context.Context, limit int) ([]core.ProcessResult, error) {
	if p == nil || p.Events == nil {
		return nil, core.NewConfigurationError("webhooks: processor requires event store")
	}
	if released, err := p.Events.ReleaseStalePending(ctx, p.now().Add(-p.pendingLease())); err != nil {
		return nil, err
	} else if released > 0 {
		p.Observer.LogWarn(ctx, "released stale pending webhooks", map[string]any{"released": released})
	}
	failed, err := p.Events.GetFailedWebhooks(ctx, limit)
	if err != nil {
		return nil, err
	}
	results := make([]core.ProcessResult, 0, len(failed))
	for _, event := range failed {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, p.Redrive(ctx, event.ID))
	}
	return results, nil
}

// dispatchAndMark always settles the audit row, even when ctx was cancelled
// mid-dispatch, so the row never stays pending.
func (p *Processor) dispatchAndMark(ctx context.Context, eventID string, event core.CanonicalVerification) core.ProcessResult {
	outcome, err := retry.Do(ctx, "dispatch_webhook", p.Retry, func(ctx context.Context) (core.TransitionOutcome, error) {
		return p.Dispatcher.Dispatch(ctx, event)
	})
	settleCtx := context.WithoutCancel(ctx)
	if err != nil {
		if markErr := p.Events.MarkWebhookProcessed(settleCtx, eventID, false, err.Error()); markErr != nil {
			p.Observer.LogError(ctx, "mark webhook failed", map[string]any{
				"event_id": eventID,
				"error":    markErr.Error(),
			})
		}
		return failedResult(event, eventID, err)
	}

	if err := p.Events.MarkWebhookProcessed(settleCtx, eventID, true, ""); err != nil {
		err = core.WrapError(err, core.KindPersistence, "webhooks: mark webhook processed")
		return failedResult(event, eventID, err)
	}

	result := baseResult(event, eventID)
	result.Success = true
	result.Message = outcomeMessage(outcome)
	result.Data = outcome.Data
	if outcome.Reconciliation == core.ReconciliationWebhookOnly {
		result.Annotations = append(result.Annotations, core.ReconciliationWebhookOnly)
	}
	if outcome.Duplicate {
		result.Deduped = true
		result.Annotations = append(result.Annotations, "duplicate")
	}
	switch outcome.Verdict {
	case core.TransitionConflict, core.TransitionStale:
		result.Annotations = append(result.Annotations, string(outcome.Verdict))
	}
	return result
}

// rejectInvalid records a validation failure without re-drive budget so it
// is never picked up for automatic retry.
func (p *Processor) rejectInvalid(ctx context.Context, body []byte, cause error) core.ProcessResult {
	now := p.now()
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = nil
	}
	stored, _, err := p.Events.LogWebhookEvent(ctx, core.WebhookEvent{
		UserID:         stringField(raw, "vendorData"),
		SessionID:      firstNonEmpty(stringField(raw, "id"), stringField(raw, "sessionId")),
		EventType:      core.WebhookEventFailed,
		WebhookType:    core.WebhookTypeUnknown,
		Status:         core.WebhookStatusError,
		IdempotencyKey: "invalid:" + payloadHash(body),
		Payload:        snapshotPayload(raw, body),
		Error:          cause.Error(),
		RetryCount:     core.MaxWebhookRetries,
		CreatedAt:      now,
		ProcessedAt:    &now,
	})
	if err != nil {
		p.Observer.LogError(ctx, "log rejected webhook failed", map[string]any{"error": err.Error()})
	}
	return core.ProcessResult{
		EventID: stored.ID,
		Message: cause.Error(),
		Error:   cause,
		Action:  core.WebhookTypeUnknown,
	}
}

func (p *Processor) leaseExpired(stored core.WebhookEvent) bool {
	if stored.CreatedAt.IsZero() {
		return false
	}
	return p.now().Sub(stored.CreatedAt) > p.pendingLease()
}

func (p *Processor) pendingLease() time.Duration {
	if p.PendingLease > 0 {
		return p.PendingLease
	}
	return core.PendingLease
}

// IdempotencyKey prefers the provider attempt id and otherwise hashes the
// payload together with session and webhook type.
func IdempotencyKey(event core.CanonicalVerification, body []byte) string {
	if attemptID := strings.TrimSpace(event.AttemptID); attemptID != "" {
		return fmt.Sprintf("provider:%s:%s:%s", event.SessionID, attemptID, event.WebhookType)
	}
	return fmt.Sprintf("synthetic:%s:%s:%s", event.SessionID, event.WebhookType, payloadHash(body))
}

func payloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func snapshotPayload(raw map[string]any, body []byte) map[string]any {
	if len(raw) > 0 {
		return raw
	}
	return map[string]any{"raw": string(body)}
}

func baseResult(event core.CanonicalVerification, eventID string) core.ProcessResult {
	return core.ProcessResult{
		EventID:   eventID,
		UserID:    event.UserID,
		SessionID: event.SessionID,
		Action:    event.WebhookType,
	}
}

func failedResult(event core.CanonicalVerification, eventID string, err error) core.ProcessResult {
	result := baseResult(event, eventID)
	result.Message = err.Error()
	result.Error = err
	result.Retryable = core.IsRetryable(err)
	return result
}

func outcomeMessage(outcome core.TransitionOutcome) string {
	if message := strings.TrimSpace(outcome.Message); message != "" {
		return message
	}
	return fmt.Sprintf("%s webhook processed", outcome.WebhookType)
}

func stringField(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	value, _ := raw[key].(string)
	return strings.TrimSpace(value)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
