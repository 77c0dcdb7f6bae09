package inbound

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
	"github.com/google/uuid"
)

var (
	_ TransitionHandler = SubmittedHandler{}
	_ TransitionHandler = ApprovedHandler{}
	_ TransitionHandler = DeclinedHandler{}
	_ TransitionHandler = UnknownHandler{}
)

// activityNamespace seeds the ids of transition activity entries.
var activityNamespace = uuid.MustParse("5b0e3f9c-7c1e-4d53-9a0e-2f6f4f1c8a41")

// TransitionWriter applies a patch and appends the matching activity entry.
type TransitionWriter struct {
	Users    core.UserVerificationStore
	Activity core.ActivitySink
}

// Apply returns applied=false when the event key was already written.
func (w TransitionWriter) Apply(ctx context.Context, patch core.TransitionPatch) (bool, error) {
	if w.Users == nil {
		return false, configurationError("inbound: transition writer requires a user store", nil)
	}
	applied, err := w.Users.ApplyTransition(ctx, patch)
	if err != nil {
		return false, wrapError(err, core.KindPersistence, "inbound: apply transition", map[string]any{
			"user_id":    patch.UserID,
			"session_id": patch.SessionID,
			"status":     string(patch.Status),
		})
	}
	return applied, nil
}

// Record is called for applied and already applied transitions alike. The
// entry id is derived from the event key, so the sink keeps a single row
// and a retry after a failed write fills the gap.
func (w TransitionWriter) Record(ctx context.Context, entry core.ActivityEntry) error {
	if w.Activity == nil {
		return nil
	}
	err := w.Activity.Record(ctx, entry)
	return wrapError(err, core.KindPersistence, "inbound: record activity", map[string]any{
		"user_id": entry.UserID,
		"action":  entry.Action,
	})
}

type SubmittedHandler struct {
	Writer TransitionWriter
}

func (SubmittedHandler) WebhookType() core.WebhookType { return core.WebhookTypeSubmitted }

func (h SubmittedHandler) Handle(ctx context.Context, req TransitionRequest) (core.TransitionOutcome, error) {
	event := req.Event
	submittedAt := firstTime(keepOnReapply(req, req.Current.SubmittedAt), event.SubmittedAt, &req.Now)
	patch := basePatch(event)
	patch.Status = core.VerificationStatusSubmitted
	patch.SubmittedAt = submittedAt

	applied, err := h.Writer.Apply(ctx, patch)
	if err != nil {
		return core.TransitionOutcome{}, err
	}
	if err := h.Writer.Record(ctx, activityEntry(req, core.ActivityStatusOK, map[string]any{
		"submitted_at": submittedAt.Format(time.RFC3339),
	})); err != nil {
		return core.TransitionOutcome{}, err
	}
	if !applied {
		return duplicateOutcome(), nil
	}
	return core.TransitionOutcome{Message: "verification submitted"}, nil
}

// ApprovedHandler marks the user verified from webhook data first and then
// pulls the authoritative record. A failed pull keeps the approval.
type ApprovedHandler struct {
	Writer     TransitionWriter
	Reconciler core.Reconciler
}

func (ApprovedHandler) WebhookType() core.WebhookType { return core.WebhookTypeApproved }

func (h ApprovedHandler) Handle(ctx context.Context, req TransitionRequest) (core.TransitionOutcome, error) {
	event := req.Event
	verified := true
	verifiedAt := firstTime(keepOnReapply(req, req.Current.IdentityVerifiedAt), &req.Now)
	approvedAt := firstTime(keepOnReapply(req, req.Current.ApprovedAt), &req.Now)

	patch := basePatch(event)
	patch.Status = core.VerificationStatusApproved
	patch.IdentityVerified = &verified
	patch.IdentityVerifiedAt = verifiedAt
	patch.ApprovedAt = approvedAt

	applied, err := h.Writer.Apply(ctx, patch)
	if err != nil {
		return core.TransitionOutcome{}, err
	}

	// Reconciliation also runs for an already applied key so a re-drive can
	// finish a pull interrupted after the webhook write.
	outcome := core.TransitionOutcome{
		Duplicate:      !applied,
		Reconciliation: core.ReconciliationWebhookOnly,
		Message:        "verification approved",
		Data:           map[string]any{},
	}
	metadata := map[string]any{}
	if h.Reconciler != nil {
		result := h.Reconciler.SyncUserVerificationData(ctx, event.UserID, event.SessionID)
		if result.Success {
			outcome.Reconciliation = core.ReconciliationProvider
			if result.Data != nil && result.Data.Decision != nil && result.Data.Decision.DecisionScore != nil {
				outcome.Data["decision_score"] = *result.Data.Decision.DecisionScore
				metadata["decision_score"] = *result.Data.Decision.DecisionScore
			}
		} else if result.Error != nil {
			metadata["reconciliation_error"] = result.Error.Error()
		}
	}
	if _, ok := outcome.Data["decision_score"]; !ok && event.DecisionScore != nil {
		outcome.Data["decision_score"] = *event.DecisionScore
		metadata["decision_score"] = *event.DecisionScore
	}
	outcome.Data["reconciliation"] = outcome.Reconciliation
	metadata["reconciliation"] = outcome.Reconciliation
	if outcome.Reconciliation == core.ReconciliationWebhookOnly {
		outcome.Message = "verification approved from webhook data only"
	}

	status := core.ActivityStatusOK
	if outcome.Reconciliation == core.ReconciliationWebhookOnly {
		status = core.ActivityStatusWarning
	}
	if err := h.Writer.Record(ctx, activityEntry(req, status, metadata)); err != nil {
		return core.TransitionOutcome{}, err
	}
	return outcome, nil
}

type DeclinedHandler struct {
	Writer TransitionWriter
}

func (DeclinedHandler) WebhookType() core.WebhookType { return core.WebhookTypeDeclined }

func (h DeclinedHandler) Handle(ctx context.Context, req TransitionRequest) (core.TransitionOutcome, error) {
	event := req.Event
	verified := false
	declinedAt := firstTime(keepOnReapply(req, req.Current.DeclinedAt), &req.Now)

	patch := basePatch(event)
	patch.Status = core.VerificationStatusDeclined
	patch.IdentityVerified = &verified
	patch.DeclinedAt = declinedAt
	patch.DeclineReason = strings.TrimSpace(event.Reason)

	applied, err := h.Writer.Apply(ctx, patch)
	if err != nil {
		return core.TransitionOutcome{}, err
	}
	metadata := map[string]any{"reason": patch.DeclineReason}
	if event.ReasonCode != nil {
		metadata["reason_code"] = *event.ReasonCode
	}
	if event.Code != 0 {
		metadata["code"] = event.Code
	}
	if err := h.Writer.Record(ctx, activityEntry(req, core.ActivityStatusOK, metadata)); err != nil {
		return core.TransitionOutcome{}, err
	}
	if !applied {
		return duplicateOutcome(), nil
	}
	return core.TransitionOutcome{
		Message: "verification declined",
		Data:    map[string]any{"reason": patch.DeclineReason},
	}, nil
}

// UnknownHandler stores the received action or status as-is and leaves the
// verification flags alone.
type UnknownHandler struct {
	Writer TransitionWriter
}

func (UnknownHandler) WebhookType() core.WebhookType { return core.WebhookTypeUnknown }

func (h UnknownHandler) Handle(ctx context.Context, req TransitionRequest) (core.TransitionOutcome, error) {
	event := req.Event
	raw := event.RawEventMeaning()
	patch := core.TransitionPatch{
		UserID:      event.UserID,
		SessionID:   event.SessionID,
		EventKey:    event.EventKey,
		Status:      core.VerificationStatus(raw),
		WebhookData: event.Raw,
	}
	applied, err := h.Writer.Apply(ctx, patch)
	if err != nil {
		return core.TransitionOutcome{}, err
	}
	if err := h.Writer.Record(ctx, activityEntry(req, core.ActivityStatusWarning, map[string]any{
		"raw_status": raw,
	})); err != nil {
		return core.TransitionOutcome{}, err
	}
	if !applied {
		return duplicateOutcome(), nil
	}
	return core.TransitionOutcome{Message: "unrecognized verification event stored"}, nil
}

func basePatch(event core.CanonicalVerification) core.TransitionPatch {
	patch := core.TransitionPatch{
		UserID:        event.UserID,
		SessionID:     event.SessionID,
		EventKey:      event.EventKey,
		SourceFeature: strings.TrimSpace(event.Feature),
		DecisionScore: event.DecisionScore,
		Insights:      event.Insights,
		WebhookData:   event.Raw,
	}
	if !event.Person.IsZero() {
		person := event.Person
		patch.Person = &person
	}
	if !event.Document.IsZero() {
		document := event.Document
		patch.Document = &document
	}
	return patch
}

func activityEntry(req TransitionRequest, status string, metadata map[string]any) core.ActivityEntry {
	action := activityAction(req.Decision.To)
	entry := core.ActivityEntry{
		ID:        activityID(req.Event.EventKey, action),
		UserID:    req.Event.UserID,
		SessionID: req.Event.SessionID,
		Action:    action,
		Status:    status,
		Metadata:  map[string]any{},
		CreatedAt: req.Now,
	}
	for key, value := range metadata {
		entry.Metadata[key] = value
	}
	entry.Metadata["verdict"] = string(req.Decision.Verdict)
	entry.Metadata["from"] = string(req.Decision.From)
	entry.Metadata["event_key"] = req.Event.EventKey
	entry.Metadata["shape"] = string(req.Event.Shape)
	entry.Metadata["has_person"] = !req.Event.Person.IsZero()
	entry.Metadata["has_document"] = !req.Event.Document.IsZero()
	return entry
}

// activityID is stable per event key and action. Entries without a key get
// a random id from the sink.
func activityID(eventKey string, action string) string {
	eventKey = strings.TrimSpace(eventKey)
	if eventKey == "" {
		return ""
	}
	return uuid.NewSHA1(activityNamespace, []byte(eventKey+"|"+action)).String()
}

// keepOnReapply returns the stored timestamp when the event repeats the
// current state, so first-seen times survive replays.
func keepOnReapply(req TransitionRequest, stored *time.Time) *time.Time {
	if req.Decision.Verdict == core.TransitionReapply {
		return stored
	}
	return nil
}

func firstTime(values ...*time.Time) *time.Time {
	for _, value := range values {
		if value != nil && !value.IsZero() {
			out := value.UTC()
			return &out
		}
	}
	return nil
}

func duplicateOutcome() core.TransitionOutcome {
	return core.TransitionOutcome{Duplicate: true, Message: "transition already applied"}
}
