// Package sync reconciles webhook-driven state with the provider pull API.
package sync

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
)

var _ core.Reconciler = (*Reconciler)(nil)

type Reconciler struct {
	Provider core.ProviderClient
	Users    core.UserVerificationStore
	Activity core.ActivitySink
	Observer core.Observer
	Now      func() time.Time
}

func NewReconciler(provider core.ProviderClient, users core.UserVerificationStore, activity core.ActivitySink) *Reconciler {
	return &Reconciler{
		Provider: provider,
		Users:    users,
		Activity: activity,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SyncUserVerificationData pulls person and decision data for the session
// and writes whatever came back. Failures are reported on the result.
func (r *Reconciler) SyncUserVerificationData(ctx context.Context, userID string, sessionID string) (result core.SyncResult) {
	startedAt := time.Now()
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	defer func() {
		if r == nil {
			return
		}
		outcome := "synced"
		if !result.Success {
			outcome = "failed"
		}
		r.Observer.ObserveOperation(ctx, startedAt, "sync_verification", result.Error, map[string]any{
			"user_id":    userID,
			"session_id": sessionID,
			"outcome":    outcome,
		})
	}()

	if r == nil || r.Provider == nil || r.Users == nil {
		return core.SyncResult{Error: core.NewConfigurationError("sync: reconciler requires provider client and user store")}
	}
	if userID == "" {
		return core.SyncResult{Error: core.NewValidationError("userId", "sync: user id is required")}
	}
	if sessionID == "" {
		return core.SyncResult{Error: core.NewValidationError("sessionId", "sync: session id is required")}
	}

	data, err := r.Provider.GetComprehensiveVerificationData(ctx, sessionID)
	if err != nil {
		return core.SyncResult{Data: &data, Error: core.WrapError(err, core.KindReconciliation, "sync: fetch provider data")}
	}
	if !data.HasData() {
		return core.SyncResult{Data: &data, Error: core.NewError(core.KindReconciliation, "sync: provider returned no verification data")}
	}

	reconciled := core.ReconciledData{
		UserID:    userID,
		SessionID: sessionID,
		Person:    data.Person,
		Decision:  data.Decision,
	}
	if reconciled.Person == nil && data.Decision != nil {
		person := data.Decision.PersonRecord()
		if !person.IsZero() {
			reconciled.Person = &person
		}
	}
	if err := r.Users.SaveReconciled(ctx, reconciled); err != nil {
		return core.SyncResult{Data: &data, Error: core.WrapError(err, core.KindPersistence, "sync: save reconciled data")}
	}

	metadata := map[string]any{
		"has_person":   data.Person != nil,
		"has_decision": data.Decision != nil,
	}
	if data.Decision != nil {
		metadata["decision"] = data.Decision.Decision
		if data.Decision.DecisionScore != nil {
			metadata["decision_score"] = *data.Decision.DecisionScore
		}
	}
	if data.PersonError != nil {
		metadata["person_error"] = data.PersonError.Error()
	}
	if data.DecisionError != nil {
		metadata["decision_error"] = data.DecisionError.Error()
	}
	r.record(ctx, core.ActivityEntry{
		UserID:    userID,
		SessionID: sessionID,
		Action:    "verification_reconciled",
		Status:    core.ActivityStatusOK,
		Metadata:  metadata,
	})
	return core.SyncResult{Success: true, Data: &data}
}

// GetUserVerificationStatus answers from the stored record for verified
// users and syncs with the provider while a session is still open.
func (r *Reconciler) GetUserVerificationStatus(ctx context.Context, userID string) (core.VerificationStatusView, error) {
	if r == nil || r.Users == nil {
		return core.VerificationStatusView{}, core.NewConfigurationError("sync: reconciler requires a user store")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.VerificationStatusView{}, core.NewValidationError("userId", "sync: user id is required")
	}
	user, err := r.Users.Get(ctx, userID)
	if err != nil {
		return core.VerificationStatusView{}, err
	}
	if user.IdentityVerified {
		view := statusView(user)
		view.FromCache = true
		return view, nil
	}
	if strings.TrimSpace(user.SessionID) == "" {
		view := statusView(user)
		view.NeedsNewSession = true
		return view, nil
	}

	result := r.SyncUserVerificationData(ctx, userID, user.SessionID)
	if !result.Success {
		r.Observer.LogWarn(ctx, "status sync failed, serving stored state", map[string]any{
			"user_id":    userID,
			"session_id": user.SessionID,
			"error":      errorString(result.Error),
		})
		view := statusView(user)
		view.FromCache = true
		return view, nil
	}
	refreshed, err := r.Users.Get(ctx, userID)
	if err != nil {
		return core.VerificationStatusView{}, err
	}
	view := statusView(refreshed)
	view.Synced = true
	return view, nil
}

// StartSession creates a provider session and stores it on the user.
func (r *Reconciler) StartSession(ctx context.Context, userID string, person core.SessionPerson) (core.SessionDescriptor, error) {
	if r == nil || r.Provider == nil || r.Users == nil {
		return core.SessionDescriptor{}, core.NewConfigurationError("sync: reconciler requires provider client and user store")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.SessionDescriptor{}, core.NewValidationError("userId", "sync: user id is required")
	}
	session, err := r.Provider.CreateSession(ctx, userID, person)
	if err != nil {
		return core.SessionDescriptor{}, err
	}
	if err := r.Users.SaveSession(ctx, userID, session, r.now()); err != nil {
		return core.SessionDescriptor{}, core.WrapError(err, core.KindPersistence, "sync: save session")
	}
	r.record(ctx, core.ActivityEntry{
		UserID:    userID,
		SessionID: session.SessionID,
		Action:    "verification_session_created",
		Status:    core.ActivityStatusOK,
		Metadata:  map[string]any{"status": session.Status},
	})
	return session, nil
}

// record is best effort; reconciliation already succeeded.
func (r *Reconciler) record(ctx context.Context, entry core.ActivityEntry) {
	if r.Activity == nil {
		return
	}
	entry.CreatedAt = r.now()
	if err := r.Activity.Record(ctx, entry); err != nil {
		r.Observer.LogWarn(ctx, "record activity failed", map[string]any{
			"user_id": entry.UserID,
			"action":  entry.Action,
			"error":   err.Error(),
		})
	}
}

func (r *Reconciler) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func statusView(user core.UserVerification) core.VerificationStatusView {
	return core.VerificationStatusView{
		UserID:             user.UserID,
		SessionID:          user.SessionID,
		Status:             user.Status,
		IdentityVerified:   user.IdentityVerified,
		IdentityVerifiedAt: user.IdentityVerifiedAt,
		DecisionScore:      user.DecisionScore,
		Person:             user.Person,
		Document:           user.Document,
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
