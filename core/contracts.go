package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// UserVerificationStore reads and writes the verification columns of the
// host user record.
type UserVerificationStore interface {
	Get(ctx context.Context, userID string) (UserVerification, error)
	// ApplyTransition writes patch unless patch.EventKey was already applied,
	// in which case it returns applied=false and no error.
	ApplyTransition(ctx context.Context, patch TransitionPatch) (applied bool, err error)
	SaveReconciled(ctx context.Context, data ReconciledData) error
	SaveSession(ctx context.Context, userID string, session SessionDescriptor, createdAt time.Time) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]UserVerification, error)
}

type WebhookEventStore interface {
	// LogWebhookEvent inserts a pending row. When the idempotency key is
	// already present the existing row is returned with created=false.
	LogWebhookEvent(ctx context.Context, event WebhookEvent) (stored WebhookEvent, created bool, err error)
	MarkWebhookProcessed(ctx context.Context, id string, success bool, errMessage string) error
	MarkWebhookRetry(ctx context.Context, id string) (WebhookEvent, error)
	GetWebhookEvent(ctx context.Context, id string) (WebhookEvent, error)
	GetWebhookMetrics(ctx context.Context, windowHours int) (WebhookMetrics, error)
	GetFailedWebhooks(ctx context.Context, limit int) ([]WebhookEvent, error)
	// ReleaseStalePending marks pending events created before cutoff as
	// errored so they become re-drive candidates.
	ReleaseStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type ActivitySink interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

type ActivityReader interface {
	ListActivity(ctx context.Context, filter ActivityFilter) ([]ActivityEntry, error)
}

type AlertStore interface {
	// CreateAlert returns the existing unresolved alert with created=false
	// when one with the same type and message is already open.
	CreateAlert(ctx context.Context, alert VerificationAlert) (stored VerificationAlert, created bool, err error)
	ResolveAlert(ctx context.Context, id string, resolvedAt time.Time) (VerificationAlert, error)
	ListAlerts(ctx context.Context, includeResolved bool, limit int) ([]VerificationAlert, error)
}

// ProviderClient is the pull side of the verification provider API.
type ProviderClient interface {
	CreateSession(ctx context.Context, userID string, person SessionPerson) (SessionDescriptor, error)
	GetPersonData(ctx context.Context, sessionID string) (*PersonRecord, error)
	GetDecisionData(ctx context.Context, sessionID string) (*DecisionRecord, error)
	GetComprehensiveVerificationData(ctx context.Context, sessionID string) (ComprehensiveData, error)
}

// Reconciler pulls authoritative provider data into the user record.
type Reconciler interface {
	SyncUserVerificationData(ctx context.Context, userID string, sessionID string) SyncResult
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
