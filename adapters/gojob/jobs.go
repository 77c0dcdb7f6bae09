package gojob

import (
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
)

const (
	JobIDRedriveWebhook  = "verification.webhook.redrive"
	JobIDRedriveFailed   = "verification.webhook.redrive_failed"
	JobIDMonitoringCheck = "verification.monitoring.check"
)

const (
	dedupDrop  = "drop"
	dedupMerge = "merge"
)

var knownJobs = map[string]bool{
	JobIDRedriveWebhook:  true,
	JobIDRedriveFailed:   true,
	JobIDMonitoringCheck: true,
}

// ValidateJob rejects messages the verification worker cannot execute.
func ValidateJob(msg *core.JobExecutionMessage) error {
	if msg == nil {
		return core.NewValidationError("job", "gojob: execution message is required")
	}
	jobID := strings.TrimSpace(msg.JobID)
	if !knownJobs[jobID] {
		return core.NewValidationError("job_id", "gojob: unsupported job "+jobID)
	}
	if jobID == JobIDRedriveWebhook && stringParam(msg.Parameters, "event_id") == "" {
		return core.NewValidationError("event_id", "gojob: re-drive job requires an event id")
	}
	return nil
}

// NewRedriveWebhookJob builds the queue message that replays one audit row.
// The idempotency key collapses duplicate enqueues of the same event.
func NewRedriveWebhookJob(eventID string) *core.JobExecutionMessage {
	eventID = strings.TrimSpace(eventID)
	return &core.JobExecutionMessage{
		JobID:          JobIDRedriveWebhook,
		ScriptPath:     JobIDRedriveWebhook,
		Parameters:     map[string]any{"event_id": eventID},
		IdempotencyKey: "redrive:" + eventID,
		DedupPolicy:    dedupDrop,
	}
}

func NewRedriveFailedJob(limit int) *core.JobExecutionMessage {
	if limit <= 0 {
		limit = defaultRedriveBatch
	}
	return &core.JobExecutionMessage{
		JobID:       JobIDRedriveFailed,
		ScriptPath:  JobIDRedriveFailed,
		Parameters:  map[string]any{"limit": limit},
		DedupPolicy: dedupMerge,
	}
}

// NewMonitoringCheckJob keys the check by minute so overlapping schedulers
// enqueue it once.
func NewMonitoringCheckJob(at time.Time) *core.JobExecutionMessage {
	slot := at.UTC().Truncate(time.Minute).Format(time.RFC3339)
	return &core.JobExecutionMessage{
		JobID:          JobIDMonitoringCheck,
		ScriptPath:     JobIDMonitoringCheck,
		Parameters:     map[string]any{"scheduled_at": slot},
		IdempotencyKey: "monitoring:" + slot,
		DedupPolicy:    dedupDrop,
	}
}

func jobName(jobID string) string {
	return strings.ReplaceAll(strings.TrimPrefix(jobID, "verification."), ".", "_")
}
