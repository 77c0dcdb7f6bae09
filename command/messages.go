package command

import (
	"strings"

	"github.com/goliatone/go-verification/core"
)

const (
	TypeProcessWebhook     = "verification.command.webhook.process"
	TypeRedriveWebhook     = "verification.command.webhook.redrive"
	TypeRedriveFailed      = "verification.command.webhook.redrive_failed"
	TypeStartSession       = "verification.command.session.start"
	TypeSyncVerification   = "verification.command.session.sync"
	TypeRunMonitoringCheck = "verification.command.monitoring.run"
	TypeResolveAlert       = "verification.command.alert.resolve"
)

const (
	maxRedriveBatch          = 500
	defaultRedriveBatchLimit = 100
)

// ProcessWebhookMessage carries one inbound delivery. The signature may be
// given directly or through Headers.
type ProcessWebhookMessage struct {
	Body      []byte
	Signature string
	Headers   map[string]string
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

func (m ProcessWebhookMessage) Validate() error {
	if len(m.Body) == 0 {
		return core.NewValidationError("body", "webhook body is required")
	}
	return nil
}

type RedriveWebhookMessage struct {
	EventID string
}

func (RedriveWebhookMessage) Type() string { return TypeRedriveWebhook }

func (m RedriveWebhookMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return core.NewValidationError("event_id", "event id is required")
	}
	return nil
}

type RedriveFailedMessage struct {
	Limit int
}

func (RedriveFailedMessage) Type() string { return TypeRedriveFailed }

func (m RedriveFailedMessage) Validate() error {
	if m.Limit < 0 {
		return core.NewValidationError("limit", "limit must be >= 0")
	}
	if m.Limit > maxRedriveBatch {
		return core.NewValidationError("limit", "limit must be <= 500")
	}
	return nil
}

func (m RedriveFailedMessage) limit() int {
	if m.Limit == 0 {
		return defaultRedriveBatchLimit
	}
	return m.Limit
}

type StartSessionMessage struct {
	UserID string
	Person core.SessionPerson
}

func (StartSessionMessage) Type() string { return TypeStartSession }

func (m StartSessionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return core.NewValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Person.FirstName) == "" || strings.TrimSpace(m.Person.LastName) == "" {
		return core.NewValidationError("person", "first and last name are required")
	}
	return nil
}

type SyncVerificationMessage struct {
	UserID    string
	SessionID string
}

func (SyncVerificationMessage) Type() string { return TypeSyncVerification }

func (m SyncVerificationMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return core.NewValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return core.NewValidationError("session_id", "session id is required")
	}
	return nil
}

type RunMonitoringCheckMessage struct{}

func (RunMonitoringCheckMessage) Type() string { return TypeRunMonitoringCheck }

type ResolveAlertMessage struct {
	AlertID string
}

func (ResolveAlertMessage) Type() string { return TypeResolveAlert }

func (m ResolveAlertMessage) Validate() error {
	if strings.TrimSpace(m.AlertID) == "" {
		return core.NewValidationError("alert_id", "alert id is required")
	}
	return nil
}
