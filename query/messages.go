package query

import (
	"strings"

	"github.com/goliatone/go-verification/core"
)

const (
	TypeGetVerificationStatus = "verification.query.status.get"
	TypeGetDashboard          = "verification.query.dashboard.get"
	TypeGetWebhookMetrics     = "verification.query.webhook_metrics.get"
	TypeListFailedWebhooks    = "verification.query.webhook.failed.list"
	TypeListAlerts            = "verification.query.alert.list"
	TypeListActivity          = "verification.query.activity.list"
)

const maxListLimit = 500

// GetVerificationStatusMessage is the one read the host application makes.
type GetVerificationStatusMessage struct {
	UserID string
}

func (GetVerificationStatusMessage) Type() string { return TypeGetVerificationStatus }

func (m GetVerificationStatusMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return core.NewValidationError("user_id", "user id is required")
	}
	return nil
}

type GetDashboardMessage struct{}

func (GetDashboardMessage) Type() string { return TypeGetDashboard }

type GetWebhookMetricsMessage struct {
	WindowHours int
}

func (GetWebhookMetricsMessage) Type() string { return TypeGetWebhookMetrics }

func (m GetWebhookMetricsMessage) Validate() error {
	if m.WindowHours < 0 {
		return core.NewValidationError("window_hours", "window hours must be >= 0")
	}
	if m.WindowHours > 24*90 {
		return core.NewValidationError("window_hours", "window hours must be <= 2160")
	}
	return nil
}

type ListFailedWebhooksMessage struct {
	Limit int
}

func (ListFailedWebhooksMessage) Type() string { return TypeListFailedWebhooks }

func (m ListFailedWebhooksMessage) Validate() error {
	return validateLimit(m.Limit)
}

type ListAlertsMessage struct {
	IncludeResolved bool
	Limit           int
}

func (ListAlertsMessage) Type() string { return TypeListAlerts }

func (m ListAlertsMessage) Validate() error {
	return validateLimit(m.Limit)
}

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	return validateLimit(m.Filter.Limit)
}

func validateLimit(limit int) error {
	if limit < 0 {
		return core.NewValidationError("limit", "limit must be >= 0")
	}
	if limit > maxListLimit {
		return core.NewValidationError("limit", "limit must be <= 500")
	}
	return nil
}
