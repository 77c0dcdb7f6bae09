package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/monitoring"
	"github.com/goliatone/go-verification/sync"
)

var (
	_ gocmd.Querier[GetVerificationStatusMessage, core.VerificationStatusView] = (*GetVerificationStatusQuery)(nil)
	_ gocmd.Querier[GetDashboardMessage, core.DashboardData]                   = (*GetDashboardQuery)(nil)
	_ gocmd.Querier[GetWebhookMetricsMessage, core.WebhookMetrics]             = (*GetWebhookMetricsQuery)(nil)
	_ gocmd.Querier[ListFailedWebhooksMessage, []core.WebhookEvent]            = (*ListFailedWebhooksQuery)(nil)
	_ gocmd.Querier[ListAlertsMessage, []core.VerificationAlert]               = (*ListAlertsQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, []core.ActivityEntry]                 = (*ListActivityQuery)(nil)

	_ StatusReader    = (*sync.Reconciler)(nil)
	_ DashboardReader = (*monitoring.Monitor)(nil)
)
