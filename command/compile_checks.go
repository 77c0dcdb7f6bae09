package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-verification/webhooks"
)

var (
	_ gocmd.Commander[ProcessWebhookMessage]     = (*ProcessWebhookCommand)(nil)
	_ gocmd.Commander[RedriveWebhookMessage]     = (*RedriveWebhookCommand)(nil)
	_ gocmd.Commander[RedriveFailedMessage]      = (*RedriveFailedCommand)(nil)
	_ gocmd.Commander[StartSessionMessage]       = (*StartSessionCommand)(nil)
	_ gocmd.Commander[SyncVerificationMessage]   = (*SyncVerificationCommand)(nil)
	_ gocmd.Commander[RunMonitoringCheckMessage] = (*RunMonitoringCheckCommand)(nil)
	_ gocmd.Commander[ResolveAlertMessage]       = (*ResolveAlertCommand)(nil)

	_ WebhookService = (*webhooks.Processor)(nil)
)
