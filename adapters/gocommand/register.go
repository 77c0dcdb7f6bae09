package gocommand

import (
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	verificationcommand "github.com/goliatone/go-verification/command"
	"github.com/goliatone/go-verification/core"
	verificationquery "github.com/goliatone/go-verification/query"
)

// Handlers groups the services behind each verification command and query.
// Nil services are skipped so hosts can register a subset.
type Handlers struct {
	Webhooks   verificationcommand.WebhookService
	Sessions   verificationcommand.SessionService
	Monitoring verificationcommand.MonitoringService
	Status     verificationquery.StatusReader
	Dashboard  verificationquery.DashboardReader
	Events     verificationquery.WebhookEventReader
	Alerts     verificationquery.AlertReader
	Activity   core.ActivityReader
}

// Registration holds the dispatcher subscriptions created for one registry.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
}

func (r *Registration) Len() int {
	if r == nil {
		return 0
	}
	return len(r.subscriptions)
}

// Unsubscribe detaches every handler from the global dispatcher.
func (r *Registration) Unsubscribe() {
	if r == nil {
		return
	}
	for _, subscription := range r.subscriptions {
		unsubscribe(subscription)
	}
	r.subscriptions = nil
}

func (r *Registration) add(subscription commanddispatcher.Subscription, err error) error {
	if err != nil {
		return err
	}
	r.subscriptions = append(r.subscriptions, subscription)
	return nil
}

// RegisterVerificationHandlers registers and subscribes every command and
// query that has a backing service. On failure nothing stays subscribed.
func RegisterVerificationHandlers(
	adapter *RegistryAdapter,
	handlers Handlers,
	runnerOpts ...runner.Option,
) (*Registration, error) {
	if err := adapter.configured(); err != nil {
		return nil, err
	}
	reg := &Registration{}
	steps := make([]func() error, 0, 13)

	if handlers.Webhooks != nil {
		steps = append(steps,
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.ProcessWebhookMessage](adapter, verificationcommand.NewProcessWebhookCommand(handlers.Webhooks), runnerOpts...))
			},
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.RedriveWebhookMessage](adapter, verificationcommand.NewRedriveWebhookCommand(handlers.Webhooks), runnerOpts...))
			},
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.RedriveFailedMessage](adapter, verificationcommand.NewRedriveFailedCommand(handlers.Webhooks), runnerOpts...))
			},
		)
	}
	if handlers.Sessions != nil {
		steps = append(steps,
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.StartSessionMessage](adapter, verificationcommand.NewStartSessionCommand(handlers.Sessions), runnerOpts...))
			},
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.SyncVerificationMessage](adapter, verificationcommand.NewSyncVerificationCommand(handlers.Sessions), runnerOpts...))
			},
		)
	}
	if handlers.Monitoring != nil {
		steps = append(steps,
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.RunMonitoringCheckMessage](adapter, verificationcommand.NewRunMonitoringCheckCommand(handlers.Monitoring), runnerOpts...))
			},
			func() error {
				return reg.add(RegisterAndSubscribe[verificationcommand.ResolveAlertMessage](adapter, verificationcommand.NewResolveAlertCommand(handlers.Monitoring), runnerOpts...))
			},
		)
	}
	if handlers.Status != nil {
		steps = append(steps, func() error {
			return reg.add(RegisterAndSubscribeQuery[verificationquery.GetVerificationStatusMessage, core.VerificationStatusView](adapter, verificationquery.NewGetVerificationStatusQuery(handlers.Status), runnerOpts...))
		})
	}
	if handlers.Dashboard != nil {
		steps = append(steps, func() error {
			return reg.add(RegisterAndSubscribeQuery[verificationquery.GetDashboardMessage, core.DashboardData](adapter, verificationquery.NewGetDashboardQuery(handlers.Dashboard), runnerOpts...))
		})
	}
	if handlers.Events != nil {
		steps = append(steps,
			func() error {
				return reg.add(RegisterAndSubscribeQuery[verificationquery.GetWebhookMetricsMessage, core.WebhookMetrics](adapter, verificationquery.NewGetWebhookMetricsQuery(handlers.Events), runnerOpts...))
			},
			func() error {
				return reg.add(RegisterAndSubscribeQuery[verificationquery.ListFailedWebhooksMessage, []core.WebhookEvent](adapter, verificationquery.NewListFailedWebhooksQuery(handlers.Events), runnerOpts...))
			},
		)
	}
	if handlers.Alerts != nil {
		steps = append(steps, func() error {
			return reg.add(RegisterAndSubscribeQuery[verificationquery.ListAlertsMessage, []core.VerificationAlert](adapter, verificationquery.NewListAlertsQuery(handlers.Alerts), runnerOpts...))
		})
	}
	if handlers.Activity != nil {
		steps = append(steps, func() error {
			return reg.add(RegisterAndSubscribeQuery[verificationquery.ListActivityMessage, []core.ActivityEntry](adapter, verificationquery.NewListActivityQuery(handlers.Activity), runnerOpts...))
		})
	}

	for _, step := range steps {
		if err := step(); err != nil {
			reg.Unsubscribe()
			return nil, err
		}
	}
	return reg, nil
}
