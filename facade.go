package verification

import (
	"fmt"

	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-verification/adapters/gocommand"
	verificationcommand "github.com/goliatone/go-verification/command"
	"github.com/goliatone/go-verification/core"
	verificationquery "github.com/goliatone/go-verification/query"
)

// CommandQueryService is everything the command and query handlers need.
// *Service satisfies it.
type CommandQueryService interface {
	verificationcommand.WebhookService
	verificationcommand.SessionService
	verificationcommand.MonitoringService
	verificationquery.StatusReader
	verificationquery.DashboardReader
}

type Commands struct {
	ProcessWebhook     *verificationcommand.ProcessWebhookCommand
	RedriveWebhook     *verificationcommand.RedriveWebhookCommand
	RedriveFailed      *verificationcommand.RedriveFailedCommand
	StartSession       *verificationcommand.StartSessionCommand
	SyncVerification   *verificationcommand.SyncVerificationCommand
	RunMonitoringCheck *verificationcommand.RunMonitoringCheckCommand
	ResolveAlert       *verificationcommand.ResolveAlertCommand
}

type Queries struct {
	GetVerificationStatus *verificationquery.GetVerificationStatusQuery
	GetDashboard          *verificationquery.GetDashboardQuery
	GetWebhookMetrics     *verificationquery.GetWebhookMetricsQuery
	ListFailedWebhooks    *verificationquery.ListFailedWebhooksQuery
	ListAlerts            *verificationquery.ListAlertsQuery
	ListActivity          *verificationquery.ListActivityQuery
}

type Facade struct {
	service  CommandQueryService
	handlers gocommand.Handlers
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	events   verificationquery.WebhookEventReader
	alerts   verificationquery.AlertReader
	activity core.ActivityReader
}

func WithWebhookEventReader(reader verificationquery.WebhookEventReader) FacadeOption {
	return func(options *facadeOptions) {
		options.events = reader
	}
}

func WithAlertReader(reader verificationquery.AlertReader) FacadeOption {
	return func(options *facadeOptions) {
		options.alerts = reader
	}
}

func WithActivityReader(reader core.ActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activity = reader
	}
}

// NewFacade builds every command and query over service. Readers not given
// as options are taken from service when it is a *Service.
func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("verification: command/query service is required")
	}
	cfg := facadeOptions{}
	if svc, ok := service.(*Service); ok && svc != nil {
		cfg.events = svc.events
		cfg.alerts = svc.alerts
		cfg.activity = svc.activity
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{
		service: service,
		handlers: gocommand.Handlers{
			Webhooks:   service,
			Sessions:   service,
			Monitoring: service,
			Status:     service,
			Dashboard:  service,
			Events:     cfg.events,
			Alerts:     cfg.alerts,
			Activity:   cfg.activity,
		},
	}
	facade.commands = Commands{
		ProcessWebhook:     verificationcommand.NewProcessWebhookCommand(service),
		RedriveWebhook:     verificationcommand.NewRedriveWebhookCommand(service),
		RedriveFailed:      verificationcommand.NewRedriveFailedCommand(service),
		StartSession:       verificationcommand.NewStartSessionCommand(service),
		SyncVerification:   verificationcommand.NewSyncVerificationCommand(service),
		RunMonitoringCheck: verificationcommand.NewRunMonitoringCheckCommand(service),
		ResolveAlert:       verificationcommand.NewResolveAlertCommand(service),
	}
	facade.queries = Queries{
		GetVerificationStatus: verificationquery.NewGetVerificationStatusQuery(service),
		GetDashboard:          verificationquery.NewGetDashboardQuery(service),
		GetWebhookMetrics:     verificationquery.NewGetWebhookMetricsQuery(cfg.events),
		ListFailedWebhooks:    verificationquery.NewListFailedWebhooksQuery(cfg.events),
		ListAlerts:            verificationquery.NewListAlertsQuery(cfg.alerts),
		ListActivity:          verificationquery.NewListActivityQuery(cfg.activity),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Register subscribes every handler on the go-command dispatcher and adds
// it to the registry behind adapter.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter, runnerOpts ...runner.Option) (*gocommand.Registration, error) {
	if f == nil {
		return nil, fmt.Errorf("verification: facade is nil")
	}
	return gocommand.RegisterVerificationHandlers(adapter, f.handlers, runnerOpts...)
}
