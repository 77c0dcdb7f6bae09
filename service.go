package verification

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-verification/adapters/gojob"
	"github.com/goliatone/go-verification/adapters/gologger"
	"github.com/goliatone/go-verification/core"
	"github.com/goliatone/go-verification/inbound"
	"github.com/goliatone/go-verification/monitoring"
	"github.com/goliatone/go-verification/providers/veriff"
	"github.com/goliatone/go-verification/retry"
	sqlstore "github.com/goliatone/go-verification/store/sql"
	verificationsync "github.com/goliatone/go-verification/sync"
	"github.com/goliatone/go-verification/webhooks"
)

const loggerName = "verification"

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Service wires the webhook pipeline, the provider reconciler and the
// monitor over one set of SQL stores.
type Service struct {
	config  Config
	logger  core.Logger
	metrics core.MetricsRecorder

	factory  *sqlstore.RepositoryFactory
	users    core.UserVerificationStore
	events   core.WebhookEventStore
	activity *sqlstore.ActivityStore
	alerts   core.AlertStore

	provider    core.ProviderClient
	reconciler  *verificationsync.Reconciler
	dispatcher  *inbound.Dispatcher
	processor   *webhooks.Processor
	monitor     *monitoring.Monitor
	scheduler   *monitoring.Scheduler
	enqueuer    core.JobEnqueuer
	jobObserver core.Observer
}

// New resolves configuration, builds the stores from the persistence
// client and composes every component.
func New(cfg Config, opts ...Option) (*Service, error) {
	b := builder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	provider, logger := gologger.Resolve(loggerName, b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if b.metrics == nil {
		b.metrics = core.NopMetricsRecorder{}
	}
	named := func(suffix string) core.Logger {
		return gologger.Named(provider, logger, loggerName+"."+suffix)
	}
	observer := func(suffix string) core.Observer {
		return core.NewObserver(loggerName, named(suffix), b.metrics)
	}

	resolved, err := core.ResolveConfig(context.Background(), b.configProvider, b.optionsResolver, b.runtimeConfig)
	if err != nil {
		return nil, err
	}

	factory := b.factory
	if factory == nil {
		if b.persistenceClient == nil {
			return nil, core.NewConfigurationError("verification: persistence client or repository factory is required")
		}
		factory = sqlstore.NewRepositoryFactory()
	}
	if err := factory.BuildStores(b.persistenceClient); err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "verification: build stores")
	}

	svc := &Service{
		config:   resolved,
		logger:   logger,
		metrics:  b.metrics,
		factory:  factory,
		users:    factory.UserVerificationStore(),
		events:   factory.WebhookEventStore(),
		activity: factory.ActivityStore(),
		alerts:   factory.AlertStore(),
		enqueuer: b.enqueuer,
	}

	svc.jobObserver = observer("jobs")

	svc.provider = b.providerClient
	if svc.provider == nil {
		clientConfig := veriff.ConfigFromCore(resolved)
		clientConfig.CallbackURL = strings.TrimSpace(b.callbackURL)
		client := veriff.NewClient(clientConfig, b.httpClient)
		client.Observer = observer("provider")
		svc.provider = client
	}

	svc.users, err = svc.statusStore(b.statusCache)
	if err != nil {
		return nil, err
	}

	svc.reconciler = verificationsync.NewReconciler(svc.provider, svc.users, svc.activity)
	svc.reconciler.Observer = observer("sync")

	svc.dispatcher, err = inbound.NewDefaultDispatcher(svc.users, svc.activity, svc.reconciler)
	if err != nil {
		return nil, err
	}
	svc.dispatcher.Observer = observer("inbound")

	svc.processor = webhooks.NewProcessor(
		webhooks.NewSignatureValidator(resolved.Provider.WebhookSecret),
		svc.events,
		svc.dispatcher,
	)
	svc.processor.Retry = retry.FromCoreConfig(resolved.DispatchRetry)
	svc.processor.Observer = observer("webhooks")

	svc.monitor = monitoring.NewMonitor(svc.users, svc.events, svc.alerts, svc.provider)
	svc.monitor.Activity = svc.activity
	svc.monitor.Thresholds = monitoring.ThresholdsFromConfig(resolved.Monitoring)
	svc.monitor.Observer = observer("monitoring")

	if b.now != nil {
		svc.reconciler.Now = b.now
		svc.dispatcher.Now = b.now
		svc.processor.Now = b.now
		svc.monitor.Now = b.now
	}

	svc.scheduler, err = monitoring.NewScheduler(svc.monitor, resolved.Monitoring.Schedule,
		monitoring.WithSchedulerLogger(named("monitoring")),
		monitoring.WithSchedulerObserver(svc.monitor.Observer),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("verification service ready",
		"environment", resolved.Environment,
		"monitoring_schedule", svc.scheduler.Schedule(),
	)
	return svc, nil
}

// statusStore fronts the user store with the status cache. Every component
// writes through it so a transition drops the cached row.
func (s *Service) statusStore(cacheService repositorycache.CacheService) (core.UserVerificationStore, error) {
	if s.config.Cache.StatusTTL <= 0 && cacheService == nil {
		return s.users, nil
	}
	if cacheService == nil {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = s.config.Cache.StatusTTL
		built, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return nil, core.WrapError(err, core.KindConfiguration, "verification: build status cache")
		}
		cacheService = built
	}
	return sqlstore.NewCachedUserVerificationStore(s.users, cacheService)
}

// ProcessWebhook runs one inbound delivery through the pipeline. The
// result carries the HTTP status the entrypoint should answer with.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signature string) core.ProcessResult {
	return s.processor.Process(ctx, body, signature)
}

func (s *Service) ProcessDelivery(ctx context.Context, delivery webhooks.Delivery) core.ProcessResult {
	return s.processor.ProcessDelivery(ctx, delivery)
}

func (s *Service) Redrive(ctx context.Context, eventID string) core.ProcessResult {
	return s.processor.Redrive(ctx, eventID)
}

func (s *Service) RedriveFailed(ctx context.Context, limit int) ([]core.ProcessResult, error) {
	return s.processor.RedriveFailed(ctx, limit)
}

func (s *Service) StartSession(ctx context.Context, userID string, person core.SessionPerson) (core.SessionDescriptor, error) {
	return s.reconciler.StartSession(ctx, userID, person)
}

func (s *Service) SyncUserVerificationData(ctx context.Context, userID string, sessionID string) core.SyncResult {
	return s.reconciler.SyncUserVerificationData(ctx, userID, sessionID)
}

func (s *Service) GetUserVerificationStatus(ctx context.Context, userID string) (core.VerificationStatusView, error) {
	return s.reconciler.GetUserVerificationStatus(ctx, userID)
}

func (s *Service) RunMonitoringCheck(ctx context.Context) (core.MonitoringReport, error) {
	return s.monitor.RunMonitoringCheck(ctx)
}

func (s *Service) ResolveAlert(ctx context.Context, id string) (core.VerificationAlert, error) {
	return s.monitor.ResolveAlert(ctx, id)
}

func (s *Service) GetDashboardData(ctx context.Context) (core.DashboardData, error) {
	return s.monitor.GetDashboardData(ctx)
}

// EnqueueRedrive hands a failed event to the job queue instead of
// replaying it inline.
func (s *Service) EnqueueRedrive(ctx context.Context, eventID string) error {
	if s.enqueuer == nil {
		return core.NewConfigurationError("verification: job enqueuer is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.NewValidationError("event_id", "verification: event id is required")
	}
	return s.enqueuer.Enqueue(ctx, gojob.NewRedriveWebhookJob(eventID))
}

// NewJobWorker builds a queue worker that re-drives webhook events and runs
// monitoring checks against this service.
func (s *Service) NewJobWorker(dequeuer core.JobDequeuer, opts ...gojob.WorkerOption) (*gojob.Worker, error) {
	base := []gojob.WorkerOption{
		gojob.WithMonitoringRunner(s),
		gojob.WithWorkerObserver(s.jobObserver),
		gojob.WithWorkerHook(gojob.NewObserverHook(s.jobObserver)),
		gojob.WithRetryPolicy(gojob.DefaultRetryPolicy(), retry.FromCoreConfig(s.config.DispatchRetry)),
	}
	return gojob.NewWorker(dequeuer, s, append(base, opts...)...)
}

// Start runs the monitoring scheduler until ctx is cancelled or Stop.
func (s *Service) Start(ctx context.Context) error {
	return s.scheduler.Start(ctx)
}

func (s *Service) Stop() {
	s.scheduler.Stop()
}

func (s *Service) Config() Config                                 { return s.config }
func (s *Service) Logger() core.Logger                            { return s.logger }
func (s *Service) RepositoryFactory() *sqlstore.RepositoryFactory { return s.factory }
func (s *Service) Processor() *webhooks.Processor                 { return s.processor }
func (s *Service) Dispatcher() *inbound.Dispatcher                { return s.dispatcher }
func (s *Service) Reconciler() *verificationsync.Reconciler       { return s.reconciler }
func (s *Service) Monitor() *monitoring.Monitor                   { return s.monitor }
func (s *Service) Scheduler() *monitoring.Scheduler               { return s.scheduler }
func (s *Service) ProviderClient() core.ProviderClient            { return s.provider }

func (s *Service) WebhookEvents() core.WebhookEventStore { return s.events }
func (s *Service) Alerts() core.AlertStore               { return s.alerts }
func (s *Service) Activity() *sqlstore.ActivityStore     { return s.activity }

// Users is the store the pipeline writes through, cached when configured.
func (s *Service) Users() core.UserVerificationStore { return s.users }
