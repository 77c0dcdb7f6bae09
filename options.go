package verification

import (
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-verification/core"
	sqlstore "github.com/goliatone/go-verification/store/sql"
	"github.com/goliatone/go-verification/transport"
)

type Option func(*builder)

type builder struct {
	runtimeConfig     Config
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metrics           core.MetricsRecorder
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	persistenceClient any
	factory           *sqlstore.RepositoryFactory
	httpClient        transport.HTTPDoer
	providerClient    core.ProviderClient
	callbackURL       string
	statusCache       repositorycache.CacheService
	enqueuer          core.JobEnqueuer
	now               func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *builder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *builder) {
		b.metrics = recorder
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *builder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *builder) {
		b.optionsResolver = resolver
	}
}

// WithPersistenceClient accepts a *bun.DB or a go-persistence-bun client.
func WithPersistenceClient(client any) Option {
	return func(b *builder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory *sqlstore.RepositoryFactory) Option {
	return func(b *builder) {
		b.factory = factory
	}
}

// WithHTTPClient sets the client used by the provider pull API.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(b *builder) {
		b.httpClient = client
	}
}

// WithProviderClient replaces the built-in provider client entirely.
func WithProviderClient(client core.ProviderClient) Option {
	return func(b *builder) {
		b.providerClient = client
	}
}

func WithCallbackURL(url string) Option {
	return func(b *builder) {
		b.callbackURL = url
	}
}

func WithStatusCache(cacheService repositorycache.CacheService) Option {
	return func(b *builder) {
		b.statusCache = cacheService
	}
}

func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(b *builder) {
		b.enqueuer = enqueuer
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *builder) {
		b.now = now
	}
}
