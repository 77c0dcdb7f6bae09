package gocommand

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	"github.com/goliatone/go-verification/core"
)

// MessageNamespace prefixes every verification command and query type.
const MessageNamespace = "verification."

// QueueResolverKey is the resolver name used when commands are mirrored
// into a go-job queue registry.
const QueueResolverKey = "queue"

// ValidateMessage checks the go-command contract and that the message type
// belongs to the verification namespace.
func ValidateMessage(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return core.NewValidationError("type", "gocommand: message must implement Type() string")
	}
	msgType := strings.TrimSpace(m.Type())
	if msgType == "" {
		return core.NewValidationError("type", "gocommand: message type is required")
	}
	if !strings.HasPrefix(msgType, MessageNamespace) {
		return core.NewValidationError("type", "gocommand: message type "+msgType+" is outside the verification namespace")
	}
	return command.ValidateMessage(msg)
}

type AdapterOption func(*RegistryAdapter)

// WithQueueMirror mirrors every registered command into queueRegistry so
// go-job workers can execute them out of band. A nil registry is ignored.
func WithQueueMirror(queueRegistry *jobqueuecommand.Registry) AdapterOption {
	return func(a *RegistryAdapter) {
		if queueRegistry != nil {
			_ = a.AddQueueResolver(QueueResolverKey, queueRegistry)
		}
	}
}

// RegistryAdapter owns the go-command registry the verification handlers
// are added to.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry, opts ...AdapterOption) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	adapter := &RegistryAdapter{registry: registry}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) configured() error {
	if a == nil || a.registry == nil {
		return core.NewConfigurationError("gocommand: registry is not configured")
	}
	return nil
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if err := a.configured(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(cmd)
}

// RegisterQuery goes through RegisterCommand; go-command keeps a single
// handler table keyed by message type.
func (a *RegistryAdapter) RegisterQuery(qry any) error {
	return a.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if err := a.configured(); err != nil {
		return err
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return core.NewConfigurationError("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.configured(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

// Dispatch validates msg and sends it through the global go-command dispatcher.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessage(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessage(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe adds cmd to the registry and the dispatcher. The
// subscription is dropped again when registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.configured(); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, core.NewConfigurationError("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		unsubscribe(subscription)
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.configured(); err != nil {
		return nil, err
	}
	if qry == nil {
		return nil, core.NewConfigurationError("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		unsubscribe(subscription)
		return nil, err
	}
	return subscription, nil
}

func unsubscribe(subscription commanddispatcher.Subscription) {
	if subscription != nil {
		subscription.Unsubscribe()
	}
}
