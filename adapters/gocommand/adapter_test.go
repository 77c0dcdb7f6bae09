package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	"github.com/goliatone/go-verification/core"
)

type okMessage struct{}

func (okMessage) Type() string { return "verification.command.ok" }

type untypedMessage struct{}

func (untypedMessage) Type() string { return "" }

type foreignMessage struct{}

func (foreignMessage) Type() string { return "billing.command.charge" }

type failingMessage struct{}

func (failingMessage) Type() string { return "verification.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "verification.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "verification.command.queue" }

func TestValidateMessage(t *testing.T) {
	if err := ValidateMessage(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	for name, msg := range map[string]any{
		"untyped":   untypedMessage{},
		"foreign":   foreignMessage{},
		"not typed": struct{}{},
	} {
		if err := ValidateMessage(msg); core.KindOf(err) != core.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if err := ValidateMessage(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	subscription, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer subscription.Unsubscribe()
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
	if err := Dispatch(context.Background(), foreignMessage{}); core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected foreign message to be rejected before dispatch, got %v", err)
	}
}

func TestQueueMirrorOption(t *testing.T) {
	queueRegistry := jobqueuecommand.NewRegistry()
	adapter := NewRegistryAdapter(command.NewRegistry(), WithQueueMirror(queueRegistry), WithQueueMirror(nil))

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("verification.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegistryAdapter_NilIsConfigurationError(t *testing.T) {
	var adapter *RegistryAdapter
	if err := adapter.Initialize(); core.KindOf(err) != core.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := NewRegistryAdapter(nil).AddQueueResolver("queue", nil); core.KindOf(err) != core.KindConfiguration {
		t.Fatalf("expected configuration error for nil queue registry, got %v", err)
	}
}
