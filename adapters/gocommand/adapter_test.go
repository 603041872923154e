package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
)

type okMessage struct{}

func (okMessage) Type() string { return "wabridge.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "wabridge.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "wabridge.command.test" }

type resultMessage struct {
	Name string
}

func (resultMessage) Type() string { return "wabridge.command.result" }

type lookupMessage struct {
	Key string
}

func (lookupMessage) Type() string { return "wabridge.query.lookup" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
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
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
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
}

func TestDispatchWithResult_ReturnsStoredValue(t *testing.T) {
	cmd := command.CommandFunc[resultMessage](func(ctx context.Context, msg resultMessage) error {
		if collector := command.ResultFromContext[string](ctx); collector != nil {
			collector.Store("hello " + msg.Name)
		}
		return nil
	})
	subscription := SubscribeCommand[resultMessage](cmd)
	defer subscription.Unsubscribe()

	result, err := DispatchWithResult[resultMessage, string](context.Background(), resultMessage{Name: "default"})
	if err != nil {
		t.Fatalf("dispatch with result: %v", err)
	}
	if result != "hello default" {
		t.Fatalf("expected stored result, got %q", result)
	}
}

func TestRegisterAndSubscribeQuery_RoutesQuery(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	qry := command.QueryFunc[lookupMessage, string](func(_ context.Context, msg lookupMessage) (string, error) {
		return "value:" + msg.Key, nil
	})

	subscription, err := RegisterAndSubscribeQuery(adapter, qry)
	if err != nil {
		t.Fatalf("register and subscribe query: %v", err)
	}
	subs := &Subscriptions{}
	subs.Add(subscription)
	defer subs.Unsubscribe()

	got, err := Query[lookupMessage, string](context.Background(), lookupMessage{Key: "k"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != "value:k" {
		t.Fatalf("unexpected query result %q", got)
	}
	if subs.Len() != 1 {
		t.Fatalf("expected one tracked subscription, got %d", subs.Len())
	}
}

func TestRegisterAndSubscribe_RequiresAdapterAndCommand(t *testing.T) {
	if _, err := RegisterAndSubscribe[dispatchMessage](nil, nil); err == nil {
		t.Fatalf("expected nil adapter error")
	}
	if _, err := RegisterAndSubscribe[dispatchMessage](NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected nil command error")
	}
}
