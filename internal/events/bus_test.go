package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/tessera-ai/tessera/pkg/models"
)

func TestPriorityOrdering(t *testing.T) {
	bus := NewBus()
	var order []string

	record := func(name string) Handler {
		return func(context.Context, *Payload) (*Response, error) {
			order = append(order, name)
			return nil, nil
		}
	}

	bus.On(TurnStart, record("low"), 1, "test")
	bus.On(TurnStart, record("high"), 10, "test")
	bus.On(TurnStart, record("tie-first"), 5, "test")
	bus.On(TurnStart, record("tie-second"), 5, "test")

	bus.Emit(context.Background(), TurnStart, NewPayload(TurnStart))

	want := []string{"high", "tie-first", "tie-second", "low"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestBeforeToolCall(t *testing.T) {
	t.Run("block halts, observers still run", func(t *testing.T) {
		bus := NewBus()
		observed := false

		bus.On(BeforeToolCall, func(_ context.Context, p *Payload) (*Response, error) {
			if p.ToolName == "execute" {
				return &Response{Block: true, Reason: "dangerous command"}, nil
			}
			return nil, nil
		}, 10, "guard")

		bus.On(BeforeToolCall, func(context.Context, *Payload) (*Response, error) {
			observed = true
			// A later handler cannot override an earlier block.
			return &Response{Block: false}, nil
		}, 1, "observer")

		payload := NewPayload(BeforeToolCall)
		payload.ToolName = "execute"
		blocked, reason := bus.EmitBeforeToolCall(context.Background(), payload)

		if !blocked || reason != "dangerous command" {
			t.Errorf("blocked=%v reason=%q", blocked, reason)
		}
		if !observed {
			t.Error("downstream observer did not run after block")
		}
	})

	t.Run("no block", func(t *testing.T) {
		bus := NewBus()
		bus.On(BeforeToolCall, func(context.Context, *Payload) (*Response, error) {
			return nil, nil
		}, 0, "t")
		if blocked, _ := bus.EmitBeforeToolCall(context.Background(), NewPayload(BeforeToolCall)); blocked {
			t.Error("blocked without a blocking handler")
		}
	})
}

func TestAfterToolResultChaining(t *testing.T) {
	bus := NewBus()

	wrap := func(prefix string) Handler {
		return func(_ context.Context, p *Payload) (*Response, error) {
			replaced := prefix + "(" + p.Result + ")"
			return &Response{Result: &replaced}, nil
		}
	}

	bus.On(AfterToolResult, wrap("first"), 10, "t")
	bus.On(AfterToolResult, wrap("second"), 5, "t")

	payload := NewPayload(AfterToolResult)
	payload.Result = "raw"
	got := bus.EmitAfterToolResult(context.Background(), payload)

	if got != "second(first(raw))" {
		t.Errorf("got %q", got)
	}
}

func TestContextTransformChaining(t *testing.T) {
	bus := NewBus()

	bus.On(ContextTransform, func(_ context.Context, p *Payload) (*Response, error) {
		msgs := append([]models.Message{}, p.Messages...)
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: "injected"})
		return &Response{Messages: msgs}, nil
	}, 10, "t")

	bus.On(ContextTransform, func(_ context.Context, p *Payload) (*Response, error) {
		if len(p.Messages) != 2 {
			t.Errorf("second handler saw %d messages, want chained 2", len(p.Messages))
		}
		return nil, nil
	}, 1, "t")

	payload := NewPayload(ContextTransform)
	payload.Messages = []models.Message{{Role: models.RoleUser, Content: "hi"}}
	bus.EmitContextTransform(context.Background(), payload)

	if len(payload.Messages) != 2 || payload.Messages[1].Content != "injected" {
		t.Errorf("messages = %v", payload.Messages)
	}
}

func TestInputShortCircuit(t *testing.T) {
	bus := NewBus()
	downstream := false

	bus.On(Input, func(context.Context, *Payload) (*Response, error) {
		return &Response{Handled: true, Response: "intercepted"}, nil
	}, 10, "t")
	bus.On(Input, func(context.Context, *Payload) (*Response, error) {
		downstream = true
		return nil, nil
	}, 1, "t")

	handled, response := bus.EmitInput(context.Background(), NewPayload(Input))
	if !handled || response != "intercepted" {
		t.Errorf("handled=%v response=%q", handled, response)
	}
	if downstream {
		t.Error("downstream handler ran after short-circuit")
	}
}

func TestHandlerFailuresSwallowed(t *testing.T) {
	bus := NewBus()
	ran := false

	bus.On(TurnEnd, func(context.Context, *Payload) (*Response, error) {
		panic("handler exploded")
	}, 10, "bad")
	bus.On(TurnEnd, func(context.Context, *Payload) (*Response, error) {
		return nil, fmt.Errorf("handler errored")
	}, 5, "bad")
	bus.On(TurnEnd, func(context.Context, *Payload) (*Response, error) {
		ran = true
		return nil, nil
	}, 1, "good")

	bus.Emit(context.Background(), TurnEnd, NewPayload(TurnEnd))
	if !ran {
		t.Error("later handler did not run after panic and error")
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Run("handle removes one", func(t *testing.T) {
		bus := NewBus()
		calls := 0
		off := bus.On(AgentStart, func(context.Context, *Payload) (*Response, error) {
			calls++
			return nil, nil
		}, 0, "t")

		bus.Emit(context.Background(), AgentStart, NewPayload(AgentStart))
		off()
		off() // idempotent
		bus.Emit(context.Background(), AgentStart, NewPayload(AgentStart))

		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("remove by source tag", func(t *testing.T) {
		bus := NewBus()
		var calls []string
		add := func(event Name, source string) {
			bus.On(event, func(context.Context, *Payload) (*Response, error) {
				calls = append(calls, source)
				return nil, nil
			}, 0, source)
		}
		add(AgentStart, "plugin-a")
		add(AgentEnd, "plugin-a")
		add(AgentStart, "plugin-b")

		if removed := bus.RemoveSource("plugin-a"); removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}

		bus.Emit(context.Background(), AgentStart, NewPayload(AgentStart))
		bus.Emit(context.Background(), AgentEnd, NewPayload(AgentEnd))

		if len(calls) != 1 || calls[0] != "plugin-b" {
			t.Errorf("calls = %v", calls)
		}
	})
}
