package agent

import (
	"testing"

	"github.com/tessera-ai/tessera/internal/provider"
	"github.com/tessera-ai/tessera/pkg/models"
)

func TestAccumulatorReplay(t *testing.T) {
	recorded := []provider.Event{
		{Type: provider.EventThinkingDelta, Thinking: "let me see"},
		{Type: provider.EventTextDelta, Text: "The answer "},
		{Type: provider.EventTextDelta, Text: "is 42."},
		{Type: provider.EventToolCallStart, ToolCallID: "c1", ToolName: "execute"},
		{Type: provider.EventToolCallDelta, ToolCallID: "c1", ArgsDelta: `{"comm`},
		{Type: provider.EventToolCallDelta, ToolCallID: "c1", ArgsDelta: `and":"date"}`},
		{Type: provider.EventToolCallEnd, ToolCallID: "c1"},
		{Type: provider.EventFinish},
	}

	build := func() *turnAccumulator {
		acc := newTurnAccumulator()
		for _, ev := range recorded {
			acc.feed(ev)
		}
		return acc
	}

	first, second := build(), build()

	if first.Text() != "The answer is 42." || first.Text() != second.Text() {
		t.Errorf("text = %q / %q", first.Text(), second.Text())
	}
	if first.Thinking() != "let me see" {
		t.Errorf("thinking = %q", first.Thinking())
	}

	calls := first.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].ID != "c1" || calls[0].Arguments != `{"command":"date"}` {
		t.Errorf("call = %+v", calls[0])
	}
	if calls[0] != second.ToolCalls()[0] {
		t.Error("replay produced a different tool call")
	}
}

func TestAccumulatorStreamEvents(t *testing.T) {
	acc := newTurnAccumulator()

	var emitted []models.StreamEvent
	feed := func(ev provider.Event) {
		emitted = append(emitted, acc.feed(ev)...)
	}

	feed(provider.Event{Type: provider.EventTextDelta, Text: "a"})
	feed(provider.Event{Type: provider.EventTextDelta, Text: "b"})
	feed(provider.Event{Type: provider.EventFinish})

	want := []models.StreamEventType{
		models.StreamTextStart,
		models.StreamTextDelta,
		models.StreamTextDelta,
		models.StreamTextEnd,
	}
	if len(emitted) != len(want) {
		t.Fatalf("emitted = %+v", emitted)
	}
	for i, ev := range emitted {
		if ev.Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, ev.Type, want[i])
		}
	}
}

func TestAccumulatorUnknownEvent(t *testing.T) {
	acc := newTurnAccumulator()
	if out := acc.feed(provider.Event{Type: "vendor_specific"}); out != nil {
		t.Errorf("unknown event produced output: %+v", out)
	}
	if acc.Text() != "" {
		t.Error("unknown event mutated state")
	}
}

func TestEmptyArgsDefaultToObject(t *testing.T) {
	acc := newTurnAccumulator()
	acc.feed(provider.Event{Type: provider.EventToolCallStart, ToolCallID: "c1", ToolName: "read"})
	acc.feed(provider.Event{Type: provider.EventToolCallEnd, ToolCallID: "c1"})
	acc.feed(provider.Event{Type: provider.EventFinish})

	calls := acc.ToolCalls()
	if calls[0].Arguments != "{}" {
		t.Errorf("arguments = %q", calls[0].Arguments)
	}
}
