package agent

import (
	"strings"

	"github.com/tessera-ai/tessera/internal/provider"
	"github.com/tessera-ai/tessera/pkg/models"
)

// turnAccumulator assembles one assistant turn from adapter events: text,
// thinking, and tool calls keyed by their stable ids. Re-feeding a
// recorded event sequence reproduces the same assistant message.
type turnAccumulator struct {
	text     strings.Builder
	thinking strings.Builder

	order []string // tool call ids in arrival order
	calls map[string]*pendingCall

	textOpen     bool
	thinkingOpen bool
}

type pendingCall struct {
	name string
	args strings.Builder
}

func newTurnAccumulator() *turnAccumulator {
	return &turnAccumulator{calls: make(map[string]*pendingCall)}
}

// feed consumes one adapter event and returns the stream events to
// re-emit for it. Unknown event kinds return nil and are dropped by the
// caller with a debug log.
func (a *turnAccumulator) feed(ev provider.Event) []models.StreamEvent {
	switch ev.Type {
	case provider.EventTextDelta:
		var out []models.StreamEvent
		if !a.textOpen {
			a.textOpen = true
			out = append(out, models.StreamEvent{Type: models.StreamTextStart})
		}
		a.text.WriteString(ev.Text)
		return append(out, models.StreamEvent{Type: models.StreamTextDelta, Content: ev.Text})

	case provider.EventThinkingDelta:
		var out []models.StreamEvent
		if !a.thinkingOpen {
			a.thinkingOpen = true
			out = append(out, models.StreamEvent{Type: models.StreamThinkingStart})
		}
		a.thinking.WriteString(ev.Thinking)
		return append(out, models.StreamEvent{Type: models.StreamThinkingDelta, Content: ev.Thinking})

	case provider.EventToolCallStart:
		a.order = append(a.order, ev.ToolCallID)
		a.calls[ev.ToolCallID] = &pendingCall{name: ev.ToolName}
		return []models.StreamEvent{{
			Type:       models.StreamToolCallStart,
			ToolCallID: ev.ToolCallID,
			ToolName:   ev.ToolName,
		}}

	case provider.EventToolCallDelta:
		if call, ok := a.calls[ev.ToolCallID]; ok {
			call.args.WriteString(ev.ArgsDelta)
		}
		return []models.StreamEvent{{
			Type:       models.StreamToolCallDelta,
			ToolCallID: ev.ToolCallID,
			ArgsDelta:  ev.ArgsDelta,
		}}

	case provider.EventToolCallEnd:
		return []models.StreamEvent{{
			Type:       models.StreamToolCallEnd,
			ToolCallID: ev.ToolCallID,
		}}

	case provider.EventFinish:
		return a.closeBlocks()
	}
	return nil
}

// closeBlocks emits the pending end events for open text/thinking blocks.
func (a *turnAccumulator) closeBlocks() []models.StreamEvent {
	var out []models.StreamEvent
	if a.thinkingOpen {
		a.thinkingOpen = false
		out = append(out, models.StreamEvent{Type: models.StreamThinkingEnd})
	}
	if a.textOpen {
		a.textOpen = false
		out = append(out, models.StreamEvent{Type: models.StreamTextEnd})
	}
	return out
}

// Text returns the accumulated assistant text.
func (a *turnAccumulator) Text() string { return a.text.String() }

// Thinking returns the accumulated thinking text.
func (a *turnAccumulator) Thinking() string { return a.thinking.String() }

// ToolCalls returns the accumulated calls in arrival order.
func (a *turnAccumulator) ToolCalls() []models.ToolCall {
	out := make([]models.ToolCall, 0, len(a.order))
	for _, id := range a.order {
		call := a.calls[id]
		args := call.args.String()
		if args == "" {
			args = "{}"
		}
		out = append(out, models.ToolCall{ID: id, Name: call.name, Arguments: args})
	}
	return out
}
