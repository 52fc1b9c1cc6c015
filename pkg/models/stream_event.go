package models

import (
	"encoding/json"
	"fmt"
)

// StreamEventType identifies the kind of stream event emitted while a
// turn runs.
type StreamEventType string

const (
	StreamTextStart     StreamEventType = "text_start"
	StreamTextDelta     StreamEventType = "text_delta"
	StreamTextEnd       StreamEventType = "text_end"
	StreamThinkingStart StreamEventType = "thinking_start"
	StreamThinkingDelta StreamEventType = "thinking_delta"
	StreamThinkingEnd   StreamEventType = "thinking_end"
	StreamToolCallStart StreamEventType = "tool_call_start"
	StreamToolCallDelta StreamEventType = "tool_call_delta"
	StreamToolCallEnd   StreamEventType = "tool_call_end"
	StreamToolResult    StreamEventType = "tool_result"
	StreamTurnStart     StreamEventType = "turn_start"
	StreamTurnEnd       StreamEventType = "turn_end"
	StreamDone          StreamEventType = "done"
	StreamError         StreamEventType = "error"
)

// StreamEvent is one element of an agent's output stream. Exactly the
// fields relevant to Type are populated.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// Content carries text or thinking deltas and tool result bodies.
	Content string `json:"content,omitempty"`

	// ToolName is set on tool_call_start.
	ToolName string `json:"tool_name,omitempty"`

	// ToolCallID is set on all tool_call_* and tool_result events.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ArgsDelta is a partial JSON argument string on tool_call_delta.
	ArgsDelta string `json:"args_delta,omitempty"`

	// ChildID tags events emitted by a forked child runner.
	ChildID string `json:"child_id,omitempty"`

	// Error is set on error events.
	Error string `json:"error,omitempty"`
}

// DoneSentinel terminates an SSE re-emission of a stream.
const DoneSentinel = "[DONE]"

// SSE renders the event in the wire form used by servers that re-emit
// streams to clients.
func (e StreamEvent) SSE() string {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("data: {\"type\":\"error\",\"error\":%q}\n\n", err.Error())
	}
	return "data: " + string(payload) + "\n\n"
}

// FinishReason explains why an agent run ended.
type FinishReason string

const (
	FinishComplete FinishReason = "complete"
	FinishMaxTurns FinishReason = "max_turns"
	FinishAborted  FinishReason = "aborted"
	FinishError    FinishReason = "error"
)
