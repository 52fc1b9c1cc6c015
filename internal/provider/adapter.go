// Package provider defines the contract LLM wire adapters must satisfy.
// HTTP implementations live outside the engine; the engine consumes only
// this interface.
package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tessera-ai/tessera/pkg/models"
)

// ErrNoAdapter is returned when a runner has no adapter configured.
var ErrNoAdapter = errors.New("no adapter configured")

// EventType identifies an adapter stream event kind. Adapters may emit
// provider-specific kinds outside this set; the loop drops those with a
// debug log.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventThinkingDelta EventType = "thinking_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallDelta EventType = "tool_call_delta"
	EventToolCallEnd   EventType = "tool_call_end"
	EventFinish        EventType = "finish"
	EventError         EventType = "error"
)

// Event is one element of an adapter's output stream. Tool-call ids are
// stable across the start/delta/end events of one call.
type Event struct {
	Type EventType

	// Text and Thinking carry incremental content.
	Text     string
	Thinking string

	// ToolCallID identifies the call on tool_call_* events; ToolName is
	// set on tool_call_start; ArgsDelta is a partial JSON string.
	ToolCallID string
	ToolName   string
	ArgsDelta  string

	// Err is set on error events; the stream ends after it.
	Err error
}

// ToolSpec advertises a tool to the provider.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// Request is a single streaming completion call.
type Request struct {
	// Model is the model id for this call.
	Model string

	// Messages is the projected conversation, system prompt included.
	Messages []models.ProviderMessage

	// Tools lists the tools the model may call.
	Tools []ToolSpec

	// Temperature and MaxTokens pass through verbatim when set.
	Temperature *float64
	MaxTokens   int

	// ThinkingLevel is off, short, long, or extended.
	ThinkingLevel string
}

// Adapter abstracts the LLM HTTP protocol. Implementations must honour
// ctx cancellation within a bounded latency (250ms preferred) and keep
// tool-call ids stable across a call's events.
type Adapter interface {
	// Stream opens a completion stream. The returned channel closes when
	// the stream finishes, errors, or is cancelled.
	Stream(ctx context.Context, req Request) (<-chan Event, error)

	// Name identifies the adapter for logging and key resolution.
	Name() string
}
