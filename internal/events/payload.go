package events

import (
	"time"

	"github.com/tessera-ai/tessera/pkg/models"
)

// Payload carries the event data. Fields are populated per event name;
// handlers read what is relevant and leave the rest alone.
type Payload struct {
	// Event is the name this payload was emitted under.
	Event Name `json:"event"`

	// Time is when the event was emitted.
	Time time.Time `json:"time"`

	// RunID identifies the agent run; ChildID is set for forked runners.
	RunID   string `json:"run_id,omitempty"`
	ChildID string `json:"child_id,omitempty"`

	// Turn is the 1-based turn number within the run.
	Turn int `json:"turn,omitempty"`

	// Input carries the user input text (input event).
	Input string `json:"input,omitempty"`

	// ToolName/ToolCallID/Arguments describe a tool call
	// (before_tool_call, after_tool_result, tool_execution_update).
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Arguments  string `json:"arguments,omitempty"`

	// Result is the tool result content (after_tool_result); Chunk is a
	// streamed output fragment (tool_execution_update).
	Result string `json:"result,omitempty"`
	Chunk  string `json:"chunk,omitempty"`

	// Messages is the working history (context_transform).
	Messages []models.Message `json:"messages,omitempty"`

	// Model/PreviousModel describe a model switch (model_change).
	Model         string `json:"model,omitempty"`
	PreviousModel string `json:"previous_model,omitempty"`

	// FinishReason explains run termination (agent_end).
	FinishReason models.FinishReason `json:"finish_reason,omitempty"`

	// Compaction statistics (compaction event).
	MessagesBefore int `json:"messages_before,omitempty"`
	MessagesAfter  int `json:"messages_after,omitempty"`
	TokensBefore   int `json:"tokens_before,omitempty"`
	TokensAfter    int `json:"tokens_after,omitempty"`
}

// Response is what a handler may return to participate in interception.
// Nil (or a zero Response) is purely observational.
type Response struct {
	// Block halts a before_tool_call; Reason becomes the synthetic tool
	// result content.
	Block  bool
	Reason string

	// Result replaces the tool result in an after_tool_result chain.
	Result *string

	// Messages replaces the history in a context_transform chain.
	Messages []models.Message

	// Handled short-circuits an input event; Response is returned to the
	// caller instead of running the turn.
	Handled  bool
	Response string
}

// NewPayload creates a payload for an event with the timestamp set.
func NewPayload(event Name) *Payload {
	return &Payload{Event: event, Time: time.Now()}
}
