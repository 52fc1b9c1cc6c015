package agent

import (
	"fmt"

	"github.com/tessera-ai/tessera/pkg/models"
)

// History is the ordered conversation of one runner, with an index from
// tool_call_id to the position of the assistant message carrying the
// call. The pairing invariant is checked on every append: a tool-role
// message must answer a known call, exactly once, after the call.
type History struct {
	messages  []models.Message
	callIndex map[string]int // tool_call_id -> index of carrying assistant message
	answered  map[string]bool
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		callIndex: make(map[string]int),
		answered:  make(map[string]bool),
	}
}

// Append adds a message, maintaining the tool-call index.
func (h *History) Append(msg models.Message) error {
	if msg.Role == models.RoleTool {
		if msg.ToolCallID == "" {
			return fmt.Errorf("tool message missing tool_call_id")
		}
		if _, ok := h.callIndex[msg.ToolCallID]; !ok {
			return fmt.Errorf("tool message answers unknown call %s", msg.ToolCallID)
		}
		if h.answered[msg.ToolCallID] {
			return fmt.Errorf("tool call %s already answered", msg.ToolCallID)
		}
		h.answered[msg.ToolCallID] = true
	}

	h.messages = append(h.messages, msg)

	if msg.Role == models.RoleAssistant {
		idx := len(h.messages) - 1
		for _, tc := range msg.ToolCalls {
			h.callIndex[tc.ID] = idx
		}
	}
	return nil
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []models.Message {
	out := make([]models.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Replace swaps the conversation for a compacted or transformed list and
// rebuilds the index.
func (h *History) Replace(messages []models.Message) {
	h.messages = make([]models.Message, len(messages))
	copy(h.messages, messages)

	h.callIndex = make(map[string]int)
	h.answered = make(map[string]bool)
	for i, msg := range h.messages {
		if msg.Role == models.RoleAssistant {
			for _, tc := range msg.ToolCalls {
				h.callIndex[tc.ID] = i
			}
		}
		if msg.Role == models.RoleTool && msg.ToolCallID != "" {
			h.answered[msg.ToolCallID] = true
		}
	}
}

// Clear drops everything but the leading system message.
func (h *History) Clear() {
	var kept []models.Message
	if len(h.messages) > 0 && h.messages[0].Role == models.RoleSystem {
		kept = []models.Message{h.messages[0]}
	}
	h.Replace(kept)
}

// Len returns the message count.
func (h *History) Len() int { return len(h.messages) }

// Last returns the final message, if any.
func (h *History) Last() (models.Message, bool) {
	if len(h.messages) == 0 {
		return models.Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// LastAssistant returns the most recent assistant message.
func (h *History) LastAssistant() (models.Message, bool) {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == models.RoleAssistant {
			return h.messages[i], true
		}
	}
	return models.Message{}, false
}
