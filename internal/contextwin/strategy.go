package contextwin

import (
	"context"
	"fmt"

	"github.com/tessera-ai/tessera/pkg/models"
)

// SlidingWindow drops the oldest non-system messages until the history
// fits the budget. The leading system message is always retained, and
// tool-call/tool-result pairing survives: a tool result is never kept
// when the assistant message carrying its call was dropped.
type SlidingWindow struct{}

func (SlidingWindow) Compact(_ context.Context, messages []models.Message, budget int, estimator Estimator) ([]models.Message, error) {
	system, rest := splitLeadingSystem(messages)
	drop := cutPoint(system, rest, budget, estimator)
	out := make([]models.Message, 0, len(system)+len(rest)-drop)
	out = append(out, system...)
	out = append(out, rest[drop:]...)
	return out, nil
}

// Summarizer produces a summary of dropped messages. It may call the LLM
// adapter; such a call must not re-enter compaction.
type Summarizer interface {
	Summarize(ctx context.Context, dropped []models.Message) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, dropped []models.Message) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, dropped []models.Message) (string, error) {
	return f(ctx, dropped)
}

// Summarizing replaces the dropped prefix with a single system-role
// summary message produced by the supplied summariser.
type Summarizing struct {
	Summarizer Summarizer
}

func (s Summarizing) Compact(ctx context.Context, messages []models.Message, budget int, estimator Estimator) ([]models.Message, error) {
	if s.Summarizer == nil {
		return nil, fmt.Errorf("summarizing strategy requires a summarizer")
	}

	system, rest := splitLeadingSystem(messages)
	drop := cutPoint(system, rest, budget, estimator)
	if drop == 0 {
		out := make([]models.Message, 0, len(messages))
		out = append(out, system...)
		out = append(out, rest...)
		return out, nil
	}

	summary, err := s.Summarizer.Summarize(ctx, rest[:drop])
	if err != nil {
		return nil, fmt.Errorf("summarize dropped messages: %w", err)
	}

	out := make([]models.Message, 0, len(system)+1+len(rest)-drop)
	out = append(out, system...)
	out = append(out, models.Message{
		Role:    models.RoleSystem,
		Content: "Summary of earlier conversation:\n" + summary,
	})
	out = append(out, rest[drop:]...)
	return out, nil
}

// splitLeadingSystem separates the leading system message(s) from the
// droppable tail.
func splitLeadingSystem(messages []models.Message) (system, rest []models.Message) {
	i := 0
	for i < len(messages) && messages[i].Role == models.RoleSystem {
		i++
	}
	return messages[:i], messages[i:]
}

// cutPoint returns how many leading messages of rest to drop so that the
// retained history fits budget. The cut never lands on a tool result
// whose call was dropped: orphaned tool messages are swept into the drop.
func cutPoint(system, rest []models.Message, budget int, estimator Estimator) int {
	drop := 0
	for drop < len(rest) {
		kept := make([]models.Message, 0, len(system)+len(rest)-drop)
		kept = append(kept, system...)
		kept = append(kept, rest[drop:]...)
		if EstimateMessages(estimator, kept) <= budget {
			break
		}
		drop++
		// Sweep tool results whose calls just fell off.
		for drop < len(rest) && rest[drop].Role == models.RoleTool {
			drop++
		}
	}
	return drop
}
