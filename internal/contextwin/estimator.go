// Package contextwin keeps conversation history inside the model's
// context window: token estimation, compaction decisions, and pluggable
// compaction strategies.
package contextwin

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tessera-ai/tessera/pkg/models"
)

// Estimator approximates token counts for budget decisions. Estimates are
// a local gate, not a guarantee of provider agreement; the same estimator
// must be used for every decision.
type Estimator interface {
	// Estimate returns the approximate token count for text.
	Estimate(text string) int
}

// EstimateMessages sums the estimate over message content, tool calls,
// and a small per-message envelope overhead.
func EstimateMessages(e Estimator, messages []models.Message) int {
	const messageOverhead = 4
	total := 0
	for _, m := range messages {
		total += messageOverhead
		total += e.Estimate(m.Content)
		for _, tc := range m.ToolCalls {
			total += e.Estimate(tc.Name) + e.Estimate(tc.Arguments)
		}
	}
	return total
}

// TiktokenEstimator counts tokens with the cl100k_base encoding, falling
// back to a bytes/4 heuristic when the encoding is unavailable (offline
// environments).
type TiktokenEstimator struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEstimator creates the default estimator.
func NewTiktokenEstimator() *TiktokenEstimator {
	return &TiktokenEstimator{}
}

func (t *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			t.encoding = enc
		}
	})
	if t.encoding != nil {
		return len(t.encoding.Encode(text, nil, nil))
	}
	return HeuristicEstimator{}.Estimate(text)
}

// HeuristicEstimator approximates tokens as bytes/4.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	return (len(text) + 3) / 4
}
