package contextwin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tessera-ai/tessera/pkg/models"
)

// DefaultThreshold is the context usage fraction that triggers compaction.
const DefaultThreshold = 0.9

// Stats summarises one compaction for the compaction event.
type Stats struct {
	MessagesBefore int
	MessagesAfter  int
	TokensBefore   int
	TokensAfter    int
}

// Strategy reduces history to fit the budget. Implementations must
// preserve the leading system message and tool-call/tool-result pairing.
type Strategy interface {
	// Compact returns a reduced message list whose estimate fits budget
	// tokens.
	Compact(ctx context.Context, messages []models.Message, budget int, estimator Estimator) ([]models.Message, error)
}

// Manager decides when history must be compacted and applies the
// configured strategy.
type Manager struct {
	window    int
	reserve   int
	threshold float64
	estimator Estimator
	strategy  Strategy
	logger    *slog.Logger
}

// Options configures a Manager.
type Options struct {
	// ContextWindow is the model's context size in tokens.
	ContextWindow int

	// ReserveTokens is held back for the response and overhead.
	ReserveTokens int

	// Threshold is the usable fraction of the window. Default 0.9.
	Threshold float64

	// Estimator approximates token counts. Default TiktokenEstimator.
	Estimator Estimator

	// Strategy reduces history. Default sliding window.
	Strategy Strategy
}

// NewManager creates a context manager.
func NewManager(opts Options) *Manager {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Estimator == nil {
		opts.Estimator = NewTiktokenEstimator()
	}
	if opts.Strategy == nil {
		opts.Strategy = SlidingWindow{}
	}
	return &Manager{
		window:    opts.ContextWindow,
		reserve:   opts.ReserveTokens,
		threshold: opts.Threshold,
		estimator: opts.Estimator,
		strategy:  opts.Strategy,
		logger:    slog.Default().With("component", "contextwin"),
	}
}

// Estimate returns the token estimate for the message list.
func (m *Manager) Estimate(messages []models.Message) int {
	return EstimateMessages(m.estimator, messages)
}

// ShouldCompact reports whether the history plus reserve crosses the
// usable window.
func (m *Manager) ShouldCompact(messages []models.Message) bool {
	if m.window <= 0 {
		return false
	}
	estimate := m.Estimate(messages)
	return float64(estimate+m.reserve) >= float64(m.window)*m.threshold
}

// Compact applies the strategy and returns the reduced history with
// before/after statistics for the compaction event.
func (m *Manager) Compact(ctx context.Context, messages []models.Message) ([]models.Message, Stats, error) {
	stats := Stats{
		MessagesBefore: len(messages),
		TokensBefore:   m.Estimate(messages),
	}

	budget := int(float64(m.window)*m.threshold) - m.reserve
	if budget < 0 {
		budget = 0
	}

	compacted, err := m.strategy.Compact(ctx, messages, budget, m.estimator)
	if err != nil {
		return messages, stats, fmt.Errorf("compact: %w", err)
	}

	stats.MessagesAfter = len(compacted)
	stats.TokensAfter = m.Estimate(compacted)

	m.logger.Info("history compacted",
		"messages_before", stats.MessagesBefore,
		"messages_after", stats.MessagesAfter,
		"tokens_before", stats.TokensBefore,
		"tokens_after", stats.TokensAfter)

	return compacted, stats, nil
}
