package contextwin

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tessera-ai/tessera/pkg/models"
)

func msg(role models.Role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestShouldCompact(t *testing.T) {
	// One 40-char message estimates 10 tokens + 4 overhead = 14.
	messages := []models.Message{msg(models.RoleUser, strings.Repeat("a", 40))}

	t.Run("threshold boundary", func(t *testing.T) {
		// estimate + reserve >= window * threshold triggers. With
		// estimate 14, reserve 0, threshold 1.0: window 14 triggers,
		// window 15 does not.
		at := NewManager(Options{ContextWindow: 14, Threshold: 1.0, Estimator: HeuristicEstimator{}})
		if !at.ShouldCompact(messages) {
			t.Error("estimate == budget must trigger")
		}
		under := NewManager(Options{ContextWindow: 15, Threshold: 1.0, Estimator: HeuristicEstimator{}})
		if under.ShouldCompact(messages) {
			t.Error("estimate < budget must not trigger")
		}
	})

	t.Run("reserve counts toward the budget", func(t *testing.T) {
		m := NewManager(Options{ContextWindow: 15, ReserveTokens: 1, Threshold: 1.0, Estimator: HeuristicEstimator{}})
		if !m.ShouldCompact(messages) {
			t.Error("estimate + reserve == budget must trigger")
		}
	})

	t.Run("zero window never compacts", func(t *testing.T) {
		m := NewManager(Options{Estimator: HeuristicEstimator{}})
		if m.ShouldCompact(messages) {
			t.Error("unbounded window compacted")
		}
	})
}

func TestSlidingWindow(t *testing.T) {
	t.Run("keeps system, drops oldest", func(t *testing.T) {
		history := []models.Message{
			msg(models.RoleSystem, "system prompt"),
			msg(models.RoleUser, strings.Repeat("old ", 50)),
			msg(models.RoleAssistant, strings.Repeat("older answer ", 20)),
			msg(models.RoleUser, "recent question"),
			msg(models.RoleAssistant, "recent answer"),
		}
		m := NewManager(Options{ContextWindow: 40, Threshold: 1.0, Estimator: HeuristicEstimator{}})

		compacted, stats, err := m.Compact(context.Background(), history)
		if err != nil {
			t.Fatal(err)
		}
		if compacted[0].Role != models.RoleSystem {
			t.Error("leading system message dropped")
		}
		for _, m := range compacted {
			if strings.HasPrefix(m.Content, "old ") {
				t.Error("oldest message survived")
			}
		}
		if stats.MessagesAfter >= stats.MessagesBefore {
			t.Errorf("stats = %+v", stats)
		}
		if stats.TokensAfter >= stats.TokensBefore {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("preserves tool pairing", func(t *testing.T) {
		history := []models.Message{
			msg(models.RoleSystem, "sys"),
			{Role: models.RoleAssistant, Content: strings.Repeat("x", 200), ToolCalls: []models.ToolCall{{ID: "c1", Name: "execute", Arguments: "{}"}}},
			{Role: models.RoleTool, Content: strings.Repeat("y", 200), ToolCallID: "c1"},
			msg(models.RoleUser, "latest"),
		}
		m := NewManager(Options{ContextWindow: 30, Threshold: 1.0, Estimator: HeuristicEstimator{}})

		compacted, _, err := m.Compact(context.Background(), history)
		if err != nil {
			t.Fatal(err)
		}

		calls := map[string]bool{}
		for _, msg := range compacted {
			for _, tc := range msg.ToolCalls {
				calls[tc.ID] = true
			}
		}
		for _, msg := range compacted {
			if msg.Role == models.RoleTool && !calls[msg.ToolCallID] {
				t.Errorf("orphaned tool result %s survived compaction", msg.ToolCallID)
			}
		}
	})
}

func TestSummarizing(t *testing.T) {
	t.Run("replaces dropped prefix with summary", func(t *testing.T) {
		history := []models.Message{
			msg(models.RoleSystem, "sys"),
			msg(models.RoleUser, strings.Repeat("ancient history ", 30)),
			msg(models.RoleAssistant, strings.Repeat("long reply ", 30)),
			msg(models.RoleUser, "now"),
		}

		var summarized int
		strategy := Summarizing{Summarizer: SummarizerFunc(func(_ context.Context, dropped []models.Message) (string, error) {
			summarized = len(dropped)
			return "they talked about ancient history", nil
		})}
		m := NewManager(Options{ContextWindow: 40, Threshold: 1.0, Estimator: HeuristicEstimator{}, Strategy: strategy})

		compacted, _, err := m.Compact(context.Background(), history)
		if err != nil {
			t.Fatal(err)
		}
		if summarized == 0 {
			t.Fatal("summarizer never ran")
		}
		if compacted[0].Role != models.RoleSystem || compacted[0].Content != "sys" {
			t.Error("system message lost")
		}
		if compacted[1].Role != models.RoleSystem || !strings.Contains(compacted[1].Content, "ancient history") {
			t.Errorf("summary message = %+v", compacted[1])
		}
		if compacted[len(compacted)-1].Content != "now" {
			t.Error("recent message lost")
		}
	})

	t.Run("summarizer error propagates", func(t *testing.T) {
		strategy := Summarizing{Summarizer: SummarizerFunc(func(context.Context, []models.Message) (string, error) {
			return "", fmt.Errorf("llm unavailable")
		})}
		m := NewManager(Options{ContextWindow: 10, Threshold: 1.0, Estimator: HeuristicEstimator{}, Strategy: strategy})

		_, _, err := m.Compact(context.Background(), []models.Message{
			msg(models.RoleUser, strings.Repeat("z", 400)),
			msg(models.RoleUser, "tail"),
		})
		if err == nil {
			t.Fatal("want error from summarizer")
		}
	})

	t.Run("missing summarizer errors", func(t *testing.T) {
		m := NewManager(Options{ContextWindow: 10, Threshold: 1.0, Estimator: HeuristicEstimator{}, Strategy: Summarizing{}})
		_, _, err := m.Compact(context.Background(), []models.Message{msg(models.RoleUser, strings.Repeat("z", 100))})
		if err == nil {
			t.Fatal("want error without summarizer")
		}
	})
}

func TestEstimators(t *testing.T) {
	t.Run("heuristic is bytes over four", func(t *testing.T) {
		if got := (HeuristicEstimator{}).Estimate(strings.Repeat("a", 8)); got != 2 {
			t.Errorf("got %d", got)
		}
		if got := (HeuristicEstimator{}).Estimate(""); got != 0 {
			t.Errorf("got %d", got)
		}
	})

	t.Run("tiktoken estimator is consistent", func(t *testing.T) {
		e := NewTiktokenEstimator()
		text := "The quick brown fox jumps over the lazy dog."
		if e.Estimate(text) != e.Estimate(text) {
			t.Error("estimator not deterministic")
		}
		if e.Estimate(text) == 0 {
			t.Error("estimate is zero for non-empty text")
		}
	})
}
