package agent

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessera-ai/tessera/internal/events"
	"github.com/tessera-ai/tessera/internal/provider"
	"github.com/tessera-ai/tessera/internal/tools"
	"github.com/tessera-ai/tessera/pkg/models"
)

// runTurns is the inner ReAct loop: call the model, dispatch tools,
// repeat until a turn produces no tool calls, the cap is hit, the run is
// aborted, or the adapter fails unrecoverably.
func (r *Runner) runTurns(ctx context.Context) (models.FinishReason, error) {
	r.turn = 0
	for r.turn < r.cfg.MaxTurns {
		if r.aborted.Load() || ctx.Err() != nil {
			return models.FinishAborted, ErrAborted
		}

		r.turn++
		turnCtx, span := r.tracer.Start(ctx, "agent.turn",
			trace.WithAttributes(attribute.Int("turn", r.turn)))

		r.emitTurnEvent(turnCtx, events.TurnStart)
		r.emitStream(models.StreamEvent{Type: models.StreamTurnStart})

		if err := r.maybeCompact(turnCtx); err != nil {
			r.logger.Warn("compaction failed", "error", err)
		}

		working := r.transformContext(turnCtx)

		toolCalls, err := r.streamTurn(turnCtx, working)
		if err != nil {
			span.End()
			if r.aborted.Load() || ctx.Err() != nil {
				return models.FinishAborted, ErrAborted
			}
			r.emitStream(models.StreamEvent{Type: models.StreamError, Error: err.Error()})
			return models.FinishError, &LoopError{Turn: r.turn, Cause: err}
		}

		r.emitTurnEvent(turnCtx, events.TurnEnd)
		r.emitStream(models.StreamEvent{Type: models.StreamTurnEnd})

		if len(toolCalls) == 0 || r.cfg.DisableTools {
			span.End()
			r.countTurn("complete")
			r.emitStream(models.StreamEvent{Type: models.StreamDone})
			return models.FinishComplete, nil
		}

		err = r.dispatchTools(turnCtx, toolCalls)
		span.End()
		if err != nil {
			if r.aborted.Load() || ctx.Err() != nil {
				return models.FinishAborted, ErrAborted
			}
			return models.FinishError, err
		}
		r.countTurn("continued")
	}

	// The cap landed with steering still queued: hand it to a fresh
	// outer chat as a follow-up rather than dropping it.
	for _, msg := range r.queue.drainSteering() {
		r.queue.queueFollowUp(msg)
	}
	r.countTurn("max_turns")
	return models.FinishMaxTurns, nil
}

// maybeCompact compacts history when the context manager says so and
// emits the compaction event.
func (r *Runner) maybeCompact(ctx context.Context) error {
	if r.opts.Window == nil {
		return nil
	}
	messages := r.history.Messages()
	if !r.opts.Window.ShouldCompact(messages) {
		return nil
	}

	compacted, stats, err := r.opts.Window.Compact(ctx, messages)
	if err != nil {
		return err
	}
	r.history.Replace(compacted)

	payload := events.NewPayload(events.Compaction)
	payload.RunID = r.id
	payload.ChildID = r.childID
	payload.MessagesBefore = stats.MessagesBefore
	payload.MessagesAfter = stats.MessagesAfter
	payload.TokensBefore = stats.TokensBefore
	payload.TokensAfter = stats.TokensAfter
	r.opts.Bus.Emit(ctx, events.Compaction, payload)

	if r.opts.Metrics != nil {
		r.opts.Metrics.CompactionCounter.Inc()
		if saved := stats.TokensBefore - stats.TokensAfter; saved > 0 {
			r.opts.Metrics.CompactionTokensSaved.Add(float64(saved))
		}
	}
	return nil
}

// transformContext emits context_transform and returns the message list
// to send, with handler replacements applied in chain. The stored history
// is not rewritten; transforms shape the request only.
func (r *Runner) transformContext(ctx context.Context) []models.Message {
	messages := r.history.Messages()
	if r.opts.Bus.HandlerCount(events.ContextTransform) == 0 {
		return messages
	}

	payload := events.NewPayload(events.ContextTransform)
	payload.RunID = r.id
	payload.ChildID = r.childID
	payload.Messages = messages
	r.opts.Bus.EmitContextTransform(ctx, payload)
	return payload.Messages
}

// streamTurn calls the adapter, re-emits its events as stream events, and
// appends the accumulated assistant message. On abort, partial assistant
// text is discarded and nothing is appended.
func (r *Runner) streamTurn(ctx context.Context, working []models.Message) ([]models.ToolCall, error) {
	req := provider.Request{
		Model:         r.model,
		Messages:      models.ToProvider(working),
		Temperature:   r.cfg.Temperature,
		MaxTokens:     r.cfg.MaxTokens,
		ThinkingLevel: r.cfg.ThinkingLevel,
	}
	if !r.cfg.DisableTools && r.opts.Registry != nil {
		req.Tools = r.opts.Registry.Specs(r.allowedTools)
	}

	start := time.Now()
	maxAttempts := r.opts.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var acc *turnAccumulator
	for attempt := 1; ; attempt++ {
		stream, err := provider.OpenStream(ctx, r.opts.Adapter, req, r.opts.Retry)
		if err != nil {
			return nil, err
		}

		acc = newTurnAccumulator()
		consumed := false
		var streamErr error
		for ev := range stream {
			if r.aborted.Load() || ctx.Err() != nil {
				return nil, ErrAborted
			}
			if ev.Type == provider.EventError {
				streamErr = ev.Err
				break
			}
			out := acc.feed(ev)
			if out == nil && ev.Type != provider.EventFinish {
				r.logger.Debug("dropping unknown adapter event", "type", string(ev.Type))
				continue
			}
			consumed = consumed || len(out) > 0
			for _, streamEv := range out {
				r.emitStream(streamEv)
			}
		}
		if r.aborted.Load() || ctx.Err() != nil {
			return nil, ErrAborted
		}
		if streamErr == nil {
			break
		}
		// A transient failure before any content is safe to retry; once
		// content reached the stream, surface the error.
		if consumed || attempt >= maxAttempts || provider.Classify(streamErr) != provider.ClassTransient {
			return nil, streamErr
		}
		r.logger.Warn("retrying adapter stream", "attempt", attempt, "error", streamErr)
	}

	if r.opts.Metrics != nil && r.opts.Adapter != nil {
		r.opts.Metrics.AdapterRequestDuration.
			WithLabelValues(r.opts.Adapter.Name(), r.model).
			Observe(time.Since(start).Seconds())
	}

	if thinking := acc.Thinking(); thinking != "" {
		if err := r.history.Append(models.Message{Role: models.RoleThinking, Content: thinking}); err != nil {
			return nil, err
		}
	}

	toolCalls := acc.ToolCalls()
	if err := r.history.Append(models.Message{
		Role:      models.RoleAssistant,
		Content:   acc.Text(),
		ToolCalls: toolCalls,
	}); err != nil {
		return nil, err
	}
	return toolCalls, nil
}

// dispatchTools executes the turn's tool calls sequentially. After each
// call, pending steering messages are drained: they append as user
// messages and the remaining calls of this turn are cancelled, leaving no
// trace in history.
func (r *Runner) dispatchTools(ctx context.Context, toolCalls []models.ToolCall) error {
	for _, tc := range toolCalls {
		if r.aborted.Load() || ctx.Err() != nil {
			return ErrAborted
		}

		result := r.runToolCall(ctx, tc)

		if r.aborted.Load() || ctx.Err() != nil {
			// Record the interrupted call so the pending tool_call has a
			// result, then unwind.
			_ = r.appendToolResult(tc, result)
			return ErrAborted
		}

		if err := r.appendToolResult(tc, result); err != nil {
			return err
		}

		if steering := r.queue.drainSteering(); len(steering) > 0 {
			for _, msg := range steering {
				if err := r.history.Append(models.Message{Role: models.RoleUser, Content: msg}); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return nil
}

// runToolCall runs one call through the bus gate and the registry.
func (r *Runner) runToolCall(ctx context.Context, tc models.ToolCall) *tools.Result {
	toolCtx, span := r.tracer.Start(ctx, "agent.tool",
		trace.WithAttributes(
			attribute.String("tool", tc.Name),
			attribute.String("tool_call_id", tc.ID)))
	defer span.End()

	gate := events.NewPayload(events.BeforeToolCall)
	gate.RunID = r.id
	gate.ChildID = r.childID
	gate.Turn = r.turn
	gate.ToolName = tc.Name
	gate.ToolCallID = tc.ID
	gate.Arguments = tc.Arguments
	if blocked, reason := r.opts.Bus.EmitBeforeToolCall(toolCtx, gate); blocked {
		r.countTool(tc.Name, "blocked")
		return &tools.Result{Content: reason, IsError: true}
	}

	if r.cfg.DisableTools || r.opts.Registry == nil {
		return tools.Errorf("tool dispatch is disabled")
	}

	sink := func(chunk string) {
		update := events.NewPayload(events.ToolExecutionUpdate)
		update.RunID = r.id
		update.ChildID = r.childID
		update.ToolName = tc.Name
		update.ToolCallID = tc.ID
		update.Chunk = chunk
		r.opts.Bus.Emit(toolCtx, events.ToolExecutionUpdate, update)
	}

	start := time.Now()
	result := r.opts.Registry.Execute(tools.WithOutputSink(toolCtx, sink), tc.Name, json.RawMessage(tc.Arguments), r.allowedTools)
	if r.opts.Metrics != nil {
		r.opts.Metrics.ToolExecutionDuration.WithLabelValues(tc.Name).Observe(time.Since(start).Seconds())
	}

	status := "success"
	if result.IsError {
		status = "error"
	}
	r.countTool(tc.Name, status)

	after := events.NewPayload(events.AfterToolResult)
	after.RunID = r.id
	after.ChildID = r.childID
	after.Turn = r.turn
	after.ToolName = tc.Name
	after.ToolCallID = tc.ID
	after.Result = result.Content
	result.Content = r.opts.Bus.EmitAfterToolResult(toolCtx, after)
	return result
}

// appendToolResult records the tool-role message and emits the
// tool_result stream event.
func (r *Runner) appendToolResult(tc models.ToolCall, result *tools.Result) error {
	if err := r.history.Append(models.Message{
		Role:       models.RoleTool,
		Content:    result.Content,
		ToolCallID: tc.ID,
	}); err != nil {
		return err
	}
	r.emitStream(models.StreamEvent{
		Type:       models.StreamToolResult,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    result.Content,
	})
	return nil
}

func (r *Runner) emitTurnEvent(ctx context.Context, event events.Name) {
	payload := events.NewPayload(event)
	payload.RunID = r.id
	payload.ChildID = r.childID
	payload.Turn = r.turn
	r.opts.Bus.Emit(ctx, event, payload)
}

func (r *Runner) countTurn(finish string) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.TurnCounter.WithLabelValues(finish).Inc()
	}
}

func (r *Runner) countTool(name, status string) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ToolExecutionCounter.WithLabelValues(name, status).Inc()
	}
}
