// Package agent implements the conversation scheduler: the outer chat
// loop, the inner ReAct loop, tool dispatch, skill invocation, forking,
// steering, and abort.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessera-ai/tessera/internal/contextwin"
	"github.com/tessera-ai/tessera/internal/events"
	"github.com/tessera-ai/tessera/internal/observability"
	"github.com/tessera-ai/tessera/internal/provider"
	"github.com/tessera-ai/tessera/internal/skills"
	"github.com/tessera-ai/tessera/internal/tools"
	"github.com/tessera-ai/tessera/pkg/models"
)

// DefaultMaxTurns caps the inner loop when the config does not.
const DefaultMaxTurns = 50

// Config holds the loop-relevant configuration of a runner.
type Config struct {
	// Model is the default model id.
	Model string

	// SystemPrompt is the base system prompt; the skill snapshot prompt
	// is appended to it.
	SystemPrompt string

	// MaxTurns caps the inner loop. Default 50.
	MaxTurns int

	// Temperature and MaxTokens pass through to the adapter when set.
	Temperature *float64
	MaxTokens   int

	// ThinkingLevel is off, short, long, or extended.
	ThinkingLevel string

	// DisableTools skips tool advertisement and dispatch entirely.
	DisableTools bool

	// MetadataOnlyPrompt renders only skill names and descriptions into
	// the system prompt; full content loads on demand via the skill tool.
	MetadataOnlyPrompt bool

	// DescriptionBudget caps the metadata-only prompt projection.
	DescriptionBudget int
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.DescriptionBudget <= 0 {
		cfg.DescriptionBudget = skills.DefaultDescriptionBudget
	}
	return cfg
}

// Options wires a runner to its collaborators.
type Options struct {
	Engine   *skills.Engine
	Adapter  provider.Adapter
	Bus      *events.Bus
	Window   *contextwin.Manager
	Registry *tools.Registry
	Metrics  *observability.Metrics

	// OnEvent receives the structured stream events of the run,
	// including events from forked children (tagged with a child id).
	OnEvent func(models.StreamEvent)

	// Retry configures adapter call retries.
	Retry provider.RetryConfig

	Config Config
}

// Runner drives one conversation. A runner is single-threaded
// cooperative: one active turn at a time; overlapping Chat calls are
// rejected with ErrBusy. Forked children are independent runners.
type Runner struct {
	opts   Options
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	id      string
	childID string // non-empty on forked children

	busyMu sync.Mutex
	busy   bool

	stateMu   sync.Mutex
	cancelRun context.CancelFunc
	aborted   atomic.Bool

	history *History
	queue   *steeringQueue

	// Captured per chat; in-flight turns keep their snapshot across hot
	// reloads.
	snapshot *skills.Snapshot

	// Mutable model slot: per-skill switching restores on exit.
	model        string
	allowedTools []string

	// Env injection for the active skill, scoped to subprocesses.
	skillEnvMu sync.Mutex
	skillEnv   map[string]string

	turn     int
	childSeq atomic.Uint64
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	cfg := sanitizeConfig(opts.Config)
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = provider.DefaultRetryConfig()
	}

	return &Runner{
		opts:    opts,
		cfg:     cfg,
		logger:  slog.Default().With("component", "agent"),
		tracer:  otel.Tracer("tessera/agent"),
		id:      uuid.NewString(),
		history: NewHistory(),
		queue:   newSteeringQueue(),
		model:   cfg.Model,
	}
}

// ID returns the run id used to tag events.
func (r *Runner) ID() string { return r.id }

// History returns a copy of the conversation.
func (r *Runner) History() []models.Message { return r.history.Messages() }

// Chat runs one turn of the outer loop: input interception, slash
// invocation, the inner ReAct loop, and follow-up drain. It returns the
// last assistant message. A second Chat on the same runner while one is
// active returns ErrBusy.
func (r *Runner) Chat(ctx context.Context, message string) (models.Message, error) {
	r.busyMu.Lock()
	if r.busy {
		r.busyMu.Unlock()
		return models.Message{}, ErrBusy
	}
	r.busy = true
	r.busyMu.Unlock()
	defer func() {
		r.busyMu.Lock()
		r.busy = false
		r.busyMu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.stateMu.Lock()
	r.cancelRun = cancel
	r.stateMu.Unlock()
	r.aborted.Store(false)

	return r.chat(runCtx, message, true)
}

// Abort cancels the in-flight run: active tool subprocesses, the adapter
// stream, and the inner loop at its next check. Edge-triggered and
// idempotent.
func (r *Runner) Abort() {
	if r.aborted.Swap(true) {
		return
	}
	r.stateMu.Lock()
	cancel := r.cancelRun
	r.stateMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Steer enqueues a message consumed between tool calls of the active
// turn; remaining tool calls of that turn are cancelled.
func (r *Runner) Steer(message string) {
	r.queue.steer(message)
}

// FollowUp enqueues a message processed after the current inner loop
// exits.
func (r *Runner) FollowUp(message string) {
	r.queue.queueFollowUp(message)
}

// chat is the outer loop body, shared by the public entry and follow-up
// recursion. Follow-ups do not emit a second agent_start.
func (r *Runner) chat(ctx context.Context, message string, firstEntry bool) (models.Message, error) {
	payload := events.NewPayload(events.Input)
	payload.RunID = r.id
	payload.ChildID = r.childID
	payload.Input = message
	if handled, response := r.opts.Bus.EmitInput(ctx, payload); handled {
		return models.Message{Role: models.RoleAssistant, Content: response}, nil
	}

	if strings.TrimSpace(message) == "/clear" {
		r.history.Clear()
		return models.Message{Role: models.RoleAssistant, Content: "history cleared"}, nil
	}

	if inv := parseSlash(message); inv != nil {
		resp, handled, err := r.invokeSlash(ctx, inv, firstEntry)
		if handled {
			return resp, err
		}
		// Unknown command: fall through and treat as a plain message.
	}

	r.captureSnapshot()
	if err := r.history.Append(models.Message{Role: models.RoleUser, Content: message}); err != nil {
		return models.Message{}, err
	}

	if firstEntry {
		r.emitLifecycle(ctx, events.AgentStart, "")
	}

	finish, err := r.runTurns(ctx)
	if err != nil && finish != models.FinishError && finish != models.FinishAborted {
		return models.Message{}, err
	}
	r.drainFollowUps(ctx)
	r.emitLifecycle(ctx, events.AgentEnd, finish)

	last, _ := r.history.LastAssistant()
	return last, nil
}

// drainFollowUps recursively re-enters chat for each queued follow-up.
func (r *Runner) drainFollowUps(ctx context.Context) {
	for {
		if r.aborted.Load() || ctx.Err() != nil {
			return
		}
		msg, ok := r.queue.popFollowUp()
		if !ok {
			return
		}
		if _, err := r.chat(ctx, msg, false); err != nil {
			r.logger.Warn("follow-up failed", "error", err)
			return
		}
	}
}

// captureSnapshot pins the current skill snapshot for this run and syncs
// the leading system message to it.
func (r *Runner) captureSnapshot() {
	if r.opts.Engine != nil {
		r.snapshot = r.opts.Engine.Snapshot()
	}
	r.syncSystemPrompt()
}

// syncSystemPrompt rebuilds the leading system message from the base
// prompt and the pinned snapshot.
func (r *Runner) syncSystemPrompt() {
	var b strings.Builder
	b.WriteString(r.cfg.SystemPrompt)
	if r.snapshot != nil && r.snapshot.Len() > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if r.cfg.MetadataOnlyPrompt {
			b.WriteString(r.snapshot.MetadataPrompt(r.cfg.DescriptionBudget))
		} else {
			b.WriteString(r.snapshot.Prompt())
		}
	}
	prompt := b.String()
	if prompt == "" {
		return
	}

	messages := r.history.Messages()
	system := models.Message{Role: models.RoleSystem, Content: prompt}
	if len(messages) > 0 && messages[0].Role == models.RoleSystem {
		messages[0] = system
		r.history.Replace(messages)
		return
	}
	r.history.Replace(append([]models.Message{system}, messages...))
}

// setModel switches the mutable model slot, emitting model_change.
func (r *Runner) setModel(ctx context.Context, model string) {
	if model == "" || model == r.model {
		return
	}
	payload := events.NewPayload(events.ModelChange)
	payload.RunID = r.id
	payload.ChildID = r.childID
	payload.Model = model
	payload.PreviousModel = r.model
	r.opts.Bus.Emit(ctx, events.ModelChange, payload)
	r.model = model
}

// ActiveSkillEnv returns the env injection of the active skill, composed
// into subprocess environments by the exec tools.
func (r *Runner) ActiveSkillEnv() map[string]string {
	r.skillEnvMu.Lock()
	defer r.skillEnvMu.Unlock()
	if r.skillEnv == nil {
		return nil
	}
	out := make(map[string]string, len(r.skillEnv))
	for k, v := range r.skillEnv {
		out[k] = v
	}
	return out
}

func (r *Runner) setSkillEnv(env map[string]string) {
	r.skillEnvMu.Lock()
	r.skillEnv = env
	r.skillEnvMu.Unlock()
}

// Fork runs a skill in a child runner with isolated history seeded by
// the skill content and arguments. The child shares the engine, adapter,
// and bus, inherits the turn cap and abort signal, and tags its events
// with a child id. The child's final assistant text is returned.
func (r *Runner) Fork(ctx context.Context, skill *skills.Skill, arguments string) (string, error) {
	childID := fmt.Sprintf("%s-child-%d", r.id, r.childSeq.Add(1))

	childOpts := r.opts
	childOpts.Config = r.cfg
	childOpts.Config.SystemPrompt = "" // seeded below from the skill
	if skill.Model != "" {
		childOpts.Config.Model = skill.Model
	} else {
		childOpts.Config.Model = r.model
	}
	if parentSink := r.opts.OnEvent; parentSink != nil {
		childOpts.OnEvent = func(ev models.StreamEvent) {
			ev.ChildID = childID
			parentSink(ev)
		}
	}

	child := NewRunner(childOpts)
	child.childID = childID
	child.allowedTools = skill.AllowedTools
	if r.opts.Engine != nil {
		child.setSkillEnv(r.opts.Engine.SkillEnv(skill))
	}

	seedSystem := skill.Content
	if r.opts.Engine != nil {
		seedSystem = r.opts.Engine.ResolveContent(ctx, skill, arguments)
	}
	if err := child.history.Append(models.Message{Role: models.RoleSystem, Content: seedSystem}); err != nil {
		return "", err
	}
	if err := child.history.Append(models.Message{Role: models.RoleUser, Content: arguments}); err != nil {
		return "", err
	}

	child.emitLifecycle(ctx, events.AgentStart, "")
	finish, err := child.runTurns(ctx)
	child.emitLifecycle(ctx, events.AgentEnd, finish)
	if err != nil && finish == models.FinishError {
		return "", err
	}

	answer, ok := child.history.LastAssistant()
	if !ok {
		return "", fmt.Errorf("fork produced no assistant message")
	}
	return answer.Content, nil
}

// emitLifecycle emits agent_start / agent_end with run identity.
func (r *Runner) emitLifecycle(ctx context.Context, event events.Name, finish models.FinishReason) {
	payload := events.NewPayload(event)
	payload.RunID = r.id
	payload.ChildID = r.childID
	payload.FinishReason = finish
	r.opts.Bus.Emit(ctx, event, payload)
}

// emitStream forwards a stream event to the configured sink.
func (r *Runner) emitStream(ev models.StreamEvent) {
	if r.childID != "" && ev.ChildID == "" {
		ev.ChildID = r.childID
	}
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(ev)
	}
}
