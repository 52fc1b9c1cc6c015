// Package events provides the lifecycle event bus. Subscribers observe,
// block, or rewrite agent activity: tool calls, inputs, context, and run
// lifecycle notifications.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Name identifies a lifecycle event. The set is closed.
type Name string

const (
	AgentStart          Name = "agent_start"
	AgentEnd            Name = "agent_end"
	TurnStart           Name = "turn_start"
	TurnEnd             Name = "turn_end"
	BeforeToolCall      Name = "before_tool_call"
	AfterToolResult     Name = "after_tool_result"
	ContextTransform    Name = "context_transform"
	Input               Name = "input"
	ToolExecutionUpdate Name = "tool_execution_update"
	SessionStart        Name = "session_start"
	SessionEnd          Name = "session_end"
	ModelChange         Name = "model_change"
	Compaction          Name = "compaction"
)

// Handler processes an event payload. The returned value participates in
// the aggregation rules of the event (see the Emit* methods); return nil
// to observe only. Errors and panics are logged and swallowed — they
// never abort emission.
type Handler func(ctx context.Context, payload *Payload) (*Response, error)

// registration is one subscribed handler.
type registration struct {
	id       string
	event    Name
	handler  Handler
	priority int
	source   string
	seq      uint64
}

// Bus dispatches lifecycle events to subscribers in descending priority
// order, ties resolved by registration order. The handler list is
// copy-on-write: registration never races emission.
type Bus struct {
	mu       sync.Mutex
	handlers map[Name][]*registration
	byID     map[string]*registration
	seq      uint64
	logger   *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Name][]*registration),
		byID:     make(map[string]*registration),
		logger:   slog.Default().With("component", "events"),
	}
}

// On subscribes a handler to an event. Higher priority runs earlier;
// source is a free-form owner tag usable for bulk unsubscription. The
// returned function unsubscribes.
func (b *Bus) On(event Name, handler Handler, priority int, source string) func() {
	reg := &registration{
		id:       uuid.NewString(),
		event:    event,
		handler:  handler,
		priority: priority,
		source:   source,
	}

	b.mu.Lock()
	b.seq++
	reg.seq = b.seq

	// Copy-on-write so in-flight emissions keep a stable list.
	existing := b.handlers[event]
	next := make([]*registration, 0, len(existing)+1)
	next = append(next, existing...)
	next = append(next, reg)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].priority != next[j].priority {
			return next[i].priority > next[j].priority
		}
		return next[i].seq < next[j].seq
	})
	b.handlers[event] = next
	b.byID[reg.id] = reg
	b.mu.Unlock()

	return func() { b.unsubscribe(reg.id) }
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.byID[id]
	if !ok {
		return
	}
	delete(b.byID, id)

	existing := b.handlers[reg.event]
	next := make([]*registration, 0, len(existing))
	for _, r := range existing {
		if r.id != id {
			next = append(next, r)
		}
	}
	b.handlers[reg.event] = next
}

// RemoveSource unsubscribes every handler registered under the source
// tag. Returns the number removed.
func (b *Bus) RemoveSource(source string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for event, regs := range b.handlers {
		next := make([]*registration, 0, len(regs))
		for _, r := range regs {
			if r.source == source {
				delete(b.byID, r.id)
				removed++
				continue
			}
			next = append(next, r)
		}
		b.handlers[event] = next
	}
	return removed
}

// HandlerCount returns the number of handlers subscribed to an event.
func (b *Bus) HandlerCount(event Name) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}

func (b *Bus) snapshot(event Name) []*registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers[event]
}

// call invokes one handler, converting panics to logged errors.
func (b *Bus) call(ctx context.Context, reg *registration, payload *Payload) (resp *Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return reg.handler(ctx, payload)
}

// Emit dispatches an observational event. Handler return values are
// ignored; errors are logged with the subscriber tag and swallowed.
func (b *Bus) Emit(ctx context.Context, event Name, payload *Payload) {
	for _, reg := range b.snapshot(event) {
		if _, err := b.call(ctx, reg, payload); err != nil {
			b.logHandlerError(event, reg, err)
		}
	}
}

// EmitBeforeToolCall dispatches before_tool_call. The first handler that
// blocks wins; remaining handlers still run for observation but cannot
// override the block.
func (b *Bus) EmitBeforeToolCall(ctx context.Context, payload *Payload) (blocked bool, reason string) {
	for _, reg := range b.snapshot(BeforeToolCall) {
		resp, err := b.call(ctx, reg, payload)
		if err != nil {
			b.logHandlerError(BeforeToolCall, reg, err)
			continue
		}
		if resp != nil && resp.Block && !blocked {
			blocked = true
			reason = resp.Reason
			if reason == "" {
				reason = "tool call blocked"
			}
		}
	}
	return blocked, reason
}

// EmitAfterToolResult dispatches after_tool_result. Handlers may return a
// replacement result which chains: the output of one handler is the input
// of the next.
func (b *Bus) EmitAfterToolResult(ctx context.Context, payload *Payload) string {
	result := payload.Result
	for _, reg := range b.snapshot(AfterToolResult) {
		payload.Result = result
		resp, err := b.call(ctx, reg, payload)
		if err != nil {
			b.logHandlerError(AfterToolResult, reg, err)
			continue
		}
		if resp != nil && resp.Result != nil {
			result = *resp.Result
		}
	}
	return result
}

// EmitContextTransform dispatches context_transform. Handlers may return
// a replacement message list, applied in chain.
func (b *Bus) EmitContextTransform(ctx context.Context, payload *Payload) {
	for _, reg := range b.snapshot(ContextTransform) {
		resp, err := b.call(ctx, reg, payload)
		if err != nil {
			b.logHandlerError(ContextTransform, reg, err)
			continue
		}
		if resp != nil && resp.Messages != nil {
			payload.Messages = resp.Messages
		}
	}
}

// EmitInput dispatches input. A handler returning handled=true
// short-circuits: downstream handlers do not run and the response is
// returned to the caller.
func (b *Bus) EmitInput(ctx context.Context, payload *Payload) (handled bool, response string) {
	for _, reg := range b.snapshot(Input) {
		resp, err := b.call(ctx, reg, payload)
		if err != nil {
			b.logHandlerError(Input, reg, err)
			continue
		}
		if resp != nil && resp.Handled {
			return true, resp.Response
		}
	}
	return false, ""
}

func (b *Bus) logHandlerError(event Name, reg *registration, err error) {
	b.logger.Warn("event handler error",
		"event", string(event),
		"source", reg.source,
		"handler_id", reg.id,
		"error", err)
}
