// Package tools defines the agent's tool surface: the Tool interface,
// the registry the loop dispatches through, and the built-in tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tessera-ai/tessera/internal/provider"
)

// Tool is an executable capability advertised to the model.
type Tool interface {
	// Name returns the tool name used in function calling.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with schema-shaped JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is a tool execution outcome. Errors are communicated with
// IsError=true so the next model turn can react; they are never fatal to
// the loop.
type Result struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Errorf builds an error result.
func Errorf(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// Registry manages tools with thread-safe registration and lookup.
// Tool-call arguments are validated against the tool's schema before
// dispatch.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	delete(r.compiled, tool.Name())
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.compiled, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the provider-facing tool specs. When allowed is non-nil,
// only the listed tools are advertised.
func (r *Registry) Specs(allowed []string) []provider.ToolSpec {
	allowedSet := toSet(allowed)

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if allowedSet != nil && !allowedSet[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]provider.ToolSpec, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		specs = append(specs, provider.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.Schema(),
		})
	}
	return specs
}

// Execute validates and runs a tool by name. Unknown tools, disallowed
// tools, and invalid arguments yield error results, not Go errors.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage, allowed []string) *Result {
	allowedSet := toSet(allowed)
	if allowedSet != nil && !allowedSet[name] {
		return Errorf("tool not allowed: %s", name)
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Errorf("tool not found: %s", name)
	}

	if err := r.validate(name, tool, params); err != nil {
		return Errorf("invalid arguments for %s: %v", name, err)
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return Errorf("%v", err)
	}
	if result == nil {
		return &Result{}
	}
	return result
}

// validate checks params against the tool's schema, compiling lazily.
func (r *Registry) validate(name string, tool Tool, params json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.compiled[name]
	r.mu.RUnlock()

	if !ok {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name+".json", jsonBytesReader(tool.Schema())); err != nil {
			return nil // unparseable schema: skip validation, let the tool decide
		}
		var err error
		schema, err = compiler.Compile(name + ".json")
		if err != nil {
			return nil
		}
		r.mu.Lock()
		r.compiled[name] = schema
		r.mu.Unlock()
	}
	if schema == nil {
		return nil
	}

	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	var value any
	if err := json.Unmarshal(params, &value); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	return schema.Validate(value)
}

func toSet(names []string) map[string]bool {
	if names == nil {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
