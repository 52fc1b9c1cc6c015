package tools

import (
	"context"
	"encoding/json"
	"testing"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echo input back" }

func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"text": {"type": "string"}},
		"required": ["text"],
		"additionalProperties": false
	}`)
}

func (echoTool) Execute(_ context.Context, params json.RawMessage) (*Result, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return Errorf("bad params"), nil
	}
	return &Result{Content: args.Text}, nil
}

func TestRegistry(t *testing.T) {
	t.Run("register and execute", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool{})

		result := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), nil)
		if result.IsError || result.Content != "hi" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("unknown tool is an error result", func(t *testing.T) {
		r := NewRegistry()
		result := r.Execute(context.Background(), "missing", nil, nil)
		if !result.IsError {
			t.Error("want error result")
		}
	})

	t.Run("arguments validated against schema", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool{})

		bad := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":42}`), nil)
		if !bad.IsError {
			t.Error("want validation error for wrong type")
		}

		missing := r.Execute(context.Background(), "echo", json.RawMessage(`{}`), nil)
		if !missing.IsError {
			t.Error("want validation error for missing required field")
		}
	})

	t.Run("allowed set rejects other tools", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool{})

		result := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), []string{"read"})
		if !result.IsError || result.Content != "tool not allowed: echo" {
			t.Errorf("result = %+v", result)
		}

		allowed := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), []string{"echo"})
		if allowed.IsError {
			t.Errorf("result = %+v", allowed)
		}
	})

	t.Run("specs filter and sort", func(t *testing.T) {
		r := NewRegistry()
		r.Register(echoTool{})
		r.Register(&ReadTool{})
		r.Register(&WriteTool{})

		all := r.Specs(nil)
		if len(all) != 3 || all[0].Name != "echo" || all[1].Name != "read" {
			t.Errorf("specs = %+v", all)
		}

		subset := r.Specs([]string{"write"})
		if len(subset) != 1 || subset[0].Name != "write" {
			t.Errorf("subset = %+v", subset)
		}
	})
}
