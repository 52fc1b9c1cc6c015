package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessera-ai/tessera/internal/skills"
)

func skillToolEngine(t *testing.T) *skills.Engine {
	t.Helper()
	dir := t.TempDir()

	write := func(name, body string) {
		skillDir := filepath.Join(dir, name)
		if err := os.MkdirAll(skillDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(skillDir, skills.SkillFilename), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("lookup", "---\nname: lookup\ndescription: Look things up\n---\nLook up $ARGUMENTS carefully.")
	write("forked", "---\nname: forked\ndescription: Runs isolated\ncontext: fork\n---\nIsolated body.")
	write("hidden", "---\nname: hidden\ndescription: Model may not load this\ndisable-model-invocation: true\n---\nsecret")
	write("gated", "---\nname: gated\ndescription: Needs a binary\nmetadata:\n  requires:\n    bins: [no-such-binary]\n---\nbody")

	engine := skills.NewEngine(skills.EngineOptions{
		Roots: []skills.Root{skills.NewRoot(dir, skills.SourceWorkspace)},
		Probe: &skills.Probe{
			OS:        "linux",
			LookPath:  func(string) bool { return false },
			LookupEnv: func(string) (string, bool) { return "", false },
		},
	})
	engine.Refresh(context.Background())
	return engine
}

type stubForker struct {
	called bool
	answer string
}

func (f *stubForker) Fork(_ context.Context, skill *skills.Skill, arguments string) (string, error) {
	f.called = true
	return f.answer, nil
}

func TestSkillTool(t *testing.T) {
	t.Run("inline skill resolves content", func(t *testing.T) {
		tool := NewSkillTool(skillToolEngine(t), nil)
		result, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"lookup","arguments":"the answer"}`))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError || result.Content != "Look up the answer carefully." {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("fork skill delegates to the forker", func(t *testing.T) {
		forker := &stubForker{answer: "child says done"}
		tool := NewSkillTool(skillToolEngine(t), forker)
		result, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"forked","arguments":"input"}`))
		if err != nil {
			t.Fatal(err)
		}
		if !forker.called {
			t.Error("forker not invoked")
		}
		if result.Content != "child says done" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("model-disabled skill rejected", func(t *testing.T) {
		tool := NewSkillTool(skillToolEngine(t), nil)
		result, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"hidden"}`))
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError || !strings.Contains(result.Content, "cannot be invoked") {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("ineligible skill reports reason", func(t *testing.T) {
		tool := NewSkillTool(skillToolEngine(t), nil)
		result, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"gated"}`))
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError || !strings.Contains(result.Content, "no-such-binary") {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("unknown skill", func(t *testing.T) {
		tool := NewSkillTool(skillToolEngine(t), nil)
		result, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"nope"}`))
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError {
			t.Error("want error result")
		}
	})
}
