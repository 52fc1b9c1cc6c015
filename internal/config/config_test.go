package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.MaxTurns != 50 {
			t.Errorf("max_turns = %d", cfg.MaxTurns)
		}
		if cfg.SkillDescriptionBudget != 16000 {
			t.Errorf("skill_description_budget = %d", cfg.SkillDescriptionBudget)
		}
		if !cfg.ToolsEnabled() {
			t.Error("tools disabled by default")
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := `
model: big-model
max_turns: 7
thinking_level: long
skill_dirs: [/opt/skills]
enable_tools: false
skills:
  weather:
    apiKey: k123
`
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Model != "big-model" || cfg.MaxTurns != 7 || cfg.ThinkingLevel != "long" {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.ToolsEnabled() {
			t.Error("enable_tools: false ignored")
		}
		if cfg.Skills["weather"] == nil || cfg.Skills["weather"].APIKey != "k123" {
			t.Errorf("skills = %+v", cfg.Skills)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TESSERA_MODEL", "env-model")
		t.Setenv("TESSERA_MAX_TURNS", "9")

		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Model != "env-model" || cfg.MaxTurns != 9 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		if _, err := Load("/nonexistent/config.yaml"); err == nil {
			t.Fatal("want error")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return Defaults() }

	t.Run("bad thinking level", func(t *testing.T) {
		cfg := valid()
		cfg.ThinkingLevel = "ultra"
		if err := cfg.Validate(); err == nil {
			t.Fatal("want error")
		}
	})

	t.Run("nonpositive max turns", func(t *testing.T) {
		cfg := valid()
		cfg.MaxTurns = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("want error")
		}
	})

	t.Run("temperature bounds", func(t *testing.T) {
		cfg := valid()
		temp := 3.5
		cfg.Temperature = &temp
		if err := cfg.Validate(); err == nil {
			t.Fatal("want error")
		}
	})

	t.Run("empty skill dir entry", func(t *testing.T) {
		cfg := valid()
		cfg.SkillDirs = []string{"ok", "  "}
		if err := cfg.Validate(); err == nil {
			t.Fatal("want error")
		}
	})
}

func TestContextFiles(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("outer context"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "AGENTS.md"), []byte("inner context"), 0o644); err != nil {
		t.Fatal(err)
	}

	files := ContextFiles(nested)
	if len(files) < 2 {
		t.Fatalf("files = %v", files)
	}
	// Outermost first so closer files override.
	if filepath.Dir(files[len(files)-1]) != nested {
		t.Errorf("innermost not last: %v", files)
	}

	prompt := ContextPrompt(nested)
	outerIdx := indexOf(prompt, "outer context")
	innerIdx := indexOf(prompt, "inner context")
	if outerIdx == -1 || innerIdx == -1 || outerIdx > innerIdx {
		t.Errorf("prompt order wrong:\n%s", prompt)
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
