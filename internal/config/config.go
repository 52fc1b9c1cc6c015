// Package config loads and validates engine configuration from YAML,
// .env files, and the environment. Configuration errors are fatal at
// startup and never surface during chat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tessera-ai/tessera/internal/skills"
)

// Config is the recognised engine configuration.
type Config struct {
	// Model is the default model id.
	Model string `yaml:"model"`

	// BaseURL and APIKey are the adapter endpoint credentials.
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// MaxTurns caps the inner loop. Default 50.
	MaxTurns int `yaml:"max_turns"`

	// Temperature and MaxTokens pass verbatim to the adapter.
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`

	// SkillDirs is the ordered list of extra skill root directories.
	SkillDirs []string `yaml:"skill_dirs"`

	// WatchSkills enables hot reload of skill roots.
	WatchSkills bool `yaml:"watch_skills"`

	// SkillDescriptionBudget caps the metadata-only system prompt.
	// Default 16000.
	SkillDescriptionBudget int `yaml:"skill_description_budget"`

	// EnableTools controls tool-call dispatch. Default true.
	EnableTools *bool `yaml:"enable_tools"`

	// ThinkingLevel is off, short, long, or extended.
	ThinkingLevel string `yaml:"thinking_level"`

	// SessionID is an opaque resume marker.
	SessionID string `yaml:"session_id"`

	// LoadContextFiles auto-discovers AGENTS.md context files in the
	// working directory and its ancestors.
	LoadContextFiles bool `yaml:"load_context_files"`

	// Skills provides per-skill overrides.
	Skills map[string]*skills.Config `yaml:"skills"`
}

var validThinkingLevels = map[string]bool{
	"": true, "off": true, "short": true, "long": true, "extended": true,
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		MaxTurns:               50,
		SkillDescriptionBudget: skills.DefaultDescriptionBudget,
		ThinkingLevel:          "off",
	}
}

// Load reads configuration: defaults, then the YAML file (when path is
// non-empty), then .env and environment overrides. The result is
// validated; errors here are fatal.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env never overrides variables already exported.
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TESSERA_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("TESSERA_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("TESSERA_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("TESSERA_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTurns = n
		}
	}
	if v := os.Getenv("TESSERA_THINKING_LEVEL"); v != "" {
		cfg.ThinkingLevel = v
	}
	if v := os.Getenv("TESSERA_SKILL_DIRS"); v != "" {
		cfg.SkillDirs = strings.Split(v, string(os.PathListSeparator))
	}
}

// Validate checks the configuration for startup-fatal errors.
func (c *Config) Validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be within [0, 2], got %v", *c.Temperature)
	}
	if !validThinkingLevels[c.ThinkingLevel] {
		return fmt.Errorf("invalid thinking_level %q: want off, short, long, or extended", c.ThinkingLevel)
	}
	if c.SkillDescriptionBudget < 0 {
		return fmt.Errorf("skill_description_budget must not be negative, got %d", c.SkillDescriptionBudget)
	}
	for _, dir := range c.SkillDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("skill_dirs contains an empty entry")
		}
	}
	return nil
}

// ToolsEnabled reports whether tool dispatch is on. Default true.
func (c *Config) ToolsEnabled() bool {
	if c.EnableTools == nil {
		return true
	}
	return *c.EnableTools
}

// ContextFiles discovers AGENTS.md files from dir up through its
// ancestors, returned outermost first so closer files override.
func ContextFiles(dir string) []string {
	var found []string
	current, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	for {
		candidate := filepath.Join(current, "AGENTS.md")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	// Reverse: outermost ancestor first.
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}

// ContextPrompt reads the discovered context files into one prompt
// fragment.
func ContextPrompt(dir string) string {
	var b strings.Builder
	for _, path := range ContextFiles(dir) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("# Context from " + path + "\n\n")
		b.Write(data)
	}
	return b.String()
}
