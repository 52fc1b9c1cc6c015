// Package skills loads Markdown skill definitions, decides which are usable
// in the current environment, and renders them into the system prompt.
package skills

// Skill is a named capability parsed from a SKILL.md file. A skill is
// immutable after load; identity is by Name and later sources win on
// collision.
type Skill struct {
	// Name is the unique skill identifier (lowercase, hyphens allowed).
	Name string `json:"name" yaml:"name"`

	// Description explains what the skill does and when to use it.
	Description string `json:"description" yaml:"description"`

	// Model overrides the session model for the duration of an invocation.
	Model string `json:"model,omitempty" yaml:"model"`

	// Context selects inline execution (default) or an isolated fork.
	Context ContextMode `json:"context,omitempty" yaml:"context"`

	// AllowedTools restricts which tools the model may call while this
	// skill is active. Empty means no restriction.
	AllowedTools []string `json:"allowed_tools,omitempty" yaml:"allowed-tools"`

	// ArgumentHint is shown to users next to the slash command.
	ArgumentHint string `json:"argument_hint,omitempty" yaml:"argument-hint"`

	// UserInvocable controls slash-command invocation. Nil means true.
	UserInvocable *bool `json:"user_invocable,omitempty" yaml:"user-invocable"`

	// DisableModelInvocation hides the skill from the model-facing skill
	// tool while keeping it user-invocable.
	DisableModelInvocation bool `json:"disable_model_invocation,omitempty" yaml:"disable-model-invocation"`

	// Metadata contains gating, env injection, and UI hints.
	Metadata *Metadata `json:"metadata,omitempty" yaml:"metadata"`

	// Actions are deterministic named scripts shipped with the skill.
	Actions map[string]ActionSpec `json:"actions,omitempty" yaml:"actions"`

	// Content is the markdown prompt body.
	Content string `json:"-" yaml:"-"`

	// Path is the directory the skill was loaded from.
	Path string `json:"path" yaml:"-"`

	// Source indicates which root the skill came from.
	Source Source `json:"source" yaml:"-"`

	sourcePriority int
}

// Source indicates which root a skill was loaded from.
type Source string

const (
	SourceBundled   Source = "bundled"
	SourceManaged   Source = "managed"
	SourceWorkspace Source = "workspace"
	SourcePlugin    Source = "plugin"
	SourceExtra     Source = "extra"
)

// ContextMode selects where a skill invocation runs.
type ContextMode string

const (
	// ContextInline resolves skill content into the current conversation.
	ContextInline ContextMode = "inline"

	// ContextFork runs the skill in a child runner with isolated history.
	ContextFork ContextMode = "fork"
)

// Metadata carries gating rules and execution hints.
type Metadata struct {
	// Emoji is displayed in UIs and prompt headings next to the name.
	Emoji string `json:"emoji,omitempty" yaml:"emoji"`

	// Always skips all eligibility checks.
	Always bool `json:"always,omitempty" yaml:"always"`

	// PrimaryEnv names the env var injected as the skill's API key into
	// subprocess environments.
	PrimaryEnv string `json:"primary_env,omitempty" yaml:"primary_env"`

	// Requires defines the eligibility requirements.
	Requires *Requires `json:"requires,omitempty" yaml:"requires"`

	// Install provides installation hints for missing requirements.
	Install []InstallSpec `json:"install,omitempty" yaml:"install"`

	// Hooks maps lifecycle point names to shell commands.
	Hooks map[string]string `json:"hooks,omitempty" yaml:"hooks"`
}

// Requires defines eligibility requirements for a skill.
type Requires struct {
	// Bins requires all listed binaries to exist on PATH.
	Bins []string `json:"bins,omitempty" yaml:"bins"`

	// AnyBins requires at least one of the listed binaries to exist.
	AnyBins []string `json:"any_bins,omitempty" yaml:"any_bins"`

	// Env requires all listed environment variables to be non-empty.
	Env []string `json:"env,omitempty" yaml:"env"`

	// OS restricts the skill to specific platforms (darwin, linux, windows).
	OS []string `json:"os,omitempty" yaml:"os"`
}

// ActionSpec describes a deterministic script bundled with a skill.
type ActionSpec struct {
	// Script is the path relative to the skill directory.
	Script string `json:"script" yaml:"script"`

	// Output declares the script output shape: text or json.
	Output string `json:"output,omitempty" yaml:"output"`

	// Params documents the accepted parameters.
	Params []string `json:"params,omitempty" yaml:"params"`
}

// InstallSpec describes how to install a missing skill dependency.
type InstallSpec struct {
	Kind    string   `json:"kind" yaml:"kind"`
	Formula string   `json:"formula,omitempty" yaml:"formula"`
	Package string   `json:"package,omitempty" yaml:"package"`
	Bins    []string `json:"bins,omitempty" yaml:"bins"`
	Label   string   `json:"label,omitempty" yaml:"label"`
}

// Config provides per-skill configuration overrides.
type Config struct {
	// Enabled controls whether the skill is active. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled"`

	// APIKey is a convenience value injected through PrimaryEnv.
	APIKey string `json:"api_key,omitempty" yaml:"apiKey"`

	// Env provides environment variable overrides for skill subprocesses.
	Env map[string]string `json:"env,omitempty" yaml:"env"`
}

// IsUserInvocable reports whether the skill may be invoked as a slash
// command. Unset defaults to true.
func (s *Skill) IsUserInvocable() bool {
	if s.UserInvocable == nil {
		return true
	}
	return *s.UserInvocable
}

// IsEnabled checks the per-skill configuration overrides.
func (s *Skill) IsEnabled(overrides map[string]*Config) bool {
	cfg, ok := overrides[s.Name]
	if !ok || cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}

// InjectEnv returns the environment entries this skill contributes to a
// subprocess: the primary API key plus explicit overrides. The host process
// environment is never touched.
func (s *Skill) InjectEnv(overrides map[string]*Config) map[string]string {
	cfg, ok := overrides[s.Name]
	if !ok {
		return nil
	}
	env := make(map[string]string, len(cfg.Env)+1)
	if cfg.APIKey != "" && s.Metadata != nil && s.Metadata.PrimaryEnv != "" {
		env[s.Metadata.PrimaryEnv] = cfg.APIKey
	}
	for k, v := range cfg.Env {
		env[k] = v
	}
	if len(env) == 0 {
		return nil
	}
	return env
}
