package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/tessera-ai/tessera/internal/shellexec"
	"github.com/tessera-ai/tessera/internal/skills"
)

// actionTimeout bounds a skill action script run.
const actionTimeout = 60 * time.Second

// BuildActionTools turns a skill's declared actions into executable
// tools named <skill>.<action>. Each action runs its script with the
// parameters passed on stdin-style env, scoped to the skill directory.
func BuildActionTools(skill *skills.Skill, runner *shellexec.Runner, skillEnv map[string]string) []Tool {
	if skill == nil || len(skill.Actions) == 0 || runner == nil {
		return nil
	}

	out := make([]Tool, 0, len(skill.Actions))
	for name, spec := range skill.Actions {
		if strings.TrimSpace(spec.Script) == "" {
			continue
		}
		out = append(out, &actionTool{
			skill:    skill,
			action:   name,
			spec:     spec,
			runner:   runner,
			skillEnv: skillEnv,
		})
	}
	return out
}

type actionTool struct {
	skill    *skills.Skill
	action   string
	spec     skills.ActionSpec
	runner   *shellexec.Runner
	skillEnv map[string]string
}

func (t *actionTool) Name() string {
	return t.skill.Name + "." + t.action
}

func (t *actionTool) Description() string {
	desc := "Run the " + t.action + " action of the " + t.skill.Name + " skill."
	if len(t.spec.Params) > 0 {
		desc += " Params: " + strings.Join(t.spec.Params, ", ")
	}
	return desc
}

func (t *actionTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"params": {"type": "object", "description": "Action parameters, passed as JSON."}
		}
	}`)
}

func (t *actionTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	script := filepath.Join(t.skill.Path, t.spec.Script)

	env := map[string]string{
		"TESSERA_SKILL_NAME":   t.skill.Name,
		"TESSERA_SKILL_DIR":    t.skill.Path,
		"TESSERA_ACTION_NAME":  t.action,
		"TESSERA_ACTION_INPUT": string(params),
	}

	req := shellexec.Request{
		Command:  "/bin/sh " + script,
		Cwd:      t.skill.Path,
		SkillEnv: t.skillEnv,
		Env:      env,
		Timeout:  actionTimeout,
	}
	if sink := OutputSinkFromContext(ctx); sink != nil {
		req.OnOutput = func(chunk string) { sink(chunk) }
	}

	result := t.runner.Execute(ctx, req)
	if !result.Success {
		msg := result.Output
		if result.Err != "" {
			msg = strings.TrimSpace(msg + "\nerror: " + result.Err)
		}
		return &Result{Content: msg, IsError: true}, nil
	}

	if t.spec.Output == "json" {
		trimmed := strings.TrimSpace(result.Output)
		if !json.Valid([]byte(trimmed)) {
			return Errorf("action %s declared json output but produced invalid JSON", t.Name()), nil
		}
		return &Result{Content: trimmed}, nil
	}
	return &Result{Content: result.Output}, nil
}

// RegisterActionTools registers action tools for every skill in the
// snapshot, replacing prior registrations of the same names.
func RegisterActionTools(registry *Registry, engine *skills.Engine, runner *shellexec.Runner) {
	snap := engine.Snapshot()
	for _, skill := range snap.Skills() {
		for _, tool := range BuildActionTools(skill, runner, engine.SkillEnv(skill)) {
			registry.Register(tool)
		}
	}
}
