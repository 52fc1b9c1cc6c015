package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tessera-ai/tessera/internal/skills"
)

// Forker runs a skill in an isolated child runner and returns the child's
// final assistant text. The agent runner implements this.
type Forker interface {
	Fork(ctx context.Context, skill *skills.Skill, arguments string) (string, error)
}

// SkillTool is the on-demand skill content loader. Inline skills resolve
// to their expanded content; fork skills run in a child runner and the
// child's final answer becomes the tool result.
type SkillTool struct {
	engine *skills.Engine
	forker Forker
}

// NewSkillTool creates the skill tool.
func NewSkillTool(engine *skills.Engine, forker Forker) *SkillTool {
	return &SkillTool{engine: engine, forker: forker}
}

type skillArgs struct {
	Name      string `json:"name" jsonschema:"description=Skill name to load"`
	Arguments string `json:"arguments,omitempty" jsonschema:"description=Arguments passed to the skill"`
}

func (t *SkillTool) Name() string { return "skill" }

func (t *SkillTool) Description() string {
	return "Load a skill's full instructions by name, optionally passing arguments."
}

func (t *SkillTool) Schema() json.RawMessage {
	return schemaFor(&skillArgs{})
}

func (t *SkillTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var args skillArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return Errorf("invalid parameters: %v", err), nil
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return Errorf("name is required"), nil
	}

	skill, ok := t.engine.GetEligible(name)
	if !ok {
		if reasons := t.engine.IneligibleReasons(); reasons[name] != "" {
			return Errorf("skill %s is not available: %s", name, reasons[name]), nil
		}
		return Errorf("skill not found: %s", name), nil
	}
	if skill.DisableModelInvocation {
		return Errorf("skill %s cannot be invoked by the model", name), nil
	}

	if skill.Context == skills.ContextFork {
		if t.forker == nil {
			return Errorf("fork execution unavailable"), nil
		}
		answer, err := t.forker.Fork(ctx, skill, args.Arguments)
		if err != nil {
			return Errorf("fork %s: %v", name, err), nil
		}
		return &Result{Content: answer}, nil
	}

	return &Result{Content: t.engine.ResolveContent(ctx, skill, args.Arguments)}, nil
}
