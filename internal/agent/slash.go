package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/tessera-ai/tessera/internal/events"
	"github.com/tessera-ai/tessera/internal/skills"
	"github.com/tessera-ai/tessera/pkg/models"
)

var slashPattern = regexp.MustCompile(`^/([a-z0-9][a-z0-9-]*)(?:\s+(.*))?$`)

// slashInvocation is a parsed "/name args" message.
type slashInvocation struct {
	Name string
	Args string
}

// parseSlash detects a slash command at the start of a message. Returns
// nil when the message is not slash-shaped.
func parseSlash(message string) *slashInvocation {
	match := slashPattern.FindStringSubmatch(strings.TrimSpace(message))
	if match == nil {
		return nil
	}
	inv := &slashInvocation{Name: match[1]}
	if len(match) > 2 {
		inv.Args = strings.TrimSpace(match[2])
	}
	return inv
}

// invokeSlash handles a slash skill invocation. When the name does not
// identify a known skill the message falls through to normal chat
// (handled=false). Skill model and allowed-tools overrides apply for the
// duration of the invocation and are restored on every exit path.
func (r *Runner) invokeSlash(ctx context.Context, inv *slashInvocation, firstEntry bool) (models.Message, bool, error) {
	if r.opts.Engine == nil {
		return models.Message{}, false, nil
	}
	r.captureSnapshot()

	skill, ok := r.snapshot.Get(inv.Name)
	if !ok {
		if _, known := r.opts.Engine.Get(inv.Name); known {
			reason := r.opts.Engine.IneligibleReasons()[inv.Name]
			return models.Message{
				Role:    models.RoleAssistant,
				Content: "skill " + inv.Name + " is not available: " + reason,
			}, true, nil
		}
		return models.Message{}, false, nil
	}
	if !skill.IsUserInvocable() {
		return models.Message{
			Role:    models.RoleAssistant,
			Content: "skill " + inv.Name + " is not user-invocable",
		}, true, nil
	}

	// Scoped overrides with guaranteed release, whether the invocation
	// completed, failed, or was aborted.
	prevModel := r.model
	prevAllowed := r.allowedTools
	prevEnv := r.ActiveSkillEnv()
	defer func() {
		r.setModel(ctx, prevModel)
		r.allowedTools = prevAllowed
		r.setSkillEnv(prevEnv)
	}()

	r.setModel(ctx, skill.Model)
	if skill.AllowedTools != nil {
		r.allowedTools = skill.AllowedTools
	}
	r.setSkillEnv(r.opts.Engine.SkillEnv(skill))

	if err := r.history.Append(models.Message{Role: models.RoleUser, Content: "/" + inv.Name + " " + inv.Args}); err != nil {
		return models.Message{}, true, err
	}

	if firstEntry {
		r.emitLifecycle(ctx, events.AgentStart, "")
	}

	if skill.Context == skills.ContextFork {
		if err := r.forkSlash(ctx, skill, inv.Args); err != nil {
			r.emitLifecycle(ctx, events.AgentEnd, models.FinishError)
			return models.Message{}, true, err
		}
	} else {
		resolved := r.opts.Engine.ResolveContent(ctx, skill, inv.Args)
		if err := r.history.Append(models.Message{Role: models.RoleUser, Content: resolved}); err != nil {
			return models.Message{}, true, err
		}
	}

	finish, err := r.runTurns(ctx)
	if err != nil && finish != models.FinishError && finish != models.FinishAborted {
		return models.Message{}, true, err
	}
	r.drainFollowUps(ctx)
	r.emitLifecycle(ctx, events.AgentEnd, finish)

	last, _ := r.history.LastAssistant()
	return last, true, nil
}

// forkSlash synthesises the skill tool call in the parent history, runs
// the child, and records its answer as the tool result.
func (r *Runner) forkSlash(ctx context.Context, skill *skills.Skill, arguments string) error {
	callArgs, err := json.Marshal(map[string]string{
		"name":      skill.Name,
		"arguments": arguments,
	})
	if err != nil {
		return err
	}
	call := models.ToolCall{
		ID:        uuid.NewString(),
		Name:      "skill",
		Arguments: string(callArgs),
	}
	if err := r.history.Append(models.Message{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{call},
	}); err != nil {
		return err
	}

	answer, err := r.Fork(ctx, skill, arguments)
	if err != nil {
		answer = "fork failed: " + err.Error()
	}
	return r.history.Append(models.Message{
		Role:       models.RoleTool,
		Content:    answer,
		ToolCallID: call.ID,
	})
}
