package skills

import (
	"context"
	"log/slog"

	"github.com/tessera-ai/tessera/internal/events"
)

// hookSourceTag namespaces hook registrations per skill for bulk
// unsubscription on reload.
func hookSourceTag(skillName string) string {
	return "skill-hook:" + skillName
}

// BindHooks subscribes each snapshot skill's declared lifecycle hooks to
// the bus: the hook's shell command runs observationally whenever the
// named event fires, with the same 10-second cap as inline commands.
// Previous bindings are replaced; call again after every refresh.
func BindHooks(bus *events.Bus, snap *Snapshot, run CommandRunner, logger *slog.Logger) {
	if bus == nil || snap == nil || run == nil {
		return
	}
	if logger == nil {
		logger = slog.Default().With("component", "skills")
	}

	for _, skill := range snap.Skills() {
		bus.RemoveSource(hookSourceTag(skill.Name))
		if skill.Metadata == nil || len(skill.Metadata.Hooks) == 0 {
			continue
		}
		skillName := skill.Name
		for event, command := range skill.Metadata.Hooks {
			cmd := command
			eventName := events.Name(event)
			bus.On(eventName, func(ctx context.Context, _ *events.Payload) (*events.Response, error) {
				if _, err := run(ctx, cmd, commandBudget); err != nil {
					logger.Warn("skill hook failed",
						"skill", skillName,
						"event", string(eventName),
						"error", err)
				}
				return nil, nil
			}, 0, hookSourceTag(skillName))
		}
	}
}
