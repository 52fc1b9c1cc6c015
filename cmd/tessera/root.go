package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessera-ai/tessera/internal/agent"
	"github.com/tessera-ai/tessera/internal/config"
	"github.com/tessera-ai/tessera/internal/contextwin"
	"github.com/tessera-ai/tessera/internal/events"
	"github.com/tessera-ai/tessera/internal/provider"
	"github.com/tessera-ai/tessera/internal/shellexec"
	"github.com/tessera-ai/tessera/internal/skills"
	"github.com/tessera-ai/tessera/internal/tools"
	"github.com/tessera-ai/tessera/pkg/models"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tessera",
		Short:         "Skill-driven LLM agent engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.AddCommand(newChatCmd())
	root.AddCommand(newSkillsCmd())
	return root
}

// buildEngine assembles the skill engine from the configured roots.
func buildEngine(ctx context.Context, cfg *config.Config) (*skills.Engine, *shellexec.Runner, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve workspace: %w", err)
	}

	homeDir, _ := os.UserHomeDir()
	managed := ""
	if homeDir != "" {
		managed = filepath.Join(homeDir, ".tessera", "skills")
	}

	roots := skills.DefaultRoots(
		"", // no bundled skills ship with the CLI
		managed,
		filepath.Join(workspace, "skills"),
		cfg.SkillDirs,
	)

	engine := skills.NewEngine(skills.EngineOptions{
		Roots: roots,
		Probe: skills.NewProbe(cfg.Skills, nil),
		Watch: cfg.WatchSkills,
	})

	runner := shellexec.NewRunner()
	engine.SetCommandRunner(makeCommandRunner(runner))

	engine.Refresh(ctx)
	if cfg.WatchSkills {
		if err := engine.StartWatching(ctx); err != nil {
			return nil, nil, fmt.Errorf("start skill watcher: %w", err)
		}
	}
	return engine, runner, nil
}

// makeCommandRunner adapts the subprocess runtime to the skills engine's
// inline-command contract.
func makeCommandRunner(runner *shellexec.Runner) skills.CommandRunner {
	return func(ctx context.Context, command string, timeout time.Duration) (string, error) {
		result := runner.Execute(ctx, shellexec.Request{Command: command, Timeout: timeout})
		if !result.Success {
			return "", fmt.Errorf("%s", result.Err)
		}
		return result.Output, nil
	}
}

// buildRunner wires a fully configured agent runner.
func buildRunner(cfg *config.Config, engine *skills.Engine, shell *shellexec.Runner, adapter provider.Adapter, onEvent func(models.StreamEvent)) (*agent.Runner, error) {
	registry := tools.NewRegistry()

	var runner *agent.Runner
	execTool := tools.NewExecTool(shell, func() map[string]string {
		if runner == nil {
			return nil
		}
		return runner.ActiveSkillEnv()
	})
	registry.Register(execTool)
	registry.Register(tools.NewScriptTool(execTool))
	registry.Register(&tools.ReadTool{})
	registry.Register(&tools.WriteTool{})

	systemPrompt := "You are tessera, a capable assistant with access to tools and skills."
	if cfg.LoadContextFiles {
		if extra := config.ContextPrompt("."); extra != "" {
			systemPrompt += "\n\n" + extra
		}
	}

	bus := events.NewBus()
	skills.BindHooks(bus, engine.Snapshot(), makeCommandRunner(shell), nil)
	tools.RegisterActionTools(registry, engine, shell)

	runner = agent.NewRunner(agent.Options{
		Engine:   engine,
		Adapter:  adapter,
		Bus:      bus,
		Window:   contextwin.NewManager(contextwin.Options{ContextWindow: 200000, ReserveTokens: 8000}),
		Registry: registry,
		OnEvent:  onEvent,
		Config: agent.Config{
			Model:              cfg.Model,
			SystemPrompt:       systemPrompt,
			MaxTurns:           cfg.MaxTurns,
			Temperature:        cfg.Temperature,
			MaxTokens:          cfg.MaxTokens,
			ThinkingLevel:      cfg.ThinkingLevel,
			DisableTools:       !cfg.ToolsEnabled(),
			MetadataOnlyPrompt: true,
			DescriptionBudget:  cfg.SkillDescriptionBudget,
		},
	})

	registry.Register(tools.NewSkillTool(engine, runner))
	return runner, nil
}
