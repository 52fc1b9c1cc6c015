package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessera-ai/tessera/internal/config"
	"github.com/tessera-ai/tessera/internal/provider"
	"github.com/tessera-ai/tessera/pkg/models"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, shell, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			onEvent := func(ev models.StreamEvent) {
				switch ev.Type {
				case models.StreamTextDelta:
					fmt.Print(ev.Content)
				case models.StreamToolCallStart:
					fmt.Printf("\n[tool: %s]\n", ev.ToolName)
				case models.StreamError:
					fmt.Printf("\n[error: %s]\n", ev.Error)
				}
			}

			// The loopback adapter keeps the engine drivable without a
			// provider; wire a real adapter through the Adapter
			// interface for live sessions.
			runner, err := buildRunner(cfg, engine, shell, provider.Loopback{}, onEvent)
			if err != nil {
				return err
			}

			fmt.Println("tessera chat — /quit to exit, /clear to reset")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "/quit" || line == "/exit" {
					return nil
				}

				if _, err := runner.Chat(ctx, line); err != nil {
					fmt.Fprintln(os.Stderr, "chat error:", err)
					continue
				}
				fmt.Println()
			}
		},
	}
}
