package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tessera-ai/tessera/internal/config"
)

func newSkillsCmd() *cobra.Command {
	skillsCmd := &cobra.Command{
		Use:   "skills",
		Short: "Inspect discovered skills",
	}

	skillsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List discovered skills and their eligibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			engine, _, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			snapshot := engine.Snapshot()
			reasons := engine.IneligibleReasons()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tSTATUS\tDESCRIPTION")
			for _, skill := range engine.ListAll() {
				status := "eligible"
				if _, ok := snapshot.Get(skill.Name); !ok {
					status = reasons[skill.Name]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", skill.Name, skill.Source, status, skill.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nsnapshot version %d, hash %s\n", snapshot.Version(), snapshot.Hash()[:12])
			return nil
		},
	})

	return skillsCmd
}
