package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-harvester/internal/names"
	"github.com/JakeFAU/review-harvester/internal/report"
)

func newFixNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixnames [csv...]",
		Short: "Repair book names derived from unparseable URLs",
		Long: `Rewrites book_name values that still look like URLs or ID fallbacks,
writing <name>_corrected.csv next to each file that changed. Defaults to
the configured reviews and summary CSVs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				paths = []string{env.Config.Files.Reviews, env.Config.Files.Summary}
			}
			counts, err := names.NewFixer(env.Logger).FixFiles(paths)
			report.Files(env.Out, "Corrected rows", paths, counts)
			if err != nil {
				return fmt.Errorf("fixnames: %w", err)
			}
			return nil
		},
	}
}
