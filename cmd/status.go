package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-harvester/internal/ledger"
	"github.com/JakeFAU/review-harvester/internal/report"
	"github.com/JakeFAU/review-harvester/internal/urlstore"
)

func newStatusCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show verification progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if input == "" {
				input = env.Config.Files.Unique
			}
			urls, err := urlstore.ReadSetIfExists(input)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			l, err := ledger.New(env.Config.OutcomeStores()...)
			if err != nil {
				return err
			}
			summary, err := l.Summarize(urls)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			counts := []report.Count{{Label: input, Value: summary.Input}}
			for _, store := range summary.Stores {
				counts = append(counts, report.Count{Label: store.Path, Value: store.Count})
			}
			counts = append(counts,
				report.Count{Label: "Processed", Value: summary.Processed},
				report.Count{Label: "Remaining", Value: summary.Remaining},
			)
			report.Counts(env.Out, "Verification progress", counts)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input URL file (default files.unique)")
	return cmd
}
