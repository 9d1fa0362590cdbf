package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/clock/system"
	"github.com/JakeFAU/review-harvester/internal/report"
	"github.com/JakeFAU/review-harvester/internal/urlstore"
	"github.com/JakeFAU/review-harvester/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var input, keyword string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check each work's reviews for the keyword",
		Long: `Searches the review section of every unprocessed work for the keyword
and appends each URL to the verified, no-match or failed file as soon as
its verdict is known. Each run processes at most sub_batches x
sub_batch_size works; rerun to continue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := env.Config
			if input == "" {
				input = cfg.Files.Unique
			}
			if keyword != "" {
				cfg.Verify.Keyword = keyword
			}

			urls, err := urlstore.ReadSet(input)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			launcher, err := browser.NewLauncher(browserConfig(cfg), env.Logger)
			if err != nil {
				return err
			}
			checker := verify.NewVerifier(verifierConfig(cfg), launcher, system.New(), env.Logger)
			stores := verify.Stores{Verified: cfg.Files.Verified, NoMatch: cfg.Files.NoMatch, Failed: cfg.Files.Failed}
			job, err := verify.NewJob(verifyJobConfig(cfg, env.Logger), stores, checker, env.Logger)
			if err != nil {
				return err
			}

			summary, runErr := job.Run(cmd.Context(), urls)
			report.Counts(env.Out, "Verify ("+cfg.Verify.Keyword+")", []report.Count{
				{Label: "Input", Value: summary.Input},
				{Label: "Backlog", Value: summary.Backlog},
				{Label: "Planned", Value: summary.Planned},
				{Label: "Matched", Value: summary.Matched},
				{Label: "No match", Value: summary.NoMatch},
				{Label: "Failed", Value: summary.Failed},
				{Label: "Skipped", Value: summary.Skipped},
				{Label: "Remaining", Value: summary.Remaining},
			})
			if runErr != nil {
				return fmt.Errorf("verify: %w", runErr)
			}
			if summary.Remaining > 0 {
				env.Logger.Info("works remain; run verify again to continue")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input URL file (default files.unique)")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "keyword to search for (default verify.keyword)")
	return cmd
}
