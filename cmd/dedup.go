package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/canonical"
	"github.com/JakeFAU/review-harvester/internal/clock/system"
	"github.com/JakeFAU/review-harvester/internal/dedup"
	"github.com/JakeFAU/review-harvester/internal/report"
)

func newDedupCmd() *cobra.Command {
	var input, output string
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Collapse book URLs to one canonical URL per work",
		Long: `Resolves every input URL to its canonical work URL with plain HTTP
sweeps, retrying the unresolved residue until it stops shrinking, then
resolves what is left with a browser one URL at a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := env.Config
			if input == "" {
				input = cfg.Files.Input
			}
			if output == "" {
				output = cfg.Files.Unique
			}

			var open dedup.SlowOpener
			if !noBrowser {
				launcher, err := browser.NewLauncher(browserConfig(cfg), env.Logger)
				if err != nil {
					return err
				}
				open = slowOpener(launcher, cfg.Dedup.SlowWait, env.Logger)
			}
			fast := canonical.NewFast(fastConfig(cfg), env.Logger)
			d, err := dedup.New(dedupConfig(cfg), fast, open, system.New(), env.Logger)
			if err != nil {
				return err
			}

			res, err := d.RunFile(cmd.Context(), input, output)
			if err != nil {
				return fmt.Errorf("dedup: %w", err)
			}
			if res.SlowErr != nil {
				env.Logger.Warn("browser pass skipped", zap.Error(res.SlowErr))
			}
			report.Counts(env.Out, "Dedup", []report.Count{
				{Label: "Input URLs", Value: res.Input},
				{Label: "Fast sweeps", Value: res.Attempts},
				{Label: "Browser attempts", Value: res.SlowAttempted},
				{Label: "Browser resolved", Value: res.SlowResolved},
				{Label: "Unique works", Value: res.Works.Len()},
				{Label: "Duplicate URLs", Value: res.Duplicates},
				{Label: "Unresolved", Value: len(res.Unresolved)},
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input URL file (default files.input)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output URL file (default files.unique)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "skip the browser pass for the residue")
	return cmd
}
