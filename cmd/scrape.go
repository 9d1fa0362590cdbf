package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/clock/system"
	"github.com/JakeFAU/review-harvester/internal/report"
	"github.com/JakeFAU/review-harvester/internal/reviews"
	"github.com/JakeFAU/review-harvester/internal/urlstore"
)

var errNoInput = errors.New("no input URLs")

func newScrapeCmd() *cobra.Command {
	var input, keyword string
	var out reviews.Output
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect keyword-matching reviews and book metadata",
		Long: `Scrapes every verified work: the reviews that mention the keyword and,
for books with at least one, the book's metadata. Writes a reviews CSV and
a per-book summary CSV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := env.Config
			if input == "" {
				input = cfg.Files.Verified
			}
			if keyword != "" {
				cfg.Verify.Keyword = keyword
			}
			if out.Reviews == "" {
				out.Reviews = cfg.Files.Reviews
			}
			if out.Summary == "" {
				out.Summary = cfg.Files.Summary
			}

			urls, err := urlstore.ReadSet(input)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			if len(urls) == 0 {
				return fmt.Errorf("scrape %s: %w", input, errNoInput)
			}
			launcher, err := browser.NewLauncher(browserConfig(cfg), env.Logger)
			if err != nil {
				return err
			}
			scraper, err := reviews.NewScraper(scraperConfig(cfg), launcher, system.New(), env.Logger)
			if err != nil {
				return err
			}
			job, err := reviews.NewJob(cfg.Verify.Keyword, scrapePoolConfig(cfg), scraper, env.Logger)
			if err != nil {
				return err
			}

			res, runErr := job.RunFiles(cmd.Context(), urls, out)
			report.Counts(env.Out, "Scrape ("+cfg.Verify.Keyword+")", []report.Count{
				{Label: "Books", Value: res.Totals.Books},
				{Label: "Books with reviews", Value: res.Totals.BooksWithReviews},
				{Label: "Reviews", Value: res.Totals.Reviews},
				{Label: "Failed", Value: res.Totals.Failed},
			})
			if runErr != nil {
				return fmt.Errorf("scrape: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input URL file (default files.verified)")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "keyword to search for (default verify.keyword)")
	cmd.Flags().StringVar(&out.Reviews, "reviews", "", "reviews CSV (default files.reviews)")
	cmd.Flags().StringVar(&out.Summary, "summary", "", "summary CSV (default files.summary)")
	return cmd
}
