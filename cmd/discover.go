package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-harvester/internal/discover"
	"github.com/JakeFAU/review-harvester/internal/report"
)

func newDiscoverCmd() *cobra.Command {
	var startURL, output string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Collect book URLs from list-search results",
		Long: `Follows every list on the list-search result pages, paginating both the
search results and each list, and writes the sorted unique book URLs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if startURL == "" {
				startURL = env.Config.Discover.StartURL
			}
			if output == "" {
				output = env.Config.Files.Discovered
			}

			crawler := discover.New(discoverConfig(env.Config), env.Logger)
			res, err := crawler.RunFile(cmd.Context(), startURL, output)
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			report.Counts(env.Out, "Discover", []report.Count{
				{Label: "Search pages", Value: res.SearchPages},
				{Label: "Lists", Value: len(res.Lists)},
				{Label: "List pages", Value: res.ListPages},
				{Label: "Book URLs", Value: len(res.Works)},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&startURL, "start-url", "", "list-search URL to start from (default discover.start_url)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output URL file (default files.discovered)")
	return cmd
}
