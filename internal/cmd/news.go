package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
	"github.com/felixgeelhaar/tasksync/internal/news"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Read the latest headlines",
	Long: `Read the latest headlines from the news aggregator.

Needs news.api_key (or TASKSYNC_NEWS_API_KEY); no sign-in is required.

Examples:
  tasksync news headlines
  tasksync news headlines --country gb --category technology
  tasksync news search "open source" --sort-by popularity
`,
}

var newsHeadlinesCmd = &cobra.Command{
	Use:   "headlines",
	Short: "Show top headlines",
	Args:  cobra.NoArgs,
	RunE:  runNewsHeadlines,
}

var newsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search all articles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNewsSearch,
}

var (
	newsCountry  string
	newsCategory string
	newsSortBy   string
	newsLimit    int
)

func init() {
	newsHeadlinesCmd.Flags().StringVar(&newsCountry, "country", "", "two-letter country code (default from news.country)")
	newsHeadlinesCmd.Flags().StringVar(&newsCategory, "category", "", "business, entertainment, health, science, sports or technology")
	newsSearchCmd.Flags().StringVar(&newsSortBy, "sort-by", "publishedAt", "publishedAt, relevancy or popularity")
	for _, c := range []*cobra.Command{newsHeadlinesCmd, newsSearchCmd} {
		c.Flags().IntVarP(&newsLimit, "limit", "n", 10, "show at most this many articles (0 for all)")
	}

	newsCmd.AddCommand(newsHeadlinesCmd)
	newsCmd.AddCommand(newsSearchCmd)

	rootCmd.AddCommand(newsCmd)
}

func withNews(cmd *cobra.Command, fn func(cc *CommandContext, c *news.Client) error) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	reg, m := metrics.NewRegistry()
	defer cc.writeMetrics(reg)
	return fn(cc, app.NewsClient(cc.Config, cc.Logger, m))
}

func runNewsHeadlines(cmd *cobra.Command, args []string) error {
	return withNews(cmd, func(cc *CommandContext, c *news.Client) error {
		resp, err := c.TopHeadlines(cmd.Context(), newsCountry, newsCategory)
		if err != nil {
			return err
		}
		return cc.Output(ux.Headlines(limitArticles(*resp, newsLimit)))
	})
}

func runNewsSearch(cmd *cobra.Command, args []string) error {
	return withNews(cmd, func(cc *CommandContext, c *news.Client) error {
		resp, err := c.Search(cmd.Context(), strings.Join(args, " "), newsSortBy)
		if err != nil {
			return err
		}
		return cc.Output(ux.Headlines(limitArticles(*resp, newsLimit)))
	})
}

func limitArticles(resp news.Response, n int) news.Response {
	if n > 0 && len(resp.Articles) > n {
		resp.Articles = resp.Articles[:n]
	}
	return resp
}
