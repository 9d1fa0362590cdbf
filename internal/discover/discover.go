// Package discover walks list-search results and the lists they link to,
// collecting the work URLs the lists contain.
package discover

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/metrics"
	"github.com/JakeFAU/review-harvester/internal/urlstore"
)

const stage = "discover"

// Selectors locate links on search and list pages.
type Selectors struct {
	ListLink string
	WorkLink string
	NextPage string
}

// DefaultSelectors match the list-search and list markup.
var DefaultSelectors = Selectors{
	ListLink: "a.listTitle",
	WorkLink: "a.bookTitle",
	NextPage: "a.next_page",
}

// Config controls the crawl.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Delay is the politeness pause between requests.
	Delay time.Duration
	// MaxSearchPages and MaxListPages cap pagination. Zero means unlimited.
	MaxSearchPages int
	MaxListPages   int
	Selectors      Selectors
}

// Result holds what a crawl found.
type Result struct {
	Lists       []string
	Works       []string
	SearchPages int
	ListPages   int
}

// Crawler discovers work URLs.
type Crawler struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Crawler.
func New(cfg Config, logger *zap.Logger) *Crawler {
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg, logger: logger}
}

// Run follows search pagination from searchURL, then every list found, and
// returns the sorted unique work URLs.
func (c *Crawler) Run(ctx context.Context, searchURL string) (Result, error) {
	lists, searchPages, err := c.paginate(ctx, searchURL, c.cfg.Selectors.ListLink, c.cfg.MaxSearchPages)
	if err != nil {
		return Result{}, fmt.Errorf("crawl search results: %w", err)
	}
	lists = unique(lists)
	res := Result{Lists: lists, SearchPages: searchPages}
	c.logger.Info("lists discovered", zap.Int("lists", len(lists)), zap.Int("search_pages", searchPages))

	seen := make(map[string]struct{})
	for i, list := range lists {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		works, pages, err := c.paginate(ctx, list, c.cfg.Selectors.WorkLink, c.cfg.MaxListPages)
		res.ListPages += pages
		if err != nil {
			metrics.ObserveOutcome(stage, "list_failed")
			c.logger.Warn("list crawl failed", zap.String("list", list), zap.Error(err))
			continue
		}
		metrics.ObserveOutcome(stage, "list_crawled")
		added := 0
		for _, w := range works {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			added++
		}
		c.logger.Info("list crawled",
			zap.Int("index", i+1),
			zap.Int("of", len(lists)),
			zap.String("list", list),
			zap.Int("pages", pages),
			zap.Int("new_works", added),
		)
	}

	res.Works = make([]string, 0, len(seen))
	for w := range seen {
		res.Works = append(res.Works, w)
	}
	sort.Strings(res.Works)
	return res, nil
}

// RunFile crawls from searchURL and writes the work URLs to outPath.
func (c *Crawler) RunFile(ctx context.Context, searchURL, outPath string) (Result, error) {
	res, err := c.Run(ctx, searchURL)
	if err != nil {
		return res, err
	}
	if err := urlstore.WriteSorted(outPath, res.Works); err != nil {
		return res, err
	}
	c.logger.Info("work urls written", zap.String("output", outPath), zap.Int("works", len(res.Works)))
	return res, nil
}

// paginate visits start and every page reachable through the next-page
// link, collecting the absolute hrefs matched by itemSelector.
func (c *Crawler) paginate(ctx context.Context, start, itemSelector string, maxPages int) ([]string, int, error) {
	col := c.newCollector(ctx)

	var (
		items []string
		pages int
	)
	col.OnResponse(func(*colly.Response) { pages++ })
	col.OnHTML(itemSelector, func(e *colly.HTMLElement) {
		if href := e.Request.AbsoluteURL(e.Attr("href")); href != "" {
			items = append(items, href)
		}
	})
	col.OnHTML(c.cfg.Selectors.NextPage, func(e *colly.HTMLElement) {
		if maxPages > 0 && pages >= maxPages {
			return
		}
		next := e.Request.AbsoluteURL(e.Attr("href"))
		if next == "" {
			return
		}
		// Pagination loops surface here as already-visited errors.
		if err := e.Request.Visit(next); err != nil {
			c.logger.Debug("next page not followed", zap.String("url", next), zap.Error(err))
		}
	})

	if err := col.Visit(start); err != nil {
		return items, pages, err
	}
	if err := ctx.Err(); err != nil {
		return items, pages, err
	}
	return items, pages, nil
}

func (c *Crawler) newCollector(ctx context.Context) *colly.Collector {
	col := colly.NewCollector(colly.Async(false))
	if c.cfg.UserAgent != "" {
		col.UserAgent = c.cfg.UserAgent
	}
	col.SetRequestTimeout(c.cfg.Timeout)
	if c.cfg.Delay > 0 {
		if err := col.Limit(&colly.LimitRule{DomainGlob: "*", Delay: c.cfg.Delay}); err != nil {
			c.logger.Warn("failed to set collector limits", zap.Error(err))
		}
	}
	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	col.OnError(c.handleError)
	return col
}

func (c *Crawler) handleError(r *colly.Response, err error) {
	msg := "request failed"
	switch r.StatusCode {
	case 429:
		msg = "rate limited"
	case 403:
		msg = "forbidden"
	}
	url := ""
	if r.Request != nil && r.Request.URL != nil {
		url = r.Request.URL.String()
	}
	c.logger.Warn(msg, zap.String("url", url), zap.Int("status_code", r.StatusCode), zap.Error(err))
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
