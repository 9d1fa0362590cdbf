package reviews

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/metrics"
	"github.com/JakeFAU/review-harvester/internal/pool"
	"github.com/JakeFAU/review-harvester/internal/work"
)

const stage = "scrape"

// BookScraper scrapes one work.
type BookScraper interface {
	Scrape(ctx context.Context, rawURL string) (BookResult, error)
}

// Output names the CSV files a job writes.
type Output struct {
	Reviews string
	Summary string
}

// Totals counts what a job produced.
type Totals struct {
	Books            int
	BooksWithReviews int
	Reviews          int
	Failed           int
}

// Report is the aggregated result of a job.
type Report struct {
	Reviews   []Review
	Summaries []Summary
	Totals    Totals
}

// Job scrapes a list of works on a worker pool.
type Job struct {
	keyword string
	pool    pool.Config
	scraper BookScraper
	logger  *zap.Logger
}

// NewJob builds a Job. keyword only names the summary count column.
func NewJob(keyword string, poolCfg pool.Config, scraper BookScraper, logger *zap.Logger) (*Job, error) {
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}
	if scraper == nil {
		return nil, errors.New("reviews: scraper is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg.Logger = logger
	poolCfg.Stage = stage
	return &Job{keyword: keyword, pool: poolCfg, scraper: scraper, logger: logger}, nil
}

// Run scrapes every URL. Reviews keep input order and per-page order;
// summaries are sorted by book name. A failed book is logged and counted.
func (j *Job) Run(ctx context.Context, urls []string) (Report, error) {
	byURL := make(map[string]BookResult, len(urls))
	var report Report
	for res := range pool.Run(ctx, j.pool, urls, j.task) {
		if res.Err != nil {
			if ctx.Err() != nil && work.ErrorKind(res.Err) == "Canceled" {
				continue
			}
			report.Totals.Failed++
			metrics.ObserveOutcome(stage, "failed")
			j.logger.Warn("scrape failed",
				zap.String("url", res.Item),
				zap.String("worker", res.Worker),
				zap.String("kind", work.ErrorKind(res.Err)),
				zap.Error(res.Err),
			)
			continue
		}
		outcome := "empty"
		if len(res.Value.Reviews) > 0 {
			outcome = "reviews"
		}
		metrics.ObserveOutcome(stage, outcome)
		byURL[res.Item] = res.Value
	}

	for _, u := range urls {
		book, ok := byURL[u]
		if !ok {
			continue
		}
		report.Totals.Books++
		report.Reviews = append(report.Reviews, book.Reviews...)
		if book.Summary != nil {
			report.Totals.BooksWithReviews++
			report.Summaries = append(report.Summaries, *book.Summary)
		}
	}
	report.Totals.Reviews = len(report.Reviews)
	sort.SliceStable(report.Summaries, func(a, b int) bool {
		return report.Summaries[a].BookName < report.Summaries[b].BookName
	})
	return report, ctx.Err()
}

func (j *Job) task(ctx context.Context, _ pool.Worker, rawURL string) (BookResult, error) {
	res, err := j.scraper.Scrape(ctx, rawURL)
	return res, browser.Classify(err)
}

// RunFiles runs the job and writes each CSV only when it has rows.
func (j *Job) RunFiles(ctx context.Context, urls []string, out Output) (Report, error) {
	report, runErr := j.Run(ctx, urls)
	var err error
	if len(report.Reviews) > 0 && out.Reviews != "" {
		err = errors.Join(err, WriteReviewsCSV(out.Reviews, report.Reviews))
		j.logger.Info("reviews written", zap.String("path", out.Reviews), zap.Int("rows", len(report.Reviews)))
	}
	if len(report.Summaries) > 0 && out.Summary != "" {
		err = errors.Join(err, WriteSummaryCSV(out.Summary, j.keyword, report.Summaries))
		j.logger.Info("summary written", zap.String("path", out.Summary), zap.Int("rows", len(report.Summaries)))
	}
	if len(report.Reviews) == 0 {
		j.logger.Info("no reviews collected; nothing written")
	}
	return report, errors.Join(runErr, err)
}
