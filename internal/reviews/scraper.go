// Package reviews collects keyword-matching reviews and book metadata for
// verified works and writes them as CSV.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/verify"
)

// loadMoreSelector matches the button wrapping the "load more" label.
const loadMoreSelector = `button:has(> span[data-testid="loadMore"])`

// expandScript clicks every "Show more" toggle and returns how many it hit.
const expandScript = `(() => {
  let n = 0;
  document.querySelectorAll('button').forEach((b) => {
    const label = b.querySelector('span');
    if (label && label.textContent.trim() === 'Show more') {
      try { b.click(); n++; } catch (e) {}
    }
  });
  return n;
})()`

// Config bounds each scraping step.
type Config struct {
	Keyword         string
	MaxContextWords int
	// MaxPages caps how many times "load more" is followed per book.
	MaxPages     int
	OverlayWait  time.Duration
	SearchWait   time.Duration
	CardWait     time.Duration
	LoadMoreWait time.Duration
	MetadataWait time.Duration
	SettleDelay  time.Duration
	ExpandDelay  time.Duration
	PageDelay    time.Duration
}

// ErrEmptyKeyword is returned when no search keyword is configured.
var ErrEmptyKeyword = errors.New("scrape.keyword is required")

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Keyword == "":
		return ErrEmptyKeyword
	case c.MaxContextWords < 0:
		return fmt.Errorf("scrape.max_context_words must be >= 0")
	case c.MaxPages < 0:
		return fmt.Errorf("scrape.max_pages must be >= 0")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxContextWords == 0 {
		c.MaxContextWords = 500
	}
	if c.MaxPages == 0 {
		c.MaxPages = 100
	}
	if c.OverlayWait <= 0 {
		c.OverlayWait = 3 * time.Second
	}
	if c.SearchWait <= 0 {
		c.SearchWait = 15 * time.Second
	}
	if c.CardWait <= 0 {
		c.CardWait = 5 * time.Second
	}
	if c.LoadMoreWait <= 0 {
		c.LoadMoreWait = 15 * time.Second
	}
	if c.MetadataWait <= 0 {
		c.MetadataWait = 10 * time.Second
	}
	return c
}

// Summary is the per-book row of the summary CSV.
type Summary struct {
	BookName string
	Metadata
	KeywordReviewCount int
}

// BookResult is everything scraped for one work.
type BookResult struct {
	URL      string
	BookName string
	Reviews  []Review
	// Summary is nil when no review matched.
	Summary *Summary
}

// Sleeper pauses without ignoring cancellation.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Scraper drives one browser page per book.
type Scraper struct {
	cfg    Config
	pages  browser.Factory
	clock  Sleeper
	logger *zap.Logger
}

// NewScraper validates cfg and builds a Scraper.
func NewScraper(cfg Config, pages browser.Factory, clock Sleeper, logger *zap.Logger) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pages == nil {
		return nil, errors.New("reviews: page factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{cfg: cfg.withDefaults(), pages: pages, clock: clock, logger: logger}, nil
}

// Scrape collects the reviews of the work at rawURL that mention the
// keyword, and its metadata when at least one review matched. A search or
// card wait that expires yields an empty result, not an error. A book whose
// metadata cannot be read is returned without reviews and with an error.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (BookResult, error) {
	reviewsURL := verify.ReviewsURL(rawURL)
	mainURL := MainURL(reviewsURL)
	result := BookResult{URL: rawURL, BookName: BookName(mainURL)}
	log := s.logger.With(zap.String("url", rawURL), zap.String("book", result.BookName))

	page, err := s.pages.NewPage(ctx)
	if err != nil {
		log.Error("critical error during browser setup", zap.Error(err))
		return result, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("browser close failed", zap.Error(err))
		}
	}()

	if err := page.Navigate(reviewsURL); err != nil {
		return result, err
	}
	if in := browser.DismissOverlay(page, verify.DefaultSelectors.Overlay, s.cfg.OverlayWait); in.IsFatal() {
		return result, in.Err
	}

	found, err := s.search(ctx, page)
	if err != nil || !found {
		if err == nil {
			log.Info("no reviews found for keyword")
		}
		return result, err
	}

	result.Reviews, err = s.collect(ctx, page, result.BookName, log)
	if err != nil {
		return result, err
	}
	if len(result.Reviews) == 0 {
		return result, nil
	}

	md, err := s.metadata(page, mainURL)
	if err != nil {
		log.Warn("book metadata unavailable; dropping book", zap.Int("reviews", len(result.Reviews)), zap.Error(err))
		return BookResult{URL: rawURL, BookName: result.BookName}, fmt.Errorf("book metadata: %w", err)
	}
	result.Summary = &Summary{BookName: result.BookName, Metadata: md, KeywordReviewCount: len(result.Reviews)}
	log.Info("book scraped", zap.Int("reviews", len(result.Reviews)))
	return result, nil
}

func (s *Scraper) search(ctx context.Context, page browser.Page) (bool, error) {
	sel := verify.DefaultSelectors
	if err := page.Type(sel.Search, s.cfg.Keyword+browser.Enter, s.cfg.SearchWait); err != nil {
		if browser.IsTimeout(err) {
			return false, nil
		}
		return false, err
	}
	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return false, err
	}
	if err := page.WaitPresent(sel.Card, s.cfg.CardWait); err != nil {
		if browser.IsTimeout(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Scraper) collect(ctx context.Context, page browser.Page, bookName string, log *zap.Logger) ([]Review, error) {
	seen := make(map[string]struct{})
	var out []Review
	for n := 1; n <= s.cfg.MaxPages; n++ {
		var expanded int
		if err := page.Eval(expandScript, &expanded); err != nil {
			log.Debug("expanding reviews failed", zap.Error(err))
		}
		if err := s.sleep(ctx, s.cfg.ExpandDelay); err != nil {
			return out, err
		}

		doc, err := page.HTML()
		if err != nil {
			return out, err
		}
		batch, err := ParseReviews(doc, s.cfg.Keyword, bookName, s.cfg.MaxContextWords, seen)
		if err != nil {
			return out, err
		}
		out = append(out, batch...)
		log.Debug("reviews page parsed", zap.Int("page", n), zap.Int("new", len(batch)), zap.Int("expanded", expanded))

		if err := page.Click(loadMoreSelector, s.cfg.LoadMoreWait); err != nil {
			if !browser.IsTimeout(err) {
				log.Debug("load more stopped", zap.Error(err))
			}
			break
		}
		if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Scraper) metadata(page browser.Page, mainURL string) (Metadata, error) {
	if err := page.Navigate(mainURL); err != nil {
		return Metadata{}, err
	}
	if in := browser.DismissOverlay(page, verify.DefaultSelectors.Overlay, s.cfg.OverlayWait); in.IsFatal() {
		return Metadata{}, in.Err
	}
	if err := page.WaitPresent(DefaultMetadataSelectors.Content, s.cfg.MetadataWait); err != nil {
		return Metadata{}, err
	}
	doc, err := page.HTML()
	if err != nil {
		return Metadata{}, err
	}
	return ParseMetadata(doc)
}

func (s *Scraper) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 || s.clock == nil {
		return nil
	}
	return s.clock.Sleep(ctx, d)
}
