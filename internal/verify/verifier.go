// Package verify checks each work's review section for a keyword and
// records the verdicts in the outcome files that drive resumption.
package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/work"
)

// Selectors locate the elements of the review section.
type Selectors struct {
	Overlay string
	Search  string
	Card    string
}

// DefaultSelectors match the review section markup.
var DefaultSelectors = Selectors{
	Overlay: `button[aria-label="Close"]`,
	Search:  `input[placeholder="Search review text"]`,
	Card:    "article.ReviewCard",
}

// Config bounds each verification step.
type Config struct {
	Selectors   Selectors
	OverlayWait time.Duration
	SearchWait  time.Duration
	CardWait    time.Duration
	// SettleDelay gives the search results time to render before the card
	// wait starts.
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Selectors == (Selectors{}) {
		c.Selectors = DefaultSelectors
	}
	if c.OverlayWait <= 0 {
		c.OverlayWait = 3 * time.Second
	}
	if c.SearchWait <= 0 {
		c.SearchWait = 15 * time.Second
	}
	if c.CardWait <= 0 {
		c.CardWait = 6 * time.Second
	}
	return c
}

// Sleeper pauses without ignoring cancellation.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ReviewsURL derives the review section URL for a work URL.
func ReviewsURL(raw string) string {
	if strings.Contains(raw, "/reviews") {
		return raw
	}
	base, _, _ := strings.Cut(raw, "?")
	return base + "/reviews"
}

// Verifier runs one keyword check per call in a fresh browser page.
type Verifier struct {
	cfg    Config
	pages  browser.Factory
	clock  Sleeper
	logger *zap.Logger
}

// NewVerifier builds a Verifier.
func NewVerifier(cfg Config, pages browser.Factory, clock Sleeper, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{cfg: cfg.withDefaults(), pages: pages, clock: clock, logger: logger}
}

// Verify reports whether any review of the work at rawURL matches keyword.
// A bounded wait that expires means nothing matched; any other failure is
// reported as Failed with its error kind.
func (v *Verifier) Verify(ctx context.Context, rawURL, keyword string) work.Verification {
	page, err := v.pages.NewPage(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return work.FailedFor(rawURL, context.Canceled)
		}
		v.logger.Error("critical error during browser setup", zap.String("url", rawURL), zap.Error(err))
		return work.FailedFor(rawURL, err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			v.logger.Debug("browser close failed", zap.String("url", rawURL), zap.Error(err))
		}
	}()

	if err := page.Navigate(ReviewsURL(rawURL)); err != nil {
		return work.FailedFor(rawURL, browser.Classify(err))
	}

	if in := browser.DismissOverlay(page, v.cfg.Selectors.Overlay, v.cfg.OverlayWait); in.IsFatal() {
		return work.FailedFor(rawURL, in.Err)
	} else if in.Status == browser.Ignored {
		v.logger.Debug("overlay dismissal ignored", zap.String("url", rawURL), zap.Error(in.Err))
	}

	if err := page.Type(v.cfg.Selectors.Search, keyword+browser.Enter, v.cfg.SearchWait); err != nil {
		return v.classify(rawURL, err)
	}
	if v.cfg.SettleDelay > 0 && v.clock != nil {
		if err := v.clock.Sleep(ctx, v.cfg.SettleDelay); err != nil {
			return work.FailedFor(rawURL, err)
		}
	}
	if err := page.WaitPresent(v.cfg.Selectors.Card, v.cfg.CardWait); err != nil {
		return v.classify(rawURL, err)
	}
	return work.MatchedFor(rawURL)
}

func (v *Verifier) classify(rawURL string, err error) work.Verification {
	if browser.IsTimeout(err) {
		return work.NoMatchFor(rawURL)
	}
	return work.FailedFor(rawURL, browser.Classify(err))
}
