package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser/browsertest"
	"github.com/JakeFAU/review-harvester/internal/verify"
)

const bookPage = `<html><body><div class="BookPage__mainContent">
<div class="ContributorLinksList"><span class="ContributorLink__name">Franz Kafka</span></div>
<div class="RatingStatistics__rating">3.98</div>
</div></body></html>`

type fakeClock struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return ctx.Err()
}

func timeoutErr(what string) error {
	return fmt.Errorf("wait for %s: %w", what, context.DeadlineExceeded)
}

// sitePage serves the reviews page until the main page is navigated to.
func sitePage(loadMorePages int) *browsertest.Page {
	var mu sync.Mutex
	current := ""
	clicks := 0
	return &browsertest.Page{
		NavigateFunc: func(url string) error {
			mu.Lock()
			current = url
			mu.Unlock()
			return nil
		},
		HTMLFunc: func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if strings.HasSuffix(current, "/reviews") {
				return reviewsPage, nil
			}
			return bookPage, nil
		},
		ClickFunc: func(selector string, _ time.Duration) error {
			if selector != loadMoreSelector {
				return timeoutErr(selector)
			}
			mu.Lock()
			defer mu.Unlock()
			clicks++
			if clicks > loadMorePages {
				return timeoutErr(selector)
			}
			return nil
		},
	}
}

func newTestScraper(t *testing.T, f *browsertest.Factory, clk Sleeper) *Scraper {
	t.Helper()
	s, err := NewScraper(Config{Keyword: "kafkaesque", SettleDelay: time.Second, PageDelay: time.Second}, f, clk, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestScrapeCollectsReviewsAndMetadata(t *testing.T) {
	t.Parallel()

	page := sitePage(1)
	f := &browsertest.Factory{New: func() *browsertest.Page { return page }}
	clk := &fakeClock{}
	s := newTestScraper(t, f, clk)

	got, err := s.Scrape(context.Background(), "https://site/book/show/42.The_Trial")
	require.NoError(t, err)

	assert.Equal(t, "The Trial", got.BookName)
	require.Len(t, got.Reviews, 2)
	assert.Equal(t, "https://site/review/show/111", got.Reviews[0].ReviewID)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.KeywordReviewCount)
	assert.Equal(t, "Franz Kafka", got.Summary.Author)
	assert.Equal(t, "3.98", got.Summary.AvgRating)
	assert.Equal(t, NotFound, got.Summary.Genres)

	calls := page.Calls()
	assert.Equal(t, "navigate https://site/book/show/42.The_Trial/reviews", calls[0])
	assert.Contains(t, calls, "navigate https://site/book/show/42.The_Trial")
	assert.Contains(t, calls, "wait div.BookPage__mainContent")
	overlayClicks := 0
	for _, c := range calls {
		if c == "click "+verify.DefaultSelectors.Overlay {
			overlayClicks++
		}
	}
	assert.Equal(t, 2, overlayClicks, "overlay is dismissed on the reviews and main pages")
	assert.Equal(t, 1, page.Closed())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clk.slept)
}

func TestScrapeNoSearchResults(t *testing.T) {
	t.Parallel()

	page := &browsertest.Page{
		WaitFunc: func(selector string, _ time.Duration) error { return timeoutErr(selector) },
	}
	f := &browsertest.Factory{New: func() *browsertest.Page { return page }}
	s := newTestScraper(t, f, &fakeClock{})

	got, err := s.Scrape(context.Background(), "https://site/book/show/42.The_Trial")
	require.NoError(t, err)
	assert.Empty(t, got.Reviews)
	assert.Nil(t, got.Summary)
	assert.NotContains(t, page.Calls(), "eval")
	assert.Equal(t, 1, page.Closed())
}

func TestScrapeMetadataUnavailable(t *testing.T) {
	t.Parallel()

	page := sitePage(0)
	page.WaitFunc = func(selector string, _ time.Duration) error {
		if selector == DefaultMetadataSelectors.Content {
			return timeoutErr(selector)
		}
		return nil
	}
	f := &browsertest.Factory{New: func() *browsertest.Page { return page }}
	s := newTestScraper(t, f, &fakeClock{})

	got, err := s.Scrape(context.Background(), "https://site/book/show/42.The_Trial")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "book metadata")
	assert.Equal(t, "The Trial", got.BookName)
	assert.Empty(t, got.Reviews)
	assert.Nil(t, got.Summary)
	assert.Equal(t, 1, page.Closed())
}

func TestScrapeMetadataSessionLost(t *testing.T) {
	t.Parallel()

	page := sitePage(0)
	overlay := verify.DefaultSelectors.Overlay
	overlayClicks := 0
	loadMore := page.ClickFunc
	page.ClickFunc = func(selector string, wait time.Duration) error {
		if selector == overlay {
			overlayClicks++
			if overlayClicks == 2 {
				return chromedp.ErrInvalidContext
			}
			return timeoutErr(selector)
		}
		return loadMore(selector, wait)
	}
	f := &browsertest.Factory{New: func() *browsertest.Page { return page }}
	s := newTestScraper(t, f, &fakeClock{})

	got, err := s.Scrape(context.Background(), "https://site/book/show/42.The_Trial")
	require.ErrorIs(t, err, chromedp.ErrInvalidContext)
	assert.Empty(t, got.Reviews)
	assert.NotContains(t, page.Calls(), "wait "+DefaultMetadataSelectors.Content)
}

func TestScrapeNavigationFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
	page := &browsertest.Page{NavigateFunc: func(string) error { return boom }}
	f := &browsertest.Factory{New: func() *browsertest.Page { return page }}
	s := newTestScraper(t, f, &fakeClock{})

	_, err := s.Scrape(context.Background(), "https://site/book/show/42")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, page.Closed())
}

func TestScrapeSetupFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("no chrome")
	s := newTestScraper(t, &browsertest.Factory{Err: boom}, nil)

	got, err := s.Scrape(context.Background(), "https://site/book/show/42")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "URL_ID_42", got.BookName)
}

func TestNewScraperValidates(t *testing.T) {
	t.Parallel()

	_, err := NewScraper(Config{}, &browsertest.Factory{}, nil, nil)
	require.ErrorIs(t, err, ErrEmptyKeyword)

	_, err = NewScraper(Config{Keyword: "x", MaxPages: -1}, &browsertest.Factory{}, nil, nil)
	require.ErrorContains(t, err, "scrape.max_pages")

	_, err = NewScraper(Config{Keyword: "x"}, nil, nil, nil)
	require.Error(t, err)
}
