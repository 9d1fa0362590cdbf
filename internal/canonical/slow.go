package canonical

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/work"
)

// SlowResolver renders the work page in a browser and waits for og:url to
// appear. It reuses one Page for every call.
type SlowResolver struct {
	page   browser.Page
	wait   time.Duration
	logger *zap.Logger
}

// NewSlow wraps page. The resolver takes ownership and closes it in Close.
func NewSlow(page browser.Page, wait time.Duration, logger *zap.Logger) *SlowResolver {
	if wait <= 0 {
		wait = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlowResolver{page: page, wait: wait, logger: logger}
}

// Resolve implements Resolver. Any browser error discards the attempt.
func (r *SlowResolver) Resolve(ctx context.Context, rawURL string) work.Resolution {
	if err := ctx.Err(); err != nil {
		return work.UnresolvedFor(rawURL, err)
	}
	if err := r.page.Navigate(rawURL); err != nil {
		return r.discard(rawURL, err)
	}
	content, ok, err := r.page.Attribute(OGURLSelector, "content", r.wait)
	if err != nil {
		return r.discard(rawURL, err)
	}
	if !ok {
		return work.Resolution{URL: rawURL, Status: work.Unresolved, Reason: "NoCanonical"}
	}
	return work.FromCanonical(rawURL, content)
}

func (r *SlowResolver) discard(rawURL string, err error) work.Resolution {
	err = browser.Classify(err)
	res := work.UnresolvedFor(rawURL, err)
	r.logger.Warn("slow resolve discarded",
		zap.String("url", rawURL),
		zap.String("kind", res.Reason),
		zap.Error(err),
	)
	return res
}

// Close releases the underlying page.
func (r *SlowResolver) Close() error {
	return r.page.Close()
}
