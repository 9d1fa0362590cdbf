package browser_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/browser/browsertest"
	"github.com/JakeFAU/review-harvester/internal/work"
)

func TestDismissOverlay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		clickErr error
		want     browser.InteractionStatus
	}{
		{"clicked", nil, browser.Dismissed},
		{"absent", fmt.Errorf("click: %w", context.DeadlineExceeded), browser.Absent},
		{"session gone", fmt.Errorf("click: %w", chromedp.ErrInvalidContext), browser.Fatal},
		{"obscured", errors.New("element detached"), browser.Ignored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := &browsertest.Page{ClickFunc: func(string, time.Duration) error { return tt.clickErr }}
			got := browser.DismissOverlay(page, `button[aria-label="Close"]`, time.Second)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.want == browser.Fatal, got.IsFatal())
			assert.Equal(t, []string{`click button[aria-label="Close"]`}, page.Calls())
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	assert.True(t, browser.IsTimeout(fmt.Errorf("wait: %w", context.DeadlineExceeded)))
	assert.False(t, browser.IsTimeout(errors.New("other")))
	assert.True(t, browser.IsSessionGone(context.Canceled))
	assert.True(t, browser.IsSessionGone(chromedp.ErrChannelClosed))
	assert.False(t, browser.IsSessionGone(context.DeadlineExceeded))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.NoError(t, browser.Classify(nil))

	gone := browser.Classify(fmt.Errorf("click: %w", chromedp.ErrInvalidContext))
	require.ErrorIs(t, gone, chromedp.ErrInvalidContext)
	assert.Equal(t, "SessionClosed", work.ErrorKind(gone))
	assert.Equal(t, "SessionClosed", work.ErrorKind(browser.Classify(chromedp.ErrChannelClosed)))
	assert.Same(t, gone, browser.Classify(gone))

	// Caller cancellation keeps its own kind.
	assert.Equal(t, "Canceled", work.ErrorKind(browser.Classify(context.Canceled)))
	assert.Equal(t, "Timeout", work.ErrorKind(browser.Classify(context.DeadlineExceeded)))

	in := browser.DismissOverlay(&browsertest.Page{ClickFunc: func(string, time.Duration) error {
		return chromedp.ErrInvalidContext
	}}, "x", time.Second)
	assert.Equal(t, "SessionClosed", work.ErrorKind(in.Err))
}
