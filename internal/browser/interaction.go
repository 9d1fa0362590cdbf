package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/review-harvester/internal/work"
)

// InteractionStatus classifies a best-effort page interaction.
type InteractionStatus int

const (
	// Dismissed means the interaction was performed.
	Dismissed InteractionStatus = iota
	// Absent means the target never appeared within the wait.
	Absent
	// Ignored means the interaction failed in a way that does not affect the
	// rest of the task.
	Ignored
	// Fatal means the session itself is unusable.
	Fatal
)

// String implements fmt.Stringer.
func (s InteractionStatus) String() string {
	switch s {
	case Dismissed:
		return "dismissed"
	case Absent:
		return "absent"
	case Ignored:
		return "ignored"
	default:
		return "fatal"
	}
}

// Interaction is the result of an optional UI step such as closing an
// overlay.
type Interaction struct {
	Status InteractionStatus
	Err    error
}

// IsFatal reports whether the caller must abandon the task.
func (i Interaction) IsFatal() bool { return i.Status == Fatal }

// DismissOverlay clicks the element matched by selector if it shows up
// within wait. Only a dead session is reported as Fatal.
func DismissOverlay(p Page, selector string, wait time.Duration) Interaction {
	err := p.Click(selector, wait)
	switch {
	case err == nil:
		return Interaction{Status: Dismissed}
	case IsTimeout(err):
		return Interaction{Status: Absent, Err: err}
	case IsSessionGone(err):
		return Interaction{Status: Fatal, Err: Classify(err)}
	default:
		return Interaction{Status: Ignored, Err: err}
	}
}

// IsTimeout reports whether err came from a bounded wait expiring.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsSessionGone reports whether err means the browser or tab is no longer
// usable.
func IsSessionGone(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, chromedp.ErrInvalidContext) ||
		errors.Is(err, chromedp.ErrChannelClosed)
}

// Classify wraps errors from a dead chromedp target in
// *work.SessionClosedError so outcome records name them. Other errors,
// including cancellation, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, chromedp.ErrInvalidContext) && !errors.Is(err, chromedp.ErrChannelClosed) {
		return err
	}
	var closed *work.SessionClosedError
	if errors.As(err, &closed) {
		return err
	}
	return &work.SessionClosedError{Err: err}
}
