// Package retry drives bounded multi-pass sweeps over a shrinking residue of
// unresolved items.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// DelayFunc returns the pause to observe after the given 1-based attempt.
type DelayFunc func(attempt int) time.Duration

// FixedDelay waits d between every attempt.
func FixedDelay(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// ExponentialDelay doubles base each attempt up to limit, then picks a
// random point in the upper half of that window.
func ExponentialDelay(base, limit time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		delay := float64(base) * math.Pow(2, float64(attempt-1))
		if delay > float64(limit) {
			delay = float64(limit)
		}
		return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Progress summarizes one completed sweep.
type Progress struct {
	Attempt int
	// Before and After are the residue sizes around the sweep.
	Before int
	After  int
	// Gained is the number of new results the sweep produced.
	Gained int
}

// StopFunc decides whether sweeping should end after a pass.
type StopFunc func(Progress) bool

// StopOnEmpty ends sweeping once nothing is left to resolve.
func StopOnEmpty() StopFunc {
	return func(p Progress) bool { return p.After == 0 }
}

// StopOnNoProgressAfterFirst ends sweeping when a pass other than the first
// gains nothing.
func StopOnNoProgressAfterFirst() StopFunc {
	return func(p Progress) bool { return p.Attempt > 1 && p.Gained == 0 }
}

// Policy bounds a sweep loop.
type Policy struct {
	MaxAttempts int
	Delay       DelayFunc
	Stop        []StopFunc
}

// Validate ensures the policy can drive a loop.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	return nil
}

func (p Policy) shouldStop(pr Progress) bool {
	for _, stop := range p.Stop {
		if stop != nil && stop(pr) {
			return true
		}
	}
	return false
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Delay == nil {
		return 0
	}
	return p.Delay(attempt)
}

// StopReason explains why a sweep loop ended.
type StopReason string

const (
	// StopEmpty means the residue was exhausted.
	StopEmpty StopReason = "empty"
	// StopCondition means a configured StopFunc fired.
	StopCondition StopReason = "stop_condition"
	// StopMaxAttempts means the attempt budget ran out.
	StopMaxAttempts StopReason = "max_attempts"
)

// SweepFunc runs one pass over residue and returns what is still unresolved
// along with how many new results the pass produced.
type SweepFunc[T any] func(ctx context.Context, attempt int, residue []T) (next []T, gained int, err error)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Report is the final state of a sweep loop.
type Report[T any] struct {
	Residue  []T
	Attempts int
	Reason   StopReason
}

// Sweep repeatedly applies fn to the residue until the residue is empty, a
// stop condition fires, or MaxAttempts passes have run. The delay is only
// observed between passes.
func Sweep[T any](ctx context.Context, p Policy, sleep SleepFunc, residue []T, fn SweepFunc[T]) (Report[T], error) {
	if err := p.Validate(); err != nil {
		return Report[T]{Residue: residue}, err
	}
	if fn == nil {
		return Report[T]{Residue: residue}, errors.New("retry: nil sweep func")
	}
	if len(residue) == 0 {
		return Report[T]{Residue: residue, Reason: StopEmpty}, nil
	}

	report := Report[T]{Residue: residue, Reason: StopMaxAttempts}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		before := len(report.Residue)
		next, gained, err := fn(ctx, attempt, report.Residue)
		report.Attempts = attempt
		if err != nil {
			return report, fmt.Errorf("sweep attempt %d: %w", attempt, err)
		}
		report.Residue = next

		pr := Progress{Attempt: attempt, Before: before, After: len(next), Gained: gained}
		if pr.After == 0 {
			report.Reason = StopEmpty
			return report, nil
		}
		if p.shouldStop(pr) {
			report.Reason = StopCondition
			return report, nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if sleep != nil {
			if err := sleep(ctx, p.delay(attempt)); err != nil {
				return report, fmt.Errorf("sweep delay: %w", err)
			}
		}
	}
	return report, nil
}
