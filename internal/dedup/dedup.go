// Package dedup collapses work URLs that point at the same work, using a
// fast HTTP pass with bounded retry sweeps followed by a sequential browser
// pass over whatever is still unresolved.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/review-harvester/internal/canonical"
	"github.com/JakeFAU/review-harvester/internal/metrics"
	"github.com/JakeFAU/review-harvester/internal/retry"
	"github.com/JakeFAU/review-harvester/internal/urlstore"
	"github.com/JakeFAU/review-harvester/internal/work"
)

const stage = "dedup"

// SlowResolver is a browser-backed resolver that owns a session.
type SlowResolver interface {
	canonical.Resolver
	Close() error
}

// SlowOpener creates the browser-backed resolver for the residue pass.
type SlowOpener func(ctx context.Context) (SlowResolver, error)

// Sleeper pauses between sweeps and between browser resolutions.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Config controls the deduplication run.
type Config struct {
	Policy      retry.Policy
	Concurrency int
	// SlowPause separates consecutive browser resolutions.
	SlowPause time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("dedup.concurrency must be > 0")
	}
	if c.SlowPause < 0 {
		return fmt.Errorf("dedup.slow_pause must be >= 0")
	}
	return nil
}

// Deduplicator runs the two-tier canonicalization.
type Deduplicator struct {
	cfg      Config
	fast     canonical.Resolver
	openSlow SlowOpener
	clock    Sleeper
	logger   *zap.Logger
}

// New builds a Deduplicator. A nil openSlow skips the browser pass.
func New(cfg Config, fast canonical.Resolver, openSlow SlowOpener, clock Sleeper, logger *zap.Logger) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fast == nil {
		return nil, errors.New("dedup: fast resolver is required")
	}
	if clock == nil {
		return nil, errors.New("dedup: clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{cfg: cfg, fast: fast, openSlow: openSlow, clock: clock, logger: logger}, nil
}

// Result summarizes a deduplication run.
type Result struct {
	Input      int
	Works      *Works
	Unresolved []string
	Attempts   int
	// Duplicates counts resolved URLs whose work was already recorded.
	Duplicates int
	StopReason retry.StopReason
	// SlowAttempted and SlowResolved describe the browser pass.
	SlowAttempted int
	SlowResolved  int
	// SlowErr is set when the browser could not be started; the residue
	// is then reported as unresolved.
	SlowErr error
}

// Run deduplicates urls. The first URL to resolve to a work wins; within
// a sweep, resolutions are registered in input order.
func (d *Deduplicator) Run(ctx context.Context, urls []string) (Result, error) {
	works := NewWorks()
	result := Result{Input: len(urls), Works: works}

	report, err := retry.Sweep(ctx, d.cfg.Policy, d.clock.Sleep, urls,
		func(ctx context.Context, attempt int, residue []string) ([]string, int, error) {
			return d.sweep(ctx, attempt, residue, works, &result)
		})
	result.Attempts = report.Attempts
	result.StopReason = report.Reason
	if err != nil {
		result.Unresolved = report.Residue
		return result, err
	}
	d.logger.Info("fast pass complete",
		zap.Int("attempts", report.Attempts),
		zap.String("stop_reason", string(report.Reason)),
		zap.Int("works", works.Len()),
		zap.Int("unresolved", len(report.Residue)),
	)

	residue := report.Residue
	if len(residue) > 0 && d.openSlow != nil {
		slow, err := d.openSlow(ctx)
		if err != nil {
			d.logger.Error("critical error during browser setup",
				zap.String("kind", work.ErrorKind(err)),
				zap.Error(err),
			)
			result.SlowErr = err
		} else {
			residue = d.slowPass(ctx, slow, residue, works, &result)
		}
	}
	result.Unresolved = residue
	return result, nil
}

func (d *Deduplicator) sweep(ctx context.Context, attempt int, residue []string, works *Works, result *Result) ([]string, int, error) {
	resolutions := make([]work.Resolution, len(residue))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, u := range residue {
		g.Go(func() error {
			resolutions[i] = d.fast.Resolve(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return residue, 0, err
	}

	var next []string
	gained := 0
	for _, res := range resolutions {
		metrics.ObserveOutcome(stage, res.Status.String())
		if res.Status != work.Resolved {
			next = append(next, res.URL)
			continue
		}
		if works.Register(res.WorkID, res.Canonical) {
			gained++
			continue
		}
		d.duplicate(works, res, result)
	}
	metrics.ObserveSweep(stage, gained)
	d.logger.Info("sweep complete",
		zap.Int("attempt", attempt),
		zap.Int("attempted", len(residue)),
		zap.Int("new_works", gained),
		zap.Int("remaining", len(next)),
	)
	return next, gained, nil
}

func (d *Deduplicator) slowPass(ctx context.Context, slow SlowResolver, residue []string, works *Works, result *Result) []string {
	defer func() {
		if err := slow.Close(); err != nil {
			d.logger.Warn("browser close failed", zap.Error(err))
		}
	}()

	var remaining []string
	for i, u := range residue {
		if ctx.Err() != nil {
			remaining = append(remaining, residue[i:]...)
			break
		}
		if i > 0 {
			if err := d.clock.Sleep(ctx, d.cfg.SlowPause); err != nil {
				remaining = append(remaining, residue[i:]...)
				break
			}
		}
		result.SlowAttempted++
		res := slow.Resolve(ctx, u)
		metrics.ObserveOutcome(stage+"_slow", res.Status.String())
		if res.Status != work.Resolved {
			remaining = append(remaining, u)
			continue
		}
		if works.Register(res.WorkID, res.Canonical) {
			result.SlowResolved++
			continue
		}
		d.duplicate(works, res, result)
	}
	d.logger.Info("browser pass complete",
		zap.Int("attempted", result.SlowAttempted),
		zap.Int("new_works", result.SlowResolved),
		zap.Int("unresolved", len(remaining)),
	)
	return remaining
}

func (d *Deduplicator) duplicate(works *Works, res work.Resolution, result *Result) {
	result.Duplicates++
	kept, _ := works.Lookup(res.WorkID)
	d.logger.Debug("duplicate work",
		zap.String("url", res.URL),
		zap.String("work_id", res.WorkID),
		zap.String("kept", kept),
	)
}

// RunFile reads the input URL file, deduplicates it and writes the sorted
// canonical URLs to outPath. A missing input file is an error.
func (d *Deduplicator) RunFile(ctx context.Context, inPath, outPath string) (Result, error) {
	urls, err := urlstore.ReadSet(inPath)
	if err != nil {
		return Result{}, err
	}
	d.logger.Info("deduplicating work urls", zap.String("input", inPath), zap.Int("urls", len(urls)))

	result, err := d.Run(ctx, urls)
	if err != nil {
		return result, err
	}
	if err := urlstore.WriteSorted(outPath, result.Works.URLs()); err != nil {
		return result, err
	}
	d.logger.Info("unique works written",
		zap.String("output", outPath),
		zap.Int("works", result.Works.Len()),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("input", result.Input),
		zap.Int("unresolved", len(result.Unresolved)),
	)
	return result, nil
}
