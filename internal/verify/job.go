package verify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/ledger"
	"github.com/JakeFAU/review-harvester/internal/metrics"
	"github.com/JakeFAU/review-harvester/internal/pool"
	"github.com/JakeFAU/review-harvester/internal/urlstore"
	"github.com/JakeFAU/review-harvester/internal/work"
)

const stage = "verify"

// Checker verifies one work.
type Checker interface {
	Verify(ctx context.Context, rawURL, keyword string) work.Verification
}

// Stores names the three terminal outcome files.
type Stores struct {
	Verified string
	NoMatch  string
	Failed   string
}

func (s Stores) paths() []string { return []string{s.Verified, s.NoMatch, s.Failed} }

// JobConfig controls a verification run.
type JobConfig struct {
	Keyword      string
	SubBatches   int
	SubBatchSize int
	Pool         pool.Config
	// Shuffle reorders the backlog in place. Defaults to a uniform shuffle.
	Shuffle func([]string)
}

// Validate checks the configuration.
func (c JobConfig) Validate() error {
	switch {
	case c.Keyword == "":
		return fmt.Errorf("verify.keyword is required")
	case c.SubBatches <= 0:
		return fmt.Errorf("verify.sub_batches must be > 0")
	case c.SubBatchSize <= 0:
		return fmt.Errorf("verify.sub_batch_size must be > 0")
	}
	return nil
}

// Summary reports what a run did.
type Summary struct {
	Input     int
	Backlog   int
	Planned   int
	Matched   int
	NoMatch   int
	Failed    int
	Skipped   int
	Remaining int
}

// Processed returns how many outcomes were recorded this run.
func (s Summary) Processed() int { return s.Matched + s.NoMatch + s.Failed }

// Job runs a bounded, resumable batch of verifications.
type Job struct {
	cfg     JobConfig
	stores  Stores
	ledger  *ledger.Ledger
	checker Checker
	logger  *zap.Logger
}

// NewJob builds a Job.
func NewJob(cfg JobConfig, stores Stores, checker Checker, logger *zap.Logger) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if checker == nil {
		return nil, errors.New("verify: checker is required")
	}
	l, err := ledger.New(stores.paths()...)
	if err != nil {
		return nil, err
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Pool.Logger = logger
	cfg.Pool.Stage = stage
	return &Job{cfg: cfg, stores: stores, ledger: l, checker: checker, logger: logger}, nil
}

type outcomeWriters struct {
	verified *urlstore.Appender
	noMatch  *urlstore.Appender
	failed   *urlstore.Appender
}

func openWriters(s Stores) (*outcomeWriters, error) {
	w := &outcomeWriters{}
	var err error
	if w.verified, err = urlstore.OpenAppender(s.Verified); err != nil {
		return nil, err
	}
	if w.noMatch, err = urlstore.OpenAppender(s.NoMatch); err != nil {
		_ = w.verified.Close()
		return nil, err
	}
	if w.failed, err = urlstore.OpenAppender(s.Failed); err != nil {
		_ = w.verified.Close()
		_ = w.noMatch.Close()
		return nil, err
	}
	return w, nil
}

func (w *outcomeWriters) forVerdict(v work.Verdict) *urlstore.Appender {
	switch v {
	case work.Matched:
		return w.verified
	case work.NoMatch:
		return w.noMatch
	default:
		return w.failed
	}
}

func (w *outcomeWriters) Close() error {
	return errors.Join(w.verified.Close(), w.noMatch.Close(), w.failed.Close())
}

// Run verifies up to SubBatches*SubBatchSize works from the portion of
// input not yet recorded in any outcome file. Each verdict is appended as
// soon as it arrives.
func (j *Job) Run(ctx context.Context, input []string) (summary Summary, err error) {
	summary.Input = len(input)
	backlog, err := j.ledger.Remaining(input)
	if err != nil {
		return summary, err
	}
	summary.Backlog = len(backlog)
	if len(backlog) == 0 {
		j.logger.Info("all works already processed", zap.Int("input", len(input)))
		return summary, nil
	}

	j.cfg.Shuffle(backlog)
	limit := j.cfg.SubBatches * j.cfg.SubBatchSize
	planned := backlog[:min(limit, len(backlog))]
	summary.Planned = len(planned)
	j.logger.Info("verification batch planned",
		zap.Int("backlog", len(backlog)),
		zap.Int("planned", len(planned)),
		zap.String("keyword", j.cfg.Keyword),
	)

	writers, err := openWriters(j.stores)
	if err != nil {
		return summary, err
	}
	defer func() {
		if cerr := writers.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var writeErr error
	for start, batch := 0, 1; start < len(planned); start, batch = start+j.cfg.SubBatchSize, batch+1 {
		if ctx.Err() != nil {
			break
		}
		chunk := planned[start:min(start+j.cfg.SubBatchSize, len(planned))]
		j.logger.Info("sub-batch started", zap.Int("sub_batch", batch), zap.Int("size", len(chunk)))

		results := pool.Run(ctx, j.cfg.Pool, chunk, j.task)
		for res := range results {
			v := res.Value
			if res.Err != nil {
				v = work.FailedFor(res.Item, res.Err)
			}
			if v.Verdict == work.Failed && v.Reason == "Canceled" && ctx.Err() != nil {
				summary.Skipped++
				continue
			}
			if err := writers.forVerdict(v.Verdict).Append(v.URL); err != nil {
				writeErr = errors.Join(writeErr, err)
				continue
			}
			j.count(&summary, v, res.Worker)
		}
		if writeErr != nil {
			break
		}
	}
	if writeErr != nil {
		return summary, fmt.Errorf("record verification outcome: %w", writeErr)
	}

	remaining, err := j.ledger.Remaining(input)
	if err != nil {
		return summary, err
	}
	summary.Remaining = len(remaining)
	j.logger.Info("verification batch complete",
		zap.Int("matched", summary.Matched),
		zap.Int("no_match", summary.NoMatch),
		zap.Int("failed", summary.Failed),
		zap.Int("remaining", summary.Remaining),
	)
	return summary, ctx.Err()
}

func (j *Job) task(ctx context.Context, _ pool.Worker, item string) (work.Verification, error) {
	return j.checker.Verify(ctx, item, j.cfg.Keyword), nil
}

func (j *Job) count(s *Summary, v work.Verification, worker string) {
	metrics.ObserveOutcome(stage, v.Verdict.String())
	fields := []zap.Field{zap.String("url", v.URL), zap.String("worker", worker)}
	switch v.Verdict {
	case work.Matched:
		s.Matched++
		j.logger.Info("keyword matched", fields...)
	case work.NoMatch:
		s.NoMatch++
		j.logger.Info("no match", fields...)
	default:
		s.Failed++
		j.logger.Warn("verification failed", append(fields, zap.String("kind", v.Reason))...)
	}
}
