// Package pool runs independent per-URL tasks on a bounded set of workers
// that are recycled after a fixed number of tasks.
package pool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/metrics"
)

// Worker identifies the slot and incarnation running a task.
type Worker struct {
	ID         string
	Slot       int
	Generation int
}

// Initializer returns the opaque worker ID for a fresh incarnation of a
// slot. It is called when a slot starts and each time it is recycled.
type Initializer func(slot, generation int) string

// DefaultInitializer names workers worker-<slot>-<generation>.
func DefaultInitializer(slot, generation int) string {
	return fmt.Sprintf("worker-%d-%d", slot, generation)
}

// Task processes one item.
type Task[R any] func(ctx context.Context, w Worker, item string) (R, error)

// Result is emitted exactly once for every item a worker picked up.
type Result[R any] struct {
	Item     string
	Worker   string
	Value    R
	Err      error
	Duration time.Duration
}

// Config controls pool behavior.
type Config struct {
	Workers int
	// MaxTasksPerWorker recycles a worker after that many tasks. Zero
	// disables recycling.
	MaxTasksPerWorker int
	// StartJitter delays every task by a random duration in
	// [0, StartJitter) so workers do not hit the site in lockstep.
	StartJitter time.Duration
	Init        Initializer
	Logger      *zap.Logger
	// Stage labels task metrics.
	Stage string
}

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.Value) }

// Kind reports the error kind used in outcome records.
func (e *PanicError) Kind() string { return "Panic" }

// Run dispatches items to cfg.Workers workers and streams results as they
// complete. The channel closes once every started item has produced its
// result. Items not yet started when ctx is canceled produce nothing.
func Run[R any](ctx context.Context, cfg Config, items []string, task Task[R]) <-chan Result[R] {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}
	if cfg.Init == nil {
		cfg.Init = DefaultInitializer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	jobs := make(chan string, len(items))
	for _, item := range items {
		jobs <- item
	}
	close(jobs)

	results := make(chan Result[R], workers)
	if len(items) == 0 {
		close(results)
		return results
	}

	var wg sync.WaitGroup
	for slot := 1; slot <= workers; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			runWorker(ctx, cfg, slot, jobs, results, task)
		}(slot)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func runWorker[R any](ctx context.Context, cfg Config, slot int, jobs <-chan string, results chan<- Result[R], task Task[R]) {
	generation := 1
	w := Worker{ID: cfg.Init(slot, generation), Slot: slot, Generation: generation}
	cfg.Logger.Debug("worker started", zap.String("worker", w.ID))
	done := 0

	for {
		if ctx.Err() != nil {
			return
		}
		item, ok := <-jobs
		if !ok {
			return
		}
		if cfg.MaxTasksPerWorker > 0 && done >= cfg.MaxTasksPerWorker {
			generation++
			done = 0
			w = Worker{ID: cfg.Init(slot, generation), Slot: slot, Generation: generation}
			cfg.Logger.Debug("worker recycled", zap.String("worker", w.ID))
		}
		if cfg.StartJitter > 0 && !sleep(ctx, rand.N(cfg.StartJitter)) {
			return
		}

		res := execute(ctx, w, item, task)
		done++
		if cfg.Stage != "" {
			metrics.ObserveTask(cfg.Stage, res.Duration)
		}
		results <- res
	}
}

func execute[R any](ctx context.Context, w Worker, item string, task Task[R]) (res Result[R]) {
	res = Result[R]{Item: item, Worker: w.ID}
	start := time.Now()
	metrics.IncActiveWorkers()
	defer func() {
		metrics.DecActiveWorkers()
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	res.Value, res.Err = task(ctx, w, item)
	return res
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
