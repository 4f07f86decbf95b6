package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodically triggered unit of work. A run either completes or
// fails outright; there is no mid-run cancellation contract beyond the ctx
// passed to Run.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner triggers jobs on fixed intervals. Each job gets its own goroutine and
// ticks are handled sequentially within it, which guarantees at most one
// concurrent execution per job: a slow run simply delays the next tick.
type Runner struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger.With("component", "scheduler")}
}

// Schedule starts triggering job every interval until ctx is cancelled.
// Run errors are logged; state is left for the next tick to retry.
func (r *Runner) Schedule(ctx context.Context, job Job, interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.logger.Info("Job scheduled", "job", job.Name(), "interval", interval.String())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Job schedule stopped", "job", job.Name())
				return
			case <-ticker.C:
				start := time.Now()
				if err := job.Run(ctx); err != nil {
					r.logger.Error("Job run failed", "job", job.Name(), "error", err, "duration", time.Since(start).String())
					continue
				}
				r.logger.Debug("Job run completed", "job", job.Name(), "duration", time.Since(start).String())
			}
		}
	}()
}

// Wait blocks until all scheduled job loops have exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}
