// Package worker runs the asynchronous side of the payment pipeline: a
// pool of goroutines that reserve due tasks under row locks, call the
// gateway and commit the outcome as a state transition. Workers never
// propagate errors upward; a failed database transaction leaves the task
// reservable again.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	Workers      int
	PollInterval time.Duration
}

type Pool struct {
	proc   *Processor
	cfg    Config
	logger *slog.Logger
}

func NewPool(proc *Processor, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Pool{proc: proc, cfg: cfg, logger: logger}
}

// Start runs the worker loops until ctx is cancelled and blocks until all
// of them have exited. In-flight iterations finish their current task.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("worker pool started",
		"workers", p.cfg.Workers,
		"poll_interval", p.cfg.PollInterval,
	)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	logger.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping")
			return
		default:
		}

		worked, err := p.proc.ProcessOne(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("task processing failed", "error", err)
		}
		if worked && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(p.cfg.PollInterval):
		}
	}
}
