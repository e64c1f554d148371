package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/telspan/vpn-provision/internal/tasks"
)

type PoolConfig struct {
	Workers           int
	PollInterval      time.Duration
	MaxTasksPerWorker int
}

// Pool runs a fixed number of worker slots against the queue. Each slot's
// goroutine retires after MaxTasksPerWorker tasks and is replaced, bounding
// resource leakage from repeated subprocess invocation.
type Pool struct {
	runner *Runner
	cfg    PoolConfig
}

func NewPool(runner *Runner, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxTasksPerWorker <= 0 {
		cfg.MaxTasksPerWorker = 1
	}
	return &Pool{runner: runner, cfg: cfg}
}

// Run blocks until ctx is cancelled and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for slot := 0; slot < p.cfg.Workers; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.supervise(ctx, slot)
		}(slot)
	}
	wg.Wait()
	slog.Info("Worker pool stopped")
}

func (p *Pool) supervise(ctx context.Context, slot int) {
	for {
		if retired := p.workerLoop(ctx, slot); !retired {
			return
		}
		slog.Debug("Recycling worker", "slot", slot)
	}
}

// workerLoop polls for tasks until the worker hits its task budget (returns
// true, caller respawns) or the context ends (returns false).
func (p *Pool) workerLoop(ctx context.Context, slot int) bool {
	done := 0
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		for {
			if ctx.Err() != nil {
				return false
			}
			err := p.runner.Process(ctx)
			if errors.Is(err, tasks.ErrEmpty) {
				break
			}
			if err != nil {
				slog.Error("Failed to claim task", "slot", slot, "error", err)
				break
			}
			done++
			if done >= p.cfg.MaxTasksPerWorker {
				return true
			}
		}
	}
}
