// Package worker runs provisioning tasks: it claims queued work, drives the
// external CA tool, assembles the client bundle and publishes the outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telspan/vpn-provision/internal/bundle"
	"github.com/telspan/vpn-provision/internal/ca"
	"github.com/telspan/vpn-provision/internal/metrics"
	"github.com/telspan/vpn-provision/internal/tasks"
)

type Runner struct {
	store   tasks.Store
	bundles *bundle.Store
	gen     ca.Generator
	timeout time.Duration
}

func NewRunner(store tasks.Store, bundles *bundle.Store, gen ca.Generator, timeout time.Duration) *Runner {
	return &Runner{
		store:   store,
		bundles: bundles,
		gen:     gen,
		timeout: timeout,
	}
}

// Process claims one pending task and runs it to a terminal state. Returns
// tasks.ErrEmpty when the queue has nothing to do. Task failures are
// published, not returned; only claim errors surface to the caller.
func (r *Runner) Process(ctx context.Context) error {
	t, err := r.store.Claim(ctx)
	if err != nil {
		return err
	}

	slog.Info("Provisioning task started", "handle", t.Handle, "identity", t.Identity)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			// A crash publishes a terminal record with no payload, which
			// callers see as a worker-level failure. The worker survives.
			slog.Error("Provisioning task panicked",
				"handle", t.Handle, "identity", t.Identity, "panic", rec)
			metrics.TasksCompleted.WithLabelValues(metrics.ResultCrash).Inc()
			r.complete(ctx, t, tasks.StateFailure, nil)
		}
	}()

	res := r.execute(ctx, t)
	metrics.TaskDuration.Observe(time.Since(start).Seconds())

	if res.Status == tasks.StatusSuccess {
		metrics.TasksCompleted.WithLabelValues(metrics.ResultSuccess).Inc()
		slog.Info("Provisioning task succeeded",
			"handle", t.Handle, "identity", t.Identity, "bundle_path", res.BundlePath)
		r.complete(ctx, t, tasks.StateSuccess, res)
	} else {
		metrics.TasksCompleted.WithLabelValues(metrics.ResultFailure).Inc()
		slog.Warn("Provisioning task failed",
			"handle", t.Handle, "identity", t.Identity, "message", res.Message)
		r.complete(ctx, t, tasks.StateFailure, res)
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, t *tasks.Task) *tasks.Result {
	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Re-check at task start: a duplicate request may have won the race
	// between enqueue and execution.
	if r.bundles.Exists(t.Identity) {
		return errorResult(t.Identity, "client already exists")
	}

	if err := r.gen.Generate(taskCtx, t.Identity); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errorResult(t.Identity,
				fmt.Sprintf("certificate generation timed out after %s", r.timeout))
		}
		return errorResult(t.Identity, fmt.Sprintf("failed to generate certificate: %v", err))
	}

	doc, err := r.bundles.Assemble(t.Identity)
	if err != nil {
		return errorResult(t.Identity, fmt.Sprintf("failed to assemble client configuration: %v", err))
	}

	path, err := r.bundles.Write(t.Identity, doc)
	if err != nil {
		return errorResult(t.Identity, fmt.Sprintf("failed to persist client configuration: %v", err))
	}

	return &tasks.Result{
		Status:     tasks.StatusSuccess,
		Message:    "certificate generated successfully",
		Identity:   t.Identity,
		BundlePath: path,
	}
}

// complete publishes the terminal state even when the task budget or the
// pool context already expired.
func (r *Runner) complete(ctx context.Context, t *tasks.Task, state tasks.State, res *tasks.Result) {
	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.store.Complete(completeCtx, t.Handle, state, res); err != nil {
		slog.Error("Failed to publish task result",
			"handle", t.Handle, "identity", t.Identity, "state", state, "error", err)
	}
}

func errorResult(identity, message string) *tasks.Result {
	return &tasks.Result{
		Status:   tasks.StatusError,
		Message:  message,
		Identity: identity,
	}
}
