package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telspan/vpn-provision/internal/bundle"
	"github.com/telspan/vpn-provision/internal/ca"
	"github.com/telspan/vpn-provision/internal/db"
	"github.com/telspan/vpn-provision/internal/tasks"
	"github.com/telspan/vpn-provision/internal/worker"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("VPN Provision Worker", "version", AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(config.Database.Url, config.Database.Schema); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, config.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	bundles := bundle.NewStore(config.Vpn.ClientDir, config.Vpn.Host, config.Vpn.Port)
	generator := &ca.EasyRSA{
		Command:   config.Ca.Command,
		Dir:       config.Ca.Dir,
		ExtraArgs: config.Ca.ExtraArgs,
	}

	runner := worker.NewRunner(tasks.NewPostgresStore(pool), bundles, generator, config.Queue.TaskTimeout)
	workerPool := worker.NewPool(runner, worker.PoolConfig{
		Workers:           config.Queue.Workers,
		PollInterval:      config.Queue.PollInterval,
		MaxTasksPerWorker: config.Queue.MaxTasksPerWorker,
	})

	if config.Metrics.Addr != "" {
		go func() {
			slog.Info("Serving metrics", "address", config.Metrics.Addr)
			if err := http.ListenAndServe(config.Metrics.Addr, promhttp.Handler()); err != nil {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	slog.Info("Starting worker pool", "workers", config.Queue.Workers)
	workerPool.Run(ctx)
	slog.Info("Shutdown complete")
}
