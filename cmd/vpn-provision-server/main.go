package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	internalhttp "github.com/telspan/vpn-provision/internal/api/http"
	"github.com/telspan/vpn-provision/internal/api/http/middleware"
	"github.com/telspan/vpn-provision/internal/bundle"
	"github.com/telspan/vpn-provision/internal/ca"
	"github.com/telspan/vpn-provision/internal/db"
	"github.com/telspan/vpn-provision/internal/provision"
	"github.com/telspan/vpn-provision/internal/secret"
	"github.com/telspan/vpn-provision/internal/tasks"
	"github.com/telspan/vpn-provision/internal/worker"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("VPN Provision Server", "version", AppVersion)

	deriver, err := secret.NewDeriver(config.Auth.SecretKey)
	if err != nil {
		slog.Error("Failed to initialize token deriver", "error", err)
		os.Exit(1)
	}

	bundles := bundle.NewStore(config.Vpn.ClientDir, config.Vpn.Host, config.Vpn.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store tasks.Store
	switch config.Queue.Driver {
	case "postgres":
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
		store = tasks.NewPostgresStore(pool)
	case "memory":
		store = tasks.NewMemoryStore()
	}

	services := &internalhttp.Services{
		Provision:          provision.NewService(deriver, bundles, store),
		Deriver:            deriver,
		HotspotTemplateDir: config.Hotspot.TemplateDir,
		CreateLimiter:      middleware.NewRateLimiter(config.RateLimit.Rps, config.RateLimit.Burst),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// The memory driver has no external worker binary; provisioning runs on
	// an embedded pool instead.
	var poolDone chan struct{}
	if config.Queue.Driver == "memory" {
		generator := &ca.EasyRSA{
			Command:   config.Ca.Command,
			Dir:       config.Ca.Dir,
			ExtraArgs: config.Ca.ExtraArgs,
		}
		runner := worker.NewRunner(store, bundles, generator, config.Queue.TaskTimeout)
		pool := worker.NewPool(runner, worker.PoolConfig{
			Workers:           config.Queue.Workers,
			PollInterval:      config.Queue.PollInterval,
			MaxTasksPerWorker: config.Queue.MaxTasksPerWorker,
		})
		poolDone = make(chan struct{})
		go func() {
			slog.Info("Starting embedded worker pool", "workers", config.Queue.Workers)
			pool.Run(ctx)
			close(poolDone)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down...")

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	cancel()
	if poolDone != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-poolDone:
			case <-time.After(shutdownTimeout):
				slog.Error("Worker pool did not stop in time")
			}
		}()
	}

	wg.Wait()
	slog.Info("Shutdown complete")
}
