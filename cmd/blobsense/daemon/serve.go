package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
	"github.com/bryanwahyu/blobsense/internal/infra/httpserver"
	"github.com/bryanwahyu/blobsense/internal/middleware"
)

const (
	shutdownTimeout = 5 * time.Second
	limiterIdle     = 10 * time.Minute
)

func installServeCmd(a *App) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and query API, and the bucket listener when enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}
	a.cmd.AddCommand(cmd)
}

func (a *App) serve() error {
	ctx, stop := context.WithCancel(a.ctx)
	defer stop()
	cfg := a.cfg
	logger := slog.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	w, err := a.wire(ctx, reg)
	if err != nil {
		return err
	}
	defer w.close()

	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)

	handler := httpserver.NewRouter(w.svc, httpserver.Options{
		WebhookToken:  cfg.Server.WebhookToken,
		ResultsPrefix: cfg.Storage.ResultsPrefix,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Limiter:       limiter,
		Metrics:       httpMetrics,
		Gatherer:      reg,
		Checks:        w.checks,
		Logger:        logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.Cognitive.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Runs before w.close: an object still being dispatched keeps its database.
	var listener sync.WaitGroup
	defer func() {
		stop()
		listener.Wait()
	}()
	if cfg.Storage.Listen {
		listener.Add(1)
		go func() {
			defer listener.Done()
			logger.Info("listening for bucket notifications", "bucket", cfg.Storage.BucketName)
			err := w.store.Listen(ctx, logger, func(ctx context.Context, obj blobs.Object) {
				// Shutdown stops listening, not the object already received.
				w.svc.Handle(context.WithoutCancel(ctx), obj)
			})
			if err != nil {
				logger.Error("bucket listener stopped", "error", err)
			}
		}()
	}

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := limiter.Prune(limiterIdle); n > 0 {
					logger.Debug("pruned idle rate limiters", "count", n)
				}
			}
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	ctx2, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
