// Package main provides the entry point for the zonegate server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zonegate/zonegate/internal/admin"
	"github.com/zonegate/zonegate/internal/authz"
	"github.com/zonegate/zonegate/internal/config"
	"github.com/zonegate/zonegate/internal/logging"
	"github.com/zonegate/zonegate/internal/metrics"
	"github.com/zonegate/zonegate/internal/proxy"
	"github.com/zonegate/zonegate/internal/storage"
	"github.com/zonegate/zonegate/internal/upstream"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zonegate: %v\n", err)
		os.Exit(1)
	}
}

// run wires up the full server. Separated from main() so fatal paths return
// errors instead of exiting.
func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logLevel := logging.New(cfg.LogLevel)

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		//nolint:errcheck
		store.Close()
	}()

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var clientOpts []upstream.Option
	if cfg.UpstreamURL != "" {
		clientOpts = append(clientOpts, upstream.WithBaseURL(cfg.UpstreamURL))
	}
	client := upstream.NewClient(cfg.UpstreamAPIKey, clientOpts...)
	svc := authz.NewService(store, logger)

	adminHandler := admin.NewHandler(store, cfg.AdminAPIKey, logLevel, logger)
	recordRouter := proxy.NewRouter(proxy.NewHandler(client, logger), svc, logger, authz.MiddlewareOptions{
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		VerboseDenials:    cfg.VerboseDenials,
	})

	// The record API and the admin API share one listener. ServeMux prefix
	// dispatch keeps both routers' paths absolute.
	mux := http.NewServeMux()
	mux.Handle("/records/", recordRouter)
	mux.Handle("/", adminHandler.NewRouter())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           newMetricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("zonegate starting", "version", version, "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics listener starting", "addr", cfg.MetricsListenAddr)
		errCh <- metricsServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if merr := metricsServer.Shutdown(shutdownCtx); merr != nil && !errors.Is(merr, http.ErrServerClosed) {
		err = errors.Join(err, merr)
	}
	return err
}

// newMetricsMux serves Prometheus metrics on a separate listener so the
// scrape endpoint is never exposed on the public port.
func newMetricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
