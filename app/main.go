package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lysyi3m/rss-sift/app/api"
	"github.com/lysyi3m/rss-sift/app/cache"
	"github.com/lysyi3m/rss-sift/app/cfg"
	"github.com/lysyi3m/rss-sift/app/feed"
	"github.com/lysyi3m/rss-sift/app/fetch"
	"github.com/lysyi3m/rss-sift/app/metrics"
	"github.com/lysyi3m/rss-sift/app/ratelimit"
	"github.com/lysyi3m/rss-sift/app/service"
	"github.com/lysyi3m/rss-sift/app/tasks"
)

func main() {
	appCfg, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg)

	if appCfg.Filter != nil {
		if err := runFilter(appCfg); err != nil {
			slog.Error("Filter failed", "source", appCfg.Filter.Source, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runServer(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(appCfg *cfg.Cfg) {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	// The filter command may print the feed on stdout, so its logs go to stderr.
	out := os.Stdout
	if appCfg.Filter != nil {
		out = os.Stderr
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}

func runFilter(appCfg *cfg.Cfg) error {
	fetcher := fetch.NewFetcher(&http.Client{}, appCfg.UserAgent(), appCfg.RequestTimeoutDuration(), appCfg.MaxPayloadBytes())
	svc := service.New(nil, nil, fetcher, nil, feed.NewAttributor(appCfg.Generator()), metrics.New())

	out, result, err := svc.Filter(context.Background(), service.Request{
		ClientID: "cli",
		Source:   appCfg.Filter.Source,
		Include:  feed.SplitCSV(appCfg.Filter.Include),
		Exclude:  feed.SplitCSV(appCfg.Filter.Exclude),
		Pattern:  appCfg.Filter.Regex,
	})
	if err != nil {
		return err
	}

	if appCfg.Filter.Output == "" {
		_, err := os.Stdout.Write(out)
		return err
	}

	if err := os.WriteFile(appCfg.Filter.Output, out, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	slog.Info("Filtered feed written", "output", appCfg.Filter.Output, "remaining", result.Remaining, "removed", result.Removed)
	return nil
}

func runServer(appCfg *cfg.Cfg) error {
	slog.Info("Starting RSS Sift server", "version", appCfg.Version)

	if !appCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := cache.NewStore(appCfg.CacheDir, appCfg.CacheMaxSizeBytes())
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	presets := feed.NewPresetCache(appCfg.PresetsDir)
	if err := presets.Run(); err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}
	slog.Info("Presets loaded", "count", presets.GetPresetCount(), "dir", appCfg.PresetsDir)

	if watcher, err := feed.NewPresetWatcher(presets); err != nil {
		slog.Warn("Preset hot reload disabled", "dir", appCfg.PresetsDir, "error", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	m := metrics.New()
	fetcher := fetch.NewFetcher(&http.Client{}, appCfg.UserAgent(), appCfg.RequestTimeoutDuration(), appCfg.MaxPayloadBytes())
	feedCache := cache.New(store, fetcher, m, appCfg.CacheMaxAgeDuration())
	limiter := ratelimit.New(appCfg.RateLimitRequests, appCfg.RateLimitWindowDuration())
	svc := service.New(limiter, feedCache, fetcher, presets, feed.NewAttributor(appCfg.Generator()), m)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := m.Register(registry, func() int64 {
		size, err := store.SizeBytes()
		if err != nil {
			slog.Warn("Failed to measure cache size", "error", err)
		}
		return size
	}); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	scheduler := tasks.NewScheduler(presets, feedCache, store, limiter, appCfg.SchedulerIntervalDuration(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerIntervalDuration())

	handler := api.NewHandler(svc, presets, feedCache, m, scheduler,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         appCfg.Addr(),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appCfg.RequestTimeoutDuration() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", appCfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}
