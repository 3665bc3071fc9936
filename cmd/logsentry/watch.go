package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logsentry/internal/detectors"
	"logsentry/internal/engine"
	inputredis "logsentry/internal/input/redis"
	"logsentry/internal/logger"
	"logsentry/internal/metrics"
	"logsentry/internal/pipeline"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file (default logsentry.yml)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *configArg == "" && fs.NArg() > 0 {
		*configArg = fs.Arg(0)
	}

	cfg, configPath, err := loadConfig(*configArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", configPath, err)
		return exitUsage
	}
	ls := cfg.LogSentry

	if err := logger.Init(logger.Options{
		Enabled: ls.Logging.Enabled,
		Level:   ls.Logging.Level,
		File:    ls.Logging.File,
		Console: ls.Logging.Console,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return exitUsage
	}
	defer logger.Close()

	logger.Infof("LogSentry starting")
	logger.Infof("Config loaded from: %s", configPath)

	if ls.Input.Mode != "redis" {
		logger.Errorf("watch requires input.mode=redis, got %q; use scan for files", ls.Input.Mode)
		return exitUsage
	}

	ruleSet, catalog, err := loadDetection(ls.Rules.Paths, ls.Rules.SigmaPath)
	if err != nil {
		logger.Errorf("Failed to load rules: %v", err)
		return exitRules
	}

	m := metrics.New()
	eng := engine.New(ruleSet,
		engine.WithRegistry(detectors.Builtin(catalog)),
		engine.WithObserver(m),
	)
	logger.Infof("Detection engine ready: %d enabled rules", len(eng.Rules()))

	writer, err := buildAlertWriter(ls.Output, os.Stdout)
	if err != nil {
		logger.Errorf("Failed to create alert outputs: %v", err)
		return exitUsage
	}

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:           ls.Input.Redis.Addr,
		Password:       ls.Input.Redis.Password,
		DB:             ls.Input.Redis.DB,
		Key:            ls.Input.Redis.Key,
		BlockTimeout:   ls.Input.Redis.BlockTimeout,
		MaxRecordBytes: ls.Input.Redis.MaxRecordBytes,
	})
	if err != nil {
		writer.Close()
		logger.Errorf("Failed to create Redis consumer: %v", err)
		return exitLogs
	}

	pipe := pipeline.NewStreamPipeline(consumer, eng, writer, pipeline.Options{
		BatchSize:     ls.Pipeline.BatchSize,
		FlushInterval: ls.Pipeline.FlushInterval,
		Stats:         m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if ls.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv = &http.Server{Addr: ls.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Infof("Metrics listening on %s", ls.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Pipeline error: %v", err)
	}

	logger.Infof("Shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(shutdownCtx)
		cancel()
	}
	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if n := consumer.Dropped(); n > 0 {
		logger.Warnf("Dropped %d oversized records from %s", n, consumer.Name())
	}

	code := exitOK
	for id, err := range eng.Faults() {
		logger.Warnf("Rule %s was disabled: %v", id, err)
		code = exitRuleFaults
	}
	logger.Infof("LogSentry stopped")
	return code
}
