package main

import (
	"fmt"
	"io"

	"logsentry/config"
	"logsentry/internal/logger"
	"logsentry/internal/output"
	"logsentry/internal/output/alertclickhouse"
	"logsentry/internal/output/alertconsole"
	"logsentry/internal/output/alertdir"
	"logsentry/internal/output/alerthttp"
	"logsentry/internal/output/alertjson"
	"logsentry/internal/output/alertnats"
	"logsentry/internal/output/alertredis"
)

// buildAlertWriter opens every configured sink. On error the sinks opened so
// far are closed.
func buildAlertWriter(cfg config.OutputConfig, stdout io.Writer) (output.Writer, error) {
	multi := output.NewMulti()
	fail := func(err error) (output.Writer, error) {
		multi.Close()
		return nil, err
	}

	for _, mode := range cfg.Modes {
		var (
			w   output.Writer
			err error
		)
		switch mode {
		case "console":
			w = alertconsole.NewWriter(stdout, cfg.Console.MaxEvents)
		case "jsonl", "file":
			w, err = alertjson.NewWriter(cfg.File.Path)
		case "dir":
			w, err = alertdir.NewWriter(cfg.Dir.Path)
		case "http":
			w, err = alerthttp.NewWriter(alerthttp.Config{
				URL:         cfg.HTTP.URL,
				Timeout:     cfg.HTTP.Timeout,
				Headers:     cfg.HTTP.Headers,
				MaxFailures: cfg.HTTP.Breaker.MaxFailures,
				OpenTimeout: cfg.HTTP.Breaker.OpenTimeout,
			})
		case "clickhouse":
			w, err = alertclickhouse.NewWriter(alertclickhouse.Config{
				URL:      cfg.ClickHouse.URL,
				Database: cfg.ClickHouse.Database,
				Table:    cfg.ClickHouse.Table,
				Username: cfg.ClickHouse.Username,
				Password: cfg.ClickHouse.Password,
				Timeout:  cfg.ClickHouse.Timeout,
				Headers:  cfg.ClickHouse.Headers,
			})
		case "redis":
			w, err = alertredis.NewWriter(alertredis.Config{
				Addr:      cfg.Redis.Addr,
				Password:  cfg.Redis.Password,
				DB:        cfg.Redis.DB,
				KeyPrefix: cfg.Redis.KeyPrefix,
				TTL:       cfg.Redis.TTL,
			})
		case "nats":
			w, err = alertnats.NewWriter(alertnats.Config{
				URL:     cfg.NATS.URL,
				Subject: cfg.NATS.Subject,
				Timeout: cfg.NATS.Timeout,
			})
		default:
			return fail(fmt.Errorf("unknown output mode %q", mode))
		}
		if err != nil {
			return fail(fmt.Errorf("output %s: %w", mode, err))
		}
		multi.Add(mode, w)
		logger.Infof("Alert output enabled: %s", mode)
	}

	if multi.Len() == 0 {
		return nil, fmt.Errorf("no alert outputs configured")
	}
	if cfg.DedupeIDs > 0 {
		d, err := output.NewDedupe(multi, cfg.DedupeIDs)
		if err != nil {
			return fail(err)
		}
		return d, nil
	}
	return multi, nil
}
