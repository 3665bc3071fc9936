package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"logsentry/config"
	"logsentry/internal/detectors"
	"logsentry/internal/logger"
	"logsentry/internal/output/alertnats"
	"logsentry/internal/rules"
	"logsentry/pkg/models"
)

const defaultConfigName = "logsentry.yml"

// Exit codes.
const (
	exitOK         = 0
	exitRules      = 1
	exitLogs       = 2
	exitRuleFaults = 3
	exitOutput     = 4
	exitUsage      = 64
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return defaultConfigName
}

func applyDefaults(cfg *config.Config) {
	ls := &cfg.LogSentry

	if ls.Input.Mode == "" {
		if len(ls.Input.Files) > 0 {
			ls.Input.Mode = "file"
		} else {
			ls.Input.Mode = "redis"
		}
	}
	if ls.Input.Redis.Addr == "" {
		ls.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if ls.Input.Redis.Key == "" {
		ls.Input.Redis.Key = "logsentry:events"
	}
	if ls.Input.Redis.BlockTimeout == 0 {
		ls.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if ls.Pipeline.BatchSize <= 0 {
		ls.Pipeline.BatchSize = 100
	}
	if ls.Pipeline.FlushInterval <= 0 {
		ls.Pipeline.FlushInterval = 2 * time.Second
	}

	if len(ls.Output.Modes) == 0 {
		ls.Output.Modes = []string{"console"}
	}
	if ls.Output.File.Path == "" {
		ls.Output.File.Path = "output/alerts.jsonl"
	}
	if ls.Output.Dir.Path == "" {
		ls.Output.Dir.Path = "output/alerts"
	}
	if ls.Output.ClickHouse.Database == "" {
		ls.Output.ClickHouse.Database = "logsentry"
	}
	if ls.Output.ClickHouse.Table == "" {
		ls.Output.ClickHouse.Table = "alerts"
	}
	if ls.Output.Redis.Addr == "" {
		ls.Output.Redis.Addr = ls.Input.Redis.Addr
	}
	if ls.Output.Redis.KeyPrefix == "" {
		ls.Output.Redis.KeyPrefix = "logsentry"
	}
	if ls.Output.NATS.Subject == "" {
		ls.Output.NATS.Subject = alertnats.DefaultSubject
	}

	if ls.Metrics.Addr == "" {
		ls.Metrics.Addr = ":9108"
	}

	if ls.Logging.Level == "" {
		ls.Logging.Level = "info"
	}
}

func loadConfig(configArg string) (*config.Config, string, error) {
	configPath := findConfigFile(configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, configPath, err
	}
	applyDefaults(cfg)
	return cfg, configPath, nil
}

// loadDetection loads rule files and, if sigmaPath is set, the Sigma catalog.
// An empty catalog is returned otherwise so sigma_match rules fault loudly
// instead of staying silent.
func loadDetection(rulePaths []string, sigmaPath string) ([]models.DetectionRule, *detectors.SigmaCatalog, error) {
	loaded, err := rules.LoadRules(rulePaths)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(sigmaPath) == "" {
		return loaded, detectors.NewSigmaCatalog(), nil
	}

	catalog, stats, err := rules.LoadSigmaCatalog(sigmaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load sigma rules from %s: %w", sigmaPath, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded from %s", sigmaPath)
	}
	return loaded, catalog, nil
}

// stringList is a flag that accepts repeated and comma-separated values.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			*s = append(*s, p)
		}
	}
	return nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `usage: logsentry <command> [flags]

commands:
  scan    evaluate NDJSON log files against detection rules
  watch   consume events from Redis and stream alerts to the configured outputs
`)
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "scan":
		os.Exit(runScan(os.Args[2:], os.Stdout, os.Stderr))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(exitUsage)
	}
}
