package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"logsentry/config"
	"logsentry/internal/detectors"
	"logsentry/internal/engine"
	"logsentry/internal/input/file"
	"logsentry/internal/logger"
	"logsentry/internal/output"
	"logsentry/internal/output/alertconsole"
	"logsentry/internal/output/alertdir"
	"logsentry/internal/output/alertjson"
	"logsentry/pkg/models"
)

func runScan(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var logPaths, rulePaths stringList
	fs.Var(&logPaths, "logs", "NDJSON log file (repeatable or comma-separated)")
	fs.Var(&rulePaths, "rules", "YAML or JSON rule file (repeatable or comma-separated)")
	sigmaPath := fs.String("sigma", "", "Sigma rule file or directory for sigma_match rules")
	alertDir := fs.String("alert-dir", "", "Directory to store one JSON file per alert")
	jsonlPath := fs.String("jsonl", "", "Append alerts to this JSON lines file")
	configArg := fs.String("config", "", "Optional config file supplying rules, inputs and logging")
	tz := fs.String("tz", "UTC", "Time zone for log timestamps without an offset")
	quiet := fs.Bool("quiet", false, "Do not print alerts to stdout")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logging := config.LoggingConfig{Enabled: true, Level: "warn", Console: true}
	sigma := *sigmaPath
	if *configArg != "" {
		cfg, path, err := loadConfig(*configArg)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading config %s: %v\n", path, err)
			return exitUsage
		}
		ls := cfg.LogSentry
		logging = ls.Logging
		if len(rulePaths) == 0 {
			rulePaths = ls.Rules.Paths
		}
		if len(logPaths) == 0 {
			logPaths = ls.Input.Files
		}
		if sigma == "" {
			sigma = ls.Rules.SigmaPath
		}
	}
	if err := logger.Init(logger.Options{
		Enabled: logging.Enabled,
		Level:   logging.Level,
		File:    logging.File,
		Console: logging.Console,
	}); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitUsage
	}
	defer logger.Close()

	if len(logPaths) == 0 || len(rulePaths) == 0 {
		fmt.Fprintln(stderr, "scan requires --logs and --rules")
		fs.Usage()
		return exitUsage
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(stderr, "Unknown time zone %q: %v\n", *tz, err)
		return exitUsage
	}

	ruleSet, catalog, err := loadDetection(rulePaths, sigma)
	if err != nil {
		fmt.Fprintf(stdout, "Error loading rules: %v\n", err)
		return exitRules
	}

	eng := engine.New(ruleSet, engine.WithRegistry(detectors.Builtin(catalog)))
	reader := file.NewReader(logPaths, loc)

	// Alerts are held back until every log has been read so a malformed file
	// produces no partial output.
	var (
		alerts []*models.Alert
		faults []error
	)
	for alert, err := range eng.Process(reader.Events()) {
		if err != nil {
			faults = append(faults, err)
			fmt.Fprintf(stderr, "Rule fault: %v\n", err)
			continue
		}
		alerts = append(alerts, alert)
	}
	if err := reader.Err(); err != nil {
		fmt.Fprintf(stdout, "Error reading logs: %v\n", err)
		return exitLogs
	}

	sinks := output.NewMulti()
	if !*quiet {
		sinks.Add("console", alertconsole.NewWriter(stdout, alertconsole.DefaultMaxEvents))
	}
	if *alertDir != "" {
		w, err := alertdir.NewWriter(*alertDir)
		if err != nil {
			fmt.Fprintf(stderr, "Error creating alert directory: %v\n", err)
			return exitOutput
		}
		sinks.Add("dir", w)
	}
	if *jsonlPath != "" {
		w, err := alertjson.NewWriter(*jsonlPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening alert file: %v\n", err)
			return exitOutput
		}
		sinks.Add("jsonl", w)
	}

	writeErr := sinks.WriteAlerts(alerts)
	if err := sinks.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		fmt.Fprintf(stderr, "Error writing alerts: %v\n", writeErr)
	}

	fmt.Fprintf(stdout, "Processed %d events and generated %d alerts.\n", reader.Read(), len(alerts))

	if len(faults) > 0 {
		fmt.Fprintf(stderr, "%d rule(s) disabled by configuration errors\n", len(faults))
		return exitRuleFaults
	}
	if writeErr != nil {
		return exitOutput
	}
	return exitOK
}
