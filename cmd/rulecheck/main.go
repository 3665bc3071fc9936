package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"logsentry/internal/detectors"
	"logsentry/internal/logger"
	"logsentry/internal/rules"
)

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

// check loads rule files and coerces every enabled rule's parameters up
// front. It returns the number of problems found, or -1 if the files could
// not be loaded.
func check(rulePaths []string, sigmaPath string, strict bool, out io.Writer) int {
	ruleSet, err := rules.LoadRules(rulePaths)
	if err != nil {
		fmt.Fprintf(out, "failed to load rules: %v\n", err)
		return -1
	}

	catalog := detectors.NewSigmaCatalog()
	if strings.TrimSpace(sigmaPath) != "" {
		c, stats, err := rules.LoadSigmaCatalog(sigmaPath)
		if err != nil {
			fmt.Fprintf(out, "failed to load sigma rules: %v\n", err)
			return -1
		}
		catalog = c
		fmt.Fprintf(out, "sigma: loaded=%d skipped_complex=%d skipped_invalid=%d\n", stats.Loaded, stats.SkippedComplex, stats.SkippedInvalid)
	}
	registry := detectors.Builtin(catalog)

	problems := 0
	seen := make(map[string]bool, len(ruleSet))
	for i := range ruleSet {
		rule := &ruleSet[i]
		if seen[rule.ID] {
			fmt.Fprintf(out, "FAIL %s: duplicate rule id\n", rule.ID)
			problems++
			continue
		}
		seen[rule.ID] = true

		if !rule.Enabled {
			fmt.Fprintf(out, "SKIP %s: disabled\n", rule.ID)
			continue
		}
		d, ok := registry.Lookup(rule.RuleType)
		if !ok {
			fmt.Fprintf(out, "WARN %s: unknown rule_type %q (known: %s)\n", rule.ID, rule.RuleType, strings.Join(registry.Types(), ", "))
			if strict {
				problems++
			}
			continue
		}
		if err := d.Validate(rule); err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", rule.ID, err)
			problems++
			continue
		}
		fmt.Fprintf(out, "OK   %s (%s)\n", rule.ID, rule.RuleType)
	}

	fmt.Fprintf(out, "checked rules=%d problems=%d\n", len(ruleSet), problems)
	return problems
}

func main() {
	var rulePaths stringList
	flag.Var(&rulePaths, "rules", "YAML or JSON rule file (repeatable or comma-separated)")
	sigmaPath := flag.String("sigma", "", "Sigma rule file or directory for sigma_match rules")
	strict := flag.Bool("strict", false, "Treat unknown rule types as problems")
	flag.Parse()

	rulePaths = append(rulePaths, flag.Args()...)
	if len(rulePaths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rulecheck --rules <file> [--sigma <path>] [--strict]")
		os.Exit(2)
	}

	if err := logger.Init(logger.Options{Enabled: true, Level: "warn", Console: true}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Close()

	switch n := check(rulePaths, *sigmaPath, *strict, os.Stdout); {
	case n < 0:
		os.Exit(2)
	case n > 0:
		os.Exit(1)
	}
}
