package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	var problems []string

	switch strings.ToLower(strings.TrimSpace(c.App.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("app.log_level %q is not a known level", c.App.LogLevel))
	}

	if c.Stream.MaxSymbols < 10 {
		problems = append(problems, fmt.Sprintf("stream.max_symbols=%d is below the adaptive-window floor of 10", c.Stream.MaxSymbols))
	}
	if c.Coverage.MinRatio <= 0 || c.Coverage.MinRatio > 1 {
		problems = append(problems, fmt.Sprintf("coverage.min_ratio=%v must be in (0, 1]", c.Coverage.MinRatio))
	}
	if c.Coverage.FreshnessSeconds < c.Coverage.IntervalSeconds {
		problems = append(problems, "coverage.freshness_seconds must be at least coverage.interval_seconds")
	}
	if c.Buffer.BatchSize > 10_000 {
		problems = append(problems, fmt.Sprintf("buffer.batch_size=%d is unreasonably large", c.Buffer.BatchSize))
	}
	if c.Backfill.Concurrency > 32 {
		problems = append(problems, fmt.Sprintf("backfill.concurrency=%d exceeds 32", c.Backfill.Concurrency))
	}
	if c.Enrichment.Concurrency > 32 {
		problems = append(problems, fmt.Sprintf("enrichment.concurrency=%d exceeds 32", c.Enrichment.Concurrency))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
