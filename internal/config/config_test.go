package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 80, cfg.Stream.MaxSymbols)
	assert.True(t, cfg.Stream.OrderBookEnabled)
	assert.True(t, cfg.Stream.TradesEnabled)
	assert.True(t, cfg.Stream.FundingEnabled)
	assert.Equal(t, 200*time.Millisecond, cfg.Buffer.FlushInterval())
	assert.Equal(t, 200, cfg.Buffer.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.Coverage.Interval())
	assert.Equal(t, 120*time.Second, cfg.Coverage.Freshness())
	assert.Equal(t, 0.75, cfg.Coverage.MinRatio)
	assert.Equal(t, 45*time.Second, cfg.Coverage.Warmup())
	assert.Equal(t, 40, cfg.Backfill.MaxPerCycle)
	assert.Equal(t, 120*time.Second, cfg.Backfill.Cooldown())
	assert.Equal(t, 4, cfg.Backfill.Concurrency)
	assert.Equal(t, 180*time.Minute, cfg.Backfill.Lookback())
	assert.Equal(t, 20*time.Second, cfg.Enrichment.Interval())
	assert.Equal(t, 25, cfg.Enrichment.BatchSize)
	assert.Equal(t, 5, cfg.Enrichment.Concurrency)
	assert.Equal(t, 40*time.Millisecond, cfg.Enrichment.Delay())
	assert.Equal(t, 5*time.Minute, cfg.Catalog.Refresh())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
app:
  log_level: debug
  db_path: /tmp/feed.db
stream:
  max_symbols: 40
  trades_enabled: false
coverage:
  min_ratio: 0.9
backfill:
  cooldown_seconds: 300
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "/tmp/feed.db", cfg.App.DBPath)
	assert.Equal(t, 40, cfg.Stream.MaxSymbols)
	assert.False(t, cfg.Stream.TradesEnabled, "explicit false survives defaults")
	assert.True(t, cfg.Stream.OrderBookEnabled)
	assert.Equal(t, 0.9, cfg.Coverage.MinRatio)
	assert.Equal(t, 5*time.Minute, cfg.Backfill.Cooldown())
	// untouched sections keep defaults
	assert.Equal(t, 200, cfg.Buffer.BatchSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HYPERFEED_STREAM_MAX_SYMBOLS", "25")
	t.Setenv("HYPERFEED_BUFFER_FLUSH_INTERVAL_MS", "500")
	t.Setenv("HYPERFEED_STREAM_FUNDING_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Stream.MaxSymbols)
	assert.Equal(t, 500*time.Millisecond, cfg.Buffer.FlushInterval())
	assert.False(t, cfg.Stream.FundingEnabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("max symbols below floor", func(t *testing.T) {
		t.Setenv("HYPERFEED_STREAM_MAX_SYMBOLS", "5")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream.max_symbols")
	})
	t.Run("bad ratio", func(t *testing.T) {
		t.Setenv("HYPERFEED_COVERAGE_MIN_RATIO", "1.5")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "coverage.min_ratio")
	})
	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("HYPERFEED_APP_LOG_LEVEL", "loud")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.log_level")
	})
}
