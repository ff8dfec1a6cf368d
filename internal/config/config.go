package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "HYPERFEED"

// Load reads configuration from the YAML file at path (optional; an
// empty path or a missing file falls back to defaults) merged with
// HYPERFEED_* environment variables, then applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(underlying(err)) {
				return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
			}
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Booleans need viper-level defaults so an explicit false in the
	// file or environment survives the defaults pass.
	v.SetDefault("stream.order_book_enabled", true)
	v.SetDefault("stream.trades_enabled", true)
	v.SetDefault("stream.funding_enabled", true)
	bindKeys(v)
	return v
}

// bindKeys registers every known key so AutomaticEnv resolves it even
// when the key never appears in the config file.
func bindKeys(v *viper.Viper) {
	keys := []string{
		"app.log_level", "app.log_path", "app.http_addr", "app.db_path",
		"exchange.ws_url", "exchange.rest_base_url", "exchange.http_timeout_seconds",
		"stream.max_symbols", "stream.min_day_volume", "stream.subscribe_delay_ms",
		"stream.order_book_enabled", "stream.trades_enabled", "stream.funding_enabled",
		"stream.early_close_seconds", "stream.stable_session_seconds",
		"stream.reconnect_max_seconds", "stream.ping_interval_seconds",
		"buffer.flush_interval_ms", "buffer.batch_size",
		"coverage.interval_seconds", "coverage.freshness_seconds", "coverage.min_ratio",
		"coverage.warmup_seconds", "coverage.summary_seconds",
		"backfill.max_per_cycle", "backfill.cooldown_seconds", "backfill.concurrency",
		"backfill.delay_ms", "backfill.lookback_minutes", "backfill.keep_candles",
		"enrichment.interval_seconds", "enrichment.batch_size", "enrichment.concurrency",
		"enrichment.delay_ms", "enrichment.window_minutes",
		"catalog.refresh_seconds",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
