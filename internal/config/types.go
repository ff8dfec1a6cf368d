package config

import "time"

// Config is the full configuration surface of the ingester. Every key
// can come from the YAML file or from an HYPERFEED_-prefixed
// environment variable (dots become underscores).
type Config struct {
	App        AppConfig        `toml:"app"`
	Exchange   ExchangeConfig   `toml:"exchange"`
	Stream     StreamConfig     `toml:"stream"`
	Buffer     BufferConfig     `toml:"buffer"`
	Coverage   CoverageConfig   `toml:"coverage"`
	Backfill   BackfillConfig   `toml:"backfill"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Catalog    CatalogConfig    `toml:"catalog"`
}

type AppConfig struct {
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
	DBPath   string `toml:"db_path"`
}

type ExchangeConfig struct {
	WSURL              string `toml:"ws_url"`
	RESTBaseURL        string `toml:"rest_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

// StreamConfig controls the WebSocket subscription set and the
// adaptive symbol window.
type StreamConfig struct {
	MaxSymbols           int     `toml:"max_symbols"`
	MinDayVolume         float64 `toml:"min_day_volume"`
	SubscribeDelayMs     int     `toml:"subscribe_delay_ms"`
	OrderBookEnabled     bool    `toml:"order_book_enabled"`
	TradesEnabled        bool    `toml:"trades_enabled"`
	FundingEnabled       bool    `toml:"funding_enabled"`
	EarlyCloseSeconds    int     `toml:"early_close_seconds"`
	StableSessionSeconds int     `toml:"stable_session_seconds"`
	ReconnectMaxSeconds  int     `toml:"reconnect_max_seconds"`
	PingIntervalSeconds  int     `toml:"ping_interval_seconds"`
}

type BufferConfig struct {
	FlushIntervalMs int `toml:"flush_interval_ms"`
	BatchSize       int `toml:"batch_size"`
}

type CoverageConfig struct {
	IntervalSeconds  int     `toml:"interval_seconds"`
	FreshnessSeconds int     `toml:"freshness_seconds"`
	MinRatio         float64 `toml:"min_ratio"`
	WarmupSeconds    int     `toml:"warmup_seconds"`
	SummarySeconds   int     `toml:"summary_seconds"`
}

type BackfillConfig struct {
	MaxPerCycle     int `toml:"max_per_cycle"`
	CooldownSeconds int `toml:"cooldown_seconds"`
	Concurrency     int `toml:"concurrency"`
	DelayMs         int `toml:"delay_ms"`
	LookbackMinutes int `toml:"lookback_minutes"`
	KeepCandles     int `toml:"keep_candles"`
}

type EnrichmentConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
	BatchSize       int `toml:"batch_size"`
	Concurrency     int `toml:"concurrency"`
	DelayMs         int `toml:"delay_ms"`
	WindowMinutes   int `toml:"window_minutes"`
}

type CatalogConfig struct {
	RefreshSeconds int `toml:"refresh_seconds"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }

func (e ExchangeConfig) HTTPTimeout() time.Duration  { return seconds(e.HTTPTimeoutSeconds) }
func (s StreamConfig) SubscribeDelay() time.Duration { return millis(s.SubscribeDelayMs) }
func (s StreamConfig) EarlyClose() time.Duration     { return seconds(s.EarlyCloseSeconds) }
func (s StreamConfig) StableSession() time.Duration  { return seconds(s.StableSessionSeconds) }
func (s StreamConfig) ReconnectMax() time.Duration   { return seconds(s.ReconnectMaxSeconds) }
func (s StreamConfig) PingInterval() time.Duration   { return seconds(s.PingIntervalSeconds) }
func (b BufferConfig) FlushInterval() time.Duration  { return millis(b.FlushIntervalMs) }
func (c CoverageConfig) Interval() time.Duration     { return seconds(c.IntervalSeconds) }
func (c CoverageConfig) Freshness() time.Duration    { return seconds(c.FreshnessSeconds) }
func (c CoverageConfig) Warmup() time.Duration       { return seconds(c.WarmupSeconds) }
func (c CoverageConfig) SummaryEvery() time.Duration { return seconds(c.SummarySeconds) }
func (b BackfillConfig) Cooldown() time.Duration     { return seconds(b.CooldownSeconds) }
func (b BackfillConfig) Delay() time.Duration        { return millis(b.DelayMs) }
func (b BackfillConfig) Lookback() time.Duration {
	return time.Duration(b.LookbackMinutes) * time.Minute
}
func (e EnrichmentConfig) Interval() time.Duration { return seconds(e.IntervalSeconds) }
func (e EnrichmentConfig) Delay() time.Duration    { return millis(e.DelayMs) }
func (e EnrichmentConfig) Window() time.Duration   { return time.Duration(e.WindowMinutes) * time.Minute }
func (c CatalogConfig) Refresh() time.Duration     { return seconds(c.RefreshSeconds) }
