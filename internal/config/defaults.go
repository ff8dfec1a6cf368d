package config

// applyDefaults fills every unset numeric/string field. Channel enable
// flags are defaulted at the viper layer so explicit false survives.
func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9985"
	}
	if c.App.DBPath == "" {
		c.App.DBPath = "data/hyperfeed.db"
	}

	if c.Exchange.HTTPTimeoutSeconds <= 0 {
		c.Exchange.HTTPTimeoutSeconds = 15
	}

	if c.Stream.MaxSymbols <= 0 {
		c.Stream.MaxSymbols = 80
	}
	if c.Stream.MinDayVolume <= 0 {
		c.Stream.MinDayVolume = 1_000_000
	}
	if c.Stream.SubscribeDelayMs <= 0 {
		c.Stream.SubscribeDelayMs = 100
	}
	if c.Stream.EarlyCloseSeconds <= 0 {
		c.Stream.EarlyCloseSeconds = 30
	}
	if c.Stream.StableSessionSeconds <= 0 {
		c.Stream.StableSessionSeconds = 120
	}
	if c.Stream.ReconnectMaxSeconds <= 0 {
		c.Stream.ReconnectMaxSeconds = 60
	}
	if c.Stream.PingIntervalSeconds <= 0 {
		c.Stream.PingIntervalSeconds = 45
	}

	if c.Buffer.FlushIntervalMs <= 0 {
		c.Buffer.FlushIntervalMs = 200
	}
	if c.Buffer.BatchSize <= 0 {
		c.Buffer.BatchSize = 200
	}

	if c.Coverage.IntervalSeconds <= 0 {
		c.Coverage.IntervalSeconds = 15
	}
	if c.Coverage.FreshnessSeconds <= 0 {
		c.Coverage.FreshnessSeconds = 120
	}
	if c.Coverage.MinRatio <= 0 {
		c.Coverage.MinRatio = 0.75
	}
	if c.Coverage.WarmupSeconds <= 0 {
		c.Coverage.WarmupSeconds = 45
	}
	if c.Coverage.SummarySeconds <= 0 {
		c.Coverage.SummarySeconds = 60
	}

	if c.Backfill.MaxPerCycle <= 0 {
		c.Backfill.MaxPerCycle = 40
	}
	if c.Backfill.CooldownSeconds <= 0 {
		c.Backfill.CooldownSeconds = 120
	}
	if c.Backfill.Concurrency <= 0 {
		c.Backfill.Concurrency = 4
	}
	if c.Backfill.DelayMs <= 0 {
		c.Backfill.DelayMs = 40
	}
	if c.Backfill.LookbackMinutes <= 0 {
		c.Backfill.LookbackMinutes = 180
	}
	if c.Backfill.KeepCandles <= 0 {
		c.Backfill.KeepCandles = 5
	}

	if c.Enrichment.IntervalSeconds <= 0 {
		c.Enrichment.IntervalSeconds = 20
	}
	if c.Enrichment.BatchSize <= 0 {
		c.Enrichment.BatchSize = 25
	}
	if c.Enrichment.Concurrency <= 0 {
		c.Enrichment.Concurrency = 5
	}
	if c.Enrichment.DelayMs <= 0 {
		c.Enrichment.DelayMs = 40
	}
	if c.Enrichment.WindowMinutes <= 0 {
		c.Enrichment.WindowMinutes = 10
	}

	if c.Catalog.RefreshSeconds <= 0 {
		c.Catalog.RefreshSeconds = 300
	}
}
