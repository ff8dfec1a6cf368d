package market

// Source records where a candle's data came from.
type Source string

const (
	SourceTrade    Source = "trade"
	SourceQuote    Source = "quote"
	SourceMixed    Source = "mixed"
	SourceBackfill Source = "backfill"
	SourcePolling  Source = "polling"
)

// MergeSource combines the provenance of an existing candle with the
// provenance of an incoming tick. Trade and quote data in the same
// bucket yields a mixed candle.
func MergeSource(existing, incoming Source) Source {
	if existing == "" {
		return incoming
	}
	if existing == incoming {
		return existing
	}
	switch {
	case existing == SourceTrade && incoming == SourceQuote,
		existing == SourceQuote && incoming == SourceTrade,
		existing == SourceMixed:
		return SourceMixed
	}
	return incoming
}

// Candle is a 1-second OHLCV bucket. Timestamp is the bucket start in
// unix milliseconds.
type Candle struct {
	Symbol    string   `json:"symbol"`
	Timestamp int64    `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    float64  `json:"volume"`
	VWAP      *float64 `json:"vwap,omitempty"`
	Source    Source   `json:"source"`
}

// Valid reports whether the candle satisfies the OHLC invariant:
// low <= open,close <= high, all prices positive, volume non-negative.
func (c Candle) Valid() bool {
	if c.Timestamp <= 0 {
		return false
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.High < c.Low {
		return false
	}
	if c.Open < c.Low || c.Open > c.High {
		return false
	}
	if c.Close < c.Low || c.Close > c.High {
		return false
	}
	return c.Volume >= 0
}

// BookLevel is a single price level of an order book side.
type BookLevel struct {
	Price  float64 `json:"px"`
	Size   float64 `json:"sz"`
	Orders int     `json:"n"`
}

// OrderBookSnapshot captures the top of book at a point in time.
type OrderBookSnapshot struct {
	Symbol    string      `json:"symbol"`
	Timestamp int64       `json:"timestamp"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Mid       float64     `json:"mid"`
	Spread    float64     `json:"spread"`
}

// Trade is a single exchange trade event.
type Trade struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      string  `json:"side"`
}

// FundingRate is one funding observation for a perpetual symbol.
type FundingRate struct {
	Symbol      string  `json:"symbol"`
	Timestamp   int64   `json:"timestamp"`
	Rate        float64 `json:"rate"`
	NextFunding int64   `json:"next_funding"`
}

// AssetMeta is per-symbol exchange metadata from the catalog refresh.
type AssetMeta struct {
	Symbol      string  `json:"symbol"`
	Category    string  `json:"category"`
	DayVolume   float64 `json:"day_volume"`
	MaxLeverage int     `json:"max_leverage"`
	SzDecimals  int     `json:"sz_decimals"`
}

// TrackedSymbol is the persisted form of a catalog entry.
type TrackedSymbol struct {
	Symbol      string  `json:"symbol"`
	Category    string  `json:"category"`
	DayVolume   float64 `json:"day_volume"`
	MaxLeverage int     `json:"max_leverage"`
	SzDecimals  int     `json:"sz_decimals"`
	Active      bool    `json:"active"`
	FirstSeen   int64   `json:"first_seen"`
	LastUpdated int64   `json:"last_updated"`
}

// SymbolHealth tracks per-symbol ingestion freshness. One row per
// symbol, overwritten each coverage cycle.
type SymbolHealth struct {
	Symbol           string `json:"symbol"`
	LastMarketDataAt int64  `json:"last_market_data_at"`
	LastQuoteAt      int64  `json:"last_quote_at"`
	LastTradeAt      int64  `json:"last_trade_at"`
	LastBackfillAt   int64  `json:"last_backfill_at"`
	DataPoints       int64  `json:"data_points"`
	BackfillPoints   int64  `json:"backfill_points"`
}

// Trace severities.
const (
	TraceInfo  = "info"
	TraceWarn  = "warn"
	TraceError = "error"
)

// IngestionTrace is an append-only structured audit record of
// ingestion and self-healing decisions.
type IngestionTrace struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Severity  string         `json:"severity"`
	Event     string         `json:"event"`
	Symbol    string         `json:"symbol,omitempty"`
	Source    string         `json:"source,omitempty"`
	Details   string         `json:"details,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}
