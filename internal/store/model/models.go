package model

import "gorm.io/datatypes"

// MarketDataModel maps to 'market_data'. One row per (symbol, bucket),
// upserted so re-ingesting a bucket replaces instead of duplicating.
type MarketDataModel struct {
	ID        int64    `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol    string   `gorm:"column:symbol;uniqueIndex:idx_market_data_symbol_ts"`
	Timestamp int64    `gorm:"column:timestamp;uniqueIndex:idx_market_data_symbol_ts"`
	Open      float64  `gorm:"column:open"`
	High      float64  `gorm:"column:high"`
	Low       float64  `gorm:"column:low"`
	Close     float64  `gorm:"column:close"`
	Volume    float64  `gorm:"column:volume"`
	VWAP      *float64 `gorm:"column:vwap"`
	Source    string   `gorm:"column:source"`
}

func (MarketDataModel) TableName() string { return "market_data" }

// OrderBookModel maps to 'order_book'. Append-only.
type OrderBookModel struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol    string         `gorm:"column:symbol;index"`
	Timestamp int64          `gorm:"column:timestamp"`
	Bids      datatypes.JSON `gorm:"column:bids"`
	Asks      datatypes.JSON `gorm:"column:asks"`
	Mid       float64        `gorm:"column:mid"`
	Spread    float64        `gorm:"column:spread"`
}

func (OrderBookModel) TableName() string { return "order_book" }

// MarketTradeModel maps to 'market_trades'. Append-only, one row per
// exchange trade event.
type MarketTradeModel struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol    string  `gorm:"column:symbol;index"`
	Timestamp int64   `gorm:"column:timestamp"`
	Price     float64 `gorm:"column:price"`
	Size      float64 `gorm:"column:size"`
	Side      string  `gorm:"column:side"`
}

func (MarketTradeModel) TableName() string { return "market_trades" }

// FundingRateModel maps to 'funding_rates'. Append-only.
type FundingRateModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol      string  `gorm:"column:symbol;index"`
	Timestamp   int64   `gorm:"column:timestamp"`
	Rate        float64 `gorm:"column:rate"`
	NextFunding int64   `gorm:"column:next_funding"`
}

func (FundingRateModel) TableName() string { return "funding_rates" }

// TrackedSymbolModel maps to 'tracked_symbols', keyed on symbol.
// first_seen is preserved across catalog refreshes.
type TrackedSymbolModel struct {
	Symbol      string  `gorm:"column:symbol;primaryKey"`
	Category    string  `gorm:"column:category"`
	DayVolume   float64 `gorm:"column:day_volume"`
	MaxLeverage int     `gorm:"column:max_leverage"`
	SzDecimals  int     `gorm:"column:sz_decimals"`
	Active      bool    `gorm:"column:active"`
	FirstSeen   int64   `gorm:"column:first_seen"`
	LastUpdated int64   `gorm:"column:last_updated"`
}

func (TrackedSymbolModel) TableName() string { return "tracked_symbols" }

// IngestionTraceModel maps to 'ingestion_traces'. Append-only audit
// log of ingestion and self-healing decisions.
type IngestionTraceModel struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Timestamp int64          `gorm:"column:timestamp;index"`
	Severity  string         `gorm:"column:severity"`
	Event     string         `gorm:"column:event"`
	Symbol    string         `gorm:"column:symbol"`
	Source    string         `gorm:"column:source"`
	Details   string         `gorm:"column:details"`
	Metrics   datatypes.JSON `gorm:"column:metrics"`
}

func (IngestionTraceModel) TableName() string { return "ingestion_traces" }

// SymbolHealthModel maps to 'symbol_ingestion_health', one row per
// symbol, overwritten each coverage cycle.
type SymbolHealthModel struct {
	Symbol           string `gorm:"column:symbol;primaryKey"`
	LastMarketDataAt int64  `gorm:"column:last_market_data_at"`
	LastQuoteAt      int64  `gorm:"column:last_quote_at"`
	LastTradeAt      int64  `gorm:"column:last_trade_at"`
	LastBackfillAt   int64  `gorm:"column:last_backfill_at"`
	DataPoints       int64  `gorm:"column:data_points"`
	BackfillPoints   int64  `gorm:"column:backfill_points"`
}

func (SymbolHealthModel) TableName() string { return "symbol_ingestion_health" }
