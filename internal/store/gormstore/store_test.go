package gormstore

import (
	"context"
	"testing"

	"hyperfeed/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteBatch_CandleUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := market.Candle{Symbol: "BTC", Timestamp: 1700000000000, Open: 100, High: 105, Low: 98, Close: 102, Volume: 50, Source: market.SourceTrade}
	require.NoError(t, s.WriteBatch(ctx, Batch{Candles: []market.Candle{first}}))

	// Same (symbol, timestamp) with different values replaces the row.
	second := first
	second.Close = 104
	second.Volume = 75
	second.Source = market.SourceBackfill
	require.NoError(t, s.WriteBatch(ctx, Batch{Candles: []market.Candle{second}}))

	candles, err := s.CandlesForSymbol(ctx, "BTC", 10)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 104.0, candles[0].Close)
	assert.Equal(t, 75.0, candles[0].Volume)
	assert.Equal(t, market.SourceBackfill, candles[0].Source)
}

func TestCandlesForSymbol_LimitKeepsNewestInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var candles []market.Candle
	for i := 1; i <= 4; i++ {
		candles = append(candles, market.Candle{
			Symbol: "BTC", Timestamp: int64(i * 1000),
			Open: 1, High: 2, Low: 1, Close: 2, Volume: 1, Source: market.SourceTrade,
		})
	}
	require.NoError(t, s.WriteBatch(ctx, Batch{Candles: candles}))

	got, err := s.CandlesForSymbol(ctx, "BTC", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3000), got[0].Timestamp)
	assert.Equal(t, int64(4000), got[1].Timestamp, "newest buckets, ascending")
}

func TestWriteBatch_AppendOnlyTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := Batch{
		Books: []market.OrderBookSnapshot{{
			Symbol: "ETH", Timestamp: 1, Mid: 2000, Spread: 0.5,
			Bids: []market.BookLevel{{Price: 1999.75, Size: 3, Orders: 2}},
			Asks: []market.BookLevel{{Price: 2000.25, Size: 1, Orders: 1}},
		}},
		Trades:  []market.Trade{{Symbol: "ETH", Timestamp: 1, Price: 2000, Size: 0.1, Side: "B"}},
		Funding: []market.FundingRate{{Symbol: "ETH", Timestamp: 1, Rate: 0.0001, NextFunding: 3600000}},
		Traces:  []market.IngestionTrace{{Event: "ws_connected", Severity: market.TraceInfo, Metrics: map[string]any{"symbols": 12}}},
	}
	require.NoError(t, s.WriteBatch(ctx, batch))
	// A retried append-only batch duplicates rows; that is accepted.
	require.NoError(t, s.WriteBatch(ctx, batch))

	traces, err := s.RecentTraces(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, traces, 2)
	assert.Equal(t, "ws_connected", traces[0].Event)
	assert.EqualValues(t, 12, traces[0].Metrics["symbols"])
}

func TestWriteBatch_EmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.WriteBatch(context.Background(), Batch{}))
}

func TestUpsertTrackedSymbols_PreservesFirstSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTrackedSymbols(ctx, []market.TrackedSymbol{{
		Symbol: "BTC", Category: "perp", DayVolume: 900, MaxLeverage: 50,
		Active: true, FirstSeen: 1000, LastUpdated: 1000,
	}}))
	require.NoError(t, s.UpsertTrackedSymbols(ctx, []market.TrackedSymbol{{
		Symbol: "BTC", Category: "perp", DayVolume: 950, MaxLeverage: 40,
		Active: true, FirstSeen: 2000, LastUpdated: 2000,
	}}))

	symbols, err := s.TrackedSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, int64(1000), symbols[0].FirstSeen, "first_seen survives refresh")
	assert.Equal(t, int64(2000), symbols[0].LastUpdated)
	assert.Equal(t, 950.0, symbols[0].DayVolume)
	assert.Equal(t, 40, symbols[0].MaxLeverage)
}

func TestWriteBatch_HealthRowOverwritten(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteBatch(ctx, Batch{Health: []market.SymbolHealth{{
		Symbol: "BTC", LastMarketDataAt: 100, DataPoints: 5,
	}}}))
	require.NoError(t, s.WriteBatch(ctx, Batch{Health: []market.SymbolHealth{{
		Symbol: "BTC", LastMarketDataAt: 200, DataPoints: 9, BackfillPoints: 1,
	}}}))

	rows, err := s.SymbolHealthRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(200), rows[0].LastMarketDataAt)
	assert.Equal(t, int64(9), rows[0].DataPoints)
	assert.Equal(t, int64(1), rows[0].BackfillPoints)
}

func TestLastCandleTimes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	candles := []market.Candle{
		{Symbol: "BTC", Timestamp: 1000, Open: 1, High: 1, Low: 1, Close: 1, Source: market.SourceTrade},
		{Symbol: "BTC", Timestamp: 3000, Open: 1, High: 1, Low: 1, Close: 1, Source: market.SourceTrade},
		{Symbol: "ETH", Timestamp: 2000, Open: 1, High: 1, Low: 1, Close: 1, Source: market.SourceQuote},
	}
	require.NoError(t, s.WriteBatch(ctx, Batch{Candles: candles}))

	times, err := s.LastCandleTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"BTC": 3000, "ETH": 2000}, times)
}
