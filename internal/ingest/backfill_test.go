package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandleFetcher struct {
	mu      sync.Mutex
	calls   []string
	candles map[string][]market.Candle
	errs    map[string]error
}

func (f *fakeCandleFetcher) CandleSnapshot(_ context.Context, coin, _ string, _, _ int64) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, coin)
	if err := f.errs[coin]; err != nil {
		return nil, err
	}
	return append([]market.Candle(nil), f.candles[coin]...), nil
}

func (f *fakeCandleFetcher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func backfillCfg() config.BackfillConfig {
	return config.BackfillConfig{
		MaxPerCycle:     2,
		CooldownSeconds: 120,
		Concurrency:     2,
		LookbackMinutes: 180,
		KeepCandles:     5,
	}
}

// closedMinuteCandles returns n valid one-minute candles ending well in
// the past so none of them looks like a still-open bucket.
func closedMinuteCandles(symbol string, n int) []market.Candle {
	end := time.Now().Add(-10 * time.Minute).Truncate(time.Minute)
	out := make([]market.Candle, 0, n)
	for i := n - 1; i >= 0; i-- {
		ts := end.Add(-time.Duration(i) * time.Minute).UnixMilli()
		out = append(out, market.Candle{
			Symbol: symbol, Timestamp: ts,
			Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1,
		})
	}
	return out
}

func newTestBackfill(fetcher *fakeCandleFetcher, volumes map[string]float64) (*BackfillScheduler, *healthTracker, *fakeBatchWriter, *WriteBuffer) {
	sink := &fakeBatchWriter{}
	buf := NewWriteBuffer(sink, 1000)
	health := newHealthTracker()
	b := NewBackfillScheduler(backfillCfg(), fetcher, buf, health,
		func() map[string]float64 { return volumes },
		func() bool { return false })
	return b, health, sink, buf
}

func TestBackfillRanksByVolumeAndCapsBatch(t *testing.T) {
	fetcher := &fakeCandleFetcher{candles: map[string][]market.Candle{
		"BTC":  closedMinuteCandles("BTC", 3),
		"ETH":  closedMinuteCandles("ETH", 3),
		"DOGE": closedMinuteCandles("DOGE", 3),
	}}
	b, _, _, _ := newTestBackfill(fetcher, map[string]float64{"BTC": 300, "ETH": 200, "DOGE": 100})

	b.runBatch(context.Background(), []string{"DOGE", "ETH", "BTC"})

	called := fetcher.called()
	require.Len(t, called, 2, "cycle cap is 2")
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, called)
}

func TestBackfillCooldownSuppressesImmediateRetry(t *testing.T) {
	fetcher := &fakeCandleFetcher{errs: map[string]error{"BTC": errors.New("rate limited")}}
	b, _, _, _ := newTestBackfill(fetcher, map[string]float64{"BTC": 100})

	start := time.Now()
	b.now = func() time.Time { return start }
	b.runBatch(context.Background(), []string{"BTC"})
	require.Len(t, fetcher.called(), 1)

	// Still stale a moment later, but inside the cooldown window: the
	// attempt itself started the clock, success or not.
	b.now = func() time.Time { return start.Add(30 * time.Second) }
	b.runBatch(context.Background(), []string{"BTC"})
	assert.Len(t, fetcher.called(), 1)

	// Past the cooldown the symbol is eligible again.
	b.now = func() time.Time { return start.Add(121 * time.Second) }
	b.runBatch(context.Background(), []string{"BTC"})
	assert.Len(t, fetcher.called(), 2)

	_, failed := b.Counters()
	assert.EqualValues(t, 2, failed)
}

func TestBackfillKeepsRecentCandlesTaggedAsBackfill(t *testing.T) {
	candles := closedMinuteCandles("BTC", 8)
	fetcher := &fakeCandleFetcher{candles: map[string][]market.Candle{"BTC": candles}}
	b, health, sink, buf := newTestBackfill(fetcher, map[string]float64{"BTC": 100})

	b.runBatch(context.Background(), []string{"BTC"})
	buf.Flush(context.Background())

	batches := sink.written()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Candles, 5, "only the most recent keep_candles survive")
	for _, c := range batches[0].Candles {
		assert.Equal(t, market.SourceBackfill, c.Source)
	}
	newest := candles[len(candles)-1].Timestamp
	assert.Equal(t, newest, batches[0].Candles[4].Timestamp)

	rows := health.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, newest, rows[0].LastBackfillAt)
	assert.Equal(t, newest, rows[0].LastMarketDataAt)
	assert.EqualValues(t, 5, rows[0].BackfillPoints)
}

func TestBackfillFailureEmitsWarnTrace(t *testing.T) {
	fetcher := &fakeCandleFetcher{errs: map[string]error{"BTC": errors.New("boom")}}
	b, _, sink, buf := newTestBackfill(fetcher, nil)

	b.runBatch(context.Background(), []string{"BTC"})
	buf.Flush(context.Background())

	batches := sink.written()
	require.Len(t, batches, 1)
	var events []string
	for _, tr := range batches[0].Traces {
		events = append(events, tr.Event)
	}
	assert.Contains(t, events, "backfill_failed")
}
