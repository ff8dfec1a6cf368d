package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
	"hyperfeed/internal/scheduler"

	"golang.org/x/sync/errgroup"
)

// CandleFetcher is the REST surface backfill and enrichment pull from.
type CandleFetcher interface {
	CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]market.Candle, error)
}

// snapshotInterval is the exchange candle interval REST pulls request;
// 1m is the finest granularity the snapshot endpoint serves.
const snapshotInterval = "1m"

func snapshotBucket() time.Duration {
	d, _ := scheduler.ParseIntervalDuration(snapshotInterval)
	return d
}

// BackfillScheduler recovers stale symbols via REST candle snapshots.
// Selection is cooldown-gated on the last *attempt* — recorded at
// dispatch, before the outcome is known — so a consistently failing
// symbol cannot hot-loop.
type BackfillScheduler struct {
	cfg      config.BackfillConfig
	client   CandleFetcher
	buf      *WriteBuffer
	health   *healthTracker
	volumes  func() map[string]float64
	stopping func() bool

	mu       sync.Mutex
	attempts map[string]int64

	runGate gate
	now     func() time.Time

	completed atomic.Int64
	failed    atomic.Int64
}

func NewBackfillScheduler(cfg config.BackfillConfig, client CandleFetcher, buf *WriteBuffer, health *healthTracker, volumes func() map[string]float64, stopping func() bool) *BackfillScheduler {
	return &BackfillScheduler{
		cfg:      cfg,
		client:   client,
		buf:      buf,
		health:   health,
		volumes:  volumes,
		stopping: stopping,
		attempts: make(map[string]int64),
		now:      time.Now,
	}
}

// Running reports whether a backfill batch is in flight.
func (b *BackfillScheduler) Running() bool { return b.runGate.Busy() }

// Counters returns completed/failed symbol totals.
func (b *BackfillScheduler) Counters() (completed, failed int64) {
	return b.completed.Load(), b.failed.Load()
}

// Trigger starts one backfill batch for the given stale symbols. A
// trigger arriving while a batch runs is dropped; the next coverage
// cycle re-evaluates staleness anyway.
func (b *BackfillScheduler) Trigger(ctx context.Context, stale []string) {
	go b.runGate.TryDo(func() { b.runBatch(ctx, stale) })
}

func (b *BackfillScheduler) runBatch(ctx context.Context, stale []string) {
	nowMs := b.now().UnixMilli()

	b.mu.Lock()
	attempts := make(map[string]int64, len(b.attempts))
	for k, v := range b.attempts {
		attempts[k] = v
	}
	b.mu.Unlock()

	selected := market.SelectBackfillSymbols(stale, b.volumes(), attempts, nowMs, b.cfg.Cooldown().Milliseconds(), b.cfg.MaxPerCycle)
	if len(selected) == 0 {
		return
	}

	// Attempts are stamped up front, success or not.
	b.mu.Lock()
	for _, symbol := range selected {
		b.attempts[symbol] = nowMs
	}
	b.mu.Unlock()

	logger.Infof("backfill: starting batch of %d symbols (stale %d)", len(selected), len(stale))
	b.buf.AddTrace(market.IngestionTrace{
		Severity: market.TraceInfo,
		Event:    "backfill_batch",
		Metrics:  map[string]any{"selected": len(selected), "stale": len(stale)},
	})

	var cursor atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < b.cfg.Concurrency; i++ {
		group.Go(func() error {
			for {
				idx := cursor.Add(1) - 1
				if int(idx) >= len(selected) || groupCtx.Err() != nil || b.stopping() {
					return nil
				}
				b.fetchSymbol(groupCtx, selected[idx])
				scheduler.SleepContext(groupCtx, b.cfg.Delay())
			}
		})
	}
	_ = group.Wait()
}

func (b *BackfillScheduler) fetchSymbol(ctx context.Context, symbol string) {
	endMs := b.now().UnixMilli()
	startMs := endMs - b.cfg.Lookback().Milliseconds()
	candles, err := b.client.CandleSnapshot(ctx, symbol, snapshotInterval, startMs, endMs)
	if err != nil {
		b.failed.Add(1)
		logger.Warnf("backfill: %s fetch failed: %v", symbol, err)
		b.buf.AddTrace(market.IngestionTrace{
			Severity: market.TraceWarn,
			Event:    "backfill_failed",
			Symbol:   symbol,
			Details:  err.Error(),
		})
		return
	}
	if b.stopping() {
		return
	}

	// Keep only the most recent buckets and never the still-open one:
	// a partial snapshot bucket must not clobber a live trade candle.
	candles = scheduler.DropUnclosedBuckets(candles, snapshotBucket())
	if keep := b.cfg.KeepCandles; len(candles) > keep {
		candles = candles[len(candles)-keep:]
	}

	kept := 0
	var newest int64
	for _, c := range candles {
		c.Source = market.SourceBackfill
		if !c.Valid() {
			continue
		}
		b.buf.AddCandle(c)
		kept++
		if c.Timestamp > newest {
			newest = c.Timestamp
		}
	}
	if kept > 0 {
		b.health.MarkBackfill(symbol, newest, kept)
		b.health.MarkMarketData(symbol, newest)
	}
	b.completed.Add(1)
	b.buf.AddTrace(market.IngestionTrace{
		Severity: market.TraceInfo,
		Event:    "backfill_ok",
		Symbol:   symbol,
		Source:   string(market.SourceBackfill),
		Metrics:  map[string]any{"candles": kept},
	})
}
