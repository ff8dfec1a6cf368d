package ingest

import (
	"context"
	"sync"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
	"hyperfeed/internal/scheduler"

	"golang.org/x/sync/errgroup"
)

// EnrichmentPoller walks the full tracked universe in round-robin
// batches, pulling recent candle snapshots over REST. Symbols outside
// the streamed window get their only market data this way; streamed
// symbols get gap patching for free since persistence upserts by
// bucket.
type EnrichmentPoller struct {
	cfg      config.EnrichmentConfig
	client   CandleFetcher
	buf      *WriteBuffer
	health   *healthTracker
	universe func() []string
	stopping func() bool

	mu     sync.Mutex
	cursor int

	cycleGate gate
	now       func() time.Time
}

func NewEnrichmentPoller(cfg config.EnrichmentConfig, client CandleFetcher, buf *WriteBuffer, health *healthTracker, universe func() []string, stopping func() bool) *EnrichmentPoller {
	return &EnrichmentPoller{
		cfg:      cfg,
		client:   client,
		buf:      buf,
		health:   health,
		universe: universe,
		stopping: stopping,
		now:      time.Now,
	}
}

// RunCycle polls the next batch of the universe. A cycle firing while
// the previous one still runs is skipped, not queued.
func (p *EnrichmentPoller) RunCycle(ctx context.Context) {
	p.cycleGate.TryDo(func() { p.pollBatch(ctx) })
}

// nextBatch advances the round-robin cursor and returns the next slice
// of symbols, wrapping at the end of the universe.
func (p *EnrichmentPoller) nextBatch(universe []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(universe) == 0 {
		return nil
	}
	if p.cursor >= len(universe) {
		p.cursor = 0
	}
	end := p.cursor + p.cfg.BatchSize
	if end > len(universe) {
		end = len(universe)
	}
	batch := universe[p.cursor:end]
	p.cursor = end
	return batch
}

func (p *EnrichmentPoller) pollBatch(ctx context.Context) {
	batch := p.nextBatch(p.universe())
	if len(batch) == 0 {
		return
	}
	logger.Debugf("enrichment: polling %d symbols", len(batch))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Concurrency)
	for _, symbol := range batch {
		symbol := symbol
		if groupCtx.Err() != nil || p.stopping() {
			break
		}
		group.Go(func() error {
			p.pollSymbol(groupCtx, symbol)
			scheduler.SleepContext(groupCtx, p.cfg.Delay())
			return nil
		})
	}
	_ = group.Wait()
}

func (p *EnrichmentPoller) pollSymbol(ctx context.Context, symbol string) {
	endMs := p.now().UnixMilli()
	startMs := endMs - p.cfg.Window().Milliseconds()
	candles, err := p.client.CandleSnapshot(ctx, symbol, snapshotInterval, startMs, endMs)
	if err != nil {
		logger.Debugf("enrichment: %s fetch failed: %v", symbol, err)
		return
	}
	if p.stopping() {
		return
	}

	candles = scheduler.DropUnclosedBuckets(candles, snapshotBucket())
	var newest int64
	kept := 0
	for _, c := range candles {
		c.Source = market.SourcePolling
		if !c.Valid() {
			continue
		}
		p.buf.AddCandle(c)
		kept++
		if c.Timestamp > newest {
			newest = c.Timestamp
		}
	}
	if kept > 0 {
		p.health.MarkMarketData(symbol, newest)
	}
}
