package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/gateway/hyperliquid"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
	"hyperfeed/internal/scheduler"
	"hyperfeed/internal/store/gormstore"
)

// Service owns the full ingestion pipeline: socket, aggregator, write
// buffer, coverage audit, backfill, enrichment and catalog refresh.
// Every dependency is injected at construction; there is no package
// state.
type Service struct {
	cfg    *config.Config
	store  *gormstore.Store
	buf    *WriteBuffer
	agg    *TickAggregator
	health *healthTracker
	runner *scheduler.Runner

	conn     *ConnectionManager
	subs     *SubscriptionSynchronizer
	backfill *BackfillScheduler
	enrich   *EnrichmentPoller
	coverage *CoverageMonitor
	catalog  *SymbolCatalog

	mu       sync.Mutex
	runCtx   context.Context
	streamed map[string]struct{}
}

// NewService wires the pipeline. The dialer and REST client are passed
// in so tests can substitute fakes.
func NewService(cfg *config.Config, store *gormstore.Store, client *hyperliquid.Client, dialer hyperliquid.Dialer) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		health:   newHealthTracker(),
		runner:   scheduler.NewRunner(),
		streamed: make(map[string]struct{}),
	}
	s.buf = NewWriteBuffer(store, cfg.Buffer.BatchSize)
	s.agg = NewTickAggregator(s.emitCandle, s.warnCandle)

	s.conn = NewConnectionManager(dialer, cfg.Stream, ConnectionCallbacks{
		OnEvent: s.dispatch,
		OnOpen:  s.onSocketOpen,
		OnClose: s.onSocketClose,
	})
	s.subs = NewSubscriptionSynchronizer(cfg.Stream, s.conn.Send)
	s.backfill = NewBackfillScheduler(cfg.Backfill, client, s.buf, s.health, func() map[string]float64 {
		return s.catalog.Volumes()
	}, s.conn.Stopping)
	s.enrich = NewEnrichmentPoller(cfg.Enrichment, client, s.buf, s.health, func() []string {
		return s.catalog.Universe()
	}, s.conn.Stopping)
	s.coverage = NewCoverageMonitor(cfg.Coverage, s.health, s.buf, s.backfill)
	s.catalog = NewSymbolCatalog(cfg.Stream, client, store, s.health, s.conn.AdaptiveCap, s.onDesiredSymbols)
	return s
}

// Run starts every recurring task and the socket loop, then blocks
// until ctx ends. Shutdown drains the aggregator and flushes the
// buffer before returning.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()
	s.buf.Bind(ctx)

	seeded, err := s.store.LastCandleTimes(ctx)
	if err != nil {
		return fmt.Errorf("seed symbol health: %w", err)
	}
	s.health.Seed(seeded)
	logger.Infof("service: seeded health for %d symbols from store", len(seeded))

	s.runner.Every(ctx, "flush", s.cfg.Buffer.FlushInterval(), false, s.buf.Flush)
	s.runner.Every(ctx, "candle-sweep", time.Second, false, func(context.Context) { s.agg.Sweep() })
	s.runner.Every(ctx, "coverage", s.cfg.Coverage.Interval(), false, s.coverage.RunCycle)
	s.runner.Every(ctx, "enrichment", s.cfg.Enrichment.Interval(), false, s.enrich.RunCycle)
	s.runner.Every(ctx, "catalog", s.cfg.Catalog.Refresh(), true, s.catalog.RunCycle)

	s.conn.Run(ctx)

	// ctx is done; stop timers, then drain what is still in memory.
	s.runner.Stop()
	s.conn.Stop()
	s.agg.FlushAll()

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.buf.Flush(drainCtx)
	logger.Infof("service: shutdown complete, buffer depth %d", s.buf.Depth())
	return nil
}

func (s *Service) emitCandle(c market.Candle) {
	s.buf.AddCandle(c)
	s.health.MarkMarketData(c.Symbol, c.Timestamp)
}

func (s *Service) warnCandle(c market.Candle) {
	s.buf.AddTrace(market.IngestionTrace{
		Severity: market.TraceWarn,
		Event:    "invalid_candle_dropped",
		Symbol:   c.Symbol,
		Source:   string(c.Source),
		Details:  fmt.Sprintf("bucket=%d o=%v h=%v l=%v c=%v", c.Timestamp, c.Open, c.High, c.Low, c.Close),
	})
}

// dispatch routes one parsed socket event into the pipeline.
func (s *Service) dispatch(evt hyperliquid.Event) {
	switch e := evt.(type) {
	case hyperliquid.AllMidsEvent:
		s.mu.Lock()
		streamed := s.streamed
		s.mu.Unlock()
		for symbol := range streamed {
			mid, ok := e.Mids[symbol]
			if !ok {
				continue
			}
			s.agg.AddQuote(symbol, mid, e.Time)
			s.health.MarkQuote(symbol, e.Time)
		}
	case hyperliquid.BookEvent:
		s.buf.AddBook(e.Snapshot)
	case hyperliquid.TradesEvent:
		for _, t := range e.Trades {
			s.buf.AddTrade(t)
			s.agg.AddTrade(t.Symbol, t.Price, t.Size, t.Timestamp)
			s.health.MarkTrade(t.Symbol, t.Timestamp)
		}
	case hyperliquid.FundingEvent:
		s.buf.AddFunding(e.Funding)
	}
}

// onDesiredSymbols installs a fresh streamed set from the catalog and
// pushes it to the subscription synchronizer.
func (s *Service) onDesiredSymbols(ctx context.Context, symbols []string) {
	set := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		set[sym] = struct{}{}
	}
	s.mu.Lock()
	s.streamed = set
	s.mu.Unlock()

	s.subs.SetDesired(symbols)
	if s.conn.IsConnected() {
		s.subs.Sync(ctx)
	}
}

// onSocketOpen re-derives the subscription set on a fresh socket.
func (s *Service) onSocketOpen() {
	s.subs.Reset()
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.subs.Sync(ctx)
}

func (s *Service) onSocketClose(sessionID string, duration time.Duration, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	s.buf.AddTrace(market.IngestionTrace{
		Severity: market.TraceWarn,
		Event:    "session_closed",
		Details:  details,
		Metrics: map[string]any{
			"session":     sessionID,
			"duration_ms": duration.Milliseconds(),
			"cap":         s.conn.AdaptiveCap(),
		},
	})
}

// Status is a point-in-time snapshot for the HTTP status endpoint.
type Status struct {
	Connection        string                `json:"connection"`
	AdaptiveCap       int                   `json:"adaptive_cap"`
	Reconnects        int64                 `json:"reconnects"`
	Subscriptions     int                   `json:"subscriptions"`
	UniverseSize      int                   `json:"universe_size"`
	StreamedSymbols   int                   `json:"streamed_symbols"`
	OpenCandles       int                   `json:"open_candles"`
	BufferDepth       int                   `json:"buffer_depth"`
	ItemsFlushed      int64                 `json:"items_flushed"`
	LastFlushAt       time.Time             `json:"last_flush_at"`
	LastFlushError    string                `json:"last_flush_error,omitempty"`
	BackfillRunning   bool                  `json:"backfill_running"`
	BackfillCompleted int64                 `json:"backfill_completed"`
	BackfillFailed    int64                 `json:"backfill_failed"`
	Coverage          market.CoverageReport `json:"coverage"`
}

func (s *Service) Status() Status {
	lastFlush, flushed, flushErr := s.buf.Stats()
	completed, failed := s.backfill.Counters()
	return Status{
		Connection:        s.conn.State(),
		AdaptiveCap:       s.conn.AdaptiveCap(),
		Reconnects:        s.conn.Reconnects(),
		Subscriptions:     s.subs.Current(),
		UniverseSize:      len(s.catalog.Universe()),
		StreamedSymbols:   len(s.catalog.Streamed()),
		OpenCandles:       s.agg.OpenCount(),
		BufferDepth:       s.buf.Depth(),
		ItemsFlushed:      flushed,
		LastFlushAt:       lastFlush,
		LastFlushError:    flushErr,
		BackfillRunning:   s.backfill.Running(),
		BackfillCompleted: completed,
		BackfillFailed:    failed,
		Coverage:          s.coverage.LastReport(),
	}
}

// Store exposes the underlying store for the HTTP read endpoints.
func (s *Service) Store() *gormstore.Store { return s.store }
