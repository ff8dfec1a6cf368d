package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
)

// MetaFetcher is the REST surface the catalog refresh pulls from.
type MetaFetcher interface {
	AssetMetas(ctx context.Context) ([]market.AssetMeta, error)
}

// SymbolUpserter persists the refreshed catalog.
type SymbolUpserter interface {
	UpsertTrackedSymbols(ctx context.Context, symbols []market.TrackedSymbol) error
}

// SymbolCatalog refreshes the exchange universe on a slow cadence,
// persists the tracked-symbol table, and derives the streamed subset.
// The streamed subset is bounded by the connection's adaptive cap, so
// a shrinking window takes effect on the next refresh.
type SymbolCatalog struct {
	cfg       config.StreamConfig
	client    MetaFetcher
	store     SymbolUpserter
	health    *healthTracker
	streamCap func() int
	onDesired func(ctx context.Context, symbols []string)

	mu       sync.Mutex
	volumes  map[string]float64
	universe []string
	streamed []string

	refreshGate gate
	now         func() time.Time
}

func NewSymbolCatalog(cfg config.StreamConfig, client MetaFetcher, store SymbolUpserter, health *healthTracker, streamCap func() int, onDesired func(ctx context.Context, symbols []string)) *SymbolCatalog {
	return &SymbolCatalog{
		cfg:       cfg,
		client:    client,
		store:     store,
		health:    health,
		streamCap: streamCap,
		onDesired: onDesired,
		volumes:   make(map[string]float64),
		now:       time.Now,
	}
}

// Volumes returns the 24h notional volume per symbol from the last
// refresh. The map is a copy.
func (c *SymbolCatalog) Volumes() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.volumes))
	for k, v := range c.volumes {
		out[k] = v
	}
	return out
}

// Universe returns every known symbol, sorted.
func (c *SymbolCatalog) Universe() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.universe...)
}

// Streamed returns the symbols currently selected for WebSocket
// subscription.
func (c *SymbolCatalog) Streamed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.streamed...)
}

// RunCycle performs one catalog refresh. Overlapping refreshes are
// skipped.
func (c *SymbolCatalog) RunCycle(ctx context.Context) {
	c.refreshGate.TryDo(func() { c.refresh(ctx) })
}

func (c *SymbolCatalog) refresh(ctx context.Context) {
	metas, err := c.client.AssetMetas(ctx)
	if err != nil {
		logger.Warnf("catalog: refresh failed: %v", err)
		return
	}
	if len(metas) == 0 {
		logger.Warnf("catalog: exchange returned empty universe, keeping previous")
		return
	}

	// The volume floor defines the tracked set itself, not just the
	// streamed ranking. If it would empty the set entirely, fall back
	// to tracking the unfiltered universe.
	eligible := make([]market.AssetMeta, 0, len(metas))
	for _, m := range metas {
		if m.Symbol == "" || m.DayVolume < c.cfg.MinDayVolume {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) == 0 {
		for _, m := range metas {
			if m.Symbol != "" {
				eligible = append(eligible, m)
			}
		}
	}

	streamCap := c.streamCap()
	streamed := market.RankSymbolsForStreaming(eligible, streamCap, 0)

	nowMs := c.now().UnixMilli()
	tracked := make([]market.TrackedSymbol, 0, len(eligible))
	volumes := make(map[string]float64, len(eligible))
	universe := make([]string, 0, len(eligible))
	for _, m := range eligible {
		volumes[m.Symbol] = m.DayVolume
		universe = append(universe, m.Symbol)
		tracked = append(tracked, market.TrackedSymbol{
			Symbol:      m.Symbol,
			Category:    m.Category,
			DayVolume:   m.DayVolume,
			MaxLeverage: m.MaxLeverage,
			SzDecimals:  m.SzDecimals,
			Active:      true,
			FirstSeen:   nowMs,
			LastUpdated: nowMs,
		})
	}
	sort.Strings(universe)

	if err := c.store.UpsertTrackedSymbols(ctx, tracked); err != nil {
		logger.Errorf("catalog: persisting %d symbols failed: %v", len(tracked), err)
	}

	c.mu.Lock()
	c.volumes = volumes
	c.universe = universe
	c.streamed = streamed
	c.mu.Unlock()

	// Every tracked symbol enters the coverage audit immediately, not
	// only the streamed subset; never-seen symbols turn stale after the
	// warm-up window and become backfill candidates.
	c.health.Track(universe)
	logger.Infof("catalog: refreshed %d symbols, streaming %d (cap %d)", len(universe), len(streamed), streamCap)

	if c.onDesired != nil {
		c.onDesired(ctx, streamed)
	}
}
