package ingest

import (
	"sync"

	"hyperfeed/internal/market"
)

// healthTracker keeps the in-memory per-symbol freshness state the
// coverage monitor audits. It is seeded from persisted candle times at
// startup so a restart does not look like total staleness.
type healthTracker struct {
	mu   sync.Mutex
	rows map[string]*market.SymbolHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{rows: make(map[string]*market.SymbolHealth)}
}

func (h *healthTracker) row(symbol string) *market.SymbolHealth {
	r, ok := h.rows[symbol]
	if !ok {
		r = &market.SymbolHealth{Symbol: symbol}
		h.rows[symbol] = r
	}
	return r
}

// Seed installs persisted last-candle times for symbols with no live
// state yet.
func (h *healthTracker) Seed(lastCandle map[string]int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for symbol, ts := range lastCandle {
		r := h.row(symbol)
		if r.LastMarketDataAt < ts {
			r.LastMarketDataAt = ts
		}
	}
}

// Track ensures a symbol is audited even before any data arrives.
func (h *healthTracker) Track(symbols []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range symbols {
		h.row(s)
	}
}

func (h *healthTracker) MarkMarketData(symbol string, tsMs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.row(symbol)
	if tsMs > r.LastMarketDataAt {
		r.LastMarketDataAt = tsMs
	}
	r.DataPoints++
}

func (h *healthTracker) MarkQuote(symbol string, tsMs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.row(symbol)
	if tsMs > r.LastQuoteAt {
		r.LastQuoteAt = tsMs
	}
}

func (h *healthTracker) MarkTrade(symbol string, tsMs int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.row(symbol)
	if tsMs > r.LastTradeAt {
		r.LastTradeAt = tsMs
	}
}

func (h *healthTracker) MarkBackfill(symbol string, tsMs int64, points int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.row(symbol)
	if tsMs > r.LastBackfillAt {
		r.LastBackfillAt = tsMs
	}
	r.BackfillPoints += int64(points)
}

// LastSeen returns last market-data timestamps per symbol, the input
// to the coverage computation.
func (h *healthTracker) LastSeen() map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int64, len(h.rows))
	for symbol, r := range h.rows {
		out[symbol] = r.LastMarketDataAt
	}
	return out
}

// Snapshot copies every health row for persistence.
func (h *healthTracker) Snapshot() []market.SymbolHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]market.SymbolHealth, 0, len(h.rows))
	for _, r := range h.rows {
		out = append(out, *r)
	}
	return out
}
