package ingest

import "sync"

// gate serializes an operation that must never run twice concurrently
// (subscription sync, flush, backfill batch, enrichment batch). The
// original single-threaded design used bare booleans; under real
// goroutines that becomes a mutex-backed guard.
type gate struct {
	mu      sync.Mutex
	running bool
	pending func()
}

// Do runs fn now, or — if a run is already in flight — records fn as
// the pending request that the in-flight run replays before releasing
// the gate. Multiple requests during one run collapse into the latest.
// The in-flight run may itself have entered through TryDo; a deferred
// Do is replayed either way.
func (g *gate) Do(fn func()) {
	g.mu.Lock()
	if g.running {
		g.pending = fn
		g.mu.Unlock()
		return
	}
	g.running = true
	g.mu.Unlock()

	g.runAndReplay(fn)
}

// TryDo runs fn only when the gate is free; a TryDo arriving while a
// run is in flight is dropped, not deferred. Used where the next timer
// tick will retry anyway.
func (g *gate) TryDo(fn func()) bool {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return false
	}
	g.running = true
	g.mu.Unlock()

	g.runAndReplay(fn)
	return true
}

func (g *gate) runAndReplay(fn func()) {
	for {
		fn()
		g.mu.Lock()
		if g.pending != nil {
			fn = g.pending
			g.pending = nil
			g.mu.Unlock()
			continue
		}
		g.running = false
		g.mu.Unlock()
		return
	}
}

// Busy reports whether a run is currently in flight.
func (g *gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
