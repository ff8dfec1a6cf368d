package ingest

import (
	"sync"
	"time"
)

const adaptiveFloor = 10

// adaptiveWindow sizes the streamed-symbol cap from observed session
// quality: repeated early closes shrink it 20% at a time (the usual
// cause is the exchange dropping oversubscribed sockets), long stable
// sessions grow it back 5 at a time.
type adaptiveWindow struct {
	mu               sync.Mutex
	cap              int
	max              int
	earlyClose       time.Duration
	stable           time.Duration
	consecutiveEarly int
}

func newAdaptiveWindow(max int, earlyClose, stable time.Duration) *adaptiveWindow {
	if max < adaptiveFloor {
		max = adaptiveFloor
	}
	return &adaptiveWindow{cap: max, max: max, earlyClose: earlyClose, stable: stable}
}

// Cap is the current streamed-symbol limit.
func (w *adaptiveWindow) Cap() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cap
}

// Observe records one finished session and returns the possibly
// adjusted cap. The first early close is forgiven; the second and
// every consecutive one after it shrinks the cap.
func (w *adaptiveWindow) Observe(session time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case session < w.earlyClose:
		w.consecutiveEarly++
		if w.consecutiveEarly >= 2 {
			shrunk := w.cap * 4 / 5
			if shrunk < adaptiveFloor {
				shrunk = adaptiveFloor
			}
			w.cap = shrunk
		}
	case session >= w.stable:
		w.consecutiveEarly = 0
		grown := w.cap + 5
		if grown > w.max {
			grown = w.max
		}
		w.cap = grown
	default:
		w.consecutiveEarly = 0
	}
	return w.cap
}
