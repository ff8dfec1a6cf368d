package ingest

import (
	"sync"
	"time"

	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
)

const (
	bucketMs = int64(1000)
	// A bucket is force-flushed by the sweep once it is this far past
	// its natural end, covering symbols that go quiet mid-bucket.
	sweepAgeMs = int64(1500)
)

type openCandle struct {
	candle   market.Candle
	notional float64 // price*size accumulator for vwap
}

// TickAggregator folds trade and quote events into at most one open
// 1-second candle per symbol, emitting each candle when its bucket
// rolls over, on sweep, or at shutdown.
type TickAggregator struct {
	mu   sync.Mutex
	open map[string]*openCandle

	emit func(market.Candle)
	warn func(market.Candle)
	now  func() time.Time
}

// NewTickAggregator routes finalized candles to emit. Candles failing
// the OHLC invariant go to warn instead and are never emitted.
func NewTickAggregator(emit func(market.Candle), warn func(market.Candle)) *TickAggregator {
	return &TickAggregator{
		open: make(map[string]*openCandle),
		emit: emit,
		warn: warn,
		now:  time.Now,
	}
}

func bucketStart(tsMs int64) int64 { return tsMs - tsMs%bucketMs }

// AddTrade folds one trade into the symbol's open candle. Out-of-order
// trades (bucket older than the open candle) are dropped: that bucket
// has already been flushed.
func (a *TickAggregator) AddTrade(symbol string, price, size float64, tsMs int64) {
	if symbol == "" || price <= 0 || tsMs <= 0 {
		return
	}
	bucket := bucketStart(tsMs)

	a.mu.Lock()
	defer a.mu.Unlock()

	oc := a.open[symbol]
	switch {
	case oc == nil:
		a.open[symbol] = newOpenCandle(symbol, bucket, price, size, market.SourceTrade)
	case bucket > oc.candle.Timestamp:
		a.finalizeLocked(symbol, oc)
		a.open[symbol] = newOpenCandle(symbol, bucket, price, size, market.SourceTrade)
	case bucket == oc.candle.Timestamp:
		c := &oc.candle
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Close = price
		c.Volume += size
		c.Source = market.MergeSource(c.Source, market.SourceTrade)
		oc.notional += price * size
	default:
		// older bucket, already flushed
	}
}

// AddQuote folds a mid-price observation into the symbol's open
// candle, touching high/low/close but never volume.
func (a *TickAggregator) AddQuote(symbol string, mid float64, tsMs int64) {
	if symbol == "" || mid <= 0 || tsMs <= 0 {
		return
	}
	bucket := bucketStart(tsMs)

	a.mu.Lock()
	defer a.mu.Unlock()

	oc := a.open[symbol]
	switch {
	case oc == nil:
		a.open[symbol] = newOpenCandle(symbol, bucket, mid, 0, market.SourceQuote)
	case bucket > oc.candle.Timestamp:
		a.finalizeLocked(symbol, oc)
		a.open[symbol] = newOpenCandle(symbol, bucket, mid, 0, market.SourceQuote)
	case bucket == oc.candle.Timestamp:
		c := &oc.candle
		if mid > c.High {
			c.High = mid
		}
		if mid < c.Low {
			c.Low = mid
		}
		c.Close = mid
		c.Source = market.MergeSource(c.Source, market.SourceQuote)
	}
}

func newOpenCandle(symbol string, bucket int64, price, size float64, src market.Source) *openCandle {
	return &openCandle{
		candle: market.Candle{
			Symbol:    symbol,
			Timestamp: bucket,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    size,
			Source:    src,
		},
		notional: price * size,
	}
}

// Sweep force-flushes candles whose bucket ended more than sweepAgeMs
// ago. Runs on a ~1s timer.
func (a *TickAggregator) Sweep() {
	nowMs := a.now().UnixMilli()
	a.mu.Lock()
	defer a.mu.Unlock()
	for symbol, oc := range a.open {
		if nowMs-oc.candle.Timestamp > sweepAgeMs {
			a.finalizeLocked(symbol, oc)
			delete(a.open, symbol)
		}
	}
}

// FlushAll drains every open candle, used at shutdown.
func (a *TickAggregator) FlushAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for symbol, oc := range a.open {
		a.finalizeLocked(symbol, oc)
		delete(a.open, symbol)
	}
}

// OpenCount is the number of currently open candles.
func (a *TickAggregator) OpenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

func (a *TickAggregator) finalizeLocked(symbol string, oc *openCandle) {
	c := oc.candle
	if c.Volume > 0 && oc.notional > 0 {
		vwap := oc.notional / c.Volume
		c.VWAP = &vwap
	}
	if !c.Valid() {
		logger.Warnf("aggregator: dropping invalid candle %s bucket=%d o=%v h=%v l=%v c=%v",
			symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close)
		if a.warn != nil {
			a.warn(c)
		}
		return
	}
	if a.emit != nil {
		a.emit(c)
	}
}
