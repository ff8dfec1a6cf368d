package ingest

import (
	"context"
	"sync"
	"time"

	"hyperfeed/internal/logger"
	"hyperfeed/internal/market"
	"hyperfeed/internal/store/gormstore"
)

// BatchWriter is the persistence surface WriteBuffer flushes to.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch gormstore.Batch) error
}

// WriteBuffer batches all outbound persistence and flushes either on a
// timer tick or when the queued item count crosses batchSize. A failed
// flush pushes the drained batch back to the front of its queues, so
// delivery is at-least-once and order-preserving per entity type.
type WriteBuffer struct {
	store     BatchWriter
	batchSize int

	mu      sync.Mutex
	pending gormstore.Batch
	runCtx  context.Context

	flushGate gate

	statsMu     sync.Mutex
	lastFlushAt time.Time
	lastError   string
	flushed     int64
}

func NewWriteBuffer(store BatchWriter, batchSize int) *WriteBuffer {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &WriteBuffer{store: store, batchSize: batchSize}
}

func (w *WriteBuffer) AddCandle(c market.Candle) {
	w.enqueue(func(b *gormstore.Batch) { b.Candles = append(b.Candles, c) })
}

func (w *WriteBuffer) AddBook(s market.OrderBookSnapshot) {
	w.enqueue(func(b *gormstore.Batch) { b.Books = append(b.Books, s) })
}

func (w *WriteBuffer) AddTrade(t market.Trade) {
	w.enqueue(func(b *gormstore.Batch) { b.Trades = append(b.Trades, t) })
}

func (w *WriteBuffer) AddFunding(f market.FundingRate) {
	w.enqueue(func(b *gormstore.Batch) { b.Funding = append(b.Funding, f) })
}

func (w *WriteBuffer) AddTrace(tr market.IngestionTrace) {
	if tr.Timestamp == 0 {
		tr.Timestamp = time.Now().UnixMilli()
	}
	w.enqueue(func(b *gormstore.Batch) { b.Traces = append(b.Traces, tr) })
}

func (w *WriteBuffer) AddHealth(rows []market.SymbolHealth) {
	if len(rows) == 0 {
		return
	}
	w.enqueue(func(b *gormstore.Batch) { b.Health = append(b.Health, rows...) })
}

// Bind sets the context size-triggered flushes run under, so an
// in-flight size flush is cancellable when the service stops.
func (w *WriteBuffer) Bind(ctx context.Context) {
	w.mu.Lock()
	w.runCtx = ctx
	w.mu.Unlock()
}

func (w *WriteBuffer) enqueue(add func(*gormstore.Batch)) {
	w.mu.Lock()
	add(&w.pending)
	full := w.pending.Size() >= w.batchSize
	ctx := w.runCtx
	w.mu.Unlock()
	if full {
		if ctx == nil {
			ctx = context.Background()
		}
		// The interval timer would catch this anyway; crossing the
		// threshold just flushes sooner. Skip when a flush is running.
		go w.flushGate.TryDo(func() { w.flushLocked(ctx) })
	}
}

// Depth is the number of currently queued items.
func (w *WriteBuffer) Depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Size()
}

// Flush drains every queue and writes one transaction. Safe to call
// from the timer task and the size trigger concurrently.
func (w *WriteBuffer) Flush(ctx context.Context) {
	w.flushGate.Do(func() { w.flushLocked(ctx) })
}

func (w *WriteBuffer) flushLocked(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = gormstore.Batch{}
	w.mu.Unlock()

	if batch.Size() == 0 {
		return
	}
	if err := w.store.WriteBatch(ctx, batch); err != nil {
		logger.Warnf("write buffer: flush of %d items failed, re-queued: %v", batch.Size(), err)
		w.requeue(batch)
		w.recordFlush(err)
		return
	}
	w.recordFlush(nil)
	w.statsMu.Lock()
	w.flushed += int64(batch.Size())
	w.statsMu.Unlock()
}

// requeue puts a failed batch back at the front so the next cycle
// retries it before anything queued since.
func (w *WriteBuffer) requeue(batch gormstore.Batch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = gormstore.Batch{
		Candles: append(batch.Candles, w.pending.Candles...),
		Books:   append(batch.Books, w.pending.Books...),
		Trades:  append(batch.Trades, w.pending.Trades...),
		Funding: append(batch.Funding, w.pending.Funding...),
		Traces:  append(batch.Traces, w.pending.Traces...),
		Health:  append(batch.Health, w.pending.Health...),
	}
}

func (w *WriteBuffer) recordFlush(err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.lastFlushAt = time.Now()
	if err != nil {
		w.lastError = err.Error()
	} else {
		w.lastError = ""
	}
}

// Stats returns flush telemetry for the status endpoint.
func (w *WriteBuffer) Stats() (lastFlushAt time.Time, flushed int64, lastError string) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.lastFlushAt, w.flushed, w.lastError
}
