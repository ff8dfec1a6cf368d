package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hyperfeed/internal/config"
	"hyperfeed/internal/gateway/hyperliquid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []hyperliquid.Request
	err    error
}

func (f *frameRecorder) send(req hyperliquid.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, req)
	return nil
}

func (f *frameRecorder) sent() []hyperliquid.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hyperliquid.Request(nil), f.frames...)
}

func streamCfg() config.StreamConfig {
	return config.StreamConfig{
		OrderBookEnabled: true,
		TradesEnabled:    true,
		FundingEnabled:   false,
	}
}

func TestSyncSubscribesDesiredSet(t *testing.T) {
	rec := &frameRecorder{}
	s := NewSubscriptionSynchronizer(streamCfg(), rec.send)

	s.SetDesired([]string{"BTC", "ETH"})
	s.Sync(context.Background())

	frames := rec.sent()
	// allMids + (l2Book, trades) per symbol; funding disabled.
	require.Len(t, frames, 5)
	for _, f := range frames {
		assert.Equal(t, "subscribe", f.Method)
	}
	assert.Equal(t, 5, s.Current())
}

func TestSyncUnsubscribesRemovedSymbolsFirst(t *testing.T) {
	rec := &frameRecorder{}
	s := NewSubscriptionSynchronizer(streamCfg(), rec.send)
	s.SetDesired([]string{"BTC", "ETH"})
	s.Sync(context.Background())

	rec.mu.Lock()
	rec.frames = nil
	rec.mu.Unlock()

	s.SetDesired([]string{"BTC", "SOL"})
	s.Sync(context.Background())

	frames := rec.sent()
	require.Len(t, frames, 4)
	assert.Equal(t, "unsubscribe", frames[0].Method)
	assert.Equal(t, "unsubscribe", frames[1].Method)
	assert.Equal(t, "subscribe", frames[2].Method)
	assert.Equal(t, "subscribe", frames[3].Method)
	for _, f := range frames[:2] {
		assert.Equal(t, "ETH", f.Subscription.Coin)
	}
	for _, f := range frames[2:] {
		assert.Equal(t, "SOL", f.Subscription.Coin)
	}
}

func TestSyncNoopWhenAlreadyInSync(t *testing.T) {
	rec := &frameRecorder{}
	s := NewSubscriptionSynchronizer(streamCfg(), rec.send)
	s.SetDesired([]string{"BTC"})
	s.Sync(context.Background())

	before := len(rec.sent())
	s.Sync(context.Background())
	assert.Equal(t, before, len(rec.sent()))
}

func TestSyncFailedSendLeavesSubscriptionWanted(t *testing.T) {
	rec := &frameRecorder{err: errors.New("socket closed")}
	s := NewSubscriptionSynchronizer(streamCfg(), rec.send)
	s.SetDesired([]string{"BTC"})
	s.Sync(context.Background())
	assert.Zero(t, s.Current())

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	s.Sync(context.Background())
	assert.Equal(t, 3, s.Current())
}

func TestResetForcesFullResubscribe(t *testing.T) {
	rec := &frameRecorder{}
	s := NewSubscriptionSynchronizer(streamCfg(), rec.send)
	s.SetDesired([]string{"BTC"})
	s.Sync(context.Background())
	require.Equal(t, 3, s.Current())

	s.Reset()
	assert.Zero(t, s.Current())
	s.Sync(context.Background())
	assert.Equal(t, 3, s.Current())
}
