package ingest

import (
	"context"
	"sort"
	"sync"

	"hyperfeed/internal/config"
	"hyperfeed/internal/gateway/hyperliquid"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/scheduler"
)

// SubscriptionSynchronizer reconciles the desired symbol/channel set
// against what the socket currently streams. Unsubscribes go out
// before subscribes, one frame at a time with a small delay so the
// exchange's rate limit is respected. Re-entrant sync requests are
// deferred and replayed, never interleaved.
type SubscriptionSynchronizer struct {
	cfg  config.StreamConfig
	send func(hyperliquid.Request) error

	mu      sync.Mutex
	desired []string
	current map[hyperliquid.Subscription]struct{}

	syncGate gate
}

func NewSubscriptionSynchronizer(cfg config.StreamConfig, send func(hyperliquid.Request) error) *SubscriptionSynchronizer {
	return &SubscriptionSynchronizer{
		cfg:     cfg,
		send:    send,
		current: make(map[hyperliquid.Subscription]struct{}),
	}
}

// SetDesired replaces the desired symbol set. Callers follow up with
// Sync once the socket is up.
func (s *SubscriptionSynchronizer) SetDesired(symbols []string) {
	s.mu.Lock()
	s.desired = append([]string(nil), symbols...)
	s.mu.Unlock()
}

// Reset clears the known-subscribed set; called after a reconnect
// because a fresh socket streams nothing.
func (s *SubscriptionSynchronizer) Reset() {
	s.mu.Lock()
	s.current = make(map[hyperliquid.Subscription]struct{})
	s.mu.Unlock()
}

// Current returns the number of active subscriptions.
func (s *SubscriptionSynchronizer) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

// Sync diffs desired vs current and emits the necessary control
// frames. A request arriving while a sync is in flight is replayed
// once the in-flight sync completes.
func (s *SubscriptionSynchronizer) Sync(ctx context.Context) {
	s.syncGate.Do(func() { s.syncOnce(ctx) })
}

func (s *SubscriptionSynchronizer) syncOnce(ctx context.Context) {
	s.mu.Lock()
	want := s.desiredSubscriptionsLocked()
	var removals, additions []hyperliquid.Subscription
	for sub := range s.current {
		if _, ok := want[sub]; !ok {
			removals = append(removals, sub)
		}
	}
	for sub := range want {
		if _, ok := s.current[sub]; !ok {
			additions = append(additions, sub)
		}
	}
	s.mu.Unlock()

	sortSubscriptions(removals)
	sortSubscriptions(additions)
	if len(removals) == 0 && len(additions) == 0 {
		return
	}
	logger.Infof("subscriptions: syncing +%d -%d (current %d)", len(additions), len(removals), s.Current())

	for _, sub := range removals {
		if ctx.Err() != nil {
			return
		}
		if err := s.send(hyperliquid.UnsubscribeRequest(sub)); err != nil {
			logger.Warnf("subscriptions: unsubscribe %s/%s failed: %v", sub.Type, sub.Coin, err)
			continue
		}
		s.mu.Lock()
		delete(s.current, sub)
		s.mu.Unlock()
		scheduler.SleepContext(ctx, s.cfg.SubscribeDelay())
	}
	for _, sub := range additions {
		if ctx.Err() != nil {
			return
		}
		if err := s.send(hyperliquid.SubscribeRequest(sub)); err != nil {
			logger.Warnf("subscriptions: subscribe %s/%s failed: %v", sub.Type, sub.Coin, err)
			continue
		}
		s.mu.Lock()
		s.current[sub] = struct{}{}
		s.mu.Unlock()
		scheduler.SleepContext(ctx, s.cfg.SubscribeDelay())
	}
}

// desiredSubscriptionsLocked expands the desired symbol list into the
// per-channel subscription set. allMids is a single firehose stream
// and is always on; the per-symbol channels follow their toggles.
func (s *SubscriptionSynchronizer) desiredSubscriptionsLocked() map[hyperliquid.Subscription]struct{} {
	want := make(map[hyperliquid.Subscription]struct{}, 1+3*len(s.desired))
	want[hyperliquid.Subscription{Type: hyperliquid.ChannelAllMids}] = struct{}{}
	for _, symbol := range s.desired {
		if symbol == "" {
			continue
		}
		if s.cfg.OrderBookEnabled {
			want[hyperliquid.Subscription{Type: hyperliquid.ChannelL2Book, Coin: symbol}] = struct{}{}
		}
		if s.cfg.TradesEnabled {
			want[hyperliquid.Subscription{Type: hyperliquid.ChannelTrades, Coin: symbol}] = struct{}{}
		}
		if s.cfg.FundingEnabled {
			want[hyperliquid.Subscription{Type: hyperliquid.ChannelFunding, Coin: symbol}] = struct{}{}
		}
	}
	return want
}

func sortSubscriptions(subs []hyperliquid.Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Type != subs[j].Type {
			return subs[i].Type < subs[j].Type
		}
		return subs[i].Coin < subs[j].Coin
	})
}
