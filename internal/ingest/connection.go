package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hyperfeed/internal/config"
	"hyperfeed/internal/gateway/hyperliquid"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/scheduler"

	"github.com/google/uuid"
)

// Connection states.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

// ConnectionManager owns the streaming socket lifecycle: connect,
// read, reconnect with exponential backoff, and the adaptive symbol
// window fed by session quality. Connection loss is never fatal.
type ConnectionManager struct {
	dialer  hyperliquid.Dialer
	cfg     config.StreamConfig
	window  *adaptiveWindow
	onEvent func(hyperliquid.Event)
	onOpen  func()
	onClose func(sessionID string, duration time.Duration, err error)

	state    atomic.Value // string
	stopping atomic.Bool

	mu       sync.Mutex
	socket   hyperliquid.Socket
	openedAt time.Time

	reconnects atomic.Int64
}

type ConnectionCallbacks struct {
	// OnEvent receives every parsed market-data frame.
	OnEvent func(hyperliquid.Event)
	// OnOpen fires after each successful connect so subscriptions can
	// be re-derived.
	OnOpen func()
	// OnClose fires after each session ends, before backoff.
	OnClose func(sessionID string, duration time.Duration, err error)
}

func NewConnectionManager(dialer hyperliquid.Dialer, cfg config.StreamConfig, cb ConnectionCallbacks) *ConnectionManager {
	m := &ConnectionManager{
		dialer:  dialer,
		cfg:     cfg,
		window:  newAdaptiveWindow(cfg.MaxSymbols, cfg.EarlyClose(), cfg.StableSession()),
		onEvent: cb.OnEvent,
		onOpen:  cb.OnOpen,
		onClose: cb.OnClose,
	}
	m.state.Store(StateDisconnected)
	return m
}

func (m *ConnectionManager) State() string { return m.state.Load().(string) }

// AdaptiveCap is the current streamed-symbol limit.
func (m *ConnectionManager) AdaptiveCap() int { return m.window.Cap() }

func (m *ConnectionManager) Reconnects() int64 { return m.reconnects.Load() }

// IsConnected reports whether a live socket is up.
func (m *ConnectionManager) IsConnected() bool { return m.State() == StateConnected }

// Send writes one control frame to the current socket.
func (m *ConnectionManager) Send(req hyperliquid.Request) error {
	m.mu.Lock()
	sock := m.socket
	m.mu.Unlock()
	if sock == nil {
		return errors.New("socket not connected")
	}
	return sock.Send(req)
}

// Run drives the connect/read/reconnect loop until ctx ends.
func (m *ConnectionManager) Run(ctx context.Context) {
	delay := time.Second
	for {
		if ctx.Err() != nil || m.stopping.Load() {
			return
		}
		m.state.Store(StateConnecting)
		sock, err := m.dialer.Dial(ctx)
		if err != nil {
			m.state.Store(StateDisconnected)
			logger.Warnf("connection: dial failed, retry in %s: %v", delay, err)
			if !scheduler.SleepContext(ctx, delay) {
				return
			}
			delay = scheduler.NextDelay(delay, m.cfg.ReconnectMax())
			continue
		}

		sessionID := uuid.NewString()
		opened := time.Now()
		m.mu.Lock()
		m.socket = sock
		m.openedAt = opened
		m.mu.Unlock()
		m.state.Store(StateConnected)
		delay = time.Second
		logger.Infof("connection: session %s open cap=%d", sessionID, m.window.Cap())

		if m.onOpen != nil {
			m.onOpen()
		}

		readErr := m.readLoop(ctx, sock)

		m.mu.Lock()
		m.socket = nil
		m.mu.Unlock()
		_ = sock.Close()
		m.state.Store(StateDisconnected)

		duration := time.Since(opened)
		newCap := m.window.Observe(duration)
		logger.Warnf("connection: session %s closed after %s cap=%d err=%v",
			sessionID, duration.Truncate(time.Millisecond), newCap, readErr)
		if m.onClose != nil {
			m.onClose(sessionID, duration, readErr)
		}

		if ctx.Err() != nil || m.stopping.Load() {
			return
		}
		m.reconnects.Add(1)
		if !scheduler.SleepContext(ctx, delay) {
			return
		}
		delay = scheduler.NextDelay(delay, m.cfg.ReconnectMax())
	}
}

func (m *ConnectionManager) readLoop(ctx context.Context, sock hyperliquid.Socket) error {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go m.pingLoop(pingCtx, sock)

	for {
		raw, err := sock.ReadFrame()
		if err != nil {
			return err
		}
		if ctx.Err() != nil || m.stopping.Load() {
			return nil
		}
		evt, err := hyperliquid.ParseFrame(raw, time.Now().UnixMilli())
		if err != nil {
			if !errors.Is(err, hyperliquid.ErrIgnoreFrame) {
				logger.Debugf("connection: skipping frame: %v", err)
			}
			continue
		}
		if m.onEvent != nil {
			m.onEvent(evt)
		}
	}
}

func (m *ConnectionManager) pingLoop(ctx context.Context, sock hyperliquid.Socket) {
	interval := m.cfg.PingInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sock.Ping(); err != nil {
				logger.Debugf("connection: ping failed: %v", err)
				return
			}
		}
	}
}

// Stop sets the stopping flag and closes any live socket. Reconnects
// are suppressed from this point on; late frames are discarded.
func (m *ConnectionManager) Stop() {
	m.stopping.Store(true)
	m.mu.Lock()
	sock := m.socket
	m.socket = nil
	m.mu.Unlock()
	if sock != nil {
		_ = sock.Close()
	}
}

// Stopping reports whether shutdown has begun; late REST responses
// check this before acting.
func (m *ConnectionManager) Stopping() bool { return m.stopping.Load() }
