package hyperliquid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWSURL    = "wss://api.hyperliquid.xyz/ws"
	writeTimeout    = 10 * time.Second
	handshakeWindow = 15 * time.Second
	readLimitBytes  = 1 << 22
)

// Socket is the minimal surface the connection manager needs; tests
// substitute a fake.
type Socket interface {
	ReadFrame() ([]byte, error)
	Send(req Request) error
	Ping() error
	Close() error
}

// Dialer opens streaming sockets. Injected so connection behavior is
// testable without a live exchange.
type Dialer interface {
	Dial(ctx context.Context) (Socket, error)
}

// WSDialer dials the exchange WebSocket endpoint.
type WSDialer struct {
	URL string
}

func (d WSDialer) Dial(ctx context.Context) (Socket, error) {
	url := d.URL
	if url == "" {
		url = defaultWSURL
	}
	dialCtx, cancel := context.WithTimeout(ctx, handshakeWindow)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimitBytes)
	return &wsSocket{conn: conn}, nil
}

type wsSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsSocket) ReadFrame() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) Send(req Request) error {
	payload, err := marshalRequest(req)
	if err != nil {
		return err
	}
	return s.write(payload)
}

// Ping keeps the exchange from closing an otherwise quiet session.
func (s *wsSocket) Ping() error {
	return s.write([]byte(`{"method":"ping"}`))
}

func (s *wsSocket) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSocket) Close() error {
	s.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
