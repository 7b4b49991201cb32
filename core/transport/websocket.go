package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/moler-go/moler/core/molererr"
)

// WebSocket is a Transport over a gorilla/websocket connection, for
// endpoints reached over an existing framed transport rather than raw
// TCP.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	inbound func([]byte)
	closed  bool
}

// WebSocketOption configures a WebSocket transport at construction.
type WebSocketOption func(*WebSocket)

// WithWebSocketDialer overrides the dialer (default websocket.DefaultDialer).
func WithWebSocketDialer(d *websocket.Dialer) WebSocketOption {
	return func(w *WebSocket) { w.dialer = d }
}

// WithWebSocketLogger overrides the transport's logger.
func WithWebSocketLogger(l *slog.Logger) WebSocketOption {
	return func(w *WebSocket) { w.logger = l }
}

// NewWebSocket builds a WebSocket transport dialing url on Open.
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{url: url, dialer: websocket.DefaultDialer, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetInbound implements Transport.
func (w *WebSocket) SetInbound(fn func(chunk []byte)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inbound = fn
}

// Open dials url and starts a read pump delivering every binary/text
// message frame to the inbound callback.
func (w *WebSocket) Open(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return molererr.Transport(err, "websocket: dial failed")
	}

	w.mu.Lock()
	w.conn = conn
	inbound := w.inbound
	w.mu.Unlock()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if inbound != nil {
				inbound(data)
			}
		}
	}()

	return nil
}

// Send writes p as a single binary message.
func (w *WebSocket) Send(p []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return molererr.Core("websocket: send before open", nil)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return molererr.Transport(err, "websocket: write failed")
	}
	return nil
}

// Close sends a close frame and releases the connection. Idempotent.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.conn == nil {
		w.closed = true
		return nil
	}
	w.closed = true
	_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}
