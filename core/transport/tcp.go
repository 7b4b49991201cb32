package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/moler-go/moler/core/molererr"
)

// TCP is a Transport over a plain net.Conn, with dial retry with backoff
// in Open and optional outbound rate limiting. A connection that drops
// after Open is not re-established.
type TCP struct {
	addr    string
	logger  *slog.Logger
	backoff backoff.BackOff
	limiter *rate.Limiter

	mu        sync.Mutex
	conn      net.Conn
	inbound   func([]byte)
	closed    bool
	sessionID string
}

// TCPOption configures a TCP transport at construction.
type TCPOption func(*TCP)

// WithTCPLogger overrides the transport's logger.
func WithTCPLogger(l *slog.Logger) TCPOption {
	return func(t *TCP) { t.logger = l }
}

// WithTCPBackoff overrides the dial retry backoff policy (default
// backoff.NewExponentialBackOff()).
func WithTCPBackoff(b backoff.BackOff) TCPOption {
	return func(t *TCP) { t.backoff = b }
}

// WithTCPRateLimit caps outbound bytes per second, using a token bucket
// sized burst bytes.
func WithTCPRateLimit(bytesPerSecond rate.Limit, burst int) TCPOption {
	return func(t *TCP) { t.limiter = rate.NewLimiter(bytesPerSecond, burst) }
}

// NewTCP builds a TCP transport dialing addr on Open.
func NewTCP(addr string, opts ...TCPOption) *TCP {
	t := &TCP{addr: addr, logger: slog.Default(), backoff: backoff.NewExponentialBackOff()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetInbound implements Transport.
func (t *TCP) SetInbound(fn func(chunk []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbound = fn
}

// Open dials addr, retrying with backoff until ctx is done or the backoff
// policy gives up. Each Open call is tagged with a fresh session id, shared
// by all of its dial attempts, so separate Opens are distinguishable in
// logs even though the transport keeps the same addr.
func (t *TCP) Open(ctx context.Context) error {
	sessionID := uuid.NewString()

	var conn net.Conn
	operation := func() error {
		d := net.Dialer{}
		c, err := d.DialContext(ctx, "tcp", t.addr)
		if err != nil {
			t.logger.Warn("tcp: dial failed, retrying", "addr", t.addr, "session_id", sessionID, "error", err)
			return err
		}
		conn = c
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(t.backoff, ctx)); err != nil {
		return molererr.Transport(err, "tcp: dial failed")
	}

	t.mu.Lock()
	t.conn = conn
	t.sessionID = sessionID
	inbound := t.inbound
	t.mu.Unlock()

	t.logger.Info("tcp: connected", "addr", t.addr, "session_id", sessionID)
	go readLoop(conn.Read, inbound)
	return nil
}

// SessionID returns the id generated for the most recent successful Open
// call, or "" if Open has never succeeded.
func (t *TCP) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Send writes p to the connection, rate-limited if configured.
func (t *TCP) Send(p []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return molererr.Core("tcp: send before open", nil)
	}

	if t.limiter != nil {
		if err := t.limiter.WaitN(context.Background(), len(p)); err != nil {
			return molererr.Transport(err, "tcp: rate limiter wait failed")
		}
	}

	if _, err := conn.Write(p); err != nil {
		return molererr.Transport(err, "tcp: write failed")
	}
	return nil
}

// Close releases the connection. Idempotent.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.conn == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
