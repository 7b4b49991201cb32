// Package transport provides the pluggable byte-duplex surface every
// ByteBus is wired to: TCP, SSH, subprocess and WebSocket connections, all
// exposing the same minimal Transport contract so none of them need to
// know anything about observers, commands, or runners.
package transport

import "context"

// Transport is a scoped, duplex byte channel. Open acquires the
// underlying resource; Close releases it unconditionally once Open has
// succeeded — callers are expected to defer Close immediately after a
// successful Open, the same io.Closer convention as the rest of the
// ecosystem.
type Transport interface {
	// Open establishes the connection. Safe to call only once.
	Open(ctx context.Context) error
	// Send writes p to the underlying channel.
	Send(p []byte) error
	// Close releases the underlying resource. Idempotent.
	Close() error
	// SetInbound registers the callback invoked with every chunk read
	// from the underlying channel, normally bus.ByteBus.OnBytes. Must be
	// called before Open.
	SetInbound(fn func(chunk []byte))
}

// readLoop is the shared read-pump shape used by every concrete
// transport: read into a fixed buffer, hand whatever was read to inbound,
// stop on any read error (including a clean EOF).
func readLoop(read func([]byte) (int, error), inbound func([]byte)) {
	buf := make([]byte, 4096)
	for {
		n, err := read(buf)
		if n > 0 && inbound != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			inbound(chunk)
		}
		if err != nil {
			return
		}
	}
}
