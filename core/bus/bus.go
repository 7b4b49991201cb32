// Package bus implements ByteBus, the in-process publish/subscribe point
// that every observer watches and every command writes through. A ByteBus
// wraps exactly one duplex byte transport: inbound bytes are fanned out to
// subscribers, outbound bytes are handed to the transport's send function.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/moler-go/moler/core/molererr"
)

// Sink receives inbound chunks delivered by a ByteBus. Implementations must
// not block for long and must tolerate being called from the bus's fanout
// goroutine.
//
// The subscriber set is keyed on Sink identity (the ByteBus needs to tell
// "subscribe this same sink again" apart from "subscribe a different
// sink"), so concrete Sinks must be comparable — in practice a pointer
// receiver, as *observer.Observer and *SinkFunc both are. A bare function
// value is not comparable and must never implement Sink directly.
type Sink interface {
	OnBytes(chunk []byte)
}

// SinkFunc adapts a plain function to the Sink interface. It is a pointer
// type so each instance has its own stable identity for Subscribe's
// duplicate-coalescing and for Unsubscribe to find it again.
type SinkFunc struct {
	fn func(chunk []byte)
}

// NewSinkFunc wraps fn as a Sink.
func NewSinkFunc(fn func(chunk []byte)) *SinkFunc {
	return &SinkFunc{fn: fn}
}

// OnBytes implements Sink.
func (f *SinkFunc) OnBytes(chunk []byte) { f.fn(chunk) }

// Codec optionally transforms bytes crossing the bus boundary, e.g. a
// legacy terminal charset adapter.
type Codec interface {
	Encode(p []byte) ([]byte, error)
	Decode(p []byte) ([]byte, error)
}

// Outbound writes a chunk to the underlying transport.
type Outbound func(p []byte) error

// ByteBus is a named, in-process fanout point over one duplex transport.
type ByteBus struct {
	name     string
	outbound Outbound
	codec    Codec
	logger   *slog.Logger

	mu          sync.Mutex
	subscribers map[Sink]struct{}
}

// Option configures a ByteBus at construction.
type Option func(*ByteBus)

// WithCodec installs an encode/decode adapter applied to outbound Send
// calls and inbound OnBytes deliveries respectively.
func WithCodec(c Codec) Option {
	return func(b *ByteBus) { b.codec = c }
}

// WithLogger overrides the bus's logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(b *ByteBus) { b.logger = l }
}

// New creates a ByteBus named name, writing outbound bytes via outbound.
func New(name string, outbound Outbound, opts ...Option) *ByteBus {
	b := &ByteBus{
		name:        name,
		outbound:    outbound,
		logger:      slog.Default(),
		subscribers: make(map[Sink]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the bus's identifier.
func (b *ByteBus) Name() string { return b.name }

// Subscribe registers sink to receive future inbound chunks. Subscribing
// the same sink value twice is a no-op.
func (b *ByteBus) Subscribe(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sink] = struct{}{}
}

// Unsubscribe deregisters sink. Unsubscribing an absent sink is a no-op.
func (b *ByteBus) Unsubscribe(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sink)
}

// Send encodes (if configured) and writes payload to the underlying
// transport.
func (b *ByteBus) Send(ctx context.Context, payload []byte) error {
	data := payload
	if b.codec != nil {
		enc, err := b.codec.Encode(payload)
		if err != nil {
			return molererr.Core("bus: encode failed", err)
		}
		data = enc
	}
	if err := b.outbound(data); err != nil {
		return molererr.Transport(err, "bus: send failed")
	}
	return nil
}

// OnBytes is the transport-facing entry point: it decodes (if configured)
// and fans chunk out to a snapshot of the current subscribers, continuing
// past any individual sink panic so one misbehaving observer can never
// poison the bus or its siblings.
func (b *ByteBus) OnBytes(chunk []byte) {
	if b.codec != nil {
		dec, err := b.codec.Decode(chunk)
		if err != nil {
			b.logger.Error("bus: decode failed", "bus", b.name, "error", err)
			return
		}
		chunk = dec
	}

	b.mu.Lock()
	snapshot := make([]Sink, 0, len(b.subscribers))
	for s := range b.subscribers {
		snapshot = append(snapshot, s)
	}
	b.mu.Unlock()

	for _, s := range snapshot {
		b.deliver(s, chunk)
	}
}

func (b *ByteBus) deliver(s Sink, chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus: sink panicked", "bus", b.name, "panic", r)
		}
	}()
	s.OnBytes(chunk)
}
