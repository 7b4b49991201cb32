// Package command implements Command, an Observer specialization that
// writes a request line onto its bus at submit time and accumulates the
// raw bytes it has seen so far as diagnostic Output.
package command

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/moler-go/moler/core/bus"
	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
)

// Command wraps an Observer with send-once-and-watch semantics: a request
// line is written to the bus immediately after subscription (before the
// first progress tick), and every chunk seen afterwards is appended to an
// accumulated output buffer in addition to being handed to the domain
// FeedFunc.
type Command struct {
	*observer.Observer

	requestLine    []byte
	requiresResult bool

	outputMu sync.Mutex
	output   bytes.Buffer
}

// New builds a Command that watches b, sends requestLine+"\n" once
// started, and delegates pattern matching to feed. deadline is the
// initial relative timeout (re-read every tick, may be mutated later via
// SetDeadline).
func New(b *bus.ByteBus, requestLine string, feed observer.FeedFunc, deadline time.Duration, requiresResult bool, opts ...observer.Option) *Command {
	c := &Command{
		requestLine:    []byte(requestLine),
		requiresResult: requiresResult,
	}

	wrapped := func(chunk []byte) observer.FeedResult {
		c.outputMu.Lock()
		c.output.Write(chunk)
		c.outputMu.Unlock()
		return feed(chunk)
	}

	c.Observer = observer.New(b, wrapped, deadline, opts...)
	c.Observer.OnSubscribed(func() error {
		return b.Send(context.Background(), append(c.requestLine, '\n'))
	})

	return c
}

// RequestLine returns the bytes written to the bus at submit time.
func (c *Command) RequestLine() []byte { return c.requestLine }

// RequiresResult reports whether a nil success value is acceptable at
// terminal (false) or whether the domain Feed must supply a concrete
// value (true).
func (c *Command) RequiresResult() bool { return c.requiresResult }

// Output returns every byte seen by Feed so far, for diagnostics — in
// particular, to build a CommandFailure carrying the erroneous response.
func (c *Command) Output() []byte {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()
	out := make([]byte, c.output.Len())
	copy(out, c.output.Bytes())
	return out
}

// Fail terminates the command with a CommandFailure wrapping msg and the
// output accumulated so far. Domain Feed functions return this (instead
// of a bare observer.Failed) when they recognize an error-shaped
// response, e.g. an "ERROR" line from an AT modem.
func (c *Command) Fail(msg string) observer.FeedResult {
	return observer.Failed(&CommandFailure{
		Error:  molererr.Core(msg, nil),
		Output: c.Output(),
	})
}

// CommandFailure is a CoreError specialization carrying the command's
// accumulated output alongside the failure message, so a caller can show
// the operator exactly what the device returned.
type CommandFailure struct {
	*molererr.Error
	Output []byte
}
