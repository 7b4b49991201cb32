// Package observer implements Observer, the passive pattern-matching unit
// every Runner drives, and Handle, the caller-visible awaitable every
// Runner returns from Submit.
package observer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/moler-go/moler/core/bus"
	"github.com/moler-go/moler/core/molererr"
)

var lastID atomic.Uint64

func nextID() uint64 { return lastID.Add(1) }

// Unbounded is the sentinel deadline meaning "never time out". A deadline
// of exactly 0 is not unbounded: it means "already expired", firing a
// terminal Timeout on the first tick without ever calling feed.
const Unbounded time.Duration = -1

// Runner is the execution backend contract every Observer is submitted to.
// Defined here (rather than in package runner) so observer has no import
// dependency on any concrete backend.
type Runner interface {
	// Submit schedules o for progress tracking and returns its handle.
	// Submit never panics or returns an error; admission refusals and
	// other submission-time failures are expressed as a pre-failed
	// Handle.
	Submit(o *Observer) *Handle
	// Wait blocks until h's observer reaches a terminal state or timeout
	// elapses, whichever comes first. timeout == 0 means "use the
	// observer's own deadline only".
	Wait(h *Handle, timeout time.Duration) error
	// Shutdown idempotently latches the runner's shutdown flag, causing
	// every active observer to be cancelled.
	Shutdown()
}

// CooperativeRunner is implemented by runners that let the caller drive
// progress from their own goroutine instead of a dedicated one.
type CooperativeRunner interface {
	Runner
	// WaitIter returns h's done channel for cooperative select-based
	// waiting. It does not itself advance time; see Tick.
	WaitIter(h *Handle) <-chan struct{}
	// Tick advances the deadline/shutdown check for every observer
	// currently registered, once. Callers with their own event loop call
	// it periodically instead of using the blocking Wait.
	Tick()
}

// Observer watches a ByteBus for a pattern and reaches a terminal state:
// succeeded with a value, failed with an error, or cancelled.
type Observer struct {
	id   uint64
	name string
	bus  *bus.ByteBus
	feed FeedFunc

	deadline atomic.Int64 // nanoseconds; Unbounded means "no deadline", 0 means "already expired"

	afterSubscribe func() error

	mu        sync.Mutex
	state     State
	startTime time.Time
	result    any
	err       error
	done      chan struct{}
}

// New creates an Observer that watches bus, calling feed for every inbound
// chunk once started. deadline is the initial relative timeout; exactly 0
// means the observer is already expired and fails with Timeout on the
// first tick, before any feed call. Pass Unbounded for "never time out".
func New(b *bus.ByteBus, feed FeedFunc, deadline time.Duration, opts ...Option) *Observer {
	o := &Observer{
		id:    nextID(),
		bus:   b,
		feed:  feed,
		state: StateUnstarted,
		done:  make(chan struct{}),
	}
	o.deadline.Store(int64(deadline))
	for _, opt := range opts {
		opt(o)
	}
	if o.name == "" {
		o.name = "observer"
	}
	return o
}

// Option configures an Observer at construction.
type Option func(*Observer)

// WithName sets a human-readable name used in logs and error messages.
func WithName(name string) Option {
	return func(o *Observer) { o.name = name }
}

// ID returns the observer's process-unique identifier.
func (o *Observer) ID() uint64 { return o.id }

// Name returns the observer's human-readable name.
func (o *Observer) Name() string { return o.name }

// Bus returns the ByteBus this observer watches.
func (o *Observer) Bus() *bus.ByteBus { return o.bus }

// Deadline returns the current relative deadline. Safe to call from any
// goroutine at any time.
func (o *Observer) Deadline() time.Duration { return time.Duration(o.deadline.Load()) }

// SetDeadline mutates the relative deadline while the observer is live.
// Runners re-read it on every tick, never capturing a fixed timer.
func (o *Observer) SetDeadline(d time.Duration) { o.deadline.Store(int64(d)) }

// StartTime returns the moment Start transitioned the observer to running.
// Zero if not yet started.
func (o *Observer) StartTime() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startTime
}

// State returns the observer's current lifecycle state.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Done reports whether the observer has reached a terminal state.
func (o *Observer) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Terminal()
}

// DoneCh exposes the observer's own completion channel, closed exactly
// once on the terminal transition, for cooperative select-based waiting.
func (o *Observer) DoneCh() <-chan struct{} { return o.done }

// OnSubscribed installs a hook the owning Runner invokes exactly once,
// right after subscribing the observer's sink and before the first
// progress tick. Command uses this to write its request line.
func (o *Observer) OnSubscribed(fn func() error) { o.afterSubscribe = fn }

// RunAfterSubscribeHook invokes the afterSubscribe hook, if any,
// converting a returned error into a terminal failure. Runner
// implementations call this exactly once, right after subscribing the
// observer's sink and before the first progress tick; domain code never
// calls it directly.
func (o *Observer) RunAfterSubscribeHook() {
	if o.afterSubscribe == nil {
		return
	}
	if err := o.afterSubscribe(); err != nil {
		o.mu.Lock()
		o.failLocked(molererr.Transport(err, "observer: afterSubscribe hook failed"))
		o.mu.Unlock()
	}
}

// Start transitions the observer from unstarted to running and submits it
// to r. Calling Start twice returns a WrongUsage error and a nil handle.
func (o *Observer) Start(r Runner) (*Handle, error) {
	o.mu.Lock()
	if o.state != StateUnstarted {
		o.mu.Unlock()
		return nil, molererr.WrongUsage("observer: already started")
	}
	o.state = StateRunning
	o.startTime = time.Now()
	o.mu.Unlock()

	return r.Submit(o), nil
}

// OnBytes implements bus.Sink so a *Observer can be subscribed directly:
// runners call o.Bus().Subscribe(o) rather than wrapping it in a closure,
// which both avoids an allocation per submit and keeps Subscribe/
// Unsubscribe keyed on the observer's own pointer identity (func values
// are not comparable and cannot safely be used as the map key a ByteBus
// keeps its subscriber set in).
func (o *Observer) OnBytes(chunk []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		return
	}
	o.feedLocked(chunk)
}

// feedLocked must be called with o.mu held and o not yet terminal.
func (o *Observer) feedLocked(chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			o.failLocked(molererr.Core("observer: feed panicked", nil))
		}
	}()

	res := o.feed(chunk)
	switch res.Verdict {
	case VerdictResult:
		o.succeedLocked(res.Value)
	case VerdictFailure:
		o.failLocked(res.Err)
	}
}

// CheckDeadline re-reads the observer's (possibly mutated) deadline and
// transitions it to a Timeout failure if exceeded. Runner progress tasks
// call this every tick; domain code never needs to.
func (o *Observer) CheckDeadline() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		return
	}
	d := o.Deadline()
	if d < 0 {
		return
	}
	if time.Since(o.startTime) >= d {
		o.failLocked(molererr.Timeout(time.Since(o.startTime), o.name+": deadline exceeded"))
	}
}

// SetResult terminates the observer with a success value. A no-op if
// already terminal.
func (o *Observer) SetResult(v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeedLocked(v)
}

// SetErr terminates the observer with a failure. A no-op if already
// terminal.
func (o *Observer) SetErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failLocked(err)
}

// Cancel terminates the observer as cancelled. A no-op if already
// terminal.
func (o *Observer) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		return
	}
	o.state = StateCancelled
	o.err = molererr.Cancelled(o.name + ": cancelled")
	close(o.done)
}

func (o *Observer) succeedLocked(v any) {
	if o.state.Terminal() {
		return
	}
	o.state = StateSucceeded
	o.result = v
	close(o.done)
}

func (o *Observer) failLocked(err error) {
	if o.state.Terminal() {
		return
	}
	o.state = StateFailed
	o.err = err
	close(o.done)
}

// Result blocks until the observer reaches a terminal state and returns
// its success value, or the stored error if it failed or was cancelled.
// Prefer Handle.WaitIter for cooperative runners instead of blocking here.
func (o *Observer) Result() (any, error) {
	<-o.done
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.err
}

// Err returns the stored failure, if any, without blocking.
func (o *Observer) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}
