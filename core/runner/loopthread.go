package runner

import (
	"log/slog"
	"sync"
	"time"

	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
)

// feedStartBound is how long Submit waits for the loop goroutine to
// acknowledge that an observer's sink is live before giving up and
// resolving a pre-failed handle, mirroring the original asyncio
// dedicated-loop-thread backend's 0.5s feeder-start budget.
const feedStartBound = 500 * time.Millisecond

type loopMsg struct {
	register *observer.Observer
	ack      chan struct{}
}

// LoopRunner drives every submitted observer from exactly one dedicated
// background goroutine, started once at construction. Unlike PoolRunner
// (one goroutine per observer), a single loop goroutine serially ticks
// every observer it has been handed; unlike InlineRunner, callers on any
// other goroutine may freely Wait without a reentrancy restriction, since
// they are never the loop goroutine itself.
type LoopRunner struct {
	base

	registerCh chan loopMsg
	stopCh     chan struct{}
	stoppedCh  chan struct{}
	shutdownOnce sync.Once
}

// LoopOption configures a LoopRunner at construction.
type LoopOption func(*LoopRunner)

// WithLoopLogger overrides the runner's logger.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(r *LoopRunner) { r.logger = l }
}

// NewLoopRunner creates a dedicated-loop-thread Runner backend and starts
// its background goroutine immediately.
func NewLoopRunner(opts ...LoopOption) *LoopRunner {
	r := &LoopRunner{
		registerCh: make(chan loopMsg),
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
	r.base = newBase(nil)
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

func (r *LoopRunner) loop() {
	defer close(r.stoppedCh)

	active := make(map[*observer.Observer]struct{})
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-r.registerCh:
			active[msg.register] = struct{}{}
			close(msg.ack)
		case <-r.stopCh:
			for o := range active {
				o.Cancel()
				o.Bus().Unsubscribe(o)
			}
			return
		case <-ticker.C:
			for o := range active {
				if o.Done() {
					o.Bus().Unsubscribe(o)
					delete(active, o)
					continue
				}
				o.CheckDeadline()
				if o.Done() {
					o.Bus().Unsubscribe(o)
					delete(active, o)
				}
			}
		}
	}
}

// Submit subscribes o to its bus synchronously (before this call returns,
// so no inbound byte is lost), runs its afterSubscribe hook, then posts a
// registration to the loop goroutine and waits up to feedStartBound for
// an acknowledgement. If that bound elapses the handle is resolved as
// failed rather than ever panicking.
func (r *LoopRunner) Submit(o *observer.Observer) *observer.Handle {
	if err := checkResourceCeiling(); err != nil {
		o.SetErr(err)
		return observer.NewHandle(o, r, nil)
	}

	b := o.Bus()
	b.Subscribe(o)
	o.RunAfterSubscribeHook()

	ack := make(chan struct{})
	select {
	case r.registerCh <- loopMsg{register: o, ack: ack}:
	case <-time.After(feedStartBound):
		b.Unsubscribe(o)
		o.SetErr(molererr.Core("loop runner: feeder did not start within bound", nil))
		return observer.NewHandle(o, r, nil)
	}

	select {
	case <-ack:
	case <-time.After(feedStartBound):
		o.SetErr(molererr.Core("loop runner: feeder did not acknowledge within bound", nil))
		b.Unsubscribe(o)
		return observer.NewHandle(o, r, nil)
	}

	return observer.NewHandle(o, r, func() { b.Unsubscribe(o) })
}

// Wait blocks the calling goroutine — which is never the loop goroutine
// itself — until h's observer terminates or timeout elapses.
func (r *LoopRunner) Wait(h *observer.Handle, timeout time.Duration) error {
	if timeout <= 0 {
		_, err := h.Result()
		return err
	}
	select {
	case <-h.WaitIter():
		_, err := h.Result()
		return err
	case <-time.After(timeout):
		h.Observer().SetErr(molererr.Timeout(timeout, "loop runner: caller wait timeout"))
		h.Cancel()
		_, err := h.Result()
		return err
	}
}

// Shutdown idempotently stops the loop goroutine, cancelling every
// observer it still has registered, and blocks until it has exited.
func (r *LoopRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.inShutdown.Store(true)
		close(r.stopCh)
		<-r.stoppedCh
		r.logger.Info("loop runner shut down", "runner_id", r.id)
	})
}
