package runner

import (
	"log/slog"
	"sync"
	"time"

	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
)

// InlineRunner is the cooperative backend: it spawns no goroutines of its
// own. Submit only registers bookkeeping; nothing advances an observer's
// deadline or shutdown check until the caller calls Wait (which pumps
// every registered observer in a loop) or Tick (a single pump step, for
// callers with their own external event loop). If nobody ever pumps, an
// observer can still terminate by a matching Feed call — bus fanout is
// driven by whoever feeds the bus, independent of this runner — but its
// deadline will never fire, exactly mirroring a cooperative scheduler
// that nobody is running.
type InlineRunner struct {
	base

	mu      sync.Mutex
	active  map[*observer.Observer]struct{}
	waiting bool
}

// InlineOption configures an InlineRunner at construction.
type InlineOption func(*InlineRunner)

// WithInlineLogger overrides the runner's logger.
func WithInlineLogger(l *slog.Logger) InlineOption {
	return func(r *InlineRunner) { r.logger = l }
}

// NewInlineRunner creates a cooperative Runner backend.
func NewInlineRunner(opts ...InlineOption) *InlineRunner {
	r := &InlineRunner{active: make(map[*observer.Observer]struct{})}
	r.base = newBase(nil)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit subscribes o to its bus synchronously, runs its afterSubscribe
// hook, and registers it for future Tick/Wait pumping. No goroutine is
// created.
func (r *InlineRunner) Submit(o *observer.Observer) *observer.Handle {
	if err := checkResourceCeiling(); err != nil {
		o.SetErr(err)
		return observer.NewHandle(o, r, nil)
	}

	b := o.Bus()
	b.Subscribe(o)
	o.RunAfterSubscribeHook()

	r.mu.Lock()
	r.active[o] = struct{}{}
	r.mu.Unlock()

	return observer.NewHandle(o, r, func() {
		b.Unsubscribe(o)
		r.mu.Lock()
		delete(r.active, o)
		r.mu.Unlock()
	})
}

// Tick advances the deadline/shutdown check for every currently
// registered observer by one step, reaping any that became terminal.
func (r *InlineRunner) Tick() {
	r.mu.Lock()
	snapshot := make([]*observer.Observer, 0, len(r.active))
	for o := range r.active {
		snapshot = append(snapshot, o)
	}
	r.mu.Unlock()

	shuttingDown := r.inShutdown.Load()
	for _, o := range snapshot {
		if o.Done() {
			r.reap(o)
			continue
		}
		if shuttingDown {
			o.Cancel()
			r.reap(o)
			continue
		}
		o.CheckDeadline()
		if o.Done() {
			r.reap(o)
		}
	}
}

func (r *InlineRunner) reap(o *observer.Observer) {
	o.Bus().Unsubscribe(o)
	r.mu.Lock()
	delete(r.active, o)
	r.mu.Unlock()
}

// Wait pumps Tick in a loop, on the caller's own goroutine, until h's
// observer terminates or timeout elapses. Calling Wait reentrantly (from
// within another Wait call already pumping this same runner) returns
// WrongUsage, since that would deadlock the scheduler against itself.
func (r *InlineRunner) Wait(h *observer.Handle, timeout time.Duration) error {
	r.mu.Lock()
	if r.waiting {
		r.mu.Unlock()
		return molererr.WrongUsage("inline runner: Wait called reentrantly from within its own pumping loop")
	}
	r.waiting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.waiting = false
		r.mu.Unlock()
	}()

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		r.Tick()
		if h.Done() {
			_, err := h.Result()
			return err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			h.Observer().SetErr(molererr.Timeout(timeout, "inline runner: caller wait timeout"))
			h.Cancel()
			_, err := h.Result()
			return err
		}
		time.Sleep(tickInterval)
	}
}

// WaitIter returns h's own done channel for the caller's own select loop;
// it does not pump Tick itself.
func (r *InlineRunner) WaitIter(h *observer.Handle) <-chan struct{} {
	return h.WaitIter()
}

// Shutdown latches the shutdown flag and runs one Tick immediately, which
// cancels every registered observer; later Ticks cancel any observer
// submitted afterwards.
func (r *InlineRunner) Shutdown() {
	r.inShutdown.Store(true)
	r.Tick()
}
