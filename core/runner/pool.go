package runner

import (
	"log/slog"
	"sync"
	"time"

	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
)

// PoolRunner drives every submitted observer on its own goroutine. It is
// grounded on the same shape as a worker pool: a WaitGroup tracks active
// progress tasks so Shutdown can drain them within a bound, the way a
// queue worker drains in-flight jobs.
type PoolRunner struct {
	base

	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
	wg              sync.WaitGroup
}

// PoolOption configures a PoolRunner at construction.
type PoolOption func(*PoolRunner)

// WithPoolLogger overrides the runner's logger.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(r *PoolRunner) { r.logger = l }
}

// WithPoolShutdownTimeout bounds how long Shutdown waits for active
// progress tasks to exit before returning anyway. Default 10s.
func WithPoolShutdownTimeout(d time.Duration) PoolOption {
	return func(r *PoolRunner) { r.shutdownTimeout = d }
}

// NewPoolRunner creates a thread-pool Runner backend.
func NewPoolRunner(opts ...PoolOption) *PoolRunner {
	r := &PoolRunner{shutdownTimeout: 10 * time.Second}
	r.base = newBase(nil)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit subscribes o to its bus synchronously (so no inbound byte is
// lost), runs its afterSubscribe hook, then launches a dedicated
// goroutine to track its deadline and the shutdown flag until it
// terminates.
func (r *PoolRunner) Submit(o *observer.Observer) *observer.Handle {
	if err := checkResourceCeiling(); err != nil {
		o.SetErr(err)
		return observer.NewHandle(o, r, nil)
	}

	b := o.Bus()
	b.Subscribe(o)
	o.RunAfterSubscribeHook()

	r.wg.Add(1)
	go r.progressLoop(o)

	return observer.NewHandle(o, r, func() { b.Unsubscribe(o) })
}

func (r *PoolRunner) progressLoop(o *observer.Observer) {
	defer r.wg.Done()
	defer o.Bus().Unsubscribe(o)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		if o.Done() {
			return
		}
		if r.inShutdown.Load() {
			o.Cancel()
			return
		}
		o.CheckDeadline()
		<-ticker.C
	}
}

// Wait blocks until h's observer terminates or timeout elapses.
func (r *PoolRunner) Wait(h *observer.Handle, timeout time.Duration) error {
	if timeout <= 0 {
		_, err := h.Result()
		return err
	}
	select {
	case <-h.WaitIter():
		_, err := h.Result()
		return err
	case <-time.After(timeout):
		h.Observer().SetErr(molererr.Timeout(timeout, "pool runner: caller wait timeout"))
		h.Cancel()
		_, err := h.Result()
		return err
	}
}

// Shutdown idempotently latches the shutdown flag and waits, up to
// shutdownTimeout, for every active progress task to observe it and exit.
func (r *PoolRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.inShutdown.Store(true)

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			r.logger.Info("pool runner shut down cleanly", "runner_id", r.id)
		case <-time.After(r.shutdownTimeout):
			r.logger.Warn("pool runner shutdown timeout exceeded", "runner_id", r.id, "timeout", r.shutdownTimeout)
		}
	})
}
