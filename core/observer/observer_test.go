package observer_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moler-go/moler/core/bus"
	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
)

// fakeRunner is the simplest possible Runner: it subscribes the observer's
// sink synchronously and never ticks deadlines on its own, letting tests
// drive completion purely via bus delivery.
type fakeRunner struct {
	b *bus.ByteBus
}

func (r *fakeRunner) Submit(o *observer.Observer) *observer.Handle {
	r.b.Subscribe(o)
	o.RunAfterSubscribeHook()
	return observer.NewHandle(o, r, func() { r.b.Unsubscribe(o) })
}

func (r *fakeRunner) Wait(h *observer.Handle, timeout time.Duration) error {
	if timeout == 0 {
		_, err := h.Observer().Result()
		return err
	}
	select {
	case <-h.WaitIter():
		_, err := h.Observer().Result()
		return err
	case <-time.After(timeout):
		h.Cancel()
		return molererr.Timeout(timeout, "wait: caller timeout")
	}
}

func (r *fakeRunner) Shutdown() {}

func TestObserver_StartTwiceIsWrongUsage(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := &fakeRunner{b: b}
	o := observer.New(b, func(chunk []byte) observer.FeedResult { return observer.Stay() }, observer.Unbounded)

	_, err := o.Start(r)
	require.NoError(t, err)

	_, err = o.Start(r)
	require.Error(t, err)
	assert.True(t, molererr.IsWrongUsage(err))
}

func TestObserver_FeedSucceeds(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := &fakeRunner{b: b}
	o := observer.New(b, func(chunk []byte) observer.FeedResult {
		if bytes.Contains(chunk, []byte("OK\n")) {
			return observer.Succeeded("matched")
		}
		return observer.Stay()
	}, observer.Unbounded)

	h, err := o.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("OK\n"))

	v, err := h.Result()
	require.NoError(t, err)
	assert.Equal(t, "matched", v)
	assert.Equal(t, observer.StateSucceeded, o.State())
}

func TestObserver_FeedFails(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := &fakeRunner{b: b}
	wantErr := molererr.Core("parsed ERROR", nil)
	o := observer.New(b, func(chunk []byte) observer.FeedResult {
		if bytes.Contains(chunk, []byte("ERROR\n")) {
			return observer.Failed(wantErr)
		}
		return observer.Stay()
	}, observer.Unbounded)

	h, err := o.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("ERROR\n"))

	_, err = h.Result()
	require.Error(t, err)
	assert.Equal(t, observer.StateFailed, o.State())
}

func TestObserver_TerminalStateIsSticky(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := &fakeRunner{b: b}
	o := observer.New(b, func(chunk []byte) observer.FeedResult {
		return observer.Succeeded(string(chunk))
	}, observer.Unbounded)

	h, err := o.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("first"))
	b.OnBytes([]byte("second"))

	v, err := h.Result()
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestObserver_FeedPanicBecomesFailure(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := &fakeRunner{b: b}
	o := observer.New(b, func(chunk []byte) observer.FeedResult {
		panic("boom")
	}, observer.Unbounded)

	h, err := o.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("x"))

	_, err = h.Result()
	require.Error(t, err)
	assert.Equal(t, observer.StateFailed, o.State())
}

func TestObserver_Cancel(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := &fakeRunner{b: b}
	o := observer.New(b, func(chunk []byte) observer.FeedResult { return observer.Stay() }, observer.Unbounded)

	h, err := o.Start(r)
	require.NoError(t, err)

	h.Cancel()

	_, err = h.Result()
	require.Error(t, err)
	assert.True(t, molererr.IsCancelled(err))
	assert.Equal(t, observer.StateCancelled, o.State())
}

func TestObserver_SetDeadlineUpdatesDeadline(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	o := observer.New(b, func(chunk []byte) observer.FeedResult { return observer.Stay() }, 50*time.Millisecond)

	assert.Equal(t, 50*time.Millisecond, o.Deadline())
	o.SetDeadline(time.Hour)
	assert.Equal(t, time.Hour, o.Deadline())
}
