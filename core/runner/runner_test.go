package runner_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moler-go/moler/core/bus"
	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
	"github.com/moler-go/moler/core/runner"
)

// backends is the shared table every contract test below runs against, so
// the three Runner implementations are proven interchangeable.
func backends() map[string]observer.Runner {
	return map[string]observer.Runner{
		"pool":   runner.NewPoolRunner(),
		"inline": runner.NewInlineRunner(),
		"loop":   runner.NewLoopRunner(),
	}
}

func TestRunners_FeedSucceeds(t *testing.T) {
	for name, r := range backends() {
		r := r
		t.Run(name, func(t *testing.T) {
			defer r.Shutdown()
			b := bus.New("demo", func(p []byte) error { return nil })
			o := observer.New(b, func(chunk []byte) observer.FeedResult {
				if bytes.Contains(chunk, []byte("OK\n")) {
					return observer.Succeeded("matched")
				}
				return observer.Stay()
			}, time.Second)

			h, err := o.Start(r)
			require.NoError(t, err)

			b.OnBytes([]byte("OK\n"))

			err = h.Join(time.Second)
			require.NoError(t, err)
			v, _ := h.Result()
			assert.Equal(t, "matched", v)
		})
	}
}

func TestRunners_DeadlineFiresTimeout(t *testing.T) {
	for name, r := range backends() {
		r := r
		t.Run(name, func(t *testing.T) {
			defer r.Shutdown()
			b := bus.New("demo", func(p []byte) error { return nil })
			o := observer.New(b, func(chunk []byte) observer.FeedResult {
				return observer.Stay()
			}, 30*time.Millisecond)

			h, err := o.Start(r)
			require.NoError(t, err)

			err = h.Join(2 * time.Second)
			require.Error(t, err)
			assert.True(t, molererr.IsTimeout(err))
		})
	}
}

func TestRunners_ZeroDeadlineFiresTimeoutImmediately(t *testing.T) {
	for name, r := range backends() {
		r := r
		t.Run(name, func(t *testing.T) {
			defer r.Shutdown()
			b := bus.New("demo", func(p []byte) error { return nil })
			fed := false
			o := observer.New(b, func(chunk []byte) observer.FeedResult {
				fed = true
				return observer.Stay()
			}, 0)

			h, err := o.Start(r)
			require.NoError(t, err)

			err = h.Join(2 * time.Second)
			require.Error(t, err)
			assert.True(t, molererr.IsTimeout(err))
			assert.False(t, fed, "feed must not be called for a zero deadline")
		})
	}
}

func TestRunners_ShutdownCancelsActiveObservers(t *testing.T) {
	for name, r := range backends() {
		r := r
		t.Run(name, func(t *testing.T) {
			b := bus.New("demo", func(p []byte) error { return nil })
			o := observer.New(b, func(chunk []byte) observer.FeedResult {
				return observer.Stay()
			}, time.Hour)

			h, err := o.Start(r)
			require.NoError(t, err)

			r.Shutdown()

			// allow cooperative backends a pump/tick window
			if ir, ok := r.(*runner.InlineRunner); ok {
				ir.Tick()
			}

			require.Eventually(t, h.Done, time.Second, 5*time.Millisecond)
		})
	}
}

func TestRunners_DoubleStartIsWrongUsage(t *testing.T) {
	for name, r := range backends() {
		r := r
		t.Run(name, func(t *testing.T) {
			defer r.Shutdown()
			b := bus.New("demo", func(p []byte) error { return nil })
			o := observer.New(b, func(chunk []byte) observer.FeedResult { return observer.Stay() }, observer.Unbounded)

			_, err := o.Start(r)
			require.NoError(t, err)
			_, err = o.Start(r)
			require.Error(t, err)
			assert.True(t, molererr.IsWrongUsage(err))
		})
	}
}

func TestInlineRunner_ReentrantWaitIsWrongUsage(t *testing.T) {
	r := runner.NewInlineRunner()
	defer r.Shutdown()

	b := bus.New("demo", func(p []byte) error { return nil })
	inner := observer.New(b, func(chunk []byte) observer.FeedResult { return observer.Stay() }, 50*time.Millisecond)
	innerHandle, err := inner.Start(r)
	require.NoError(t, err)

	outer := observer.New(b, func(chunk []byte) observer.FeedResult {
		return observer.Stay()
	}, observer.Unbounded)
	outerHandle, err := outer.Start(r)
	require.NoError(t, err)
	_ = outerHandle

	// Simulate a Feed callback trying to Wait reentrantly on the same
	// runner it is already being pumped by.
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Wait(innerHandle, time.Second)
	}()
	time.Sleep(5 * time.Millisecond)
	reentrantErr := r.Wait(outerHandle, 10*time.Millisecond)
	assert.True(t, molererr.IsWrongUsage(reentrantErr))
	<-errCh
}
