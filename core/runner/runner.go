// Package runner implements the three interchangeable Runner backends:
// PoolRunner (one goroutine per observer, grounded on the teacher's
// core/queue worker-pool shape), InlineRunner (zero dedicated goroutines,
// the caller's own call stack is the scheduler), and LoopRunner (exactly
// one dedicated background goroutine driving every registered observer).
// All three satisfy observer.Runner with identical observable semantics.
// Only InlineRunner additionally satisfies observer.CooperativeRunner,
// since only there does "the caller drives progress" make sense.
package runner

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/moler-go/moler/core/observer"
)

// tickInterval is how often a progress task re-checks an observer's
// deadline and the runner's shutdown flag.
const tickInterval = 5 * time.Millisecond

var lastRunnerID atomic.Uint64

func nextRunnerID() uint64 { return lastRunnerID.Add(1) }

// base holds the bookkeeping every backend shares: an id, a logger, and
// the shutdown latch. Embedded, never used standalone.
type base struct {
	id         uint64
	logger     *slog.Logger
	inShutdown atomic.Bool
}

func newBase(logger *slog.Logger) base {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return base{id: nextRunnerID(), logger: logger}
}

// ID returns the runner's process-unique identifier.
func (b *base) ID() uint64 { return b.id }

var (
	_ observer.Runner            = (*PoolRunner)(nil)
	_ observer.Runner            = (*LoopRunner)(nil)
	_ observer.CooperativeRunner = (*InlineRunner)(nil)
)
