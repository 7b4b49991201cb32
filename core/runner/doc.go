// Package runner implements the three Runner backends the observation
// runtime supports. All three satisfy observer.Runner with the same
// observable contract:
//
//	r := runner.NewPoolRunner()      // one goroutine per observer
//	r := runner.NewInlineRunner()    // caller's own goroutine is the scheduler
//	r := runner.NewLoopRunner()      // one dedicated background goroutine
//
//	h, _ := myObserver.Start(r)
//	err := h.Join(5 * time.Second)
//	v, err := h.Result()
//
// Tests in this package run the same table of behaviours against all
// three constructors to guarantee they stay interchangeable.
package runner
