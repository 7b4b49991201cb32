// Package observer defines the unit of "watch this bus for a pattern":
// Observer and its lifecycle state machine, plus Handle, the awaitable a
// Runner returns from Submit.
//
//	o := observer.New(myBus, func(chunk []byte) observer.FeedResult {
//		if bytes.Contains(chunk, []byte("OK\n")) {
//			return observer.Succeeded(true)
//		}
//		return observer.Stay()
//	}, 5*time.Second)
//
//	handle, err := o.Start(runner)
//	if err != nil {
//		// already started
//	}
//	v, err := handle.Result()
//
// Observer itself never imports a concrete Runner; runners are a
// consumer-defined interface (Runner, CooperativeRunner) implemented by
// package runner, keeping this package free of any backend dependency.
package observer
