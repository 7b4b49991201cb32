// Package command provides Command, the send-and-watch specialization of
// observer.Observer. A Command writes its request line to the bus as soon
// as it is subscribed and before its first progress tick, then behaves as
// an ordinary Observer for matching the response.
//
//	cmd := command.New(myBus, "AT+CGATT=1", func(chunk []byte) observer.FeedResult {
//		switch {
//		case bytes.Contains(chunk, []byte("OK\n")):
//			return observer.Succeeded(nil)
//		case bytes.Contains(chunk, []byte("ERROR\n")):
//			return cmd.Fail("AT+CGATT=1 failed")
//		default:
//			return observer.Stay()
//		}
//	}, 180*time.Second, false)
//
//	handle, _ := cmd.Start(runner)
//	_, err := handle.Result()
package command
