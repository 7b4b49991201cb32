// Package bus provides ByteBus, an in-process publish/subscribe fanout
// point over a single duplex byte transport.
//
// A ByteBus does not own a transport's lifecycle; it only needs an Outbound
// function to write bytes and expects the transport to call OnBytes with
// whatever it reads. This keeps ByteBus usable in tests without a real
// connection:
//
//	var sent [][]byte
//	b := bus.New("demo", func(p []byte) error {
//		sent = append(sent, p)
//		return nil
//	})
//	b.Subscribe(bus.NewSinkFunc(func(chunk []byte) {
//		fmt.Println(string(chunk))
//	}))
//	b.OnBytes([]byte("hello\n"))
package bus
