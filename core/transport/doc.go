// Package transport supplies the concrete byte-duplex implementations a
// ByteBus is wired to. Every Transport is an opaque byte-in/byte-out
// adapter — none of them parse anything; wiring one to a bus looks like:
//
//	tr := transport.NewTCP("modem.example:2000")
//	b := bus.New("modem", tr.Send)
//	tr.SetInbound(b.OnBytes)
//	if err := tr.Open(ctx); err != nil { ... }
//	defer tr.Close()
package transport
