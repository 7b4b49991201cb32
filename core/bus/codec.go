package bus

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// CharsetCodec adapts a legacy charset (e.g. windows-1252, used by some
// modem/terminal firmware) to and from UTF-8 at the bus boundary, so domain
// Feed functions can always work with UTF-8 chunks regardless of what the
// wire actually carries.
type CharsetCodec struct {
	enc *encoding.Encoder
	dec *encoding.Decoder
}

// NewCharsetCodec builds a Codec around a golang.org/x/text encoding, e.g.
// charmap.Windows1252.
func NewCharsetCodec(e encoding.Encoding) *CharsetCodec {
	return &CharsetCodec{enc: e.NewEncoder(), dec: e.NewDecoder()}
}

// Encode transforms UTF-8 bytes into the wire charset.
func (c *CharsetCodec) Encode(p []byte) ([]byte, error) {
	return transform.Bytes(c.enc, p)
}

// Decode transforms wire-charset bytes into UTF-8.
func (c *CharsetCodec) Decode(p []byte) ([]byte, error) {
	return transform.Bytes(c.dec, p)
}
