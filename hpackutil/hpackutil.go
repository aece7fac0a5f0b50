// Package hpackutil adapts golang.org/x/net/http2/hpack to the narrow
// contract the connection state machine needs from its HPACK collaborator:
// decode(payload) -> headers, encode(headers) -> bytes, and set_limit(n) to
// honor a SETTINGS-driven dynamic table cap. See spec.md §4.2/§9 — HPACK
// internals are deliberately out of scope for the engine itself.
package hpackutil

import (
	"bytes"
	"fmt"

	"golang.org/x/net/http2/hpack"
)

// HeaderField re-exports the x/net representation so callers never need to
// import golang.org/x/net/http2/hpack directly.
type HeaderField = hpack.HeaderField

// Codec owns one HPACK encoder and one HPACK decoder, matching the HTTP/2
// requirement that each direction keeps its own dynamic table.
type Codec struct {
	enc    *hpack.Encoder
	buf    bytes.Buffer
	dec    *hpack.Decoder
	fields []HeaderField
}

// NewCodec returns a Codec with both tables sized to headerTableSize, the
// local SETTINGS_HEADER_TABLE_SIZE value at connection start.
func NewCodec(headerTableSize uint32) *Codec {
	c := &Codec{}
	c.enc = hpack.NewEncoder(&c.buf)
	c.enc.SetMaxDynamicTableSize(headerTableSize)

	c.dec = hpack.NewDecoder(headerTableSize, c.onEmit)

	return c
}

func (c *Codec) onEmit(f HeaderField) {
	c.fields = append(c.fields, f)
}

// Decode parses one complete HEADERS/PUSH_PROMISE (+ CONTINUATIONs) block.
// A non-nil error means the dynamic table state has desynchronized and the
// owning connection must be torn down (spec.md §7: HPACK failure is always
// connection-fatal).
func (c *Codec) Decode(block []byte) ([]HeaderField, error) {
	c.fields = c.fields[:0]

	if _, err := c.dec.Write(block); err != nil {
		return nil, fmt.Errorf("hpack: decode: %w", err)
	}
	if err := c.dec.Close(); err != nil {
		return nil, fmt.Errorf("hpack: decode: %w", err)
	}

	return c.fields, nil
}

// Encode serializes fields into a single header block fragment. The
// frame layer is responsible for splitting the result across
// HEADERS/CONTINUATION frames per remote.max_frame_size.
func (c *Codec) Encode(fields []HeaderField) []byte {
	c.buf.Reset()
	for _, f := range fields {
		_ = c.enc.WriteField(f)
	}

	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	return out
}

// SetEncoderMaxTableSize recaps the outbound dynamic table, called when a
// SETTINGS frame changes header_table_size (spec.md §4.2: re-cap to
// min(new header_table_size, local.header_table_size)).
func (c *Codec) SetEncoderMaxTableSize(n uint32) {
	c.enc.SetMaxDynamicTableSize(n)
}

// SetDecoderMaxTableSize bounds the memory the peer's dynamic table may
// consume on our side.
func (c *Codec) SetDecoderMaxTableSize(n uint32) {
	c.dec.SetMaxDynamicTableSize(n)
}
