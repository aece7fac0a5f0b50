package h2engine

import "github.com/valyala/bytebufferpool"

// recvBuffer is C1: an append-and-shift byte queue feeding the connection
// state machine. Bytes are appended at the back by Feed and consumed from
// the front as the state machine parses complete units; Compact reclaims
// the consumed prefix once it grows large relative to what's left.
//
// Built on bytebufferpool.ByteBuffer (already in the dependency graph via
// fasthttp) instead of a hand-rolled slice: its pooled backing array is
// exactly the pattern the teacher uses for frame payloads.
type recvBuffer struct {
	bb  bytebufferpool.ByteBuffer
	off int
}

func (b *recvBuffer) Append(p []byte) {
	b.bb.B = append(b.bb.B, p...)
}

// Len returns the number of unconsumed bytes.
func (b *recvBuffer) Len() int {
	return len(b.bb.B) - b.off
}

// Bytes returns the unconsumed bytes. The slice is only valid until the
// next Append/Consume/Compact call.
func (b *recvBuffer) Bytes() []byte {
	return b.bb.B[b.off:]
}

// Peek returns exactly n unconsumed bytes without advancing, or nil if
// fewer than n are buffered.
func (b *recvBuffer) Peek(n int) []byte {
	if b.Len() < n {
		return nil
	}
	return b.bb.B[b.off : b.off+n]
}

// Consume advances the read offset by n bytes.
func (b *recvBuffer) Consume(n int) {
	b.off += n
	if b.off == len(b.bb.B) {
		b.bb.Reset()
		b.off = 0
	} else if b.off > 4096 && b.off*2 > len(b.bb.B) {
		b.Compact()
	}
}

// Compact shifts unconsumed bytes to the front, reclaiming the consumed
// prefix's memory for reuse without a fresh allocation.
func (b *recvBuffer) Compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.bb.B, b.bb.B[b.off:])
	b.bb.B = b.bb.B[:n]
	b.off = 0
}
