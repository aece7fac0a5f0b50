package h2engine

// flow.go implements spec.md §4.2's flow-control accounting: signed
// 64-bit windows, clamped sends, and overflow checks on WINDOW_UPDATE
// (RFC 7540 §6.9.1/§6.9.2).

// applyWindowUpdate adds increment to *window and rejects the result if
// it would overflow past 2^31-1, per RFC 7540 §6.9.1.
func applyWindowUpdate(window *int64, increment uint32) *Error {
	next := *window + int64(increment)
	if next > maxWindowSize {
		return protoErr(FlowControlError, "WINDOW_UPDATE overflow")
	}
	*window = next
	return nil
}

// applyInitialWindowSizeChange checks every open stream after
// INITIAL_WINDOW_SIZE changes, per RFC 7540 §6.9.2. Stream send windows
// are stored relative to the setting, so each stream's effective window
// already moves by the delta between the old and new values; this only
// rejects a new size that pushes an effective window past 2^31-1.
func (c *Connection) applyInitialWindowSizeChange(oldSize, newSize uint32) *Error {
	if newSize == oldSize {
		return nil
	}
	for _, s := range c.streams.m {
		if s.sendEffectiveWindow(newSize) > maxWindowSize {
			return protoErr(FlowControlError, "INITIAL_WINDOW_SIZE change overflows a stream window")
		}
	}
	return nil
}

// clampToWindow returns the largest prefix of want bytes that both the
// stream's and the connection's send windows (and the peer's
// max_frame_size) currently allow, per spec.md §4.2/§6 "Effective send
// window". A zero result means the write must wait for FlowIncrease.
func (c *Connection) clampToWindow(s *Stream, want int) int {
	n := want

	streamWin := s.sendEffectiveWindow(c.remote.InitialWindowSize)
	if int64(n) > streamWin {
		n = int(streamWin)
	}
	if int64(n) > c.connSendWindow {
		n = int(c.connSendWindow)
	}
	if maxFrame := int(c.remote.MaxFrameSize); n > maxFrame {
		n = maxFrame
	}
	if n < 0 {
		n = 0
	}
	return n
}

// debitSendWindow subtracts n from both the stream and connection send
// windows after a DATA frame of that size has been written.
func (c *Connection) debitSendWindow(s *Stream, n int) {
	s.sendWindow -= int64(n)
	c.connSendWindow -= int64(n)
}

// creditRecvWindow subtracts n from the local receive-window accounting
// after delivering n bytes of DATA to the sink; it is the caller's job
// to later call OpenFlow to send WINDOW_UPDATE frames (manual mode) or
// have the engine do so automatically.
func (c *Connection) creditRecvWindow(s *Stream, n int) {
	s.recvWindow -= int64(n)
	c.connRecvWindow -= int64(n)
}
