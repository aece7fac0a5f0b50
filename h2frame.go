package h2engine

// h2frame.go is the H2_FRAME branch of C5: once the connection is
// past its initial SETTINGS, every subsequent frame is decoded and
// dispatched from here (spec.md §4.2 "Frame handling", per-type tables).

const maxContinuations = 8

// nextKnownFrame reads frames off c.buf until it finds one of a known
// type, runs out of buffered bytes, or hits a parse error. Unknown frame
// types are fully consumed and discarded in a loop here rather than
// being reported as "no progress" to Feed's driver — otherwise a buffer
// holding an unknown frame followed by a real one would need a second
// Feed call to make progress, breaking spec.md §8 property 1.
func (c *Connection) nextKnownFrame() (*FrameHeader, error) {
	for {
		frh, err := readFrame(&c.buf, c.local.MaxFrameSize)
		if err == errUnknownFrameType {
			ReleaseFrameHeader(frh)
			continue
		}
		return frh, err
	}
}

func (c *Connection) stepH2Frame() (state, error) {
	frh, err := c.nextKnownFrame()
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindProtocol {
			c.sendGoAway(e.Code, nil)
		}
		return c.st, err
	}
	if frh == nil {
		return c.st, nil // pending
	}
	defer ReleaseFrameHeader(frh)

	c.sink.Frame(frh)

	if c.cont.active && frh.Type() != FrameContinuation {
		gerr := protoErr(ProtocolError, "expected CONTINUATION")
		c.sendGoAway(gerr.Code, nil)
		return c.st, gerr
	}

	var herr *Error
	switch frh.Type() {
	case FrameData:
		herr = c.handleData(frh)
	case FrameHeaders:
		herr = c.handleHeaders(frh)
	case FramePriority:
		herr = c.handlePriority(frh)
	case FrameRstStream:
		herr = c.handleRstStream(frh)
	case FrameSettings:
		herr = c.handleSettings(frh)
	case FramePushPromise:
		herr = c.handlePushPromise(frh)
	case FramePing:
		herr = c.handlePing(frh)
	case FrameGoAway:
		herr = c.handleGoAway(frh)
	case FrameWindowUpdate:
		herr = c.handleWindowUpdate(frh)
	case FrameContinuation:
		herr = c.handleContinuation(frh)
	}

	if herr != nil {
		if herr.Kind == KindProtocol {
			c.sendGoAway(herr.Code, nil)
		}
		return c.st, herr
	}

	return stateH2Frame, nil
}

// remoteStreamFor resolves frh's stream. A known stream is returned as
// is. An unknown id that may not be opened is either a tolerated late
// frame (found in reset-history: nil stream, no error) or a
// KindInvalidStream error. For frame types that may implicitly open a
// new remote stream (HEADERS, PUSH_PROMISE is local-only), a parity or
// monotonicity violation is a PROTOCOL error. The second return value reports a stream that is being *refused*
// (GOAWAY already sent, or the concurrent-streams limit reached): the
// caller must still decode its header block to keep HPACK in sync, but
// must not create the stream or fire any stream-lifecycle events.
func (c *Connection) remoteStreamFor(id uint32, mayOpen bool) (*Stream, bool, *Error) {
	if s := c.streams.find(id); s != nil {
		return s, false, nil
	}

	if !mayOpen {
		if _, ok := c.resetHist.find(id); ok {
			return nil, false, nil // tolerated late frame, no-op
		}
		return nil, false, newErr(KindInvalidStream, "unknown stream")
	}

	isClientInitiated := id%2 == 1
	expectRemote := (c.role == RoleServer) == isClientInitiated
	if !expectRemote {
		return nil, false, protoErr(ProtocolError, "stream id parity mismatch")
	}
	if id <= c.lastStreamRemote {
		if _, ok := c.resetHist.find(id); ok {
			return nil, false, nil
		}
		return nil, false, protoErr(ProtocolError, "stream id not monotonic")
	}

	refuse := c.goAwaySent != 0 ||
		(c.local.MaxConcurrentStreams > 0 && uint32(c.streamCountRemote) >= c.local.MaxConcurrentStreams)

	c.lastStreamRemote = id
	if refuse {
		return nil, true, nil
	}

	s := newStream(id)
	s.isRemote = true
	c.streams.insert(s)
	c.streamCountRemote++
	c.sink.StreamStart(id)

	return s, false, nil
}

func (c *Connection) handleData(frh *FrameHeader) *Error {
	if frh.Stream() == 0 {
		return protoErr(ProtocolError, "DATA on stream 0")
	}

	s, _, err := c.remoteStreamFor(frh.Stream(), false)
	if err != nil {
		if err.Kind == KindInvalidStream {
			return protoErr(StreamClosedError, "DATA on unknown stream")
		}
		return err
	}
	if s == nil {
		return nil
	}
	if s.rState == halfClosed {
		return protoErr(StreamClosedError, "DATA after stream closed")
	}

	df := frh.Body().(*Data)
	n := len(df.Payload())
	framed := frh.Len() // includes the pad-length byte and padding (spec.md §4.2)

	if s.remainingPayload >= 0 {
		s.remainingPayload -= int64(n)
		if s.remainingPayload < 0 {
			return protoErr(ProtocolError, "DATA exceeds declared content-length")
		}
	}

	c.connRecvWindow -= int64(framed)
	s.recvWindow -= int64(framed)

	if n > 0 {
		c.sink.MessageData(frh.Stream(), df.Payload())
	}

	if !c.cfg.ManualFlowControl {
		if ferr := c.autoOpenFlow(s, framed); ferr != nil {
			return ferr
		}
	} else if pad := framed - n; pad > 0 {
		// manual flow control still owes the peer the padding-only share
		// of the window back: the host never sees those bytes to release
		// itself via OpenFlow.
		if ferr := c.autoOpenFlow(s, pad); ferr != nil {
			return ferr
		}
	}

	if df.EndStream() {
		if s.remainingPayload > 0 {
			return protoErr(ProtocolError, "DATA ended before declared content-length reached")
		}
		s.rState = halfClosed
		c.sink.MessageTail(frh.Stream(), nil)
		if s.closed() {
			c.removeStream(frh.Stream())
			c.sink.StreamEnd(frh.Stream())
		}
	}

	return nil
}

// autoOpenFlow replenishes the receive windows as soon as data is
// delivered, when the host hasn't opted into manual control.
func (c *Connection) autoOpenFlow(s *Stream, n int) *Error {
	if n == 0 {
		return nil
	}
	c.connRecvWindow += int64(n)
	s.recvWindow += int64(n)

	var bufs [][]byte
	wf := &WindowUpdate{}
	wf.SetIncrement(uint32(n))
	frh := AcquireFrameHeader()
	frh.SetBody(wf)
	frh.SetStream(s.id)
	bufs = append(bufs, writeFrame(nil, frh))
	ReleaseFrameHeader(frh)

	cwf := &WindowUpdate{}
	cwf.SetIncrement(uint32(n))
	cfrh := AcquireFrameHeader()
	cfrh.SetBody(cwf)
	bufs = append(bufs, writeFrame(nil, cfrh))
	ReleaseFrameHeader(cfrh)

	return c.toError(c.emit(bufs))
}

func (c *Connection) handleHeaders(frh *FrameHeader) *Error {
	if frh.Stream() == 0 {
		return protoErr(ProtocolError, "HEADERS on stream 0")
	}

	hf := frh.Body().(*Headers)

	s, refused, err := c.remoteStreamFor(frh.Stream(), true)
	if err != nil {
		return err
	}
	if s == nil && !refused {
		return nil
	}
	if !refused && s.rState == halfClosed && !s.informational {
		return protoErr(StreamClosedError, "HEADERS after stream closed")
	}

	if !hf.EndHeaders() {
		c.cont = continuationState{
			active:    true,
			streamID:  frh.Stream(),
			endStream: hf.EndStream(),
			refused:   refused,
			block:     append([]byte(nil), hf.Block()...),
			count:     1,
		}
		return nil
	}

	if refused {
		return c.refuseHeaders(frh.Stream(), hf.Block())
	}

	return c.finishHeaders(s, frh.Stream(), hf.Block(), hf.EndStream(), false, 0)
}

// refuseHeaders decodes a header block from a stream the engine is
// refusing (GOAWAY already sent, or MAX_CONCURRENT_STREAMS reached).
// HPACK's dynamic table is shared connection-wide, so the block must
// still be consumed to stay in sync with the peer's encoder even though
// the stream itself never comes into existence (spec.md §4.2 "HEADERS":
// "send RST_STREAM(REFUSED_STREAM) and still decode to keep HPACK sync").
func (c *Connection) refuseHeaders(id uint32, block []byte) *Error {
	if _, derr := c.hpack.Decode(block); derr != nil {
		return protoErr(CompressionError, derr.Error())
	}

	rf := &RstStream{code: RefusedStreamError}
	frh := AcquireFrameHeader()
	frh.SetBody(rf)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	return c.toError(c.emit([][]byte{buf}))
}

func (c *Connection) handleContinuation(frh *FrameHeader) *Error {
	if !c.cont.active || frh.Stream() != c.cont.streamID {
		return protoErr(ProtocolError, "unexpected CONTINUATION")
	}

	cf := frh.Body().(*Continuation)

	c.cont.count++
	if c.cont.count > maxContinuations {
		return protoErr(EnhanceYourCalm, "too many CONTINUATION frames")
	}

	c.cont.block = append(c.cont.block, cf.Block()...)

	if !cf.EndHeaders() {
		return nil
	}

	cont := c.cont
	c.cont = continuationState{}

	if cont.isPush {
		return c.finishPush(cont.streamID, cont.promisedID, cont.block)
	}

	if cont.refused {
		return c.refuseHeaders(cont.streamID, cont.block)
	}

	s := c.streams.find(cont.streamID)
	if s == nil {
		return nil
	}
	return c.finishHeaders(s, cont.streamID, cont.block, cont.endStream, false, 0)
}

// finishHeaders decodes a complete header block and fires the
// appropriate MessageHead/MessageTail callback (spec.md §4.3).
func (c *Connection) finishHeaders(s *Stream, id uint32, block []byte, endStream bool, isTrailers bool, _ uint32) *Error {
	fields, derr := c.hpack.Decode(block)
	if derr != nil {
		return protoErr(CompressionError, derr.Error())
	}

	isRequest := c.role == RoleServer

	if s.rState == halfData && !endStream && !isTrailers {
		return protoErr(ProtocolError, "HEADERS without END_STREAM mid-DATA is not valid trailers")
	}

	if isTrailers || s.rState == halfData {
		_, trailers, nerr := normalizeFields(fields, true, isRequest)
		if nerr != nil {
			return nerr
		}
		s.rState = halfClosed
		c.sink.MessageTail(id, trailers)
		if s.closed() {
			c.removeStream(id)
			c.sink.StreamEnd(id)
		}
		return nil
	}

	msg, _, nerr := normalizeFields(fields, false, isRequest)
	if nerr != nil {
		return nerr
	}

	if !isRequest && msg.IsInformational() {
		s.informational = true
		c.sink.MessageHead(id, msg)
		return nil
	}
	s.informational = false

	s.remainingPayload = msg.ContentLength

	if endStream {
		s.rState = halfClosed
	} else {
		s.rState = halfData
	}

	c.sink.MessageHead(id, msg)

	if endStream {
		c.sink.MessageTail(id, nil)
		if s.closed() {
			c.removeStream(id)
			c.sink.StreamEnd(id)
		}
	}

	return nil
}

func (c *Connection) handlePriority(frh *FrameHeader) *Error {
	_ = frh.Body().(*Priority)
	return nil
}

func (c *Connection) handleRstStream(frh *FrameHeader) *Error {
	if frh.Stream() == 0 {
		return protoErr(ProtocolError, "RST_STREAM on stream 0")
	}

	s := c.streams.find(frh.Stream())
	if s == nil {
		if _, ok := c.resetHist.find(frh.Stream()); ok {
			return nil
		}
		return nil
	}

	c.removeStream(frh.Stream())
	c.sink.StreamEnd(frh.Stream())

	return nil
}

func (c *Connection) handleSettings(frh *FrameHeader) *Error {
	sf := frh.Body().(*SettingsFrame)

	if sf.Ack() {
		return nil
	}

	oldInitWin := c.remote.InitialWindowSize

	for _, p := range sf.Pairs() {
		if err := applySetting(&c.remote, p); err != nil {
			return err
		}
	}

	if err := c.applyInitialWindowSizeChange(oldInitWin, c.remote.InitialWindowSize); err != nil {
		return err
	}

	encTableSize := c.remote.HeaderTableSize
	if c.local.HeaderTableSize < encTableSize {
		encTableSize = c.local.HeaderTableSize
	}
	c.hpack.SetEncoderMaxTableSize(encTableSize)

	ack := &SettingsFrame{ack: true}
	frh2 := AcquireFrameHeader()
	frh2.SetBody(ack)
	buf := writeFrame(nil, frh2)
	ReleaseFrameHeader(frh2)

	c.sink.Settings()

	return c.toError(c.emit([][]byte{buf}))
}

func (c *Connection) handlePushPromise(frh *FrameHeader) *Error {
	if c.role != RoleClient {
		return protoErr(ProtocolError, "PUSH_PROMISE received by server")
	}
	if !c.local.EnablePush {
		return protoErr(ProtocolError, "PUSH_PROMISE while push disabled")
	}

	pp := frh.Body().(*PushPromise)

	parent, _, err := c.remoteStreamFor(frh.Stream(), false)
	if err != nil {
		return err
	}
	if parent == nil {
		return nil
	}

	if pp.PromisedID()%2 != 0 || pp.PromisedID() <= c.lastStreamRemote {
		return protoErr(ProtocolError, "bad promised stream id")
	}

	if !pp.EndHeaders() {
		c.cont = continuationState{
			active:     true,
			streamID:   frh.Stream(),
			isPush:     true,
			promisedID: pp.PromisedID(),
			block:      append([]byte(nil), pp.Block()...),
			count:      1,
		}
		return nil
	}

	return c.finishPush(frh.Stream(), pp.PromisedID(), pp.Block())
}

func (c *Connection) finishPush(parent, promised uint32, block []byte) *Error {
	fields, derr := c.hpack.Decode(block)
	if derr != nil {
		return protoErr(CompressionError, derr.Error())
	}

	msg, _, nerr := normalizeFields(fields, false, true)
	if nerr != nil {
		return nerr
	}

	s := newStream(promised)
	s.wState = halfClosed
	s.isRemote = true
	c.streams.insert(s)
	c.streamCountRemote++
	c.lastStreamRemote = promised

	c.sink.StreamStart(promised)
	c.sink.MessagePush(promised, msg, parent)

	return nil
}

func (c *Connection) handlePing(frh *FrameHeader) *Error {
	pf := frh.Body().(*Ping)

	if pf.Ack() {
		c.sink.Pong(pf.Data())
		return nil
	}

	reply := &Ping{ack: true, data: pf.Data()}
	rfrh := AcquireFrameHeader()
	rfrh.SetBody(reply)
	buf := writeFrame(nil, rfrh)
	ReleaseFrameHeader(rfrh)

	return c.toError(c.emit([][]byte{buf}))
}

func (c *Connection) handleGoAway(frh *FrameHeader) *Error {
	gf := frh.Body().(*GoAway)
	c.closed = true

	if gf.Code() == NoError {
		return newErr(KindDisconnect, "peer sent GOAWAY(NO_ERROR)")
	}
	return protoErr(gf.Code(), "peer sent GOAWAY("+gf.Code().String()+")")
}

func (c *Connection) handleWindowUpdate(frh *FrameHeader) *Error {
	wf := frh.Body().(*WindowUpdate)

	if frh.Stream() == 0 {
		if err := applyWindowUpdate(&c.connSendWindow, wf.Increment()); err != nil {
			return err
		}
		c.sink.FlowIncrease(0)
		return nil
	}

	s := c.streams.find(frh.Stream())
	if s == nil {
		if _, ok := c.resetHist.find(frh.Stream()); ok {
			return nil
		}
		return nil
	}

	if s.sendEffectiveWindow(c.remote.InitialWindowSize)+int64(wf.Increment()) > maxWindowSize {
		// spec.md §4.2 WINDOW_UPDATE: a stream-level overflow is scoped
		// to that stream (RST_STREAM(FLOW_CONTROL_ERROR)), unlike the
		// connection-level case above which is fatal and GOAWAYs.
		return c.resetStreamLocally(frh.Stream(), FlowControlError)
	}
	s.sendWindow += int64(wf.Increment())
	c.sink.FlowIncrease(frh.Stream())

	return nil
}

// resetStreamLocally sends RST_STREAM(code) on id in response to a
// stream-scoped protocol violation the engine detected itself (as
// opposed to a caller-requested WriteReset), records it in reset-history,
// and retires the stream without surfacing a connection-fatal error.
func (c *Connection) resetStreamLocally(id uint32, code ErrorCode) *Error {
	s := c.streams.find(id)
	if s == nil {
		return nil
	}

	c.resetHist.record(id, s.rState == halfHeaders)

	rf := &RstStream{code: code}
	frh := AcquireFrameHeader()
	frh.SetBody(rf)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	c.removeStream(id)
	err := c.toError(c.emit([][]byte{buf}))
	c.sink.StreamEnd(id)
	return err
}
