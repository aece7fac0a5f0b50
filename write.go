package h2engine

import (
	"strconv"

	"github.com/dgrr/h2engine/hpackutil"
)

// write.go is C6: the engine's outbound half. Each method below hands its
// frames to the Sink in one Writev call, or none if there was nothing to
// flush. When WriteHead, WriteData or WriteTrailers closes the write half
// of a server stream whose read half is still open, discardRemaining
// follows with a second Writev call carrying RST_STREAM.

// toFields projects msg (plus an optional synthetic :status/:method/etc)
// into the wire order HPACK expects: pseudo-headers first, then regular
// headers in caller order (spec.md §4.3, mirrored from normalizeFields).
func (m *Message) toFields(isRequest bool) []hpackutil.HeaderField {
	fields := make([]hpackutil.HeaderField, 0, 4+len(m.Headers))

	if isRequest {
		fields = append(fields, hpackutil.HeaderField{Name: ":method", Value: m.Method})
		if m.Method != "CONNECT" {
			fields = append(fields, hpackutil.HeaderField{Name: ":scheme", Value: m.Scheme})
			fields = append(fields, hpackutil.HeaderField{Name: ":path", Value: m.Path})
		}
		if m.hasAuthority || m.Authority != "" {
			fields = append(fields, hpackutil.HeaderField{Name: ":authority", Value: m.Authority})
		}
	} else {
		fields = append(fields, hpackutil.HeaderField{Name: ":status", Value: strconv.Itoa(m.Code)})
	}

	for _, h := range m.Headers {
		fields = append(fields, hpackutil.HeaderField{Name: h.Name, Value: h.Value})
	}

	return fields
}

// WriteHead sends msg as a HEADERS block (request if the engine is a
// client, response if it is a server), splitting across CONTINUATION
// frames if the encoded block exceeds remote.max_frame_size.
func (c *Connection) WriteHead(id uint32, msg *Message, endStream bool) error {
	if c.mode != modeH2 {
		return c.writeHeadH1(msg, endStream)
	}

	s := c.streams.find(id)
	if s == nil {
		if c.role == RoleServer {
			return ErrInvalidStream
		}
		s = c.openLocalStream(id)
	}

	block := c.hpack.Encode(msg.toFields(c.role == RoleClient))

	var out [][]byte
	out = c.appendHeadersFrames(out, id, block, endStream, false, 0, 0)

	if endStream {
		s.wState = halfClosed
	} else {
		s.wState = halfData
	}

	if err := c.emit(out); err != nil {
		return err
	}
	if endStream {
		return c.discardRemaining(id, s)
	}
	return nil
}

// appendHeadersFrames splits block across a HEADERS frame and as many
// CONTINUATION frames as needed (spec.md §4.2 "Header continuation").
// hasPri/dep/weight are stored on the leading HEADERS frame only;
// Headers.Serialize does not write priority fields, so they do not
// reach the wire.
func (c *Connection) appendHeadersFrames(out [][]byte, id uint32, block []byte, endStream, hasPri bool, dep uint32, weight byte) [][]byte {
	limit := int(c.remote.MaxFrameSize)
	first := block
	rest := []byte(nil)
	if len(first) > limit {
		first, rest = block[:limit], block[limit:]
	}

	hf := &Headers{
		endStream:  endStream,
		endHeaders: len(rest) == 0,
		hasPri:     hasPri,
		priStream:  dep,
		weight:     weight,
		block:      first,
	}
	frh := AcquireFrameHeader()
	frh.SetBody(hf)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	out = append(out, buf)
	ReleaseFrameHeader(frh)

	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > limit {
			chunk = rest[:limit]
		}
		rest = rest[len(chunk):]

		cf := &Continuation{endHeaders: len(rest) == 0, block: chunk}
		cfrh := AcquireFrameHeader()
		cfrh.SetBody(cf)
		cfrh.SetStream(id)
		out = append(out, writeFrame(nil, cfrh))
		ReleaseFrameHeader(cfrh)
	}

	return out
}

// WriteData sends up to len(p) bytes of body on id, clamped to the
// current effective send window (spec.md §4.2 "Effective send window").
// It returns how many bytes were actually written; the caller must
// retry the remainder after a FlowIncrease callback.
func (c *Connection) WriteData(id uint32, p []byte, endStream bool) (int, error) {
	if c.mode != modeH2 {
		return c.writeDataH1(p, endStream)
	}

	s := c.streams.find(id)
	if s == nil {
		return 0, ErrInvalidStream
	}

	n := c.clampToWindow(s, len(p))
	if n == 0 && len(p) > 0 {
		return 0, nil
	}

	df := &Data{endStream: endStream && n == len(p), b: p[:n]}
	frh := AcquireFrameHeader()
	frh.SetBody(df)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	c.debitSendWindow(s, n)

	if err := c.emit([][]byte{buf}); err != nil {
		return n, err
	}

	if df.endStream {
		s.wState = halfClosed
		if err := c.discardRemaining(id, s); err != nil {
			return n, err
		}
	}

	return n, nil
}

// WriteTrailers sends a trailing HEADERS block (no pseudo-headers) and
// closes the write half of id.
func (c *Connection) WriteTrailers(id uint32, trailers []Header) error {
	if c.mode != modeH2 {
		return c.writeTrailersH1(trailers)
	}

	s := c.streams.find(id)
	if s == nil {
		return ErrInvalidStream
	}

	fields := make([]hpackutil.HeaderField, len(trailers))
	for i, h := range trailers {
		fields[i] = hpackutil.HeaderField{Name: h.Name, Value: h.Value}
	}
	block := c.hpack.Encode(fields)

	out := c.appendHeadersFrames(nil, id, block, true, false, 0, 0)

	s.wState = halfClosed

	if err := c.emit(out); err != nil {
		return err
	}
	return c.discardRemaining(id, s)
}

// WritePush sends a PUSH_PROMISE associating a freshly allocated local
// stream with parent, then returns the new stream's id so the caller can
// WriteHead/WriteData a response on it.
func (c *Connection) WritePush(parent uint32, msg *Message) (uint32, error) {
	if c.mode != modeH2 {
		return 0, ErrAssertion
	}
	if !c.remote.EnablePush {
		return 0, ErrAssertion
	}
	if c.role != RoleServer {
		return 0, ErrAssertion
	}

	parentStream := c.streams.find(parent)
	if parentStream == nil || parentStream.wState == halfClosed {
		return 0, ErrInvalidStream
	}

	promised := c.nextLocalStreamID()
	s := newStream(promised)
	s.rState = halfClosed // pushed streams never receive a request
	c.streams.insert(s)
	c.streamCountLocal++

	fields := msg.toFields(true)
	block := c.hpack.Encode(fields)

	limit := int(c.remote.MaxFrameSize) - 4
	if limit < 1 {
		limit = 1
	}
	first := block
	var rest []byte
	if len(first) > limit {
		first, rest = block[:limit], block[limit:]
	}

	pp := &PushPromise{promisedID: promised, endHeaders: len(rest) == 0, block: first}
	frh := AcquireFrameHeader()
	frh.SetBody(pp)
	frh.SetStream(parent)
	out := [][]byte{writeFrame(nil, frh)}
	ReleaseFrameHeader(frh)

	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > int(c.remote.MaxFrameSize) {
			chunk = rest[:c.remote.MaxFrameSize]
		}
		rest = rest[len(chunk):]
		cf := &Continuation{endHeaders: len(rest) == 0, block: chunk}
		cfrh := AcquireFrameHeader()
		cfrh.SetBody(cf)
		cfrh.SetStream(parent)
		out = append(out, writeFrame(nil, cfrh))
		ReleaseFrameHeader(cfrh)
	}

	if err := c.emit(out); err != nil {
		return promised, err
	}

	// spec.md §4.6: a push is synthesised locally as if the client had
	// sent the request itself — the host sees the same event sequence
	// (stream-start, then message-head, then an immediate tail since a
	// promised request never carries a body) it would for any other
	// stream.
	c.sink.StreamStart(promised)
	c.sink.MessageHead(promised, msg)
	c.sink.MessageTail(promised, nil)

	return promised, nil
}

// WriteReset sends RST_STREAM(code) on id and records it in the
// reset-history ring so late frames for id aren't mistaken for a
// protocol violation.
func (c *Connection) WriteReset(id uint32, code ErrorCode) error {
	if c.mode != modeH2 {
		return ErrAssertion
	}

	s := c.streams.find(id)
	wasInHeaders := s != nil && s.rState == halfHeaders
	c.resetHist.record(id, wasInHeaders)

	rf := &RstStream{code: code}
	frh := AcquireFrameHeader()
	frh.SetBody(rf)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	if s != nil {
		c.removeStream(id)
	}

	err := c.emit([][]byte{buf})
	if s != nil {
		c.sink.StreamEnd(id)
	}
	return err
}

// WritePing sends a PING with the given opaque data.
func (c *Connection) WritePing(data [8]byte) error {
	if c.mode != modeH2 {
		return ErrAssertion
	}
	pf := &Ping{data: data}
	frh := AcquireFrameHeader()
	frh.SetBody(pf)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)
	return c.emit([][]byte{buf})
}

// OpenFlow sends a WINDOW_UPDATE increasing our receive window for id (0
// for the connection-level window) by increment. Hosts with
// ManualFlowControl set call this explicitly; otherwise the engine does
// it automatically as DATA is consumed.
func (c *Connection) OpenFlow(id uint32, increment uint32) error {
	if c.mode != modeH2 {
		return ErrAssertion
	}
	if increment == 0 {
		return nil
	}

	if id != 0 {
		s := c.streams.find(id)
		if s == nil {
			return ErrInvalidStream
		}
		s.recvWindow += int64(increment)
	}
	c.connRecvWindow += int64(increment)

	wf := &WindowUpdate{}
	wf.SetIncrement(increment)
	frh := AcquireFrameHeader()
	frh.SetBody(wf)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	return c.emit([][]byte{buf})
}

// sendGoAway sends GOAWAY and marks the connection as terminating.
func (c *Connection) sendGoAway(code ErrorCode, debug []byte) error {
	gf := &GoAway{lastStreamID: c.lastStreamRemote, code: code, debug: debug}
	frh := AcquireFrameHeader()
	frh.SetBody(gf)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	c.goAwaySent = c.lastStreamRemote
	return c.emit([][]byte{buf})
}

// nextLocalStreamID allocates the next stream id this side may open:
// odd for clients, even for servers (RFC 7540 §5.1.1).
func (c *Connection) nextLocalStreamID() uint32 {
	if c.lastStreamLocal == 0 {
		if c.role == RoleClient {
			c.lastStreamLocal = 1
		} else {
			c.lastStreamLocal = 2
		}
		return c.lastStreamLocal
	}
	c.lastStreamLocal += 2
	return c.lastStreamLocal
}

// openLocalStream allocates and registers a new client-initiated request
// stream (used when WriteHead is called with id == the next id a client
// hasn't yet sent).
func (c *Connection) openLocalStream(id uint32) *Stream {
	s := newStream(id)
	c.streams.insert(s)
	c.streamCountLocal++
	if id > c.lastStreamLocal {
		c.lastStreamLocal = id
	}
	return s
}

// removeStream retires id from the stream table and, if it was a
// remote-opened stream, releases its slot against
// local.MaxConcurrentStreams so a long-lived connection's concurrent
// count reflects streams actually open rather than ever opened.
func (c *Connection) removeStream(id uint32) {
	if s := c.streams.find(id); s != nil {
		if s.isRemote {
			c.streamCountRemote--
		} else {
			c.streamCountLocal--
		}
	}
	c.streams.remove(id)
}

// discardRemaining implements spec.md §4.6's "discard-remaining": once
// the local write half has just closed, either the stream is now fully
// closed (both halves done, so it's simply removed), or the read half
// is still open and, server-side, we tell the peer we won't consume any
// more inbound data for it by resetting the stream ourselves.
func (c *Connection) discardRemaining(id uint32, s *Stream) error {
	if s.closed() {
		c.removeStream(id)
		c.sink.StreamEnd(id)
		return nil
	}
	if c.role != RoleServer {
		return nil
	}

	c.resetHist.record(id, s.rState == halfHeaders)

	rf := &RstStream{code: NoError}
	frh := AcquireFrameHeader()
	frh.SetBody(rf)
	frh.SetStream(id)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	c.removeStream(id)
	err := c.emit([][]byte{buf})
	c.sink.StreamEnd(id)
	return err
}
