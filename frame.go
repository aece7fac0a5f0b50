package h2engine

import (
	"sync"

	"github.com/dgrr/h2engine/h2utils"
)

// FrameType identifies one of the ten HTTP/2 frame types the engine
// understands. Anything else MUST be ignored (spec.md §4.2).
type FrameType uint8

const (
	FrameData FrameType = iota
	FrameHeaders
	FramePriority
	FrameRstStream
	FrameSettings
	FramePushPromise
	FramePing
	FrameGoAway
	FrameWindowUpdate
	FrameContinuation
	frameTypeCount
)

func (t FrameType) String() string {
	names := [...]string{
		"DATA", "HEADERS", "PRIORITY", "RST_STREAM", "SETTINGS",
		"PUSH_PROMISE", "PING", "GOAWAY", "WINDOW_UPDATE", "CONTINUATION",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// FrameFlags is the 8-bit flags field shared by every frame type.
type FrameFlags uint8

const (
	FlagAck        FrameFlags = 0x1
	FlagEndStream  FrameFlags = 0x1
	FlagEndHeaders FrameFlags = 0x4
	FlagPadded     FrameFlags = 0x8
	FlagPriority   FrameFlags = 0x20
)

func (f FrameFlags) Has(x FrameFlags) bool    { return f&x == x }
func (f FrameFlags) Add(x FrameFlags) FrameFlags { return f | x }

// Frame is the per-type body of a frame: it knows how to read itself out
// of a FrameHeader's payload and how to write itself back into one.
type Frame interface {
	Type() FrameType
	Reset()
	Deserialize(frh *FrameHeader) error
	Serialize(frh *FrameHeader)
}

const frameHeaderLen = 9
const defaultMaxFrameSize = 1 << 14

var framePools [frameTypeCount]*sync.Pool

func registerFramePool(t FrameType, newFn func() Frame) {
	framePools[t] = &sync.Pool{New: func() interface{} { return newFn() }}
}

// AcquireFrame returns a pooled Frame body for t. It panics for unknown
// types; callers (readFrame) must only call it for types 0..9, the
// ones the wire format demands the engine recognize.
func AcquireFrame(t FrameType) Frame {
	return framePools[t].Get().(Frame)
}

// ReleaseFrame resets and returns fr to its pool.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}
	fr.Reset()
	framePools[fr.Type()].Put(fr)
}

var frameHeaderPool = sync.Pool{New: func() interface{} { return &FrameHeader{} }}

// FrameHeader is one decoded HTTP/2 frame: the 9-byte envelope plus its
// parsed body (spec.md §4.2 "Frame record").
type FrameHeader struct {
	length int
	kind   FrameType
	flags  FrameFlags
	stream uint32

	payload []byte
	fr      Frame
}

func AcquireFrameHeader() *FrameHeader {
	fr := frameHeaderPool.Get().(*FrameHeader)
	fr.Reset()
	return fr
}

func ReleaseFrameHeader(frh *FrameHeader) {
	ReleaseFrame(frh.fr)
	frh.fr = nil
	frameHeaderPool.Put(frh)
}

func (frh *FrameHeader) Reset() {
	frh.length = 0
	frh.kind = 0
	frh.flags = 0
	frh.stream = 0
	frh.payload = frh.payload[:0]
	frh.fr = nil
}

func (frh *FrameHeader) Type() FrameType  { return frh.kind }
func (frh *FrameHeader) Flags() FrameFlags { return frh.flags }
func (frh *FrameHeader) SetFlags(f FrameFlags) { frh.flags = f }
func (frh *FrameHeader) Stream() uint32 { return frh.stream }
func (frh *FrameHeader) SetStream(id uint32) { frh.stream = id & (1<<31 - 1) }
func (frh *FrameHeader) Len() int { return frh.length }
func (frh *FrameHeader) Body() Frame { return frh.fr }
func (frh *FrameHeader) Payload() []byte { return frh.payload }

func (frh *FrameHeader) SetBody(fr Frame) {
	frh.kind = fr.Type()
	frh.fr = fr
}

func (frh *FrameHeader) setPayload(p []byte) {
	frh.payload = append(frh.payload[:0], p...)
}

// peekFrameHeader decodes the 9-byte frame envelope without consuming it.
func peekFrameHeader(raw []byte) (kind FrameType, flags FrameFlags, stream uint32, length int) {
	_ = raw[8]
	length = int(h2utils.BytesToUint24(raw[:3]))
	kind = FrameType(raw[3])
	flags = FrameFlags(raw[4])
	stream = h2utils.BytesToUint32(raw[5:9]) & (1<<31 - 1)
	return
}

func writeFrameHeaderBytes(dst []byte, kind FrameType, flags FrameFlags, stream uint32, length int) {
	_ = dst[8]
	h2utils.Uint24ToBytes(dst[:3], uint32(length))
	dst[3] = byte(kind)
	dst[4] = byte(flags)
	h2utils.Uint32ToBytes(dst[5:9], stream)
}

// readFrame tries to parse one full frame out of buf. It returns
// (nil, nil) if fewer than a full frame's worth of bytes are buffered
// (C5's "Pending" tri-state). maxLocalFrameSize enforces
// local.max_frame_size (spec.md §4.2 "Size handling").
func readFrame(buf *recvBuffer, maxLocalFrameSize uint32) (*FrameHeader, error) {
	header := buf.Peek(frameHeaderLen)
	if header == nil {
		return nil, nil
	}

	kind, flags, stream, length := peekFrameHeader(header)

	if uint32(length) > maxLocalFrameSize {
		return nil, protoErr(FrameSizeError, "frame exceeds local.max_frame_size")
	}

	total := frameHeaderLen + length
	if buf.Len() < total {
		return nil, nil
	}

	frh := AcquireFrameHeader()
	frh.length = length
	frh.kind = kind
	frh.flags = flags
	frh.stream = stream

	if kind >= frameTypeCount {
		// Unknown frame type: ignored per spec.md §4.2.
		buf.Consume(total)
		frh.fr = nil
		return frh, errUnknownFrameType
	}

	frh.setPayload(buf.Bytes()[frameHeaderLen:total])
	buf.Consume(total)

	frh.fr = AcquireFrame(kind)
	if err := frh.fr.Deserialize(frh); err != nil {
		return frh, err
	}

	return frh, nil
}

// errUnknownFrameType is a sentinel, not a protocol error: readFrame
// returns it after consuming the bytes, and nextKnownFrame (h2frame.go)
// swallows it.
var errUnknownFrameType = newErr(KindNotImplemented, "unknown frame type, ignored")

// paddingError maps h2utils.CutPadding's failure modes onto the distinct
// error codes spec.md §4.2 names: a zero-length payload with the PADDED
// flag set is FRAME_SIZE_ERROR, a pad length exceeding the frame is
// PROTOCOL_ERROR.
func paddingError(prefix string, err error) *Error {
	if err == h2utils.ErrZeroPayload {
		return protoErr(FrameSizeError, prefix+": "+err.Error())
	}
	return protoErr(ProtocolError, prefix+": "+err.Error())
}

// writeFrame serializes fr's body into a complete wire frame (header +
// payload) appended to dst.
func writeFrame(dst []byte, frh *FrameHeader) []byte {
	frh.fr.Serialize(frh)
	frh.length = len(frh.payload)

	start := len(dst)
	dst = append(dst, make([]byte, frameHeaderLen)...)
	writeFrameHeaderBytes(dst[start:start+frameHeaderLen], frh.kind, frh.flags, frh.stream, frh.length)
	dst = append(dst, frh.payload...)

	return dst
}
