// Package h2engine is a socketless HTTP/1.1 and HTTP/2 protocol engine: a
// transport-agnostic core that turns inbound bytes into message/data/tail
// callbacks and turns outbound Write* calls into framed bytes, without
// ever touching a socket, a file, or a timer (spec.md §1/§5). The host
// supplies a Sink and feeds bytes with Feed; everything else — HTTP/2
// framing, multiplexing, flow control, HPACK-driven header compression,
// and HTTP/1.1 parsing with chunked transfer-encoding and h2c upgrade —
// happens synchronously inside that call.
package h2engine

import (
	"github.com/dgrr/h2engine/hpackutil"
)

// Role is which side of the connection this engine instance plays.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

// Version selects the protocol a freshly Begin'd connection speaks.
type Version uint8

const (
	VersionHTTP1 Version = iota
	VersionHTTP2
)

type mode uint8

const (
	modeUninitialized mode = iota
	modeH1
	modeH2
)

// state is C5's top-level automaton (spec.md §4.5).
type state uint8

const (
	stateClosed state = iota
	stateH2Preface
	stateH2Settings
	stateH2Frame
	stateH1Head
	stateH1Body
	stateH1Tail
	stateH1Chunk
	stateH1ChunkBody
	stateH1ChunkTail
	stateH1Trailers
)

// clientPreface is the fixed 24-byte HTTP/2 connection preface.
const clientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Config are the per-connection flags from spec.md §3.
type Config struct {
	Settings                 Settings
	DisallowH2Upgrade        bool
	DisallowH2PriorKnowledge bool
	ManualFlowControl        bool
}

// DefaultConfig returns a Config with spec.md §6 default SETTINGS.
func DefaultConfig() Config {
	return Config{Settings: DefaultSettings()}
}

// Connection is the engine's top-level object: one per transport
// connection, single-threaded and cooperative (spec.md §5).
type Connection struct {
	role Role
	mode mode
	st   state

	cfg Config

	local  Settings
	remote Settings

	connSendWindow int64
	connRecvWindow int64

	hpack *hpackutil.Codec

	buf     recvBuffer
	streams *streamTable

	lastStreamLocal   uint32
	lastStreamRemote  uint32
	streamCountLocal  int
	streamCountRemote int

	goAwaySent uint32 // last remote stream id covered, 0 = not sent
	closed     bool

	resetHist resetHistory

	sink Sink

	// CONTINUATION reassembly (spec.md §4.2).
	cont continuationState

	// HTTP/1 parsing state (spec.md §4.4).
	h1 h1State

	// h1WriteChunked tracks whether the in-flight h1 response/request body
	// being written is using chunked transfer-encoding.
	h1WriteChunked bool

	// seenH1Request gates h2c prior-knowledge upgrade-in-place: once a
	// full h1 request has been processed, prior knowledge is too late.
	seenH1Request bool

	// scratch buffer for building outbound frames before handing them
	// to the Sink in one Writev call.
	outbuf []byte
}

type continuationState struct {
	active     bool
	streamID   uint32
	isPush     bool
	promisedID uint32
	endStream  bool
	refused    bool
	block      []byte
	count      int
}

// NewConnection creates an idle Connection. Call Begin to select a
// protocol version.
func NewConnection(role Role, cfg Config, sink Sink) *Connection {
	if cfg.Settings == (Settings{}) {
		cfg.Settings = DefaultSettings()
	}
	return &Connection{
		role:    role,
		st:      stateClosed,
		cfg:     cfg,
		local:   cfg.Settings,
		remote:  DefaultSettings(),
		streams: newStreamTable(),
		sink:    sink,
	}
}

// Begin transitions the connection out of CLOSED into either h2 or h1
// mode (spec.md §4.5 "Start").
func (c *Connection) Begin(v Version) error {
	if c.st != stateClosed {
		return ErrAssertion
	}

	switch v {
	case VersionHTTP2:
		return c.beginH2()
	case VersionHTTP1:
		c.mode = modeH1
		c.st = stateH1Head
		return nil
	}
	return ErrAssertion
}

func (c *Connection) beginH2() error {
	c.mode = modeH2
	c.connSendWindow = defaultConnWindowSize
	c.connRecvWindow = defaultConnWindowSize
	c.hpack = hpackutil.NewCodec(c.local.HeaderTableSize)

	var out [][]byte
	if c.role == RoleClient {
		out = append(out, []byte(clientPreface))
	}

	sf := buildInitialSettingsFrame(c.local)
	frh := AcquireFrameHeader()
	frh.SetBody(sf)
	c.outbuf = writeFrame(c.outbuf[:0], frh)
	out = append(out, append([]byte(nil), c.outbuf...))
	ReleaseFrameHeader(frh)

	c.st = stateH2Preface
	if c.role == RoleClient {
		c.st = stateH2Settings
	}

	return c.emit(out)
}

func (c *Connection) emit(bufs [][]byte) error {
	if len(bufs) == 0 {
		return nil
	}
	if err := c.sink.Writev(bufs); err != nil {
		return wrapErr(KindDisconnect, "sink write failed", err)
	}
	return nil
}

// Feed advances the state machine as far as p allows, driving C4/h1
// parsing and firing Sink callbacks along the way. Property 1 from
// spec.md §8: the result is identical regardless of how p is chunked
// across successive Feed calls.
func (c *Connection) Feed(p []byte) error {
	c.buf.Append(p)

	for {
		before := c.buf.Len()
		next, err := c.step()
		if err != nil {
			return err
		}
		if next == stateClosed && c.st == stateClosed {
			return nil
		}
		if next == c.st && next != stateClosed && c.buf.Len() == before {
			// zero progress this round: handler asked for more data.
			return nil
		}
		c.st = next
	}
}

// step runs exactly one state handler and returns the next state. A
// handler that returns c.st without consuming any buffered bytes is
// pending (need more data); one that returns c.st after consuming bytes
// made progress and stays in the same state. An error unwinds the step.
func (c *Connection) step() (state, error) {
	switch c.st {
	case stateClosed:
		return stateClosed, nil
	case stateH2Preface:
		return c.stepH2Preface()
	case stateH2Settings:
		return c.stepH2Settings()
	case stateH2Frame:
		return c.stepH2Frame()
	case stateH1Head:
		return c.stepH1Head()
	case stateH1Body:
		return c.stepH1Body()
	case stateH1Tail:
		return c.stepH1Tail()
	case stateH1Chunk:
		return c.stepH1Chunk()
	case stateH1ChunkBody:
		return c.stepH1ChunkBody()
	case stateH1ChunkTail:
		return c.stepH1ChunkTail()
	case stateH1Trailers:
		return c.stepH1Trailers()
	}
	return c.st, nil
}

func (c *Connection) stepH2Preface() (state, error) {
	if c.role == RoleServer && !c.seenH1Request && !c.cfg.DisallowH2PriorKnowledge {
		// upgrade-in-place: nothing to do here, prior-knowledge detection
		// happens before h1 parsing starts (see h1.go).
	}

	if c.buf.Len() < len(clientPreface) {
		return c.st, nil
	}

	got := c.buf.Peek(len(clientPreface))
	if string(got) != clientPreface {
		return c.st, protoErr(ProtocolError, "bad HTTP/2 client preface")
	}
	c.buf.Consume(len(clientPreface))

	return stateH2Settings, nil
}

func (c *Connection) stepH2Settings() (state, error) {
	header := c.buf.Peek(frameHeaderLen)
	if header == nil {
		return c.st, nil
	}

	kind, flags, stream, length := peekFrameHeader(header)
	if kind != FrameSettings || flags != 0 || stream != 0 {
		return c.st, protoErr(ProtocolError, "expected initial SETTINGS frame")
	}
	if uint32(length) > c.local.MaxFrameSize {
		return c.st, protoErr(FrameSizeError, "initial SETTINGS too large")
	}

	return stateH2Frame, nil
}

// Shutdown sends a GOAWAY(NO_ERROR) (spec.md §4.5 "Termination").
func (c *Connection) Shutdown() error {
	if c.mode != modeH2 {
		return ErrAssertion
	}
	return c.sendGoAway(NoError, nil)
}

// EOF signals the transport closed. In h2 mode every stream is closed;
// in h1 mode it is an error if the currently-reading stream still
// expects data.
func (c *Connection) EOF() error {
	if c.mode == modeH1 {
		if c.h1.remaining > 0 || c.h1.remaining == h1RemainingChunked {
			return protoErr(ProtocolError, "EOF mid-body")
		}
		return nil
	}

	for id, s := range c.streams.m {
		_ = s
		c.sink.StreamEnd(id)
	}
	c.streams.m = make(map[uint32]*Stream)
	c.closed = true
	c.st = stateClosed

	return nil
}
