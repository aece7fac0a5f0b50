package h2engine

// Sink is the capability set a host must implement to drive a Connection.
// It is the single collaborator boundary spec.md §9 describes: the engine
// touches no socket, timer, or file itself, and instead reports every
// side effect — outbound bytes and inbound events — through these
// methods, synchronously, on the goroutine that called Feed or a Write*
// method. A non-nil return from any method unwinds the current step with
// that error, and the connection is assumed unusable afterward (spec.md §5).
//
// Callbacks must not call back into the Connection (feed, write, etc.);
// doing so is not reentrancy-safe (spec.md §4.5 "Tri-state return").
type Sink interface {
	// Writev emits bytes to the peer, in order. The engine may call this
	// several times during one Feed or Write* call; buffers must be
	// consumed (or copied) before returning.
	Writev(bufs [][]byte) error

	// StreamStart fires exactly once per stream id, before any other
	// event for that id.
	StreamStart(id uint32)
	// StreamEnd fires exactly once per stream id that has seen
	// StreamStart, after which no further events for that id occur.
	StreamEnd(id uint32)

	// MessageHead fires once a HEADERS block (request or response) has
	// been fully decoded and validated.
	MessageHead(id uint32, msg *Message)
	// MessageData fires for each chunk of body payload, in order.
	MessageData(id uint32, p []byte)
	// MessageTail fires at most once, strictly after MessageHead and any
	// MessageData, carrying trailers (nil if none were sent).
	MessageTail(id uint32, trailers []Header)
	// MessagePush fires instead of MessageHead for a PUSH_PROMISE; id is
	// the newly allocated (server-initiated) child stream, parent is the
	// stream the push was associated with.
	MessagePush(id uint32, msg *Message, parent uint32)

	// Frame is a raw observation hook called for every HTTP/2 frame
	// successfully parsed, before type-specific handling.
	Frame(fr *FrameHeader)
	// Settings fires after a peer SETTINGS frame (non-ACK) has been
	// applied.
	Settings()
	// FlowIncrease fires when a WINDOW_UPDATE enlarges a send window;
	// id == 0 denotes the connection-level window.
	FlowIncrease(id uint32)
	// Pong fires when a PING ACK is received.
	Pong(data [8]byte)
	// Upgrade fires, server-side, after MessageHead for a request that
	// carried a non-h2c Upgrade header. The host is expected to decide
	// whether to respond with 101 out of band.
	Upgrade()
}

// BaseSink implements Sink with no-ops for every method. Embed it to
// implement only the callbacks a host cares about.
type BaseSink struct{}

func (BaseSink) Writev(bufs [][]byte) error                 { return nil }
func (BaseSink) StreamStart(id uint32)                      {}
func (BaseSink) StreamEnd(id uint32)                        {}
func (BaseSink) MessageHead(id uint32, msg *Message)         {}
func (BaseSink) MessageData(id uint32, p []byte)             {}
func (BaseSink) MessageTail(id uint32, trailers []Header)    {}
func (BaseSink) MessagePush(id uint32, msg *Message, parent uint32) {}
func (BaseSink) Frame(fr *FrameHeader)                       {}
func (BaseSink) Settings()                                   {}
func (BaseSink) FlowIncrease(id uint32)                      {}
func (BaseSink) Pong(data [8]byte)                           {}
func (BaseSink) Upgrade()                                    {}

var _ Sink = BaseSink{}
