package h2engine

// halfState is one direction (read or write) of a stream's independent
// half-state machine (spec.md §3 Stream: "independent r_state and
// w_state over {HEADERS, DATA, CLOSED}").
type halfState uint8

const (
	halfHeaders halfState = iota
	halfData
	halfClosed
)

// Stream is spec.md §3's per-stream record. Flow-window deltas are
// relative to the peer's (for send) or our own (for recv)
// InitialWindowSize, matching "effective send window = window_send +
// remote.initial_window_size".
type Stream struct {
	id uint32

	rState, wState halfState

	sendWindow int64 // delta, relative to remote.InitialWindowSize
	recvWindow int64 // delta, relative to local.InitialWindowSize

	// remainingPayload tracks declared Content-Length as it is consumed.
	// -1 = unknown/unbounded (chunked or no declared length).
	remainingPayload int64

	writingChunked      bool
	readingHeadResponse bool

	// informational marks a stream that received a 1xx response: its
	// r_state stays at HEADERS so a later real response can land on the
	// same stream (spec.md §4.3).
	informational bool

	// isRemote marks a stream the peer opened (HEADERS from a client, or a
	// PUSH_PROMISE received as a client), as opposed to one this side
	// opened itself (WriteHead, WritePush). Only remote-opened streams
	// count against local.MaxConcurrentStreams.
	isRemote bool
}

func newStream(id uint32) *Stream {
	return &Stream{
		id:               id,
		remainingPayload: -1,
	}
}

// sendEffectiveWindow is "stream.window_send + remote.initial_window_size".
func (s *Stream) sendEffectiveWindow(remoteInitWin uint32) int64 {
	return s.sendWindow + int64(remoteInitWin)
}

func (s *Stream) closed() bool {
	return s.rState == halfClosed && s.wState == halfClosed
}

// streamTable is C3: a map keyed by 31-bit stream id. Per DESIGN.md /
// spec.md §9 DESIGN NOTES, this replaces the teacher's intrusive
// hash-chained bucket array with a plain Go map — cache locality of
// adjacent streams bought nothing once memory safety is the goal.
type streamTable struct {
	m map[uint32]*Stream
}

func newStreamTable() *streamTable {
	return &streamTable{m: make(map[uint32]*Stream)}
}

func (t *streamTable) find(id uint32) *Stream {
	return t.m[id]
}

func (t *streamTable) insert(s *Stream) {
	t.m[s.id] = s
}

func (t *streamTable) remove(id uint32) {
	delete(t.m, id)
}

func (t *streamTable) len() int {
	return len(t.m)
}
