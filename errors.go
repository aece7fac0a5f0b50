package h2engine

import "fmt"

// Kind is the error taxonomy from spec.md §7. It distinguishes caller
// misuse from peer protocol violations so a host can decide whether the
// connection is still usable.
type Kind uint8

const (
	// KindAssertion is a caller misuse, e.g. pinging an HTTP/1 connection.
	KindAssertion Kind = iota
	// KindInvalidStream is an unknown or wrong-sided stream in a local call.
	KindInvalidStream
	// KindWouldBlock means the local stream-count limit has been reached.
	KindWouldBlock
	// KindProtocol means the peer broke the protocol. In HTTP/2 mode an
	// outbound GOAWAY accompanies errors found while handling frames; a bad
	// client preface or a first frame that is not SETTINGS is returned
	// without one.
	KindProtocol
	// KindNoMemory signals a resource cap was hit (e.g. too many headers).
	KindNoMemory
	// KindNotImplemented covers padded-frame splitting, which spec.md §4.2
	// explicitly leaves unsupported.
	KindNotImplemented
	// KindDisconnect is terminal: the host must stop feeding/writing.
	KindDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindAssertion:
		return "assertion"
	case KindInvalidStream:
		return "invalid_stream"
	case KindWouldBlock:
		return "would_block"
	case KindProtocol:
		return "protocol"
	case KindNoMemory:
		return "no_memory"
	case KindNotImplemented:
		return "not_implemented"
	case KindDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Error is the engine's concrete error type. It always carries a Kind and
// optionally a wrapped cause, and is comparable with errors.Is/As.
type Error struct {
	Kind Kind
	Msg  string
	Code ErrorCode // valid when Kind == KindProtocol and the error is h2-scoped
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("h2engine: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("h2engine: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func protoErr(code ErrorCode, msg string) *Error {
	return &Error{Kind: KindProtocol, Msg: msg, Code: code}
}

// Sentinels for the common caller-facing cases (matched with errors.Is).
var (
	ErrAssertion      = newErr(KindAssertion, "invalid call for this connection's mode/state")
	ErrInvalidStream  = newErr(KindInvalidStream, "unknown or wrong-sided stream")
	ErrWouldBlock     = newErr(KindWouldBlock, "local stream limit reached")
	ErrProtocol       = newErr(KindProtocol, "peer protocol violation")
	ErrNoMemory       = newErr(KindNoMemory, "resource limit exceeded")
	ErrNotImplemented = newErr(KindNotImplemented, "not implemented")
	ErrDisconnect     = newErr(KindDisconnect, "connection is no longer usable")
)

// ErrorCode is an HTTP/2 error code (RFC 7540 §7).
type ErrorCode uint32

const (
	NoError ErrorCode = iota
	ProtocolError
	InternalError
	FlowControlError
	SettingsTimeoutError
	StreamClosedError
	FrameSizeError
	RefusedStreamError
	CancelError
	CompressionError
	ConnectError
	EnhanceYourCalm
	InadequateSecurity
	HTTP11Required
)

var errorCodeNames = [...]string{
	"NO_ERROR", "PROTOCOL_ERROR", "INTERNAL_ERROR", "FLOW_CONTROL_ERROR",
	"SETTINGS_TIMEOUT", "STREAM_CLOSED", "FRAME_SIZE_ERROR", "REFUSED_STREAM",
	"CANCEL", "COMPRESSION_ERROR", "CONNECT_ERROR", "ENHANCE_YOUR_CALM",
	"INADEQUATE_SECURITY", "HTTP_1_1_REQUIRED",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(c))
}
