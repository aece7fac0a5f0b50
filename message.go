package h2engine

import (
	"strconv"

	"github.com/dgrr/h2engine/h2utils"
	"github.com/dgrr/h2engine/hpackutil"
)

// MaxHeaders bounds the number of regular headers kept per message
// (spec.md §6 "Caps: MAX_HEADERS (recommended 128) plus pseudo slots").
const MaxHeaders = 128

// Header is a single name/value pair, already validated and
// case/order-normalized.
type Header struct {
	Name  string
	Value string
}

// Message is the projection of an HTTP message head: pseudo-headers land
// in the dedicated fields, everything else in Headers.
type Message struct {
	// Code is the HTTP status for a response, 0 for a request.
	Code int
	// Method and Path are set for a request.
	Method string
	Path   string

	hasScheme    bool
	hasAuthority bool
	Authority    string
	Scheme       string

	Headers []Header

	// ContentLength is -1 if absent.
	ContentLength int64
}

// HasScheme/HasAuthority report whether the corresponding pseudo-header
// was present, independent of whether its value is exported elsewhere.
func (m *Message) HasScheme() bool    { return m.hasScheme }
func (m *Message) HasAuthority() bool { return m.hasAuthority }

// transformTable is the 256-entry HTTP/2 header-name transform: uppercase
// ASCII maps to lowercase, disallowed bytes (including ':') map to 0 so a
// single table lookup both validates and normalizes (spec.md §4.3).
var transformTable = buildTransformTable()

func buildTransformTable() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		switch {
		case i >= 'A' && i <= 'Z':
			t[i] = byte(i + 32)
		case i >= 'a' && i <= 'z', i >= '0' && i <= '9':
			t[i] = byte(i)
		case i == '!' || i == '#' || i == '$' || i == '%' || i == '&' ||
			i == '\'' || i == '*' || i == '+' || i == '-' || i == '.' ||
			i == '^' || i == '_' || i == '`' || i == '|' || i == '~':
			t[i] = byte(i)
		default:
			t[i] = 0 // includes ':' and controls: rejected outside position 0
		}
	}
	return t
}

// validateAndLowerName checks name against the HTTP/2 token charset and
// returns the lowercased form. ok is false if any byte is outside that
// charset.
func validateAndLowerName(name []byte) (string, bool) {
	out := make([]byte, len(name))
	for i, b := range name {
		v := transformTable[b]
		if v == 0 {
			return "", false
		}
		out[i] = v
	}
	return string(out), true
}

// pseudoKind identifies a recognized pseudo-header.
type pseudoKind int

const (
	pseudoNone pseudoKind = iota
	pseudoMethod
	pseudoScheme
	pseudoPath
	pseudoAuthority
	pseudoStatus
)

func classifyPseudo(name string) pseudoKind {
	switch name {
	case ":method":
		return pseudoMethod
	case ":scheme":
		return pseudoScheme
	case ":path":
		return pseudoPath
	case ":authority":
		return pseudoAuthority
	case ":status":
		return pseudoStatus
	}
	return pseudoNone
}

// normalizeFields implements spec.md §4.3 end to end: it partitions the
// decoded HPACK field list into pseudo-headers (only allowed as a prefix)
// and regular headers, validates every rule, and produces a Message.
// isTrailers disables pseudo-headers entirely. isRequest selects which
// required-field set applies.
func normalizeFields(fields []hpackutil.HeaderField, isTrailers, isRequest bool) (*Message, []Header, *Error) {
	m := &Message{ContentLength: -1}
	var trailers []Header

	seenRegular := false
	seen := map[pseudoKind]bool{}
	var contentLengthSeen bool
	var contentLengthVal int64

	for _, f := range fields {
		name := f.Name // x/net hpack already lowercases via HuffmanDecode path for literal names it controls, but we re-validate regardless
		isPseudo := len(name) > 0 && name[0] == ':'

		if isPseudo {
			if isTrailers {
				return nil, nil, protoErr(ProtocolError, "pseudo-header in trailers")
			}
			if seenRegular {
				return nil, nil, protoErr(ProtocolError, "pseudo-header after regular header")
			}

			kind := classifyPseudo(name)
			if kind == pseudoNone {
				return nil, nil, protoErr(ProtocolError, "unknown pseudo-header "+name)
			}
			if seen[kind] {
				return nil, nil, protoErr(ProtocolError, "duplicate pseudo-header "+name)
			}
			seen[kind] = true

			switch kind {
			case pseudoMethod:
				m.Method = f.Value
			case pseudoScheme:
				m.hasScheme = true
				m.Scheme = f.Value
			case pseudoPath:
				m.Path = f.Value
			case pseudoAuthority:
				m.hasAuthority = true
				m.Authority = f.Value
			case pseudoStatus:
				n, err := strconv.ParseUint(f.Value, 10, 16)
				if err != nil || n > 65535 {
					return nil, nil, protoErr(ProtocolError, "bad :status")
				}
				m.Code = int(n)
			}
			continue
		}

		seenRegular = true

		lname, ok := validateAndLowerName(h2utils.S2B(name))
		if !ok {
			return nil, nil, protoErr(ProtocolError, "invalid header name "+name)
		}

		if lname == "connection" {
			return nil, nil, protoErr(ProtocolError, "connection header forbidden in h2")
		}
		if lname == "te" && f.Value != "trailers" {
			return nil, nil, protoErr(ProtocolError, "te must equal trailers")
		}

		if lname == "content-length" {
			n, err := strconv.ParseInt(f.Value, 10, 64)
			if err != nil || n < 0 {
				return nil, nil, protoErr(ProtocolError, "bad content-length")
			}
			if contentLengthSeen && n != contentLengthVal {
				return nil, nil, protoErr(ProtocolError, "conflicting content-length")
			}
			contentLengthSeen = true
			contentLengthVal = n
		}

		h := Header{Name: lname, Value: f.Value}
		if isTrailers {
			trailers = append(trailers, h)
		} else {
			if len(m.Headers) >= MaxHeaders {
				return nil, nil, newErr(KindNoMemory, "too many headers")
			}
			m.Headers = append(m.Headers, h)
		}
	}

	if contentLengthSeen {
		m.ContentLength = contentLengthVal
	}

	if isTrailers {
		return m, trailers, nil
	}

	if isRequest {
		isConnect := m.Method == "CONNECT"
		if m.Method == "" || (!isConnect && (m.Path == "" || !m.hasScheme)) {
			return nil, nil, protoErr(ProtocolError, "missing required pseudo-headers")
		}
	} else {
		if !seen[pseudoStatus] {
			return nil, nil, protoErr(ProtocolError, "missing :status")
		}
	}

	return m, nil, nil
}

// IsInformational reports whether m is a 1xx response.
func (m *Message) IsInformational() bool {
	return m.Code >= 100 && m.Code < 200
}
