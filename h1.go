package h2engine

import (
	"bytes"
	"strconv"
	"strings"
)

// h1.go is C5's H1_HEAD/H1_BODY/H1_TAIL branch: a standard HTTP/1.1
// request/response head parser plus content-length-bounded body
// delivery (spec.md §4.4). The h1 "stream" is always id 1: pipelining a
// second request before the first's tail fires is forbidden by staying
// in H1_BODY/H1_TAIL until then.

const (
	h1RemainingChunked  = -1
	h1RemainingUntilEOF = -2
)

const maxH1HeadSize = 64 << 10

type h1State struct {
	remaining           int64
	readingHeadResponse bool
	chunkRemaining      int64
	trailerHeaders      []Header
}

func (c *Connection) stepH1Head() (state, error) {
	if c.maybePriorKnowledge() {
		if err := c.beginH2(); err != nil {
			return c.st, err
		}
		return stateH2Preface, nil
	}
	if c.role == RoleServer && !c.seenH1Request && !c.cfg.DisallowH2PriorKnowledge {
		// a partial client preface: wait rather than parse it as h1.
		if avail := c.buf.Bytes(); len(avail) < len(clientPreface) && bytes.HasPrefix([]byte(clientPreface), avail) {
			return c.st, nil
		}
	}

	idx := bytes.Index(c.buf.Bytes(), []byte("\r\n\r\n"))
	if idx < 0 {
		if c.buf.Len() > maxH1HeadSize {
			return c.st, protoErr(ProtocolError, "h1 head too large")
		}
		return c.st, nil
	}

	head := c.buf.Bytes()[:idx]
	c.buf.Consume(idx + 4)

	lines := bytes.Split(head, []byte("\r\n"))
	if len(lines) == 0 {
		return c.st, protoErr(ProtocolError, "empty h1 head")
	}

	isRequest := c.role == RoleServer

	msg := &Message{ContentLength: -1}
	var method, path, proto string

	if isRequest {
		parts := bytes.SplitN(lines[0], []byte(" "), 3)
		if len(parts) != 3 {
			return c.st, protoErr(ProtocolError, "malformed request line")
		}
		method = string(parts[0])
		path = string(parts[1])
		proto = string(parts[2])
		msg.Method = method
		msg.Path = path
		msg.hasScheme = true
		msg.Scheme = "unknown"
	} else {
		parts := bytes.SplitN(lines[0], []byte(" "), 3)
		if len(parts) < 2 {
			return c.st, protoErr(ProtocolError, "malformed status line")
		}
		proto = string(parts[0])
		code, err := strconv.Atoi(string(parts[1]))
		if err != nil {
			return c.st, protoErr(ProtocolError, "malformed status code")
		}
		msg.Code = code
	}

	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return c.st, protoErr(ProtocolError, "unsupported HTTP version "+proto)
	}

	var contentLengthSeen, chunked bool
	var contentLengthVal int64
	var upgradeValue string
	var http2Settings string

	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		sep := bytes.IndexByte(line, ':')
		if sep < 0 {
			return c.st, protoErr(ProtocolError, "malformed header line")
		}
		rawName := bytes.TrimSpace(line[:sep])
		value := string(bytes.TrimSpace(line[sep+1:]))

		lname, ok := validateAndLowerName(rawName)
		if !ok {
			return c.st, protoErr(ProtocolError, "invalid h1 header name")
		}

		switch lname {
		case "host":
			msg.hasAuthority = true
			msg.Authority = value
			continue
		case "content-length":
			if contentLengthSeen {
				return c.st, protoErr(ProtocolError, "duplicate content-length")
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return c.st, protoErr(ProtocolError, "bad content-length")
			}
			contentLengthSeen = true
			contentLengthVal = n
		case "transfer-encoding":
			forwarded := stripChunkedToken(value)
			if strings.Contains(strings.ToLower(value), "chunked") {
				chunked = true
			}
			if forwarded == "" {
				continue
			}
			value = forwarded
		case "upgrade":
			upgradeValue = value
		case "http2-settings":
			http2Settings = value
		}

		msg.Headers = append(msg.Headers, Header{Name: lname, Value: value})
	}

	if contentLengthSeen && !chunked {
		msg.ContentLength = contentLengthVal
	}

	headResponse := false
	if !isRequest && c.h1.readingHeadResponse {
		headResponse = true
	}

	switch {
	case chunked:
		c.h1.remaining = h1RemainingChunked
	case !isRequest && msg.Code == 101:
		c.h1.remaining = h1RemainingUntilEOF
	case !isRequest && msg.IsInformational():
		if contentLengthSeen && contentLengthVal > 0 {
			return c.st, protoErr(ProtocolError, "1xx response with payload")
		}
		c.h1.remaining = 0
	case contentLengthSeen:
		c.h1.remaining = contentLengthVal
	default:
		c.h1.remaining = 0
	}

	if headResponse || (isRequest && method == "HEAD") {
		c.h1.remaining = 0
		c.h1.readingHeadResponse = true
	}

	if c.streams.find(1) == nil {
		c.streams.insert(newStream(1))
		c.sink.StreamStart(1)
	}
	c.streamCountRemote = 1

	c.sink.MessageHead(1, msg)
	c.seenH1Request = true

	if isRequest && !c.cfg.DisallowH2Upgrade && strings.EqualFold(upgradeValue, "h2c") {
		if err := c.upgradeToH2C(http2Settings); err != nil {
			return c.st, err
		}
		return stateH2Preface, nil
	}

	if isRequest && upgradeValue != "" {
		c.sink.Upgrade()
	}

	switch c.h1.remaining {
	case 0:
		return stateH1Tail, nil
	case h1RemainingChunked:
		return stateH1Chunk, nil
	default:
		return stateH1Body, nil
	}
}

func (c *Connection) stepH1Body() (state, error) {
	if c.h1.remaining == h1RemainingUntilEOF {
		n := c.buf.Len()
		if n == 0 {
			return c.st, nil
		}
		c.sink.MessageData(1, c.buf.Bytes())
		c.buf.Consume(n)
		return c.st, nil
	}

	avail := int64(c.buf.Len())
	if avail == 0 {
		if c.h1.remaining == 0 {
			return stateH1Tail, nil
		}
		return c.st, nil
	}

	n := avail
	if n > c.h1.remaining {
		n = c.h1.remaining
	}
	if n > 0 {
		c.sink.MessageData(1, c.buf.Bytes()[:n])
		c.buf.Consume(int(n))
		c.h1.remaining -= n
	}

	if c.h1.remaining == 0 {
		return stateH1Tail, nil
	}
	return c.st, nil
}

func (c *Connection) stepH1Tail() (state, error) {
	var trailers []Header
	if len(c.h1.trailerHeaders) > 0 {
		trailers = c.h1.trailerHeaders
	}
	c.sink.MessageTail(1, trailers)
	c.streams.remove(1)
	c.sink.StreamEnd(1)
	c.streamCountRemote = 0
	c.h1 = h1State{}
	return stateH1Head, nil
}

// stripChunkedToken removes every "chunked" token from a
// Transfer-Encoding value so the remainder (e.g. "gzip") still passes
// through as a regular header (spec.md §4.4).
func stripChunkedToken(value string) string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if strings.EqualFold(strings.TrimSpace(p), "chunked") {
			continue
		}
		out = append(out, p)
	}
	return strings.TrimSpace(strings.Join(out, ","))
}
