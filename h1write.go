package h2engine

import "strconv"

// h1write.go is C6's HTTP/1.1 branch: builds a request or status line
// plus headers, and frames the body as either a fixed content-length or
// chunked transfer-encoding (spec.md §4.4, mirrored for the write side).

func (c *Connection) writeHeadH1(msg *Message, endStream bool) error {
	var b []byte

	if c.role == RoleServer {
		b = append(b, "HTTP/1.1 "...)
		b = append(b, strconv.Itoa(msg.Code)...)
		b = append(b, ' ')
		b = append(b, statusText(msg.Code)...)
		b = append(b, "\r\n"...)
	} else {
		b = append(b, msg.Method...)
		b = append(b, ' ')
		b = append(b, msg.Path...)
		b = append(b, " HTTP/1.1\r\n"...)
		if msg.Authority != "" {
			b = append(b, "host: "...)
			b = append(b, msg.Authority...)
			b = append(b, "\r\n"...)
		}
	}

	c.h1WriteChunked = false
	switch {
	case endStream:
		b = append(b, "content-length: 0\r\n"...)
	case msg.ContentLength >= 0:
		b = append(b, "content-length: "...)
		b = append(b, strconv.FormatInt(msg.ContentLength, 10)...)
		b = append(b, "\r\n"...)
	default:
		b = append(b, "transfer-encoding: chunked\r\n"...)
		c.h1WriteChunked = true
	}

	for _, h := range msg.Headers {
		b = append(b, h.Name...)
		b = append(b, ": "...)
		b = append(b, h.Value...)
		b = append(b, "\r\n"...)
	}
	b = append(b, "\r\n"...)

	return c.emit([][]byte{b})
}

func (c *Connection) writeDataH1(p []byte, endStream bool) (int, error) {
	if !c.h1WriteChunked {
		if len(p) == 0 {
			return 0, nil
		}
		return len(p), c.emit([][]byte{p})
	}

	var out [][]byte
	if len(p) > 0 {
		hdr := []byte(strconv.FormatInt(int64(len(p)), 16) + "\r\n")
		out = append(out, hdr, p, []byte("\r\n"))
	}
	if endStream {
		out = append(out, []byte("0\r\n\r\n"))
	}

	return len(p), c.emit(out)
}

func (c *Connection) writeTrailersH1(trailers []Header) error {
	if !c.h1WriteChunked {
		return c.emit([][]byte{[]byte("0\r\n\r\n")})
	}

	b := []byte("0\r\n")
	for _, h := range trailers {
		b = append(b, h.Name...)
		b = append(b, ": "...)
		b = append(b, h.Value...)
		b = append(b, "\r\n"...)
	}
	b = append(b, "\r\n"...)

	return c.emit([][]byte{b})
}

// statusText returns the standard reason phrase for code, or a generic
// placeholder for codes the table doesn't know about.
func statusText(code int) string {
	if t, ok := statusTexts[code]; ok {
		return t
	}
	return "Status"
}

var statusTexts = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	426: "Upgrade Required",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}
