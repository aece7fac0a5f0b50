package h2engine

import (
	"bytes"
	"strconv"
)

// h1chunked.go is C5's chunked-transfer sub-machine (spec.md §4.4): hex
// length line, exact-byte body, trailing CRLF, repeat until a
// zero-length chunk hands off to trailers.

func (c *Connection) stepH1Chunk() (state, error) {
	idx := bytes.Index(c.buf.Bytes(), []byte("\r\n"))
	if idx < 0 {
		if c.buf.Len() > 64 {
			return c.st, protoErr(ProtocolError, "chunk size line too long")
		}
		return c.st, nil
	}

	line := c.buf.Bytes()[:idx]
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.TrimSpace(line)

	n, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil || n < 0 {
		return c.st, protoErr(ProtocolError, "bad chunk size")
	}

	c.buf.Consume(idx + 2)
	c.h1.chunkRemaining = n

	if n == 0 {
		return stateH1Trailers, nil
	}
	return stateH1ChunkBody, nil
}

func (c *Connection) stepH1ChunkBody() (state, error) {
	avail := int64(c.buf.Len())
	if avail == 0 {
		return c.st, nil
	}

	n := avail
	if n > c.h1.chunkRemaining {
		n = c.h1.chunkRemaining
	}
	if n > 0 {
		c.sink.MessageData(1, c.buf.Bytes()[:n])
		c.buf.Consume(int(n))
		c.h1.chunkRemaining -= n
	}

	if c.h1.chunkRemaining == 0 {
		return stateH1ChunkTail, nil
	}
	return c.st, nil
}

func (c *Connection) stepH1ChunkTail() (state, error) {
	if c.buf.Len() < 2 {
		return c.st, nil
	}
	if string(c.buf.Peek(2)) != "\r\n" {
		return c.st, protoErr(ProtocolError, "missing chunk terminator")
	}
	c.buf.Consume(2)
	return stateH1Chunk, nil
}

// stepH1Trailers parses an optional trailer header block after a
// zero-length chunk, up to the terminating CRLF CRLF (or a bare CRLF
// when there are no trailers), folding the result into the MessageTail
// callback that stepH1Tail fires next.
func (c *Connection) stepH1Trailers() (state, error) {
	if c.buf.Len() >= 2 && string(c.buf.Peek(2)) == "\r\n" {
		c.buf.Consume(2)
		return stateH1Tail, nil
	}

	idx := bytes.Index(c.buf.Bytes(), []byte("\r\n\r\n"))
	if idx < 0 {
		if c.buf.Len() > maxH1HeadSize {
			return c.st, protoErr(ProtocolError, "trailers too large")
		}
		return c.st, nil
	}

	block := c.buf.Bytes()[:idx]
	c.buf.Consume(idx + 4)

	for _, line := range bytes.Split(block, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		sep := bytes.IndexByte(line, ':')
		if sep < 0 {
			return c.st, protoErr(ProtocolError, "malformed trailer line")
		}
		name, ok := validateAndLowerName(bytes.TrimSpace(line[:sep]))
		if !ok {
			return c.st, protoErr(ProtocolError, "invalid trailer name")
		}
		value := string(bytes.TrimSpace(line[sep+1:]))
		c.h1.trailerHeaders = append(c.h1.trailerHeaders, Header{Name: name, Value: value})
	}

	return stateH1Tail, nil
}
