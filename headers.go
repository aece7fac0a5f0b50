package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FrameHeaders, func() Frame { return &Headers{} })
}

// Headers is a HEADERS frame (RFC 7540 §6.2). Its header block fragment
// is opaque bytes until the connection state machine hands it, combined
// with any CONTINUATIONs, to the HPACK codec.
type Headers struct {
	padded     bool
	hasPri     bool
	priStream  uint32
	weight     byte
	endStream  bool
	endHeaders bool
	block      []byte
}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.padded = false
	h.hasPri = false
	h.priStream = 0
	h.weight = 0
	h.endStream = false
	h.endHeaders = false
	h.block = h.block[:0]
}

func (h *Headers) EndStream() bool     { return h.endStream }
func (h *Headers) SetEndStream(v bool) { h.endStream = v }
func (h *Headers) EndHeaders() bool     { return h.endHeaders }
func (h *Headers) SetEndHeaders(v bool) { h.endHeaders = v }
func (h *Headers) Block() []byte        { return h.block }
func (h *Headers) SetBlock(b []byte)    { h.block = append(h.block[:0], b...) }
func (h *Headers) AppendBlock(b []byte) { h.block = append(h.block, b...) }

func (h *Headers) Deserialize(frh *FrameHeader) error {
	payload := frh.payload

	if frh.flags.Has(FlagPadded) {
		p, err := h2utils.CutPadding(payload, frh.length)
		if err != nil {
			return paddingError("HEADERS", err)
		}
		payload = p
		h.padded = true
	}

	if frh.flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return protoErr(FrameSizeError, "HEADERS: truncated priority")
		}
		dep := h2utils.BytesToUint32(payload) & (1<<31 - 1)
		if dep == frh.stream {
			return protoErr(ProtocolError, "HEADERS: self-dependency")
		}
		h.hasPri = true
		h.priStream = dep
		h.weight = payload[4]
		payload = payload[5:]
	}

	h.endStream = frh.flags.Has(FlagEndStream)
	h.endHeaders = frh.flags.Has(FlagEndHeaders)
	h.block = append(h.block[:0], payload...)

	return nil
}

func (h *Headers) Serialize(frh *FrameHeader) {
	if h.endStream {
		frh.flags = frh.flags.Add(FlagEndStream)
	}
	if h.endHeaders {
		frh.flags = frh.flags.Add(FlagEndHeaders)
	}
	frh.setPayload(h.block)
}
