package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FrameRstStream, func() Frame { return &RstStream{} })
}

// RstStream is an RST_STREAM frame (RFC 7540 §6.4).
type RstStream struct {
	code ErrorCode
}

func (r *RstStream) Type() FrameType { return FrameRstStream }
func (r *RstStream) Reset()          { r.code = 0 }
func (r *RstStream) Code() ErrorCode { return r.code }
func (r *RstStream) SetCode(c ErrorCode) { r.code = c }

func (r *RstStream) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) != 4 {
		return protoErr(FrameSizeError, "RST_STREAM: payload must be 4 bytes")
	}
	r.code = ErrorCode(h2utils.BytesToUint32(frh.payload))
	return nil
}

func (r *RstStream) Serialize(frh *FrameHeader) {
	frh.payload = h2utils.AppendUint32Bytes(frh.payload[:0], uint32(r.code))
}
