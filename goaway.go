package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FrameGoAway, func() Frame { return &GoAway{} })
}

// GoAway is a GOAWAY frame (RFC 7540 §6.8).
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	debug        []byte
}

func (g *GoAway) Type() FrameType { return FrameGoAway }

func (g *GoAway) Reset() {
	g.lastStreamID = 0
	g.code = 0
	g.debug = g.debug[:0]
}

func (g *GoAway) LastStreamID() uint32 { return g.lastStreamID }
func (g *GoAway) SetLastStreamID(id uint32) { g.lastStreamID = id & (1<<31 - 1) }
func (g *GoAway) Code() ErrorCode          { return g.code }
func (g *GoAway) SetCode(c ErrorCode)      { g.code = c }
func (g *GoAway) Debug() []byte            { return g.debug }
func (g *GoAway) SetDebug(b []byte)        { g.debug = append(g.debug[:0], b...) }

func (g *GoAway) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 8 {
		return protoErr(FrameSizeError, "GOAWAY: payload must be >= 8 bytes")
	}
	g.lastStreamID = h2utils.BytesToUint32(frh.payload) & (1<<31 - 1)
	g.code = ErrorCode(h2utils.BytesToUint32(frh.payload[4:8]))
	g.debug = append(g.debug[:0], frh.payload[8:]...)
	return nil
}

func (g *GoAway) Serialize(frh *FrameHeader) {
	frh.payload = h2utils.AppendUint32Bytes(frh.payload[:0], g.lastStreamID)
	frh.payload = h2utils.AppendUint32Bytes(frh.payload, uint32(g.code))
	frh.payload = append(frh.payload, g.debug...)
}
