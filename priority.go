package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FramePriority, func() Frame { return &Priority{} })
}

// Priority is a standalone PRIORITY frame (RFC 7540 §6.3). Per spec.md
// Non-goals, prioritization has no behavioral effect: the frame is
// parsed only far enough to validate framing and self-dependency.
type Priority struct {
	dependsOn uint32
	weight    byte
}

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Reset() {
	p.dependsOn = 0
	p.weight = 0
}

func (p *Priority) DependsOn() uint32 { return p.dependsOn }
func (p *Priority) Weight() byte      { return p.weight }

func (p *Priority) Deserialize(frh *FrameHeader) error {
	if frh.stream == 0 {
		return protoErr(ProtocolError, "PRIORITY on stream 0")
	}
	if len(frh.payload) != 5 {
		return protoErr(FrameSizeError, "PRIORITY: payload must be 5 bytes")
	}

	p.dependsOn = h2utils.BytesToUint32(frh.payload) & (1<<31 - 1)
	p.weight = frh.payload[4]

	if p.dependsOn == frh.stream {
		return protoErr(ProtocolError, "PRIORITY: self-dependency")
	}

	return nil
}

func (p *Priority) Serialize(frh *FrameHeader) {
	frh.payload = h2utils.AppendUint32Bytes(frh.payload[:0], p.dependsOn)
	frh.payload = append(frh.payload, p.weight)
}
