package h2engine

func init() {
	registerFramePool(FramePing, func() Frame { return &Ping{} })
}

// Ping is a PING frame (RFC 7540 §6.7).
type Ping struct {
	ack  bool
	data [8]byte
}

func (p *Ping) Type() FrameType { return FramePing }
func (p *Ping) Reset()          { p.ack = false; p.data = [8]byte{} }
func (p *Ping) Ack() bool       { return p.ack }
func (p *Ping) SetAck(v bool)   { p.ack = v }
func (p *Ping) Data() [8]byte   { return p.data }
func (p *Ping) SetData(b [8]byte) { p.data = b }

func (p *Ping) Deserialize(frh *FrameHeader) error {
	if frh.stream != 0 {
		return protoErr(ProtocolError, "PING on non-zero stream")
	}
	if len(frh.payload) != 8 {
		return protoErr(FrameSizeError, "PING: payload must be 8 bytes")
	}
	p.ack = frh.flags.Has(FlagAck)
	copy(p.data[:], frh.payload)
	return nil
}

func (p *Ping) Serialize(frh *FrameHeader) {
	if p.ack {
		frh.flags = frh.flags.Add(FlagAck)
	}
	frh.setPayload(p.data[:])
}
