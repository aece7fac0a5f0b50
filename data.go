package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FrameData, func() Frame { return &Data{} })
}

// Data is a DATA frame (RFC 7540 §6.1).
type Data struct {
	endStream bool
	padded    bool
	b         []byte
}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.endStream = false
	d.padded = false
	d.b = d.b[:0]
}

func (d *Data) EndStream() bool        { return d.endStream }
func (d *Data) SetEndStream(v bool)    { d.endStream = v }
func (d *Data) Payload() []byte        { return d.b }
func (d *Data) SetPayload(b []byte)    { d.b = append(d.b[:0], b...) }
func (d *Data) SetPadded(v bool)       { d.padded = v }

func (d *Data) Deserialize(frh *FrameHeader) error {
	payload := frh.payload

	if frh.flags.Has(FlagPadded) {
		p, err := h2utils.CutPadding(payload, frh.length)
		if err != nil {
			return paddingError("DATA", err)
		}
		payload = p
	}

	d.endStream = frh.flags.Has(FlagEndStream)
	d.b = append(d.b[:0], payload...)

	return nil
}

func (d *Data) Serialize(frh *FrameHeader) {
	if d.endStream {
		frh.flags = frh.flags.Add(FlagEndStream)
	}
	if d.padded {
		frh.flags = frh.flags.Add(FlagPadded)
		d.b = h2utils.AddPadding(d.b)
	}
	frh.setPayload(d.b)
}
