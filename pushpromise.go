package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FramePushPromise, func() Frame { return &PushPromise{} })
}

// PushPromise is a PUSH_PROMISE frame (RFC 7540 §6.6): server-to-client
// only, and only meaningful when remote.enable_push=1 on the sender side
// or local.enable_push=1 on the receiving side.
type PushPromise struct {
	padded     bool
	promisedID uint32
	endHeaders bool
	block      []byte
}

func (pp *PushPromise) Type() FrameType { return FramePushPromise }

func (pp *PushPromise) Reset() {
	pp.padded = false
	pp.promisedID = 0
	pp.endHeaders = false
	pp.block = pp.block[:0]
}

func (pp *PushPromise) PromisedID() uint32    { return pp.promisedID }
func (pp *PushPromise) SetPromisedID(id uint32) { pp.promisedID = id & (1<<31 - 1) }
func (pp *PushPromise) EndHeaders() bool        { return pp.endHeaders }
func (pp *PushPromise) SetEndHeaders(v bool)    { pp.endHeaders = v }
func (pp *PushPromise) Block() []byte           { return pp.block }
func (pp *PushPromise) SetBlock(b []byte)       { pp.block = append(pp.block[:0], b...) }

func (pp *PushPromise) Deserialize(frh *FrameHeader) error {
	payload := frh.payload

	if frh.flags.Has(FlagPadded) {
		p, err := h2utils.CutPadding(payload, frh.length)
		if err != nil {
			return paddingError("PUSH_PROMISE", err)
		}
		payload = p
		pp.padded = true
	}

	if len(payload) < 4 {
		return protoErr(FrameSizeError, "PUSH_PROMISE: truncated")
	}

	pp.promisedID = h2utils.BytesToUint32(payload) & (1<<31 - 1)
	pp.block = append(pp.block[:0], payload[4:]...)
	pp.endHeaders = frh.flags.Has(FlagEndHeaders)

	return nil
}

func (pp *PushPromise) Serialize(frh *FrameHeader) {
	if pp.endHeaders {
		frh.flags = frh.flags.Add(FlagEndHeaders)
	}
	frh.payload = h2utils.AppendUint32Bytes(frh.payload[:0], pp.promisedID)
	frh.payload = append(frh.payload, pp.block...)
}
