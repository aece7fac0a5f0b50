package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FrameWindowUpdate, func() Frame { return &WindowUpdate{} })
}

// WindowUpdate is a WINDOW_UPDATE frame (RFC 7540 §6.9).
type WindowUpdate struct {
	increment uint32
}

func (w *WindowUpdate) Type() FrameType       { return FrameWindowUpdate }
func (w *WindowUpdate) Reset()                { w.increment = 0 }
func (w *WindowUpdate) Increment() uint32     { return w.increment }
func (w *WindowUpdate) SetIncrement(n uint32) { w.increment = n & (1<<31 - 1) }

func (w *WindowUpdate) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) != 4 {
		return protoErr(FrameSizeError, "WINDOW_UPDATE: payload must be 4 bytes")
	}
	w.increment = h2utils.BytesToUint32(frh.payload) & (1<<31 - 1)
	if w.increment == 0 {
		return protoErr(ProtocolError, "WINDOW_UPDATE: zero increment")
	}
	return nil
}

func (w *WindowUpdate) Serialize(frh *FrameHeader) {
	frh.payload = h2utils.AppendUint32Bytes(frh.payload[:0], w.increment)
}
