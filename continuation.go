package h2engine

func init() {
	registerFramePool(FrameContinuation, func() Frame { return &Continuation{} })
}

// Continuation is a CONTINUATION frame (RFC 7540 §6.10): more header
// block fragment, optionally ending the block.
type Continuation struct {
	endHeaders bool
	block      []byte
}

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Reset() {
	c.endHeaders = false
	c.block = c.block[:0]
}

func (c *Continuation) EndHeaders() bool     { return c.endHeaders }
func (c *Continuation) SetEndHeaders(v bool) { c.endHeaders = v }
func (c *Continuation) Block() []byte        { return c.block }
func (c *Continuation) SetBlock(b []byte)    { c.block = append(c.block[:0], b...) }

func (c *Continuation) Deserialize(frh *FrameHeader) error {
	c.endHeaders = frh.flags.Has(FlagEndHeaders)
	c.block = append(c.block[:0], frh.payload...)
	return nil
}

func (c *Continuation) Serialize(frh *FrameHeader) {
	if c.endHeaders {
		frh.flags = frh.flags.Add(FlagEndHeaders)
	}
	frh.setPayload(c.block)
}
