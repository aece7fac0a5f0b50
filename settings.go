package h2engine

import "github.com/dgrr/h2engine/h2utils"

func init() {
	registerFramePool(FrameSettings, func() Frame { return &SettingsFrame{} })
}

// SettingID is a SETTINGS parameter identifier (RFC 7540 §6.5.2).
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

const (
	maxWindowSize = 1<<31 - 1
	minFrameSize  = 1 << 14
	maxFrameSize  = 1<<24 - 1
)

// defaultConnWindowSize is the fixed initial size of the connection-level
// flow-control window (RFC 7540 §6.9.2): unlike a stream's window, it is
// never affected by SETTINGS_INITIAL_WINDOW_SIZE and only ever moves via
// connection-level WINDOW_UPDATE frames.
const defaultConnWindowSize = 65535

// Settings holds one side's SETTINGS snapshot (spec.md §6).
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    int64 // -1 means unused
}

// DefaultSettings returns the RFC 7540 / spec.md §6 defaults.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      4096,
		EnablePush:           true,
		MaxConcurrentStreams: 1024,
		InitialWindowSize:    65535,
		MaxFrameSize:         defaultMaxFrameSize,
		MaxHeaderListSize:    -1,
	}
}

type settingPair struct {
	id    SettingID
	value uint32
}

// SettingsFrame is a SETTINGS frame (RFC 7540 §6.5).
type SettingsFrame struct {
	ack   bool
	pairs []settingPair
}

func (s *SettingsFrame) Type() FrameType { return FrameSettings }

func (s *SettingsFrame) Reset() {
	s.ack = false
	s.pairs = s.pairs[:0]
}

func (s *SettingsFrame) Ack() bool     { return s.ack }
func (s *SettingsFrame) SetAck(v bool) { s.ack = v }

// Set stages one parameter to be written on Serialize.
func (s *SettingsFrame) Set(id SettingID, value uint32) {
	s.pairs = append(s.pairs, settingPair{id, value})
}

// Pairs exposes the decoded (id, value) records for handleSettings
// (h2frame.go) to apply and
// validate (spec.md §4.2's per-setting bounds).
func (s *SettingsFrame) Pairs() []settingPair { return s.pairs }

func (id SettingID) String() string {
	switch id {
	case SettingHeaderTableSize:
		return "HEADER_TABLE_SIZE"
	case SettingEnablePush:
		return "ENABLE_PUSH"
	case SettingMaxConcurrentStreams:
		return "MAX_CONCURRENT_STREAMS"
	case SettingInitialWindowSize:
		return "INITIAL_WINDOW_SIZE"
	case SettingMaxFrameSize:
		return "MAX_FRAME_SIZE"
	case SettingMaxHeaderListSize:
		return "MAX_HEADER_LIST_SIZE"
	}
	return "UNKNOWN_SETTING"
}

func (s *SettingsFrame) Deserialize(frh *FrameHeader) error {
	if frh.stream != 0 {
		return protoErr(ProtocolError, "SETTINGS on non-zero stream")
	}

	if frh.flags.Has(FlagAck) {
		if len(frh.payload) != 0 {
			return protoErr(FrameSizeError, "SETTINGS ACK must be empty")
		}
		s.ack = true
		return nil
	}

	if len(frh.payload)%6 != 0 {
		return protoErr(FrameSizeError, "SETTINGS payload must be a multiple of 6")
	}

	for i := 0; i+6 <= len(frh.payload); i += 6 {
		id := SettingID(h2utils.BytesToUint16(frh.payload[i : i+2]))
		val := h2utils.BytesToUint32(frh.payload[i+2 : i+6])
		s.pairs = append(s.pairs, settingPair{id, val})
	}

	return nil
}

func (s *SettingsFrame) Serialize(frh *FrameHeader) {
	if s.ack {
		frh.flags = frh.flags.Add(FlagAck)
		frh.payload = frh.payload[:0]
		return
	}

	frh.payload = frh.payload[:0]
	for _, p := range s.pairs {
		var b [6]byte
		h2utils.Uint16ToBytes(b[:2], uint16(p.id))
		h2utils.Uint32ToBytes(b[2:], p.value)
		frh.payload = append(frh.payload, b[:]...)
	}
}

// applySetting validates and applies one (id, value) pair to dst,
// returning an error for an out-of-range value; unknown ids are ignored
// silently per RFC 7540 §6.5.2.
func applySetting(dst *Settings, p settingPair) *Error {
	switch p.id {
	case SettingHeaderTableSize:
		dst.HeaderTableSize = p.value
	case SettingEnablePush:
		if p.value > 1 {
			return protoErr(ProtocolError, "ENABLE_PUSH must be 0 or 1")
		}
		dst.EnablePush = p.value == 1
	case SettingMaxConcurrentStreams:
		dst.MaxConcurrentStreams = p.value
	case SettingInitialWindowSize:
		if p.value > maxWindowSize {
			return protoErr(FlowControlError, "INITIAL_WINDOW_SIZE too large")
		}
		dst.InitialWindowSize = p.value
	case SettingMaxFrameSize:
		if p.value < minFrameSize || p.value > maxFrameSize {
			return protoErr(ProtocolError, "MAX_FRAME_SIZE out of range")
		}
		dst.MaxFrameSize = p.value
	case SettingMaxHeaderListSize:
		dst.MaxHeaderListSize = int64(p.value)
	}
	return nil
}

// buildInitialSettingsFrame encodes the delta from DefaultSettings() to
// cfg, as spec.md §4.5 requires for the connection-opening SETTINGS frame.
func buildInitialSettingsFrame(cfg Settings) *SettingsFrame {
	def := DefaultSettings()
	sf := &SettingsFrame{}

	if cfg.HeaderTableSize != def.HeaderTableSize {
		sf.Set(SettingHeaderTableSize, cfg.HeaderTableSize)
	}
	if cfg.EnablePush != def.EnablePush {
		v := uint32(0)
		if cfg.EnablePush {
			v = 1
		}
		sf.Set(SettingEnablePush, v)
	}
	if cfg.MaxConcurrentStreams != def.MaxConcurrentStreams {
		sf.Set(SettingMaxConcurrentStreams, cfg.MaxConcurrentStreams)
	}
	if cfg.InitialWindowSize != def.InitialWindowSize {
		sf.Set(SettingInitialWindowSize, cfg.InitialWindowSize)
	}
	if cfg.MaxFrameSize != def.MaxFrameSize {
		sf.Set(SettingMaxFrameSize, cfg.MaxFrameSize)
	}
	if cfg.MaxHeaderListSize >= 0 {
		sf.Set(SettingMaxHeaderListSize, uint32(cfg.MaxHeaderListSize))
	}

	return sf
}
