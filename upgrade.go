package h2engine

import (
	"bytes"
	"encoding/base64"

	"github.com/dgrr/h2engine/h2utils"
	"github.com/dgrr/h2engine/hpackutil"
)

// upgrade.go covers the two ways a server-side connection can end up
// speaking HTTP/2 without the host calling Begin(VersionHTTP2) itself:
// the h2c Upgrade header dance (RFC 7540 §3.2) and prior-knowledge
// (RFC 7540 §3.4), both gated by spec.md §4.4/§4.5.

// maybePriorKnowledge checks, before any h1 request has been parsed,
// whether the buffer holds the full HTTP/2 client preface; if so it
// hands the connection straight to the h2 path. It only commits once the
// entire preface is buffered: beginH2 immediately writes the server's
// initial SETTINGS frame, an irreversible side effect, so a match on a
// merely-ambiguous partial prefix (e.g. a single "P", shared with "PUT
// /... HTTP/1.1") must not trigger it early.
func (c *Connection) maybePriorKnowledge() bool {
	if c.role != RoleServer || c.seenH1Request || c.cfg.DisallowH2PriorKnowledge {
		return false
	}

	avail := c.buf.Bytes()
	if len(avail) < len(clientPreface) {
		return false
	}

	return bytes.Equal(avail[:len(clientPreface)], []byte(clientPreface))
}

// upgradeToH2C parses the http2-settings header (base64url, RFC 7540
// §3.2.1), applies it as the client's initial SETTINGS, writes the 101
// response, and switches the connection into h2 mode. The caller
// transitions to H2_PREFACE afterward: the client must still open with
// the HTTP/2 connection preface once it sees 101.
func (c *Connection) upgradeToH2C(http2Settings string) *Error {
	c.mode = modeH2
	c.connSendWindow = defaultConnWindowSize
	c.connRecvWindow = defaultConnWindowSize
	c.hpack = hpackutil.NewCodec(c.local.HeaderTableSize)
	c.remote = DefaultSettings()

	if http2Settings != "" {
		raw, err := base64.RawURLEncoding.DecodeString(http2Settings)
		if err == nil && len(raw)%6 == 0 {
			for i := 0; i+6 <= len(raw); i += 6 {
				p := settingPair{
					id:    SettingID(h2utils.BytesToUint16(raw[i : i+2])),
					value: h2utils.BytesToUint32(raw[i+2 : i+6]),
				}
				_ = applySetting(&c.remote, p)
			}
		}
	}

	resp := []byte("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n")

	sf := buildInitialSettingsFrame(c.local)
	frh := AcquireFrameHeader()
	frh.SetBody(sf)
	settingsBytes := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	c.streams.remove(1)
	c.streamCountRemote = 0

	return c.toError(c.emit([][]byte{resp, settingsBytes}))
}

func (c *Connection) toError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return wrapErr(KindDisconnect, "upgrade write failed", err)
}
