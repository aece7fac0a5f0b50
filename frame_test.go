package h2engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, fr Frame, stream uint32) *FrameHeader {
	t.Helper()

	frh := AcquireFrameHeader()
	frh.SetBody(fr)
	frh.SetStream(stream)
	buf := writeFrame(nil, frh)
	ReleaseFrameHeader(frh)

	var rb recvBuffer
	rb.Append(buf)

	out, err := readFrame(&rb, defaultMaxFrameSize)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 0, rb.Len())

	return out
}

func TestDataFrameRoundTrip(t *testing.T) {
	d := &Data{endStream: true, b: []byte("hello")}
	out := roundTrip(t, d, 3)
	defer ReleaseFrameHeader(out)

	got := out.Body().(*Data)
	assert.Equal(t, "hello", string(got.Payload()))
	assert.True(t, got.EndStream())
	assert.Equal(t, uint32(3), out.Stream())
}

func TestHeadersFrameRoundTrip(t *testing.T) {
	h := &Headers{endStream: true, endHeaders: true, block: []byte{0x82, 0x86}}
	out := roundTrip(t, h, 1)
	defer ReleaseFrameHeader(out)

	got := out.Body().(*Headers)
	assert.Equal(t, []byte{0x82, 0x86}, got.Block())
	assert.True(t, got.EndHeaders())
}

func TestSettingsFrameRoundTrip(t *testing.T) {
	s := &SettingsFrame{}
	s.Set(SettingInitialWindowSize, 65535)
	s.Set(SettingMaxConcurrentStreams, 100)

	out := roundTrip(t, s, 0)
	defer ReleaseFrameHeader(out)

	got := out.Body().(*SettingsFrame)
	require.Len(t, got.Pairs(), 2)
	assert.Equal(t, SettingInitialWindowSize, got.Pairs()[0].id)
	assert.Equal(t, uint32(65535), got.Pairs()[0].value)
}

func TestSettingsAckIsEmpty(t *testing.T) {
	s := &SettingsFrame{ack: true}
	out := roundTrip(t, s, 0)
	defer ReleaseFrameHeader(out)

	assert.True(t, out.Body().(*SettingsFrame).Ack())
	assert.Equal(t, 0, out.Len())
}

func TestWindowUpdateRejectsZeroIncrement(t *testing.T) {
	frh := &FrameHeader{length: 4, kind: FrameWindowUpdate, stream: 1}
	frh.payload = []byte{0, 0, 0, 0}

	w := &WindowUpdate{}
	err := w.Deserialize(frh)
	require.Error(t, err)

	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ProtocolError, herr.Code)
}

func TestPingRejectsNonZeroStream(t *testing.T) {
	frh := &FrameHeader{length: 8, kind: FramePing, stream: 1}
	frh.payload = make([]byte, 8)

	p := &Ping{}
	err := p.Deserialize(frh)
	require.Error(t, err)
}

func TestPriorityRejectsSelfDependency(t *testing.T) {
	frh := &FrameHeader{length: 5, kind: FramePriority, stream: 5}
	frh.payload = []byte{0, 0, 0, 5, 16}

	p := &Priority{}
	err := p.Deserialize(frh)
	require.Error(t, err)
}

func TestReadFrameReturnsNilOnPending(t *testing.T) {
	var rb recvBuffer
	rb.Append([]byte{0, 0, 5}) // short of the 9-byte header

	fr, err := readFrame(&rb, defaultMaxFrameSize)
	require.NoError(t, err)
	assert.Nil(t, fr)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var rb recvBuffer
	hdr := make([]byte, 9)
	writeFrameHeaderBytes(hdr, FrameData, 0, 1, 1<<20)
	rb.Append(hdr)

	_, err := readFrame(&rb, defaultMaxFrameSize)
	require.Error(t, err)
	herr := err.(*Error)
	assert.Equal(t, FrameSizeError, herr.Code)
}
