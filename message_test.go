package h2engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrr/h2engine/hpackutil"
)

func hf(name, value string) hpackutil.HeaderField {
	return hpackutil.HeaderField{Name: name, Value: value}
}

func TestNormalizeFieldsRequestHappyPath(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf(":authority", "example.com"),
		hf("x-custom", "1"),
	}

	msg, trailers, err := normalizeFields(fields, false, true)
	require.Nil(t, err)
	assert.Nil(t, trailers)
	assert.Equal(t, "GET", msg.Method)
	assert.Equal(t, "/a", msg.Path)
	assert.Equal(t, "example.com", msg.Authority)
	assert.True(t, msg.HasScheme())
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "x-custom", msg.Headers[0].Name)
}

func TestNormalizeFieldsConnectRequestSkipsSchemeAndPath(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "CONNECT"),
		hf(":authority", "example.com:443"),
	}

	msg, _, err := normalizeFields(fields, false, true)
	require.Nil(t, err)
	assert.Equal(t, "CONNECT", msg.Method)
}

func TestNormalizeFieldsResponseRequiresStatus(t *testing.T) {
	fields := []hpackutil.HeaderField{hf("x-custom", "1")}

	_, _, err := normalizeFields(fields, false, false)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsDuplicatePseudoHeaderRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":method", "POST"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsPseudoAfterRegularRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("x-custom", "1"),
		hf(":authority", "example.com"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsConnectionHeaderForbidden(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("connection", "keep-alive"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsTERequiresTrailers(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("te", "gzip"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsTETrailersAllowed(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("te", "trailers"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.Nil(t, err)
}

func TestNormalizeFieldsConflictingContentLengthRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "POST"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("content-length", "3"),
		hf("content-length", "4"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsRepeatedMatchingContentLengthAllowed(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "POST"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("content-length", "3"),
		hf("content-length", "3"),
	}

	msg, _, err := normalizeFields(fields, false, true)
	require.Nil(t, err)
	assert.Equal(t, int64(3), msg.ContentLength)
}

func TestNormalizeFieldsUnknownPseudoHeaderRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":bogus", "x"),
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsMissingRequiredPseudoHeaderRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsTrailersRejectPseudoHeaders(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":status", "200"),
	}

	_, _, err := normalizeFields(fields, true, false)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestNormalizeFieldsTrailersReturnRegularHeadersOnly(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf("x-checksum", "abc123"),
	}

	msg, trailers, err := normalizeFields(fields, true, false)
	require.Nil(t, err)
	assert.Nil(t, msg.Headers)
	require.Len(t, trailers, 1)
	assert.Equal(t, "x-checksum", trailers[0].Name)
}

func TestNormalizeFieldsTooManyHeadersRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
	}
	for i := 0; i < MaxHeaders+1; i++ {
		fields = append(fields, hf("x-pad", "v"))
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, KindNoMemory, err.Kind)
}

func TestNormalizeFieldsInvalidHeaderNameRejected(t *testing.T) {
	fields := []hpackutil.HeaderField{
		hf(":method", "GET"),
		hf(":scheme", "https"),
		hf(":path", "/a"),
		hf("bad name", "v"),
	}

	_, _, err := normalizeFields(fields, false, true)
	require.NotNil(t, err)
	assert.Equal(t, ProtocolError, err.Code)
}

func TestMessageIsInformational(t *testing.T) {
	m := &Message{Code: 100}
	assert.True(t, m.IsInformational())
	m.Code = 200
	assert.False(t, m.IsInformational())
}
