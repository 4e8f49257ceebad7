package xdr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Length codec boundaries
// ============================================================================

func TestEncodeDecodeLength_Boundaries(t *testing.T) {
	cases := []uint{0, 1, 127, 128, 255, 256, 65535, 65536, 16777215, 16777216}

	for _, n := range cases {
		var buf bytes.Buffer
		EncodeLength(&buf, n)

		got, consumed, err := DecodeLength(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, buf.Len(), consumed)
	}
}

func TestEncodeLengthInto_MatchesEncodeLength(t *testing.T) {
	for _, n := range []uint{0, 200, 70000} {
		var buf bytes.Buffer
		EncodeLength(&buf, n)

		dst := make([]byte, 5)
		w := EncodeLengthInto(dst, n)
		assert.Equal(t, buf.Bytes(), dst[:w])
	}
}

func TestDecodeLength_RejectsIndefiniteForm(t *testing.T) {
	_, _, err := DecodeLength(bytes.NewReader([]byte{0x80}))
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, InvalidLength, codecErr.Kind)
}

func TestDecodeLength_RejectsOverWideForm(t *testing.T) {
	_, _, err := DecodeLength(bytes.NewReader([]byte{0x85, 1, 2, 3, 4, 5}))
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, InvalidLength, codecErr.Kind)
}

// ============================================================================
// Tag-length-value helpers
// ============================================================================

func TestDecodeTLV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	EncodeTag(&buf, 0xA1, []byte{1, 2, 3})

	tag, consumed, payload, err := DecodeTLV(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, byte(0xA1), tag)
	assert.Equal(t, buf.Len(), consumed)
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestDecodeTLV_TruncatedSource(t *testing.T) {
	_, _, _, err := DecodeTLV([]byte{0xA1})
	assert.Error(t, err)
}

func TestEncodeNestedTag_WrapsInnerTLV(t *testing.T) {
	var buf bytes.Buffer
	EncodeNestedTag(&buf, 0xBE, 0x04, []byte{9, 9})

	outerTag, _, outerPayload, err := DecodeTLV(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, byte(0xBE), outerTag)

	innerTag, _, innerPayload, err := DecodeTLV(outerPayload)
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), innerTag)
	assert.Equal(t, []byte{9, 9}, innerPayload)
}
