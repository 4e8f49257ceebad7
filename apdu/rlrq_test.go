package apdu

import (
	"bytes"
	"testing"

	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// RLRQ encode
// ============================================================================

func TestEncodeRLRQ_Empty(t *testing.T) {
	out := EncodeRLRQ(true)
	assert.Equal(t, []byte{byte(base.TagRLRQ), 0}, out)
}

func TestEncodeRLRQ_WithReason(t *testing.T) {
	out := EncodeRLRQ(false)
	assert.Equal(t, byte(base.TagRLRQ), out[0])
	assert.Equal(t, byte(base.ReleaseRequestReasonNormal), out[len(out)-1])
}

// ============================================================================
// RLRE decode
// ============================================================================

func TestDecodeRLRE_Empty(t *testing.T) {
	out, err := DecodeRLRE(nil)
	require.NoError(t, err)
	assert.False(t, out.HasReason)
	assert.Nil(t, out.UserInformation)
}

func TestDecodeRLRE_WithReason(t *testing.T) {
	var body bytes.Buffer
	xdr.EncodeTag(&body, base.BERTypeContext, []byte{0x00})

	out, err := DecodeRLRE(body.Bytes())
	require.NoError(t, err)
	assert.True(t, out.HasReason)
	assert.Equal(t, byte(0), out.Reason)
}

func TestDecodeRLRE_WithUserInformation(t *testing.T) {
	var inner bytes.Buffer
	xdr.EncodeTag(&inner, 0x04, []byte{0xAA, 0xBB})

	var body bytes.Buffer
	xdr.EncodeTag(&body, base.BERTypeContext|base.BERTypeConstructed|base.PduTypeUserInformation, inner.Bytes())

	out, err := DecodeRLRE(body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, out.UserInformation)
}
