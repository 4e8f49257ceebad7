package client

import (
	"bytes"
	"testing"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/base"
	"github.com/dlms-go/dlmscosem/xdr"
	"github.com/stretchr/testify/require"
)

var aarqAppContextPrefix = []byte{0x06, 0x07, 0x60, 0x85, 0x74, 0x05, 0x08, 0x01}

// buildAARE assembles a complete, outer-tagged AARE frame the way a server
// would send it, for feeding to fakeStream.
func buildAARE(t *testing.T, result base.AssociationResult, diagnostic base.SourceDiagnostic, serverTitle, challenge []byte, initiateResponse []byte) []byte {
	t.Helper()
	var content bytes.Buffer

	appCtx := append(append([]byte{}, aarqAppContextPrefix...), byte(base.ApplicationContextLNNoCiphering))
	xdr.EncodeTag(&content, 0xa1, appCtx)
	xdr.EncodeTag(&content, 0xa2, []byte{0x02, 0x01, byte(result)})
	xdr.EncodeTag(&content, 0xa3, []byte{0xa1, 0x03, 0x02, 0x01, byte(diagnostic)})

	if serverTitle != nil {
		var inner bytes.Buffer
		xdr.EncodeTag(&inner, 0x04, serverTitle)
		xdr.EncodeTag(&content, 0xa4, inner.Bytes())
	}
	if challenge != nil {
		var inner bytes.Buffer
		xdr.EncodeTag(&inner, 0x80, challenge)
		xdr.EncodeTag(&content, 0xaa, inner.Bytes())
	}
	if initiateResponse != nil {
		var inner bytes.Buffer
		xdr.EncodeTag(&inner, 0x04, initiateResponse)
		xdr.EncodeTag(&content, 0xbe, inner.Bytes())
	}

	var out bytes.Buffer
	xdr.EncodeTag(&out, byte(base.TagAARE), content.Bytes())
	return out.Bytes()
}

// defaultInitiateResponse builds the unciphered Initiate-Response body this
// package's DecodeInitiateResponse expects, with the given conformance and
// max PDU size.
func defaultInitiateResponse(conformance uint32, maxPduSize uint16) []byte {
	body := []byte{
		byte(base.TagInitiateResponse),
		0x00,
		base.DlmsVersion,
		0x5f, 0x1f, 0x04, 0x00,
		byte(conformance >> 16), byte(conformance >> 8), byte(conformance),
		byte(maxPduSize >> 8), byte(maxPduSize),
		0x00, 0x01,
	}
	return body
}

// acceptedAARE is a ready-made accepted-association frame with no security.
func acceptedAARE(t *testing.T, conformance uint32, maxPduSize uint16) []byte {
	t.Helper()
	return buildAARE(t, base.AssociationResultAccepted, base.SourceDiagnosticNone, nil, nil, defaultInitiateResponse(conformance, maxPduSize))
}

// buildGetResponseNormal frames a GetResponseNormal body as a full tagged
// response (tag + variant + invoke-id + success choice + data).
func buildGetResponseNormal(t *testing.T, invokeID byte, d xdr.Data) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteByte(byte(base.TagGetResponse))
	body.WriteByte(byte(apdu.GetResponseNormal))
	body.WriteByte(invokeID)
	body.WriteByte(0)
	require.NoError(t, xdr.EncodeInto(&body, d))
	return body.Bytes()
}

func buildSetResponseNormal(invokeID byte, result apdu.AccessResultTag) []byte {
	return []byte{byte(base.TagSetResponse), byte(apdu.SetResponseNormal), invokeID, byte(result)}
}

// buildActionResponseNormal frames an ActionResponseNormal body, optionally
// carrying a return value.
func buildActionResponseNormal(t *testing.T, invokeID byte, result apdu.AccessResultTag, ret *xdr.Data) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteByte(byte(base.TagActionResponse))
	body.WriteByte(byte(apdu.ActionResponseNormal))
	body.WriteByte(invokeID)
	body.WriteByte(byte(result))
	if ret != nil {
		body.WriteByte(1)
		body.WriteByte(0)
		require.NoError(t, xdr.EncodeInto(&body, *ret))
	} else {
		body.WriteByte(0)
	}
	return body.Bytes()
}

// buildGetResponseWithDataBlock frames a single GetResponseWithDataBlock
// message carrying one raw (already A-XDR-encoded) chunk.
func buildGetResponseWithDataBlock(invokeID byte, last bool, blockNumber uint32, chunk []byte) []byte {
	var body bytes.Buffer
	body.WriteByte(byte(base.TagGetResponse))
	body.WriteByte(byte(apdu.GetResponseWithDataBlock))
	body.WriteByte(invokeID)
	if last {
		body.WriteByte(1)
	} else {
		body.WriteByte(0)
	}
	var bn [4]byte
	bn[0] = byte(blockNumber >> 24)
	bn[1] = byte(blockNumber >> 16)
	bn[2] = byte(blockNumber >> 8)
	bn[3] = byte(blockNumber)
	body.Write(bn[:])
	body.WriteByte(0) // result: success
	xdr.EncodeLength(&body, uint(len(chunk)))
	body.Write(chunk)
	return body.Bytes()
}

func buildSetResponseDataBlock(invokeID byte, nextBlock uint32) []byte {
	var body bytes.Buffer
	body.WriteByte(byte(base.TagSetResponse))
	body.WriteByte(byte(apdu.SetResponseDataBlock))
	body.WriteByte(invokeID)
	var bn [4]byte
	bn[0] = byte(nextBlock >> 24)
	bn[1] = byte(nextBlock >> 16)
	bn[2] = byte(nextBlock >> 8)
	bn[3] = byte(nextBlock)
	body.Write(bn[:])
	return body.Bytes()
}

// buildGetResponseWithList frames a GetResponseWithList body carrying the
// given successful values in order.
func buildGetResponseWithList(t *testing.T, invokeID byte, values []xdr.Data) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteByte(byte(base.TagGetResponse))
	body.WriteByte(byte(apdu.GetResponseWithList))
	body.WriteByte(invokeID)
	xdr.EncodeLength(&body, uint(len(values)))
	for _, v := range values {
		body.WriteByte(0)
		require.NoError(t, xdr.EncodeInto(&body, v))
	}
	return body.Bytes()
}

// buildSetResponseWithList frames a SetResponseWithList body carrying the
// given DataAccessResult codes in order.
func buildSetResponseWithList(invokeID byte, results []apdu.AccessResultTag) []byte {
	var body bytes.Buffer
	body.WriteByte(byte(base.TagSetResponse))
	body.WriteByte(byte(apdu.SetResponseWithList))
	body.WriteByte(invokeID)
	xdr.EncodeLength(&body, uint(len(results)))
	for _, r := range results {
		body.WriteByte(byte(r))
	}
	return body.Bytes()
}

// buildActionResponseNextPBlock acks a parameter chunk of a block-transferred
// ACTION, asking for the block numbered blockNumber next.
func buildActionResponseNextPBlock(invokeID byte, blockNumber uint32) []byte {
	var body bytes.Buffer
	body.WriteByte(byte(base.TagActionResponse))
	body.WriteByte(byte(apdu.ActionResponseNextPBlock))
	body.WriteByte(invokeID)
	var bn [4]byte
	bn[0] = byte(blockNumber >> 24)
	bn[1] = byte(blockNumber >> 16)
	bn[2] = byte(blockNumber >> 8)
	bn[3] = byte(blockNumber)
	body.Write(bn[:])
	return body.Bytes()
}

// buildActionResponseWithPBlock frames a single ActionResponseWithPBlock
// message carrying one raw (already A-XDR-encoded) return-value chunk.
func buildActionResponseWithPBlock(invokeID byte, last bool, blockNumber uint32, chunk []byte) []byte {
	var body bytes.Buffer
	body.WriteByte(byte(base.TagActionResponse))
	body.WriteByte(byte(apdu.ActionResponseWithPBlock))
	body.WriteByte(invokeID)
	if last {
		body.WriteByte(1)
	} else {
		body.WriteByte(0)
	}
	var bn [4]byte
	bn[0] = byte(blockNumber >> 24)
	bn[1] = byte(blockNumber >> 16)
	bn[2] = byte(blockNumber >> 8)
	bn[3] = byte(blockNumber)
	body.Write(bn[:])
	xdr.EncodeLength(&body, uint(len(chunk)))
	body.Write(chunk)
	return body.Bytes()
}

func buildSetResponseLastDataBlock(invokeID byte, blockNumber uint32, result apdu.AccessResultTag) []byte {
	var body bytes.Buffer
	body.WriteByte(byte(base.TagSetResponse))
	body.WriteByte(byte(apdu.SetResponseLastDataBlock))
	body.WriteByte(invokeID)
	var bn [4]byte
	bn[0] = byte(blockNumber >> 24)
	bn[1] = byte(blockNumber >> 16)
	bn[2] = byte(blockNumber >> 8)
	bn[3] = byte(blockNumber)
	body.Write(bn[:])
	body.WriteByte(byte(result))
	return body.Bytes()
}
