package apdu

import (
	"bytes"
	"encoding/binary"

	"github.com/dlms-go/dlmscosem/xdr"
)

// EncodeSetRequestNormal builds a single-attribute SET-Request-Normal APDU
// carrying the full value inline.
func EncodeSetRequestNormal(invokeID byte, priority byte, d GetDescriptor, value xdr.Data) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagSetRequest))
	out.WriteByte(byte(SetRequestNormal))
	out.WriteByte(invokeID | priority)
	if err := encodeDescriptor(&out, d); err != nil {
		return nil, err
	}
	if err := xdr.EncodeInto(&out, value); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeSetRequestWithList builds a multi-attribute SET-Request-With-List
// APDU.
func EncodeSetRequestWithList(invokeID byte, priority byte, items []GetDescriptor, values []xdr.Data) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagSetRequest))
	out.WriteByte(byte(SetRequestWithList))
	out.WriteByte(invokeID | priority)
	xdr.EncodeLength(&out, uint(len(items)))
	for _, d := range items {
		if err := encodeDescriptor(&out, d); err != nil {
			return nil, err
		}
	}
	xdr.EncodeLength(&out, uint(len(values)))
	for _, v := range values {
		if err := xdr.EncodeInto(&out, v); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func encodeBlockPrefix(out *bytes.Buffer, last bool, blockNumber uint32) {
	if last {
		out.WriteByte(1)
	} else {
		out.WriteByte(0)
	}
	out.WriteByte(byte(blockNumber >> 24))
	out.WriteByte(byte(blockNumber >> 16))
	out.WriteByte(byte(blockNumber >> 8))
	out.WriteByte(byte(blockNumber))
}

// EncodeSetRequestWithFirstDataBlock opens a block-transferred SET for a
// single descriptor, carrying the first chunk of the A-XDR-encoded value.
func EncodeSetRequestWithFirstDataBlock(invokeID byte, priority byte, d GetDescriptor, last bool, blockNumber uint32, chunk []byte) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagSetRequest))
	out.WriteByte(byte(SetRequestWithFirstDataBlock))
	out.WriteByte(invokeID | priority)
	if err := encodeDescriptor(&out, d); err != nil {
		return nil, err
	}
	encodeBlockPrefix(&out, last, blockNumber)
	xdr.EncodeLength(&out, uint(len(chunk)))
	out.Write(chunk)
	return out.Bytes(), nil
}

// EncodeSetRequestWithListAndFirstDataBlock opens a block-transferred SET
// for multiple descriptors, carrying the first chunk of the concatenated
// A-XDR-encoded value list.
func EncodeSetRequestWithListAndFirstDataBlock(invokeID byte, priority byte, items []GetDescriptor, last bool, blockNumber uint32, chunk []byte) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagSetRequest))
	out.WriteByte(byte(SetRequestWithListAndFirstDataBlock))
	out.WriteByte(invokeID | priority)
	xdr.EncodeLength(&out, uint(len(items)))
	for _, d := range items {
		if err := encodeDescriptor(&out, d); err != nil {
			return nil, err
		}
	}
	encodeBlockPrefix(&out, last, blockNumber)
	xdr.EncodeLength(&out, uint(len(chunk)))
	out.Write(chunk)
	return out.Bytes(), nil
}

// EncodeSetRequestWithDataBlock sends a continuation chunk for an
// already-opened block-transferred SET.
func EncodeSetRequestWithDataBlock(invokeID byte, priority byte, last bool, blockNumber uint32, chunk []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(TagSetRequest))
	out.WriteByte(byte(SetRequestWithDataBlock))
	out.WriteByte(invokeID | priority)
	encodeBlockPrefix(&out, last, blockNumber)
	xdr.EncodeLength(&out, uint(len(chunk)))
	out.Write(chunk)
	return out.Bytes()
}

// DecodeSetResponseNormal decodes a SetResponseNormal body: a single
// DataAccessResult byte.
func DecodeSetResponseNormal(b []byte) (AccessResultTag, error) {
	if len(b) < 1 {
		return 0, &Error{Kind: InconsistentLength, Context: "set-response-normal body is empty"}
	}
	return AccessResultTag(b[0]), nil
}

// DecodeSetResponseWithList decodes a SetResponseWithList body: a count
// prefix followed by that many DataAccessResult bytes.
func DecodeSetResponseWithList(b []byte, expected int) ([]AccessResultTag, error) {
	r := bytes.NewReader(b)
	l, _, err := xdr.DecodeLength(r)
	if err != nil {
		return nil, err
	}
	if int(l) != expected {
		return nil, &Error{Kind: InconsistentLength, Context: "set-response-with-list count mismatch"}
	}
	res := make([]byte, expected)
	if _, err := r.Read(res); err != nil {
		return nil, &Error{Kind: InconsistentLength, Cause: err}
	}
	out := make([]AccessResultTag, expected)
	for i, v := range res {
		out[i] = AccessResultTag(v)
	}
	return out, nil
}

// DecodeSetResponseDataBlock decodes a SetResponseDataBlock body: the block
// number the server expects next.
func DecodeSetResponseDataBlock(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, &Error{Kind: InconsistentLength, Context: "set-response-data-block body requires 4 bytes"}
	}
	return binary.BigEndian.Uint32(b), nil
}

// DecodeSetResponseLastDataBlock decodes the final ack of a single-value
// block-transferred SET: the block number and the overall DataAccessResult.
func DecodeSetResponseLastDataBlock(b []byte) (blockNumber uint32, result AccessResultTag, err error) {
	if len(b) < 5 {
		return 0, 0, &Error{Kind: InconsistentLength, Context: "set-response-last-data-block body requires 5 bytes"}
	}
	return binary.BigEndian.Uint32(b), AccessResultTag(b[4]), nil
}

// DecodeSetResponseLastDataBlockWithList decodes the final ack of a
// list-valued block-transferred SET.
func DecodeSetResponseLastDataBlockWithList(b []byte, expected int) (blockNumber uint32, results []AccessResultTag, err error) {
	r := bytes.NewReader(b)
	l, _, err := xdr.DecodeLength(r)
	if err != nil {
		return 0, nil, err
	}
	if int(l) != expected {
		return 0, nil, &Error{Kind: InconsistentLength, Context: "set-response-last-data-block-with-list count mismatch"}
	}
	res := make([]byte, expected+4)
	if _, err := r.Read(res); err != nil {
		return 0, nil, &Error{Kind: InconsistentLength, Cause: err}
	}
	results = make([]AccessResultTag, expected)
	for i := 0; i < expected; i++ {
		results[i] = AccessResultTag(res[i])
	}
	blockNumber = binary.BigEndian.Uint32(res[expected:])
	return blockNumber, results, nil
}
