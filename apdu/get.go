package apdu

import (
	"bytes"
	"fmt"

	"github.com/dlms-go/dlmscosem/xdr"
)

// GetDescriptor names a single attribute to retrieve: class-id + OBIS +
// attribute-id, with an optional selective-access descriptor.
type GetDescriptor struct {
	ClassID          uint16
	Obis             xdr.Obis
	Attribute        int8
	HasAccess        bool
	AccessDescriptor byte
	AccessData       xdr.Data
}

func encodeDescriptor(out *bytes.Buffer, d GetDescriptor) error {
	out.WriteByte(byte(d.ClassID >> 8))
	out.WriteByte(byte(d.ClassID))
	out.Write(d.Obis.Bytes())
	out.WriteByte(byte(d.Attribute))
	if d.HasAccess {
		out.WriteByte(1)
		out.WriteByte(d.AccessDescriptor)
		return xdr.EncodeInto(out, d.AccessData)
	}
	out.WriteByte(0)
	return nil
}

// EncodeGetRequestNormal builds a single-attribute GET-Request-Normal APDU.
func EncodeGetRequestNormal(invokeID byte, priority byte, d GetDescriptor) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagGetRequest))
	out.WriteByte(byte(GetRequestNormal))
	out.WriteByte(invokeID | priority)
	if err := encodeDescriptor(&out, d); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeGetRequestWithList builds a multi-attribute GET-Request-With-List
// APDU (used by bulk reads, spec §4.4.3).
func EncodeGetRequestWithList(invokeID byte, priority byte, items []GetDescriptor) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagGetRequest))
	out.WriteByte(byte(GetRequestWithList))
	out.WriteByte(invokeID | priority)
	xdr.EncodeLength(&out, uint(len(items)))
	for _, d := range items {
		if err := encodeDescriptor(&out, d); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// EncodeGetRequestNext requests the next data block of an in-progress
// long-get, identified by the block number expected next.
func EncodeGetRequestNext(invokeID byte, priority byte, blockNumber uint32) []byte {
	out := make([]byte, 7)
	out[0] = byte(TagGetRequest)
	out[1] = byte(GetRequestNext)
	out[2] = invokeID | priority
	out[3] = byte(blockNumber >> 24)
	out[4] = byte(blockNumber >> 16)
	out[5] = byte(blockNumber >> 8)
	out[6] = byte(blockNumber)
	return out
}

// ResponseHeader is the common GET/SET/ACTION response prefix: the response
// variant tag and the invoke-id-and-priority byte.
type ResponseHeader struct {
	Variant  byte
	InvokeID byte
}

// DecodeResponseHeader parses the two bytes following the top-level
// GetResponse/SetResponse/ActionResponse tag.
func DecodeResponseHeader(b []byte) (ResponseHeader, []byte, error) {
	if len(b) < 2 {
		return ResponseHeader{}, nil, &Error{Kind: InconsistentLength, Context: "response header requires 2 bytes"}
	}
	return ResponseHeader{Variant: b[0], InvokeID: b[1] & 0x0f}, b[2:], nil
}

// GetResult is one element of a GET response: either decoded Data or an
// access-result failure code.
type GetResult struct {
	Data    xdr.Data
	Failed  bool
	Result  AccessResultTag
}

// DecodeGetResponseNormal decodes a single GetResponseNormal body: a
// 0-or-result byte, followed by either a result code or a Data value.
func DecodeGetResponseNormal(b []byte) (GetResult, error) {
	if len(b) < 1 {
		return GetResult{}, &Error{Kind: InconsistentLength, Context: "get-response-normal body is empty"}
	}
	if b[0] != 0 {
		if len(b) < 2 {
			return GetResult{}, &Error{Kind: InconsistentLength, Context: "get-response-normal missing result code"}
		}
		return GetResult{Failed: true, Result: AccessResultTag(b[1])}, nil
	}
	d, err := xdr.Decode(bytes.NewReader(b[1:]))
	if err != nil {
		return GetResult{}, err
	}
	return GetResult{Data: d}, nil
}

// DecodeGetResponseWithList decodes a GetResponseWithList body: a count
// prefix followed by that many (result-byte, value) pairs.
func DecodeGetResponseWithList(b []byte, expected int) ([]GetResult, error) {
	r := bytes.NewReader(b)
	l, _, err := xdr.DecodeLength(r)
	if err != nil {
		return nil, err
	}
	if int(l) != expected {
		return nil, &Error{Kind: InconsistentLength, Context: fmt.Sprintf("expected %d results, list announces %d", expected, l)}
	}
	results := make([]GetResult, expected)
	for i := 0; i < expected; i++ {
		var flag [1]byte
		if _, err := r.Read(flag[:]); err != nil {
			return nil, &Error{Kind: InconsistentLength, Cause: err}
		}
		if flag[0] != 0 {
			var code [1]byte
			if _, err := r.Read(code[:]); err != nil {
				return nil, &Error{Kind: InconsistentLength, Cause: err}
			}
			results[i] = GetResult{Failed: true, Result: AccessResultTag(code[0])}
			continue
		}
		d, err := xdr.Decode(r)
		if err != nil {
			return nil, err
		}
		results[i] = GetResult{Data: d}
	}
	return results, nil
}

// DataBlockHeader is the 6-byte last-block/block-number/result-code prefix
// that opens a GetResponseWithDataBlock (or the answer to a GetRequestNext).
type DataBlockHeader struct {
	Last        bool
	BlockNumber uint32
	Failed      bool
	Result      AccessResultTag
}

// DecodeDataBlockHeader parses the fixed 6-byte header. The remaining bytes
// (the A-XDR length then raw chunk payload) are left to the caller, since
// the payload may arrive incrementally over the transport.
func DecodeDataBlockHeader(b []byte) (DataBlockHeader, error) {
	if len(b) < 6 {
		return DataBlockHeader{}, &Error{Kind: InconsistentLength, Context: "data-block header requires 6 bytes"}
	}
	h := DataBlockHeader{
		Last:        b[0] != 0,
		BlockNumber: uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4]),
	}
	if b[5] != 0 {
		h.Failed = true
		h.Result = AccessResultTag(b[5])
	}
	return h, nil
}
