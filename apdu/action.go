package apdu

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dlms-go/dlmscosem/xdr"
)

// MethodDescriptor names a single method: class-id + OBIS + method-id.
type MethodDescriptor struct {
	ClassID  uint16
	Obis     xdr.Obis
	MethodID int8
}

func encodeMethodDescriptor(out *bytes.Buffer, d MethodDescriptor) {
	out.WriteByte(byte(d.ClassID >> 8))
	out.WriteByte(byte(d.ClassID))
	out.Write(d.Obis.Bytes())
	out.WriteByte(byte(d.MethodID))
}

// EncodeActionRequestNormal builds a single-method ACTION-Request-Normal
// APDU. A non-nil parameter is sent after a present flag; nil sends an
// absent flag and no value.
func EncodeActionRequestNormal(invokeID byte, priority byte, d MethodDescriptor, parameter *xdr.Data) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagActionRequest))
	out.WriteByte(byte(ActionRequestNormal))
	out.WriteByte(invokeID | priority)
	encodeMethodDescriptor(&out, d)
	if parameter != nil {
		out.WriteByte(1)
		if err := xdr.EncodeInto(&out, *parameter); err != nil {
			return nil, err
		}
	} else {
		out.WriteByte(0)
	}
	return out.Bytes(), nil
}

// EncodeActionRequestWithFirstPBlock opens a block-transferred ACTION,
// carrying the first chunk of the A-XDR-encoded parameter.
func EncodeActionRequestWithFirstPBlock(invokeID byte, priority byte, d MethodDescriptor, last bool, blockNumber uint32, chunk []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(TagActionRequest))
	out.WriteByte(byte(ActionRequestWithFirstPBlock))
	out.WriteByte(invokeID | priority)
	encodeMethodDescriptor(&out, d)
	encodeBlockPrefix(&out, last, blockNumber)
	xdr.EncodeLength(&out, uint(len(chunk)))
	out.Write(chunk)
	return out.Bytes()
}

// EncodeActionRequestWithPBlock sends a continuation chunk for an
// already-opened block-transferred ACTION.
func EncodeActionRequestWithPBlock(invokeID byte, priority byte, last bool, blockNumber uint32, chunk []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(TagActionRequest))
	out.WriteByte(byte(ActionRequestWithPBlock))
	out.WriteByte(invokeID | priority)
	encodeBlockPrefix(&out, last, blockNumber)
	xdr.EncodeLength(&out, uint(len(chunk)))
	out.Write(chunk)
	return out.Bytes()
}

// EncodeActionRequestNextPBlock requests the next block of an in-progress
// ActionResponseWithPBlock return-value transfer, or acks a parameter chunk
// the server asked to continue — both reuse the same wire shape.
func EncodeActionRequestNextPBlock(invokeID byte, priority byte, blockNumber uint32) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(TagActionRequest))
	out.WriteByte(byte(ActionRequestNextPBlock))
	out.WriteByte(invokeID | priority)
	out.WriteByte(byte(blockNumber >> 24))
	out.WriteByte(byte(blockNumber >> 16))
	out.WriteByte(byte(blockNumber >> 8))
	out.WriteByte(byte(blockNumber))
	return out.Bytes()
}

func encodeMethodDescriptors(out *bytes.Buffer, items []MethodDescriptor) {
	xdr.EncodeLength(out, uint(len(items)))
	for _, d := range items {
		encodeMethodDescriptor(out, d)
	}
}

// EncodeActionRequestWithList builds a multi-method ACTION-Request-With-List
// APDU. parameters must be the same length as items; a nil entry means that
// method carries no parameter.
func EncodeActionRequestWithList(invokeID byte, priority byte, items []MethodDescriptor, parameters []*xdr.Data) ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte(byte(TagActionRequest))
	out.WriteByte(byte(ActionRequestWithList))
	out.WriteByte(invokeID | priority)
	encodeMethodDescriptors(&out, items)
	xdr.EncodeLength(&out, uint(len(parameters)))
	for _, p := range parameters {
		if p != nil {
			out.WriteByte(1)
			if err := xdr.EncodeInto(&out, *p); err != nil {
				return nil, err
			}
		} else {
			out.WriteByte(0)
		}
	}
	return out.Bytes(), nil
}

// EncodeActionRequestWithListAndFirstPBlock opens a block-transferred
// multi-method ACTION, carrying the first chunk of the concatenated
// A-XDR-encoded parameter list.
func EncodeActionRequestWithListAndFirstPBlock(invokeID byte, priority byte, items []MethodDescriptor, last bool, blockNumber uint32, chunk []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(TagActionRequest))
	out.WriteByte(byte(ActionRequestWithListAndFirstPBlock))
	out.WriteByte(invokeID | priority)
	encodeMethodDescriptors(&out, items)
	encodeBlockPrefix(&out, last, blockNumber)
	xdr.EncodeLength(&out, uint(len(chunk)))
	out.Write(chunk)
	return out.Bytes()
}

// ActionResult is the decoded outcome of an ACTION request: a result code
// and, for methods that return a value, the decoded Data.
type ActionResult struct {
	Result    AccessResultTag
	HasReturn bool
	Return    xdr.Data
}

// DecodeActionResponseNormal decodes an ActionResponseNormal body: a single
// result byte, optionally followed by a return-value flag and Data.
func DecodeActionResponseNormal(b []byte) (ActionResult, error) {
	if len(b) < 1 {
		return ActionResult{}, &Error{Kind: InconsistentLength, Context: "action-response-normal body is empty"}
	}
	res := ActionResult{Result: AccessResultTag(b[0])}
	if len(b) == 1 {
		return res, nil
	}
	b = b[1:]
	if len(b) < 1 || b[0] == 0 {
		return res, nil
	}
	b = b[1:]
	if len(b) < 1 {
		return ActionResult{}, &Error{Kind: InconsistentLength, Context: "action-response-normal missing choice byte"}
	}
	if b[0] != 0 {
		if len(b) < 2 {
			return ActionResult{}, &Error{Kind: InconsistentLength, Context: "action-response-normal missing result code"}
		}
		res.Result = AccessResultTag(b[1])
		return res, nil
	}
	d, err := xdr.Decode(bytes.NewReader(b[1:]))
	if err != nil {
		return ActionResult{}, err
	}
	res.HasReturn = true
	res.Return = d
	return res, nil
}

// DecodeActionResponseNextPBlockAck decodes the server's ack that it
// consumed a parameter chunk and expects the next one.
func DecodeActionResponseNextPBlockAck(b []byte) (blockNumber uint32, err error) {
	if len(b) < 4 {
		return 0, &Error{Kind: InconsistentLength, Context: "action-response-next-pblock body requires 4 bytes"}
	}
	return binary.BigEndian.Uint32(b), nil
}

// ActionBlockHeader is the last-block/block-number prefix that opens an
// ActionResponseWithPBlock chunk. Unlike GET's DataBlockHeader this carries
// no per-block result code: a return-value block transfer only fails as a
// whole, via ActionResponseNormal's result byte once reassembly is done.
type ActionBlockHeader struct {
	Last        bool
	BlockNumber uint32
}

// DecodeActionBlockHeader parses the fixed 5-byte header preceding an
// ActionResponseWithPBlock chunk's length-prefixed payload.
func DecodeActionBlockHeader(b []byte) (ActionBlockHeader, error) {
	if len(b) < 5 {
		return ActionBlockHeader{}, &Error{Kind: InconsistentLength, Context: "action-block header requires 5 bytes"}
	}
	return ActionBlockHeader{
		Last:        b[0] != 0,
		BlockNumber: uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4]),
	}, nil
}

// DecodeActionResponseWithList decodes an ActionResponseWithList body: a
// count prefix followed by that many ACTION results. Each is a result byte;
// only a success result is followed by a return-value flag and, when the
// flag is set, the Data itself. Unlike ActionResponseNormal there is no
// choice byte between the flag and the Data.
func DecodeActionResponseWithList(b []byte, expected int) ([]ActionResult, error) {
	r := bytes.NewReader(b)
	l, _, err := xdr.DecodeLength(r)
	if err != nil {
		return nil, err
	}
	if int(l) != expected {
		return nil, &Error{Kind: InconsistentLength, Context: fmt.Sprintf("expected %d results, list announces %d", expected, l)}
	}
	results := make([]ActionResult, expected)
	for i := 0; i < expected; i++ {
		var code [1]byte
		if _, err := r.Read(code[:]); err != nil {
			return nil, &Error{Kind: InconsistentLength, Cause: err}
		}
		res := ActionResult{Result: AccessResultTag(code[0])}
		if res.Result != ResultSuccess {
			results[i] = res
			continue
		}
		var hasReturn [1]byte
		if _, err := r.Read(hasReturn[:]); err != nil {
			return nil, &Error{Kind: InconsistentLength, Cause: err}
		}
		if hasReturn[0] != 0 {
			d, err := xdr.Decode(r)
			if err != nil {
				return nil, err
			}
			res.HasReturn = true
			res.Return = d
		}
		results[i] = res
	}
	return results, nil
}
