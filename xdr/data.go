// Package xdr implements the A-XDR codec for the DLMS/COSEM value universe:
// the tagged Data union, OBIS identifiers, temporal types and the
// variable-length integer encoding that every higher layer builds on.
package xdr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// DataTag identifies the variant carried by a Data value, per DLMS UA 1000-2
// clause 4.1.5 (common data types).
type DataTag uint16

const (
	TagNull               DataTag = 0
	TagArray              DataTag = 1
	TagStructure          DataTag = 2
	TagBoolean            DataTag = 3
	TagBitString          DataTag = 4
	TagDoubleLong         DataTag = 5
	TagDoubleLongUnsigned DataTag = 6
	TagFloatingPoint      DataTag = 7
	TagOctetString        DataTag = 9
	TagVisibleString      DataTag = 10
	TagUTF8String         DataTag = 12
	TagBCD                DataTag = 13
	TagInteger            DataTag = 15
	TagLong               DataTag = 16
	TagUnsigned           DataTag = 17
	TagLongUnsigned       DataTag = 18
	TagCompactArray       DataTag = 19
	TagLong64             DataTag = 20
	TagLong64Unsigned     DataTag = 21
	TagEnum               DataTag = 22
	TagFloat32            DataTag = 23
	TagFloat64            DataTag = 24
	TagDateTime           DataTag = 25
	TagDate               DataTag = 26
	TagTime               DataTag = 27
	TagDontCare           DataTag = 255
)

// maxDepth bounds Structure/Array nesting so a malicious frame cannot drive
// the decoder into unbounded recursion (spec invariant: reject depth > 8).
const maxDepth = 8

// Data is the tagged union described in the value universe: every DLMS
// primitive plus the recursive Array/Structure containers.
type Data struct {
	Tag   DataTag
	Value interface{}
}

// Scratch is a reusable decode buffer threaded through the codec to avoid
// per-call allocation on the hot path, mirroring the teacher's tmpbuffer.
type Scratch [128]byte

// Decode reads one tagged Data value from src.
func Decode(src io.Reader) (Data, error) {
	var scratch Scratch
	d, _, err := decodeDataTag(src, &scratch, 0)
	return d, err
}

func decodeDataTag(src io.Reader, scratch *Scratch, depth int) (data Data, c int, err error) {
	_, err = io.ReadFull(src, scratch[:1])
	if err != nil {
		return data, 0, &CodecError{Kind: Truncated, Cause: err}
	}
	t := DataTag(scratch[0])
	data, c, err = decodeData(src, t, scratch, depth)
	return data, c + 1, err
}

func decodeDataArray(src io.Reader, tag DataTag, scratch *Scratch, depth int) (data Data, c int, err error) {
	if depth >= maxDepth {
		return data, 0, &CodecError{Kind: DepthExceeded}
	}
	l, c, err := decodeLength(src, scratch)
	if err != nil {
		return data, 0, err
	}
	d := make([]Data, l)
	for i := 0; i < int(l); i++ {
		var ii int
		d[i], ii, err = decodeDataTag(src, scratch, depth+1)
		if err != nil {
			return data, 0, err
		}
		c += ii
	}
	return Data{Tag: tag, Value: d}, c, nil
}

func decodeData(src io.Reader, tag DataTag, scratch *Scratch, depth int) (data Data, c int, err error) {
	switch tag {
	case TagNull:
		return Data{Tag: tag}, 0, nil
	case TagArray, TagStructure:
		return decodeDataArray(src, tag, scratch, depth)
	case TagBoolean:
		if _, err = io.ReadFull(src, scratch[:1]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: scratch[0] != 0}, 1, nil
	case TagBitString:
		return decodeBitString(src, tag, scratch)
	case TagDoubleLong:
		if _, err = io.ReadFull(src, scratch[:4]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		v := int32(binary.BigEndian.Uint32(scratch[:4]))
		return Data{Tag: tag, Value: v}, 4, nil
	case TagDoubleLongUnsigned:
		if _, err = io.ReadFull(src, scratch[:4]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: binary.BigEndian.Uint32(scratch[:4])}, 4, nil
	case TagFloatingPoint:
		if _, err = io.ReadFull(src, scratch[:4]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: math.Float32frombits(binary.BigEndian.Uint32(scratch[:4]))}, 4, nil
	case TagOctetString:
		return decodeOctetString(src, tag, scratch)
	case TagVisibleString:
		return decodeVisibleString(src, tag, scratch)
	case TagUTF8String:
		return decodeUTF8String(src, tag, scratch)
	case TagBCD:
		if _, err = io.ReadFull(src, scratch[:1]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		v := int(scratch[0]&0xf) + 10*(int(scratch[0]>>4)&7)
		if scratch[0]&0x80 != 0 {
			v = -v
		}
		return Data{Tag: tag, Value: int8(v)}, 1, nil
	case TagInteger:
		if _, err = io.ReadFull(src, scratch[:1]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: int8(scratch[0])}, 1, nil
	case TagLong:
		if _, err = io.ReadFull(src, scratch[:2]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: int16(binary.BigEndian.Uint16(scratch[:2]))}, 2, nil
	case TagUnsigned:
		if _, err = io.ReadFull(src, scratch[:1]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: scratch[0]}, 1, nil
	case TagLongUnsigned:
		if _, err = io.ReadFull(src, scratch[:2]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: binary.BigEndian.Uint16(scratch[:2])}, 2, nil
	case TagLong64:
		if _, err = io.ReadFull(src, scratch[:8]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: int64(binary.BigEndian.Uint64(scratch[:8]))}, 8, nil
	case TagLong64Unsigned:
		if _, err = io.ReadFull(src, scratch[:8]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: binary.BigEndian.Uint64(scratch[:8])}, 8, nil
	case TagEnum:
		if _, err = io.ReadFull(src, scratch[:1]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: scratch[0]}, 1, nil
	case TagFloat32:
		if _, err = io.ReadFull(src, scratch[:4]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: math.Float32frombits(binary.BigEndian.Uint32(scratch[:4]))}, 4, nil
	case TagFloat64:
		if _, err = io.ReadFull(src, scratch[:8]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: math.Float64frombits(binary.BigEndian.Uint64(scratch[:8]))}, 8, nil
	case TagDateTime:
		if _, err = io.ReadFull(src, scratch[:12]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		dt, _ := DateTimeFromBytes(scratch[:12])
		return Data{Tag: tag, Value: dt}, 12, nil
	case TagDate:
		if _, err = io.ReadFull(src, scratch[:5]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: dateFromBytes(scratch[:5])}, 5, nil
	case TagTime:
		if _, err = io.ReadFull(src, scratch[:4]); err != nil {
			return data, 0, &CodecError{Kind: Truncated, Cause: err}
		}
		return Data{Tag: tag, Value: timeFromBytes(scratch[:4])}, 4, nil
	}
	return data, 0, &CodecError{Kind: UnexpectedTag, Tag: byte(tag)}
}

func decodeBitString(src io.Reader, tag DataTag, scratch *Scratch) (Data, int, error) {
	l, c, err := decodeLength(src, scratch)
	if err != nil {
		return Data{}, 0, err
	}
	blen := (l + 7) >> 3
	buf := make([]byte, blen)
	if _, err = io.ReadFull(src, buf); err != nil {
		return Data{}, 0, &CodecError{Kind: Truncated, Cause: err}
	}
	val := make([]bool, l)
	off := uint(0)
	for i := uint(0); i < blen && off < l; i++ {
		for j := uint(0); j < 8 && off < l; j++ {
			val[off] = buf[i]&(1<<(7-j)) != 0
			off++
		}
	}
	return Data{Tag: tag, Value: val}, c + int(blen), nil
}

func decodeOctetString(src io.Reader, tag DataTag, scratch *Scratch) (Data, int, error) {
	l, c, err := decodeLength(src, scratch)
	if err != nil {
		return Data{}, 0, err
	}
	v := make([]byte, l)
	if _, err = io.ReadFull(src, v); err != nil {
		return Data{}, 0, &CodecError{Kind: Truncated, Cause: err}
	}
	return Data{Tag: tag, Value: v}, c + int(l), nil
}

func decodeVisibleString(src io.Reader, tag DataTag, scratch *Scratch) (Data, int, error) {
	l, c, err := decodeLength(src, scratch)
	if err != nil {
		return Data{}, 0, err
	}
	v := make([]byte, l)
	if _, err = io.ReadFull(src, v); err != nil {
		return Data{}, 0, &CodecError{Kind: Truncated, Cause: err}
	}
	return Data{Tag: tag, Value: string(v)}, c + int(l), nil
}

func decodeUTF8String(src io.Reader, tag DataTag, scratch *Scratch) (Data, int, error) {
	l, c, err := decodeLength(src, scratch)
	if err != nil {
		return Data{}, 0, err
	}
	reader := bufio.NewReader(io.LimitReader(src, int64(l)))
	var sb strings.Builder
	for uint(sb.Len()) < l {
		r, _, err := reader.ReadRune()
		if r == utf8.RuneError || err != nil {
			return Data{}, 0, &CodecError{Kind: InvalidLength, Cause: fmt.Errorf("invalid utf-8 content")}
		}
		sb.WriteRune(r)
	}
	return Data{Tag: tag, Value: sb.String()}, c + int(l), nil
}

// Encode serializes a Data value: tag byte followed by its A-XDR payload.
func Encode(d Data) ([]byte, error) {
	var out bytes.Buffer
	if err := EncodeInto(&out, d); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeInto writes d's tag and payload into out, for callers assembling a
// larger APDU without an intermediate allocation.
func EncodeInto(out *bytes.Buffer, d Data) error {
	out.WriteByte(byte(d.Tag))
	return encodeNoTag(out, d)
}

func encodeNoTag(out *bytes.Buffer, d Data) error {
	switch d.Tag {
	case TagNull:
		return nil
	case TagArray, TagStructure:
		return encodeContainer(out, d)
	case TagBoolean:
		return encodeInt(out, d, 1)
	case TagBitString:
		return encodeBitString(out, d)
	case TagDoubleLong, TagDoubleLongUnsigned:
		return encodeInt(out, d, 4)
	case TagFloatingPoint:
		return encodeFloat(out, d, 4)
	case TagOctetString:
		return encodeOctetString(out, d)
	case TagVisibleString, TagUTF8String:
		return encodeVisibleString(out, d)
	case TagBCD:
		return encodeBCD(out, d)
	case TagInteger, TagUnsigned:
		return encodeInt(out, d, 1)
	case TagLong, TagLongUnsigned:
		return encodeInt(out, d, 2)
	case TagLong64, TagLong64Unsigned:
		return encodeInt(out, d, 8)
	case TagEnum:
		return encodeInt(out, d, 1)
	case TagFloat32:
		return encodeFloat(out, d, 4)
	case TagFloat64:
		return encodeFloat(out, d, 8)
	case TagDateTime:
		return encodeDateTimeValue(out, d)
	case TagDate:
		return encodeDateValue(out, d)
	case TagTime:
		return encodeTimeValue(out, d)
	default:
		return &CodecError{Kind: UnexpectedTag, Tag: byte(d.Tag)}
	}
}

func encodeContainer(out *bytes.Buffer, d Data) error {
	if d.Value == nil {
		EncodeLength(out, 0)
		return nil
	}
	items, ok := d.Value.([]Data)
	if !ok {
		return fmt.Errorf("xdr: unsupported container payload %T", d.Value)
	}
	EncodeLength(out, uint(len(items)))
	for _, v := range items {
		if err := EncodeInto(out, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeBCD(out *bytes.Buffer, d Data) error {
	lr, err := asInt64(d.Value)
	if err != nil {
		return err
	}
	b := byte(((lr/10)%10)<<4) | byte(lr%10)
	if lr < 0 {
		b |= 0x80
	}
	out.WriteByte(b)
	return nil
}

func encodeVisibleString(out *bytes.Buffer, d Data) error {
	s, ok := d.Value.(string)
	if !ok {
		return fmt.Errorf("xdr: unsupported string payload %T", d.Value)
	}
	EncodeLength(out, uint(len(s)))
	out.WriteString(s)
	return nil
}

func encodeOctetString(out *bytes.Buffer, d Data) error {
	switch v := d.Value.(type) {
	case []byte:
		EncodeLength(out, uint(len(v)))
		out.Write(v)
	case DateTime:
		EncodeLength(out, 12)
		writeDateTime(out, v)
	case Obis:
		EncodeLength(out, 6)
		out.Write(v.Bytes())
	case time.Time:
		EncodeLength(out, 12)
		writeDateTime(out, NewDateTime(v))
	default:
		return fmt.Errorf("xdr: unsupported octet-string payload %T", d.Value)
	}
	return nil
}

func encodeFloat(out *bytes.Buffer, d Data, width int) error {
	switch v := d.Value.(type) {
	case float32:
		if width == 8 {
			return binary.Write(out, binary.BigEndian, float64(v))
		}
		return binary.Write(out, binary.BigEndian, v)
	case float64:
		if width == 4 {
			return binary.Write(out, binary.BigEndian, float32(v))
		}
		return binary.Write(out, binary.BigEndian, v)
	default:
		return fmt.Errorf("xdr: unsupported float payload %T", d.Value)
	}
}

func encodeBitString(out *bytes.Buffer, d Data) error {
	var bits []bool
	switch v := d.Value.(type) {
	case []bool:
		bits = v
	case string:
		bits = make([]bool, len(v))
		for i, c := range v {
			switch c {
			case '0':
			case '1':
				bits[i] = true
			default:
				return fmt.Errorf("xdr: invalid bitstring character %q", c)
			}
		}
	default:
		return fmt.Errorf("xdr: unsupported bitstring payload %T", d.Value)
	}
	res := make([]byte, (len(bits)+7)>>3)
	for i, b := range bits {
		if b {
			res[i>>3] |= 1 << (7 - uint(i&7))
		}
	}
	EncodeLength(out, uint(len(bits)))
	out.Write(res)
	return nil
}

func encodeInt(out *bytes.Buffer, d Data, width int) error {
	var lr uint64
	switch v := d.Value.(type) {
	case bool:
		if v {
			lr = 1
		}
	case uint:
		lr = uint64(v)
	case uint8:
		lr = uint64(v)
	case uint16:
		lr = uint64(v)
	case uint32:
		lr = uint64(v)
	case uint64:
		lr = v
	case int:
		lr = uint64(int64(v))
	case int8:
		lr = uint64(int64(v))
	case int16:
		lr = uint64(int64(v))
	case int32:
		lr = uint64(int64(v))
	case int64:
		lr = uint64(v)
	default:
		return fmt.Errorf("xdr: unsupported integer payload %T", d.Value)
	}
	switch width {
	case 1:
		out.WriteByte(byte(lr))
	case 2:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(lr))
		out.Write(b[:])
	case 4:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(lr))
		out.Write(b[:])
	case 8:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], lr)
		out.Write(b[:])
	default:
		return fmt.Errorf("xdr: invalid integer width %d", width)
	}
	return nil
}

func asInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("xdr: unsupported BCD payload %T", v)
	}
}

func encodeDateTimeValue(out *bytes.Buffer, d Data) error {
	switch v := d.Value.(type) {
	case DateTime:
		writeDateTime(out, v)
	case time.Time:
		writeDateTime(out, NewDateTime(v))
	default:
		return fmt.Errorf("xdr: unsupported datetime payload %T", d.Value)
	}
	return nil
}

func encodeDateValue(out *bytes.Buffer, d Data) error {
	v, ok := d.Value.(Date)
	if !ok {
		return fmt.Errorf("xdr: unsupported date payload %T", d.Value)
	}
	writeDate(out, v)
	return nil
}

func encodeTimeValue(out *bytes.Buffer, d Data) error {
	v, ok := d.Value.(Time)
	if !ok {
		return fmt.Errorf("xdr: unsupported time payload %T", d.Value)
	}
	writeTime(out, v)
	return nil
}
