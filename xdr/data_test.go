package xdr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Scalar round-trips
// ============================================================================

func TestDecodeEncode_Scalars(t *testing.T) {
	cases := []struct {
		name string
		d    Data
	}{
		{"null", Data{Tag: TagNull}},
		{"boolean-true", Data{Tag: TagBoolean, Value: true}},
		{"unsigned", Data{Tag: TagUnsigned, Value: uint8(200)}},
		{"long-unsigned", Data{Tag: TagLongUnsigned, Value: uint16(60000)}},
		{"double-long", Data{Tag: TagDoubleLong, Value: int32(-12345)}},
		{"double-long-unsigned", Data{Tag: TagDoubleLongUnsigned, Value: uint32(4000000000)}},
		{"long64", Data{Tag: TagLong64, Value: int64(-9000000000)}},
		{"long64-unsigned", Data{Tag: TagLong64Unsigned, Value: uint64(9000000000)}},
		{"enum", Data{Tag: TagEnum, Value: uint8(3)}},
		{"float32", Data{Tag: TagFloat32, Value: float32(3.5)}},
		{"float64", Data{Tag: TagFloat64, Value: float64(-2.25)}},
		{"octet-string", Data{Tag: TagOctetString, Value: []byte{1, 2, 3, 4}}},
		{"visible-string", Data{Tag: TagVisibleString, Value: "hello"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.d)
			require.NoError(t, err)

			decoded, err := Decode(bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, tc.d.Tag, decoded.Tag)
			assert.Equal(t, tc.d.Value, decoded.Value)
		})
	}
}

func TestDecodeEncode_StructureOfScalars(t *testing.T) {
	d := Data{Tag: TagStructure, Value: []Data{
		{Tag: TagOctetString, Value: []byte{1, 0, 1, 8, 0, 255}},
		{Tag: TagDoubleLongUnsigned, Value: uint32(1234)},
		{Tag: TagEnum, Value: uint8(30)},
	}}

	encoded, err := Encode(d)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, TagStructure, decoded.Tag)
	items, ok := decoded.Value.([]Data)
	require.True(t, ok)
	require.Len(t, items, 3)
	assert.Equal(t, []byte{1, 0, 1, 8, 0, 255}, items[0].Value)
	assert.Equal(t, uint32(1234), items[1].Value)
	assert.Equal(t, uint8(30), items[2].Value)
}

func TestDecodeEncode_NestedArray(t *testing.T) {
	d := Data{Tag: TagArray, Value: []Data{
		{Tag: TagStructure, Value: []Data{{Tag: TagUnsigned, Value: uint8(1)}}},
		{Tag: TagStructure, Value: []Data{{Tag: TagUnsigned, Value: uint8(2)}}},
	}}

	encoded, err := Encode(d)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	items := decoded.Value.([]Data)
	require.Len(t, items, 2)
	assert.Equal(t, uint8(1), items[0].Value.([]Data)[0].Value)
	assert.Equal(t, uint8(2), items[1].Value.([]Data)[0].Value)
}

func TestDecode_DepthExceeded(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(TagArray))
	for i := 0; i < maxDepth+2; i++ {
		buf.WriteByte(1) // one-element array
		buf.WriteByte(byte(TagArray))
	}
	buf.WriteByte(0) // innermost empty array's length

	_, err := Decode(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, DepthExceeded, codecErr.Kind)
}

func TestDecode_Truncated(t *testing.T) {
	encoded, err := Encode(Data{Tag: TagDoubleLongUnsigned, Value: uint32(1)})
	require.NoError(t, err)

	_, err = Decode(bytes.NewReader(encoded[:len(encoded)-1]))
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, Truncated, codecErr.Kind)
}

func TestDecode_UnknownTag(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xfe}))
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, UnexpectedTag, codecErr.Kind)
}

func TestDecodeEncode_DateTime(t *testing.T) {
	dt := DateTime{
		Date:      Date{Year: 2024, Month: 6, Day: 15, DayOfWeek: 6},
		Time:      Time{Hour: 13, Minute: 30, Second: 0, Hundredths: 0},
		Deviation: -60,
		Status:    0,
	}
	d := Data{Tag: TagDateTime, Value: dt}

	encoded, err := Encode(d)
	require.NoError(t, err)
	assert.Len(t, encoded, 13) // tag byte + 12-byte wire form, no length prefix

	decoded, err := Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, dt, decoded.Value)
}

func TestDecodeEncode_BitString(t *testing.T) {
	d := Data{Tag: TagBitString, Value: []bool{true, false, true, true, false}}

	encoded, err := Encode(d)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true, false}, decoded.Value)
}
