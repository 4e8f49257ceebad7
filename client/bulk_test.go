package client

import (
	"testing"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptors(n int) []apdu.GetDescriptor {
	out := make([]apdu.GetDescriptor, n)
	for i := range out {
		out[i] = apdu.GetDescriptor{ClassID: 1, Obis: xdr.Obis{A: 1, B: 0, C: byte(i + 1), D: 8, E: 0, F: 255}, Attribute: 2}
	}
	return out
}

func TestSession_ReadMultiple_SingleChunk(t *testing.T) {
	values := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(2)},
	}
	resp := buildGetResponseWithList(t, 1, values)
	s, stream := associatedSession(resp)

	results, err := s.ReadMultiple(descriptors(2))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(1), results[0].Data.Value)
	assert.Equal(t, uint32(2), results[1].Data.Value)
	require.Len(t, stream.writes, 1)
}

func TestSession_ReadMultiple_MultipleChunks(t *testing.T) {
	s, stream := associatedSession()
	s.settings.MaxAttributesPerRequest = 2

	values1 := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(2)},
	}
	values2 := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(3)},
	}
	stream.responses = [][]byte{
		buildGetResponseWithList(t, 1, values1),
		buildGetResponseWithList(t, 2, values2),
	}

	results, err := s.ReadMultiple(descriptors(3))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, uint32(3), results[2].Data.Value)
	require.Len(t, stream.writes, 2)
}

func TestSession_WriteMultiple_SingleChunk(t *testing.T) {
	resp := buildSetResponseWithList(1, []apdu.AccessResultTag{apdu.ResultSuccess, apdu.ResultSuccess})
	s, stream := associatedSession(resp)

	values := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(2)},
	}
	results, err := s.WriteMultiple(descriptors(2), values)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, apdu.ResultSuccess, results[0])
	require.Len(t, stream.writes, 1)
}

func TestSession_WriteMultiple_MismatchedLengths(t *testing.T) {
	s, _ := associatedSession()
	_, err := s.WriteMultiple(descriptors(2), []xdr.Data{{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1)}})
	require.Error(t, err)
}

func TestSession_ReadMultipleChunked_OverridesDefault(t *testing.T) {
	s, stream := associatedSession()

	values1 := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(2)},
	}
	values2 := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(3)},
	}
	stream.responses = [][]byte{
		buildGetResponseWithList(t, 1, values1),
		buildGetResponseWithList(t, 2, values2),
	}

	results, err := s.ReadMultipleChunked(descriptors(3), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, uint32(3), results[2].Data.Value)
	require.Len(t, stream.writes, 2)
}

func TestSession_WriteMultipleChunked_OverridesDefault(t *testing.T) {
	resp1 := buildSetResponseWithList(1, []apdu.AccessResultTag{apdu.ResultSuccess, apdu.ResultSuccess})
	resp2 := buildSetResponseWithList(2, []apdu.AccessResultTag{apdu.ResultSuccess})
	s, stream := associatedSession(resp1, resp2)

	values := []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(2)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(3)},
	}
	results, err := s.WriteMultipleChunked(descriptors(3), values, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Len(t, stream.writes, 2)
}
