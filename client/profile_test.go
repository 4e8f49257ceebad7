package client

import (
	"testing"
	"time"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedProfileTime = time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC)

func TestSession_ReadLoadProfile(t *testing.T) {
	row := xdr.Data{Tag: xdr.TagStructure, Value: []xdr.Data{
		{Tag: xdr.TagDateTime, Value: xdr.NewDateTime(fixedProfileTime)},
		{Tag: xdr.TagDoubleLongUnsigned, Value: uint32(1234)},
	}}
	result := xdr.Data{Tag: xdr.TagArray, Value: []xdr.Data{row}}

	resp := buildGetResponseNormal(t, 1, result)
	stream := newFakeStream(resp)
	s := NewSession(stream, newTestSettings())
	s.state = Associated

	profileObis := xdr.Obis{A: 1, B: 0, C: 99, D: 1, E: 0, F: 255}
	restricting := apdu.CaptureObject{ClassID: 8, Obis: ClockObis, Attribute: 2}
	from := xdr.NewDateTime(fixedProfileTime)
	to := xdr.NewDateTime(fixedProfileTime)

	got, err := s.ReadLoadProfile(profileObis, restricting, from, to, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, xdr.TagArray, got.Tag)
	require.Len(t, stream.writes, 1)
}

func TestSession_ReadLoadProfileEntries(t *testing.T) {
	result := xdr.Data{Tag: xdr.TagArray, Value: []xdr.Data{}}
	resp := buildGetResponseNormal(t, 1, result)
	stream := newFakeStream(resp)
	s := NewSession(stream, newTestSettings())
	s.state = Associated

	profileObis := xdr.Obis{A: 1, B: 0, C: 99, D: 1, E: 0, F: 255}
	entries := apdu.EntryDescriptor{FromEntry: 1, ToEntry: 10}

	got, err := s.ReadLoadProfileEntries(profileObis, entries, nil)
	require.NoError(t, err)
	assert.Equal(t, xdr.TagArray, got.Tag)
}
