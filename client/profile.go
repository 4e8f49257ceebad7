package client

import (
	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/xdr"
)

const (
	classIDProfileGeneric = 7
	attributeBuffer       = 2
)

// ClockObis is the standard system-clock instance (0-0:1.0.0.255) used as
// the default restricting object for a load-profile range read.
var ClockObis = xdr.Obis{A: 0, B: 0, C: 1, D: 0, E: 0, F: 255}

// ReadLoadProfile issues a GET against the buffer attribute of a
// ProfileGeneric instance, restricted by a RangeDescriptor over
// restrictingObject between from and to, returning the parsed Array of
// rows. Pass columns to request only specific capture objects; nil returns
// every column the profile captures.
func (s *Session) ReadLoadProfile(obis xdr.Obis, restrictingObject apdu.CaptureObject, from, to xdr.DateTime, columns []apdu.CaptureObject, buf Buffer) (xdr.Data, error) {
	rd := apdu.RangeDescriptor{
		RestrictingObject: restrictingObject,
		From:              from,
		To:                to,
		Columns:           columns,
	}

	d := apdu.GetDescriptor{
		ClassID:          classIDProfileGeneric,
		Obis:             obis,
		Attribute:        attributeBuffer,
		HasAccess:        true,
		AccessDescriptor: byte(apdu.AccessDescriptorRange),
		AccessData:       rd.Encode(),
	}
	return s.Get(d, buf)
}

// ReadLoadProfileEntries is the row/column-index counterpart of
// ReadLoadProfile, using an EntryDescriptor (selector 2) instead of a
// capture-time range.
func (s *Session) ReadLoadProfileEntries(obis xdr.Obis, entries apdu.EntryDescriptor, buf Buffer) (xdr.Data, error) {
	d := apdu.GetDescriptor{
		ClassID:          classIDProfileGeneric,
		Obis:             obis,
		Attribute:        attributeBuffer,
		HasAccess:        true,
		AccessDescriptor: byte(apdu.AccessDescriptorEntry),
		AccessData:       entries.Encode(),
	}
	return s.Get(d, buf)
}
