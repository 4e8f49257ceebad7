package apdu

import "github.com/dlms-go/dlmscosem/xdr"

// AccessDescriptorType discriminates the two selective-access shapes a GET
// request can carry.
type AccessDescriptorType byte

const (
	AccessDescriptorRange AccessDescriptorType = 1
	AccessDescriptorEntry AccessDescriptorType = 2
)

// CaptureObject names one column of a profile buffer: the interface class,
// OBIS, attribute and, for register-like attributes, a data-index.
type CaptureObject struct {
	ClassID    uint16
	Obis       xdr.Obis
	Attribute  int8
	DataIndex  uint16
}

// Encode renders a CaptureObject as the wire Structure{LongUnsigned,
// OctetString, Integer, LongUnsigned} DLMS uses for capture objects.
func (c CaptureObject) Encode() xdr.Data {
	return xdr.Data{Tag: xdr.TagStructure, Value: []xdr.Data{
		{Tag: xdr.TagLongUnsigned, Value: c.ClassID},
		{Tag: xdr.TagOctetString, Value: c.Obis},
		{Tag: xdr.TagInteger, Value: c.Attribute},
		{Tag: xdr.TagLongUnsigned, Value: c.DataIndex},
	}}
}

func decodeCaptureObject(d xdr.Data) (CaptureObject, error) {
	var c CaptureObject
	if err := xdr.Cast(&struct {
		ClassID   *uint16
		Obis      *xdr.Obis
		Attribute *int8
		DataIndex *uint16
	}{&c.ClassID, &c.Obis, &c.Attribute, &c.DataIndex}, d); err != nil {
		return CaptureObject{}, err
	}
	return c, nil
}

// RangeDescriptor restricts a profile-generic GET to entries whose
// restricting column falls within [From, To]; a nil Columns means all
// columns are returned.
type RangeDescriptor struct {
	RestrictingObject CaptureObject
	From              xdr.DateTime
	To                xdr.DateTime
	Columns           []CaptureObject
}

// Encode renders the Structure{Structure{4}, OctetString, OctetString,
// Array} selective-access body GET-Request-Normal embeds; the access
// selector byte is not part of it and is carried separately by
// GetDescriptor.AccessDescriptor.
func (r RangeDescriptor) Encode() xdr.Data {
	cols := make([]xdr.Data, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = c.Encode()
	}
	return xdr.Data{Tag: xdr.TagStructure, Value: []xdr.Data{
		r.RestrictingObject.Encode(),
		{Tag: xdr.TagOctetString, Value: r.From},
		{Tag: xdr.TagOctetString, Value: r.To},
		{Tag: xdr.TagArray, Value: cols},
	}}
}

// DecodeRangeDescriptor parses a selective-access body previously produced
// by Encode.
func DecodeRangeDescriptor(d xdr.Data) (RangeDescriptor, error) {
	elems, ok := d.Value.([]xdr.Data)
	if !ok || len(elems) != 4 {
		return RangeDescriptor{}, &Error{Kind: InvalidField, Context: "range-descriptor must be a 4-element structure"}
	}
	restricting, err := decodeCaptureObject(elems[0])
	if err != nil {
		return RangeDescriptor{}, err
	}
	from, err := xdr.DateTimeFromBytes(asOctets(elems[1]))
	if err != nil {
		return RangeDescriptor{}, err
	}
	to, err := xdr.DateTimeFromBytes(asOctets(elems[2]))
	if err != nil {
		return RangeDescriptor{}, err
	}
	colData, _ := elems[3].Value.([]xdr.Data)
	cols := make([]CaptureObject, len(colData))
	for i, cd := range colData {
		c, err := decodeCaptureObject(cd)
		if err != nil {
			return RangeDescriptor{}, err
		}
		cols[i] = c
	}
	return RangeDescriptor{RestrictingObject: restricting, From: from, To: to, Columns: cols}, nil
}

func asOctets(d xdr.Data) []byte {
	switch v := d.Value.(type) {
	case []byte:
		return v
	case xdr.DateTime:
		return v.Bytes()
	default:
		return nil
	}
}

// EntryDescriptor restricts a profile-generic GET to a range of entry
// numbers and, optionally, a sub-range of columns. Numbering starts at 1;
// ToEntry/ToSelectedValue of 0 means "highest possible".
type EntryDescriptor struct {
	FromEntry         uint32
	ToEntry           uint32
	FromSelectedValue uint16
	ToSelectedValue   uint16
}

// Encode renders the Structure{DoubleLongUnsigned, DoubleLongUnsigned,
// LongUnsigned, LongUnsigned} entry-descriptor body.
func (e EntryDescriptor) Encode() xdr.Data {
	return xdr.Data{Tag: xdr.TagStructure, Value: []xdr.Data{
		{Tag: xdr.TagDoubleLongUnsigned, Value: e.FromEntry},
		{Tag: xdr.TagDoubleLongUnsigned, Value: e.ToEntry},
		{Tag: xdr.TagLongUnsigned, Value: e.FromSelectedValue},
		{Tag: xdr.TagLongUnsigned, Value: e.ToSelectedValue},
	}}
}

// DecodeEntryDescriptor parses a selective-access body previously produced
// by Encode.
func DecodeEntryDescriptor(d xdr.Data) (EntryDescriptor, error) {
	var e EntryDescriptor
	if err := xdr.Cast(&struct {
		FromEntry         *uint32
		ToEntry           *uint32
		FromSelectedValue *uint16
		ToSelectedValue   *uint16
	}{&e.FromEntry, &e.ToEntry, &e.FromSelectedValue, &e.ToSelectedValue}, d); err != nil {
		return EntryDescriptor{}, err
	}
	return e, nil
}
