package client

import (
	"fmt"
	"time"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/xdr"
)

const (
	classIDClock       = 8
	attributeClockTime = 2
)

// ReadClock reads attribute 2 (time) of the Clock instance at obis.
func (s *Session) ReadClock(obis xdr.Obis) (xdr.DateTime, error) {
	d := apdu.GetDescriptor{
		ClassID:   classIDClock,
		Obis:      obis,
		Attribute: attributeClockTime,
	}
	val, err := s.Get(d, nil)
	if err != nil {
		return xdr.DateTime{}, err
	}
	dt, ok := val.Value.(xdr.DateTime)
	if !ok {
		return xdr.DateTime{}, fmt.Errorf("client: clock attribute is not a date-time (tag %d)", val.Tag)
	}
	return dt, nil
}

// SetClock writes attribute 2 (time) of the Clock instance at obis.
func (s *Session) SetClock(obis xdr.Obis, dt xdr.DateTime) error {
	d := apdu.GetDescriptor{
		ClassID:   classIDClock,
		Obis:      obis,
		Attribute: attributeClockTime,
	}
	return s.Set(d, xdr.Data{Tag: xdr.TagDateTime, Value: dt}, 0)
}

// now returns the session's injected clock, defaulting to time.Now when
// Settings.Clock was left nil (e.g. a Settings built without NewSettings).
func (s *Session) now() time.Time {
	if s.settings.Clock == nil {
		return time.Now()
	}
	return s.settings.Clock()
}

// SetClockNow writes the Clock instance at obis to the session's current
// time, per the injected Settings.Clock rather than calling time.Now
// directly so tests can substitute a fixed clock.
func (s *Session) SetClockNow(obis xdr.Obis) error {
	return s.SetClock(obis, xdr.NewDateTime(s.now()))
}
