package xdr

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Date is the DLMS date-of-month type (clause 4.1.6.1); 0xFF/0xFFFF fields
// are wildcards that round-trip unmodified.
type Date struct {
	Year      uint16
	Month     byte
	Day       byte
	DayOfWeek byte
}

// Time is the DLMS time-of-day type; each field is independently
// wildcardable with 0xFF.
type Time struct {
	Hour       byte
	Minute     byte
	Second     byte
	Hundredths byte
}

// InvalidDeviation is the DLMS sentinel for "timezone unspecified".
const InvalidDeviation int16 = -32768 // 0x8000

// DateTime is Date ∥ Time ∥ signed UTC-offset-in-minutes ∥ status byte.
type DateTime struct {
	Date      Date
	Time      Time
	Deviation int16
	Status    byte
}

func dateFromBytes(b []byte) Date {
	return Date{Year: uint16(b[0])<<8 | uint16(b[1]), Month: b[2], Day: b[3], DayOfWeek: b[4]}
}

func timeFromBytes(b []byte) Time {
	return Time{Hour: b[0], Minute: b[1], Second: b[2], Hundredths: b[3]}
}

// DateTimeFromBytes decodes a 12-byte wire representation.
func DateTimeFromBytes(b []byte) (DateTime, error) {
	if len(b) < 12 {
		return DateTime{}, fmt.Errorf("xdr: datetime requires 12 bytes, got %d", len(b))
	}
	return DateTime{
		Date:      dateFromBytes(b[:5]),
		Time:      timeFromBytes(b[5:9]),
		Deviation: int16(uint16(b[9])<<8 | uint16(b[10])),
		Status:    b[11],
	}, nil
}

func writeDate(out *bytes.Buffer, d Date) {
	out.WriteByte(byte(d.Year >> 8))
	out.WriteByte(byte(d.Year))
	out.WriteByte(d.Month)
	out.WriteByte(d.Day)
	out.WriteByte(d.DayOfWeek)
}

func writeTime(out *bytes.Buffer, t Time) {
	out.WriteByte(t.Hour)
	out.WriteByte(t.Minute)
	out.WriteByte(t.Second)
	out.WriteByte(t.Hundredths)
}

func writeDateTime(out *bytes.Buffer, dt DateTime) {
	writeDate(out, dt.Date)
	writeTime(out, dt.Time)
	out.WriteByte(byte(dt.Deviation >> 8))
	out.WriteByte(byte(dt.Deviation))
	out.WriteByte(dt.Status)
}

// Bytes renders the 12-byte wire form without a length prefix.
func (dt DateTime) Bytes() []byte {
	var buf bytes.Buffer
	writeDateTime(&buf, dt)
	return buf.Bytes()
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%02d UTC%+03d status=%02x",
		dt.Date.Year, dt.Date.Month, dt.Date.Day,
		dt.Time.Hour, dt.Time.Minute, dt.Time.Second, dt.Time.Hundredths, dt.Deviation, dt.Status)
}

// AsTime converts to a Go time.Time, failing if any field carries a wildcard
// that makes the value ambiguous.
func (dt DateTime) AsTime() (time.Time, error) {
	if dt.Date.Year == 0xffff || dt.Date.Month == 0xff || dt.Date.Day == 0xff || dt.Time.Hour == 0xff || dt.Time.Minute == 0xff {
		return time.Time{}, fmt.Errorf("xdr: datetime has wildcard fields, cannot convert")
	}
	ns := 0
	if dt.Time.Hundredths != 0xff {
		ns = int(dt.Time.Hundredths) * 10000000
	}
	dev := 0
	if dt.Deviation != InvalidDeviation {
		dev = int(dt.Deviation)
	}
	return time.Date(int(dt.Date.Year), time.Month(dt.Date.Month), int(dt.Date.Day),
		int(dt.Time.Hour), int(dt.Time.Minute), int(dt.Time.Second), ns,
		time.FixedZone("", dev*60)), nil
}

// NewDateTime converts a Go time.Time into a DLMS DateTime, taking the
// timezone offset from src.
func NewDateTime(src time.Time) DateTime {
	wd := byte(src.Weekday())
	if wd == 0 {
		wd = 7
	}
	_, off := src.Zone()
	return DateTime{
		Date:      Date{Year: uint16(src.Year()), Month: byte(src.Month()), Day: byte(src.Day()), DayOfWeek: wd},
		Time:      Time{Hour: byte(src.Hour()), Minute: byte(src.Minute()), Second: byte(src.Second()), Hundredths: byte(src.Nanosecond() / 10000000)},
		Deviation: int16(off / 60),
	}
}

// Now builds a DateTime from the given clock, the injected system-time
// collaborator (spec.md §6.2).
func Now(clock func() time.Time) DateTime {
	if clock == nil {
		clock = time.Now
	}
	return NewDateTime(clock())
}

// Obis is the six-byte A.B.C.D.E.F object identifier.
type Obis struct {
	A, B, C, D, E, F byte
}

// ObisField bitmasks report which components a parsed OBIS string literal
// actually specified, for resolvers that default missing components.
const (
	ObisHasA = 0x20
	ObisHasB = 0x10
	ObisHasC = 0x08
	ObisHasD = 0x04
	ObisHasE = 0x02
	ObisHasF = 0x01
)

func (o Obis) String() string {
	return fmt.Sprintf("%d-%d:%d.%d.%d.%d", o.A, o.B, o.C, o.D, o.E, o.F)
}

// Bytes renders the bare six bytes (no tag, no length).
func (o Obis) Bytes() []byte {
	return []byte{o.A, o.B, o.C, o.D, o.E, o.F}
}

// Equal reports whether the two identifiers name the same quantity.
func (o Obis) Equal(other Obis) bool {
	return o == other
}

// ObisFromBytes parses a bare six-byte OBIS identifier.
func ObisFromBytes(b []byte) (Obis, error) {
	if len(b) < 6 {
		return Obis{}, fmt.Errorf("xdr: obis requires 6 bytes, got %d", len(b))
	}
	return Obis{A: b[0], B: b[1], C: b[2], D: b[3], E: b[4], F: b[5]}, nil
}

var stdObisRegex = regexp.MustCompile(`^((\d+)-(\d+):)?(\d+)\.(\d+)(\.(\d+)([\.*](\d+))?)?$`)
var dotObisRegex = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)\.(\d+)\.(\d+)(\.(\d+))?$`)

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		panic(err) // the regex already validated the format
	}
	return i
}

// ParseObis parses a DLMS OBIS code from its canonical "1-0:1.8.0.255"
// string form, or the dotted "1.0.1.8.0.255" variant.
func ParseObis(src string) (Obis, error) {
	ob, _, err := ParseObisComponents(src)
	return ob, err
}

// ParseObisComponents parses src and additionally reports, via the returned
// bitmask (see ObisHas*), which components were present in the literal.
func ParseObisComponents(src string) (ob Obis, components int, err error) {
	var a, b, c, d, e, f int
	components = ObisHasC | ObisHasD
	m := stdObisRegex.FindStringSubmatch(src)
	if m == nil {
		m = dotObisRegex.FindStringSubmatch(src)
		if m == nil {
			return ob, 0, fmt.Errorf("xdr: invalid obis literal %q", src)
		}
		a, b = mustAtoi(m[1]), mustAtoi(m[2])
		components |= ObisHasA | ObisHasB | ObisHasE
		c, d, e = mustAtoi(m[3]), mustAtoi(m[4]), mustAtoi(m[5])
		f = 255
		if len(m[6]) > 0 {
			f = mustAtoi(m[7])
			components |= ObisHasF
		}
	} else {
		if len(m[1]) > 0 {
			a, b = mustAtoi(m[2]), mustAtoi(m[3])
			components |= ObisHasA | ObisHasB
		}
		c, d = mustAtoi(m[4]), mustAtoi(m[5])
		e, f = 255, 255
		if len(m[6]) > 0 {
			e = mustAtoi(m[7])
			components |= ObisHasE
			if len(m[8]) > 0 {
				f = mustAtoi(m[9])
				components |= ObisHasF
			}
		}
	}
	if a > 255 || b > 255 || c > 255 || d > 255 || e > 255 || f > 255 {
		return ob, 0, fmt.Errorf("xdr: obis component out of range in %q", src)
	}
	return Obis{A: byte(a), B: byte(b), C: byte(c), D: byte(d), E: byte(e), F: byte(f)}, components, nil
}
