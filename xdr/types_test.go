package xdr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Obis parsing
// ============================================================================

func TestParseObis_DottedForm(t *testing.T) {
	ob, err := ParseObis("1.0.1.8.0.255")
	require.NoError(t, err)
	assert.Equal(t, Obis{A: 1, B: 0, C: 1, D: 8, E: 0, F: 255}, ob)
}

func TestParseObis_CanonicalForm(t *testing.T) {
	ob, err := ParseObis("1-0:1.8.0.255")
	require.NoError(t, err)
	assert.Equal(t, Obis{A: 1, B: 0, C: 1, D: 8, E: 0, F: 255}, ob)
}

func TestParseObis_ShortFormDefaultsWildcards(t *testing.T) {
	ob, components, err := ParseObisComponents("1.8")
	require.NoError(t, err)
	assert.Equal(t, Obis{A: 0, B: 0, C: 1, D: 8, E: 255, F: 255}, ob)
	assert.NotZero(t, components&ObisHasC)
	assert.NotZero(t, components&ObisHasD)
	assert.Zero(t, components&ObisHasA)
}

func TestParseObis_Invalid(t *testing.T) {
	_, err := ParseObis("not-an-obis")
	assert.Error(t, err)
}

func TestParseObis_ComponentOutOfRange(t *testing.T) {
	_, err := ParseObis("1.0.1.8.0.999")
	assert.Error(t, err)
}

func TestObis_RoundTripBytes(t *testing.T) {
	ob := Obis{A: 1, B: 0, C: 99, D: 7, E: 0, F: 255}
	parsed, err := ObisFromBytes(ob.Bytes())
	require.NoError(t, err)
	assert.True(t, ob.Equal(parsed))
}

// ============================================================================
// DateTime conversions
// ============================================================================

func TestNewDateTime_RoundTripsThroughAsTime(t *testing.T) {
	loc := time.FixedZone("", 120*60)
	src := time.Date(2025, time.March, 10, 8, 15, 30, 250000000, loc)

	dt := NewDateTime(src)
	back, err := dt.AsTime()
	require.NoError(t, err)

	assert.Equal(t, src.Year(), back.Year())
	assert.Equal(t, src.Month(), back.Month())
	assert.Equal(t, src.Day(), back.Day())
	assert.Equal(t, src.Hour(), back.Hour())
	assert.Equal(t, src.Minute(), back.Minute())
	assert.Equal(t, src.Second(), back.Second())
}

func TestDateTime_AsTime_RejectsWildcard(t *testing.T) {
	dt := DateTime{Date: Date{Year: 0xffff, Month: 1, Day: 1}, Time: Time{Hour: 0, Minute: 0}}
	_, err := dt.AsTime()
	assert.Error(t, err)
}

func TestDateTimeFromBytes_RequiresTwelveBytes(t *testing.T) {
	_, err := DateTimeFromBytes(make([]byte, 11))
	assert.Error(t, err)
}

func TestNow_DefaultsToTimeNowWhenClockNil(t *testing.T) {
	before := time.Now()
	dt := Now(nil)
	after := time.Now()

	got, err := dt.AsTime()
	require.NoError(t, err)
	assert.False(t, got.Before(before.Add(-time.Second)))
	assert.False(t, got.After(after.Add(time.Second)))
}

func TestNow_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	dt := Now(func() time.Time { return fixed })
	assert.Equal(t, uint16(2020), dt.Date.Year)
	assert.Equal(t, byte(1), dt.Date.Month)
}
