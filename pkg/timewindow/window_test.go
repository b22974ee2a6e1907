package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func TestParseClockEquivalentForms(t *testing.T) {
	// All of these describe 21:00
	for _, s := range []string{"21:00", "9pm", "9PM", " 9 pm ", "2100", "9:00pm"} {
		c, err := ParseClock(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, Clock{Hour: 21}, c, "input %q", s)
	}

	cases := map[string]Clock{
		"0:05":    {Hour: 0, Minute: 5},
		"12am":    {Hour: 0},
		"12pm":    {Hour: 12},
		"12:30am": {Hour: 0, Minute: 30},
		"12:30pm": {Hour: 12, Minute: 30},
		"930":     {Hour: 9, Minute: 30},
		"0930":    {Hour: 9, Minute: 30},
		"23:59":   {Hour: 23, Minute: 59},
	}
	for s, want := range cases {
		c, err := ParseClock(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, want, c, "input %q", s)
	}
}

func TestParseClockRejectsMalformedInput(t *testing.T) {
	bad := []string{
		"", "   ", "25:00", "12:60", "13pm", "0pm", "nonsense",
		"9", "12", "99999", "21:00:00am:pm", "000000000000000000000",
	}
	for _, s := range bad {
		_, err := ParseClock(s)
		assert.ErrorIs(t, err, ErrInvalidTimeFormat, "input %q", s)
	}
}

func TestParseWindowRoundTrip(t *testing.T) {
	w, err := Parse("9pm - 10pm")
	require.NoError(t, err)
	assert.Equal(t, "21:00-22:00", w.String())

	again, err := Parse(w.String())
	require.NoError(t, err)
	assert.Equal(t, w, again)
}

func TestParseWindowRejectsMissingSeparator(t *testing.T) {
	_, err := Parse("21:00")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestActiveAtRegularWindow(t *testing.T) {
	w, err := New("09:00", "17:00")
	require.NoError(t, err)

	assert.True(t, w.ActiveAt(at(12, 0)))
	assert.True(t, w.ActiveAt(at(9, 0)), "start is inclusive")
	assert.False(t, w.ActiveAt(at(8, 59)))
	assert.False(t, w.ActiveAt(at(17, 0)), "end is exclusive")
	assert.False(t, w.CrossesMidnight())
}

func TestActiveAtMidnightCrossingWindow(t *testing.T) {
	w, err := New("22:00", "02:00")
	require.NoError(t, err)
	assert.True(t, w.CrossesMidnight())

	assert.True(t, w.ActiveAt(at(23, 30)))
	assert.True(t, w.ActiveAt(at(0, 0)))
	assert.True(t, w.ActiveAt(at(1, 59)))
	assert.True(t, w.ActiveAt(at(22, 0)), "start is inclusive")
	assert.False(t, w.ActiveAt(at(2, 0)), "end is exclusive")
	assert.False(t, w.ActiveAt(at(12, 0)))
}

func TestEqualStartEndIsAlwaysActive(t *testing.T) {
	w := Window{Start: Clock{Hour: 10}, End: Clock{Hour: 10}}
	assert.True(t, w.CrossesMidnight())
	assert.True(t, w.ActiveAt(at(10, 0)))
	assert.True(t, w.ActiveAt(at(3, 15)))
}

func TestActiveInProjectsIntoLocation(t *testing.T) {
	w, err := New("09:00", "17:00")
	require.NoError(t, err)

	// 12:00 UTC is 07:00 in UTC-5: outside the window there.
	est := time.FixedZone("UTC-5", -5*60*60)
	noonUTC := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, w.ActiveAt(noonUTC))
	assert.False(t, w.ActiveIn(noonUTC, est))
}
