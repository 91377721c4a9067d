package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"18:00", 18 * 60, false},
		{"9:30", 9*60 + 30, false},
		{"00:00", 0, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12:5", 0, true},
		{"1200", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Minutes())
		})
	}
}

func TestClock_StringCarriesMinutes(t *testing.T) {
	c := MustClock("18:45")
	assert.Equal(t, "19:15", c.Add(30).String())
	assert.Equal(t, "00:15", MustClock("23:45").Add(30).String())
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(0, 90, 30, 120))
	assert.True(t, Overlaps(30, 60, 0, 120))
	assert.False(t, Overlaps(0, 90, 90, 120), "end boundary is exclusive")
	assert.False(t, Overlaps(90, 120, 0, 90))
}

func TestDateValue_UsesLocalComponents(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	// 23:30 local on March 6 is already March 7 in UTC.
	local := time.Date(2026, 3, 6, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-03-06", DateValue(local))
	assert.Equal(t, "2026-03-07", DateValue(local.UTC()))
}

func TestToday(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	now := time.Date(2026, 3, 6, 23, 30, 0, 0, time.UTC) // 00:30 on March 7 in Madrid
	today := Today(loc, now)
	assert.Equal(t, "2026-03-07", DateValue(today))
	assert.Equal(t, 0, today.Hour())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-06", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d.Weekday())

	_, err = ParseDate("06.03.2026", time.UTC)
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	d := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "viernes, 6 de marzo", Label(d, "es"))
	assert.Equal(t, "Friday, 6 March", Label(d, "en"))
	assert.Equal(t, Label(d, "es"), Label(d, "xx"))
}
