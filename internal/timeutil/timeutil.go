// Package timeutil holds the restaurant-local date and time-of-day helpers used by the
// availability and booking code.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	minutesPerDay = 24 * 60
)

// Clock is a time of day expressed in minutes since midnight.
type Clock int

// ParseClock parses "HH:MM" (single-digit hours are accepted).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}

	return Clock(hour*60 + minute), nil
}

// MustClock is ParseClock for constants in tests and defaults.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Add returns the clock moved by the given minutes. The result may pass midnight;
// String wraps it back into a day.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return int(c)
}

func (c Clock) String() string {
	m := int(c) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// On places the clock on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, int(c), 0, 0, date.Location())
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// DateValue formats the local calendar date of t as YYYY-MM-DD. It reads the
// year/month/day components directly so the value never drifts across zones.
func DateValue(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Today returns midnight of now's calendar day in loc.
func Today(loc *time.Location, now time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NowClock returns the current time of day in loc.
func NowClock(loc *time.Location, now time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return Clock(local.Hour()*60 + local.Minute())
}

// LoadLocation resolves an IANA zone name, falling back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
