// Package slots computes bookable dates, times and party sizes from weekly schedules
// and the reservations already taken.
package slots

import (
	"sort"
	"time"

	"reserva/internal/model"
	"reserva/internal/tables"
	"reserva/internal/timeutil"
)

const (
	// SlotStep is the fixed spacing of bookable start times, counted from the
	// schedule's own start time.
	SlotStep = 30

	// DefaultHorizonDays is how far ahead dates are offered, today included.
	DefaultHorizonDays = 28
)

// DateOption is a bookable date for the UI.
type DateOption struct {
	Value string `json:"value"` // "2026-03-06"
	Label string `json:"label"` // "viernes, 6 de marzo"
}

// SlotStarts walks the schedule window in SlotStep increments. A slot whose start is
// at or after the end time is not offered.
func SlotStarts(schedule *model.Schedule) []timeutil.Clock {
	if schedule == nil {
		return nil
	}
	start, end, err := schedule.Window()
	if err != nil {
		return nil
	}

	var result []timeutil.Clock
	for cursor := start; cursor < end; cursor = cursor.Add(SlotStep) {
		result = append(result, cursor)
	}
	return result
}

// OffersSlot reports whether the schedule has a slot starting exactly at c.
func OffersSlot(schedule *model.Schedule, c timeutil.Clock) bool {
	start, end, err := schedule.Window()
	if err != nil {
		return false
	}
	return c >= start && c < end && (c-start).Minutes()%SlotStep == 0
}

// OverlapSum adds up the party sizes of active reservations intersecting the seating
// [slot, slot+schedule.DurationMinutes).
func OverlapSum(schedule *model.Schedule, reservations []model.Reservation, slot timeutil.Clock) int {
	slotStart := slot.Minutes()
	slotEnd := slotStart + schedule.DurationMinutes

	sum := 0
	for i := range reservations {
		r := &reservations[i]
		if !r.IsActive() {
			continue
		}
		if r.OverlapsWith(slotStart, slotEnd, schedule.DurationMinutes) {
			sum += r.PartySize
		}
	}
	return sum
}

// RemainingCapacity is the schedule capacity minus the covers overlapping slot.
func RemainingCapacity(schedule *model.Schedule, reservations []model.Reservation, slot timeutil.Clock) int {
	return schedule.Capacity - OverlapSum(schedule, reservations, slot)
}

// SchedulesForDay returns the active schedules of a weekday ordered by start time.
func SchedulesForDay(schedules []model.Schedule, weekday time.Weekday) []model.Schedule {
	var result []model.Schedule
	for _, s := range schedules {
		if s.IsActive && s.DayOfWeek == int(weekday) {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, _ := timeutil.ParseClock(result[i].StartTime)
		b, _ := timeutil.ParseClock(result[j].StartTime)
		return a < b
	})
	return result
}

// ScheduleForSlot finds the active schedule of the weekday that offers a slot at c.
func ScheduleForSlot(schedules []model.Schedule, weekday time.Weekday, c timeutil.Clock) *model.Schedule {
	for _, s := range SchedulesForDay(schedules, weekday) {
		if OffersSlot(&s, c) {
			found := s
			return &found
		}
	}
	return nil
}

// ComputeAvailableDates lists the days in [from, from+horizonDays) with at least one
// slot that still has room for one guest. reservationsByDate is keyed by YYYY-MM-DD.
func ComputeAvailableDates(
	schedules []model.Schedule,
	reservationsByDate map[string][]model.Reservation,
	from time.Time,
	horizonDays int,
	locale string,
) []DateOption {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	result := make([]DateOption, 0)
	for offset := 0; offset < horizonDays; offset++ {
		day := from.AddDate(0, 0, offset)
		value := timeutil.DateValue(day)
		reservations := reservationsByDate[value]

		available := false
		for _, s := range SchedulesForDay(schedules, day.Weekday()) {
			if len(ComputeAvailableTimes(&s, reservations)) > 0 {
				available = true
				break
			}
		}
		if !available {
			continue
		}

		result = append(result, DateOption{
			Value: value,
			Label: timeutil.Label(day, locale),
		})
	}
	return result
}

// ComputeAvailableTimes returns the schedule's slots with remaining capacity of at
// least one. A nil schedule yields an empty list.
func ComputeAvailableTimes(schedule *model.Schedule, reservations []model.Reservation) []string {
	result := make([]string, 0)
	if schedule == nil {
		return result
	}
	for _, slot := range SlotStarts(schedule) {
		if RemainingCapacity(schedule, reservations, slot) >= 1 {
			result = append(result, slot.String())
		}
	}
	return result
}

// ComputeAvailableCapacity returns the remaining covers at selectedTime, or nil when
// no time is selected or there is no schedule.
func ComputeAvailableCapacity(schedule *model.Schedule, reservations []model.Reservation, selectedTime string) *int {
	if schedule == nil || selectedTime == "" {
		return nil
	}
	c, err := timeutil.ParseClock(selectedTime)
	if err != nil {
		return nil
	}
	remaining := RemainingCapacity(schedule, reservations, c)
	return &remaining
}

// ComputePartySizeOptions lists the party sizes the guest can pick. Without a selected
// time it is the schedule's [min, max]. With a time the upper bound is capped by the
// remaining capacity and, when table configurations apply, each size must find a free
// table at that slot. An empty result falls back to [min] so the picker is never empty.
func ComputePartySizeOptions(
	schedule *model.Schedule,
	tableConfigs []model.TableConfiguration,
	reservations []model.Reservation,
	selectedTime string,
) []int {
	if schedule == nil {
		return []int{}
	}

	lo, hi := schedule.MinPartySize, schedule.MaxPartySize
	if lo < 1 {
		lo = 1
	}

	c, err := timeutil.ParseClock(selectedTime)
	if selectedTime == "" || err != nil {
		return sizeRange(lo, hi)
	}

	if remaining := RemainingCapacity(schedule, reservations, c); remaining < hi {
		hi = remaining
	}

	configs := tables.ActiveConfigs(schedule, tableConfigs)
	var options []int
	if len(configs) == 0 {
		options = sizeRange(lo, hi)
	} else {
		slotStart := c.Minutes()
		avail := tables.CalculateAvailability(configs, reservations, slotStart, slotStart+schedule.DurationMinutes, schedule.DurationMinutes)
		for size := lo; size <= hi; size++ {
			if tables.FindSuitableTable(size, avail) != nil {
				options = append(options, size)
			}
		}
	}

	if len(options) == 0 {
		return []int{lo}
	}
	return options
}

// DayPartySizeOptions is the union of the [min, max] ranges of a day's schedules, used
// before a time is selected.
func DayPartySizeOptions(daily []model.Schedule) []int {
	seen := make(map[int]struct{})
	result := make([]int, 0)
	for i := range daily {
		for _, size := range ComputePartySizeOptions(&daily[i], nil, nil, "") {
			if _, ok := seen[size]; ok {
				continue
			}
			seen[size] = struct{}{}
			result = append(result, size)
		}
	}
	sort.Ints(result)
	return result
}

func sizeRange(lo, hi int) []int {
	result := make([]int, 0)
	for size := lo; size <= hi; size++ {
		result = append(result, size)
	}
	return result
}

// MergeTimes unions slot lists from several schedules of one day, sorted and unique.
func MergeTimes(lists ...[]string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, list := range lists {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			result = append(result, t)
		}
	}
	sort.Strings(result)
	return result
}
