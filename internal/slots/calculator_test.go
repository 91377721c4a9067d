package slots

import (
	"testing"
	"time"

	"reserva/internal/model"
	"reserva/internal/timeutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fridayDinner() model.Schedule {
	return model.Schedule{
		ID:              1,
		ClientID:        "casa-lola",
		DayOfWeek:       5,
		StartTime:       "18:00",
		EndTime:         "22:00",
		DurationMinutes: 90,
		Capacity:        20,
		MinPartySize:    1,
		MaxPartySize:    8,
		IsActive:        true,
	}
}

func booked(at string, party int) model.Reservation {
	return model.Reservation{
		ReservationDate: "2026-03-06",
		ReservationTime: at,
		PartySize:       party,
		DurationMinutes: 90,
		Status:          model.StatusPending,
	}
}

func TestComputeAvailableTimes(t *testing.T) {
	s := fridayDinner()

	tests := []struct {
		name         string
		schedule     *model.Schedule
		reservations []model.Reservation
		expected     []string
	}{
		{
			name:     "empty evening",
			schedule: &s,
			expected: []string{"18:00", "18:30", "19:00", "19:30", "20:00", "20:30", "21:00", "21:30"},
		},
		{
			name:         "partially booked slot stays open",
			schedule:     &s,
			reservations: []model.Reservation{booked("19:00", 15)},
			expected:     []string{"18:00", "18:30", "19:00", "19:30", "20:00", "20:30", "21:00", "21:30"},
		},
		{
			name:         "full overlap closes neighbours",
			schedule:     &s,
			reservations: []model.Reservation{booked("19:00", 20)},
			// the 19:00 booking runs to 20:30 and blocks every slot from 18:00 to 20:00
			expected: []string{"20:30", "21:00", "21:30"},
		},
		{
			name:     "cancelled bookings free capacity",
			schedule: &s,
			reservations: []model.Reservation{
				{ReservationTime: "19:00", PartySize: 20, DurationMinutes: 90, Status: model.StatusCancelled},
			},
			expected: []string{"18:00", "18:30", "19:00", "19:30", "20:00", "20:30", "21:00", "21:30"},
		},
		{
			name:     "nil schedule",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAvailableTimes(tt.schedule, tt.reservations)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSlotStarts_DoesNotCrossEnd(t *testing.T) {
	s := fridayDinner()
	s.EndTime = "21:45"

	got := SlotStarts(&s)
	require.NotEmpty(t, got)
	assert.Equal(t, "21:30", got[len(got)-1].String())

	s.StartTime = "18:15"
	got = SlotStarts(&s)
	assert.Equal(t, "18:15", got[0].String())
	assert.Equal(t, "18:45", got[1].String())
}

func TestOverlapSum(t *testing.T) {
	s := fridayDinner()
	reservations := []model.Reservation{booked("19:00", 15)}

	assert.Equal(t, 15, OverlapSum(&s, reservations, timeutil.MustClock("19:30")))
	assert.Equal(t, 5, RemainingCapacity(&s, reservations, timeutil.MustClock("19:30")))
	assert.Equal(t, 0, OverlapSum(&s, reservations, timeutil.MustClock("20:30")), "end is exclusive")
	assert.Equal(t, 0, OverlapSum(&s, reservations, timeutil.MustClock("17:30")))

	legacy := []model.Reservation{{ReservationTime: "20:00", PartySize: 4, Status: model.StatusConfirmed}}
	assert.Equal(t, 4, OverlapSum(&s, legacy, timeutil.MustClock("21:00")), "missing duration uses the schedule's")
}

func TestComputeAvailableCapacity(t *testing.T) {
	s := fridayDinner()
	reservations := []model.Reservation{booked("19:00", 15)}

	assert.Nil(t, ComputeAvailableCapacity(&s, reservations, ""))
	assert.Nil(t, ComputeAvailableCapacity(nil, reservations, "19:30"))

	got := ComputeAvailableCapacity(&s, reservations, "19:30")
	require.NotNil(t, got)
	assert.Equal(t, 5, *got)
}

func TestComputePartySizeOptions(t *testing.T) {
	s := fridayDinner()

	t.Run("no time selected", func(t *testing.T) {
		got := ComputePartySizeOptions(&s, nil, nil, "")
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, got)
	})

	t.Run("capped by remaining capacity", func(t *testing.T) {
		got := ComputePartySizeOptions(&s, nil, []model.Reservation{booked("19:00", 15)}, "19:30")
		assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	})

	t.Run("narrowed by tables", func(t *testing.T) {
		configs := []model.TableConfiguration{
			{ID: 1, Seats: 2, Quantity: 3, MinPartySize: 1, MaxPartySize: 2, IsActive: true},
			{ID: 2, Seats: 6, Quantity: 2, MinPartySize: 3, MaxPartySize: 6, IsActive: true},
		}
		two := int64(2)
		reservations := []model.Reservation{
			{ReservationTime: "19:00", PartySize: 5, DurationMinutes: 90, TableConfigID: &two, Status: model.StatusPending},
			{ReservationTime: "19:30", PartySize: 4, DurationMinutes: 90, TableConfigID: &two, Status: model.StatusPending},
		}
		got := ComputePartySizeOptions(&s, configs, reservations, "19:30")
		assert.Equal(t, []int{1, 2}, got, "six-seat tables are all taken")
	})

	t.Run("falls back to min", func(t *testing.T) {
		full := []model.Reservation{booked("19:00", 20)}
		s2 := s
		s2.MinPartySize = 2
		got := ComputePartySizeOptions(&s2, nil, full, "19:30")
		assert.Equal(t, []int{2}, got)
	})

	t.Run("nil schedule", func(t *testing.T) {
		assert.Empty(t, ComputePartySizeOptions(nil, nil, nil, "19:30"))
	})
}

func TestComputeAvailableDates(t *testing.T) {
	schedules := []model.Schedule{fridayDinner()}
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // Monday

	got := ComputeAvailableDates(schedules, nil, from, 14, "es")
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-06", got[0].Value)
	assert.Equal(t, "viernes, 6 de marzo", got[0].Label)
	assert.Equal(t, "2026-03-13", got[1].Value)

	full := map[string][]model.Reservation{
		"2026-03-06": {
			{ReservationTime: "18:00", PartySize: 20, DurationMinutes: 240, Status: model.StatusConfirmed},
		},
	}
	got = ComputeAvailableDates(schedules, full, from, 14, "es")
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-13", got[0].Value)

	inactive := fridayDinner()
	inactive.IsActive = false
	assert.Empty(t, ComputeAvailableDates([]model.Schedule{inactive}, nil, from, 14, "es"))
}

func TestScheduleForSlot(t *testing.T) {
	lunch := fridayDinner()
	lunch.ID = 2
	lunch.StartTime = "13:00"
	lunch.EndTime = "16:00"
	schedules := []model.Schedule{fridayDinner(), lunch}

	got := ScheduleForSlot(schedules, time.Friday, timeutil.MustClock("13:30"))
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	assert.Nil(t, ScheduleForSlot(schedules, time.Friday, timeutil.MustClock("19:15")), "off the half-hour grid")
	assert.Nil(t, ScheduleForSlot(schedules, time.Friday, timeutil.MustClock("22:00")), "end time is not a slot")
	assert.Nil(t, ScheduleForSlot(schedules, time.Saturday, timeutil.MustClock("19:00")))
}

func TestMergeTimes(t *testing.T) {
	got := MergeTimes([]string{"19:00", "18:00"}, []string{"18:00", "13:30"})
	assert.Equal(t, []string{"13:30", "18:00", "19:00"}, got)
}
