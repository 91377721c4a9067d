package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func fridayDinner() Schedule {
	return Schedule{
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

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr bool
	}{
		{"valid", func(s *Schedule) {}, false},
		{"end before start", func(s *Schedule) { s.EndTime = "17:00" }, true},
		{"equal window", func(s *Schedule) { s.EndTime = "18:00" }, true},
		{"bad clock", func(s *Schedule) { s.StartTime = "6pm" }, true},
		{"min above max", func(s *Schedule) { s.MinPartySize = 9 }, true},
		{"capacity below min", func(s *Schedule) { s.MinPartySize = 2; s.Capacity = 1 }, true},
		{"zero duration", func(s *Schedule) { s.DurationMinutes = 0 }, true},
		{"bad weekday", func(s *Schedule) { s.DayOfWeek = 7 }, true},
		{"special groups without condition", func(s *Schedule) { s.SpecialGroupsEnabled = true }, true},
		{"special groups complete", func(s *Schedule) {
			s.SpecialGroupsEnabled = true
			s.SpecialGroupsCondition = SpecialGroupsBigger
			s.SpecialGroupsContactMethod = ContactWhatsApp
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fridayDinner()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchedule_RedirectsParty(t *testing.T) {
	s := fridayDinner()
	s.MinPartySize = 2
	assert.False(t, s.RedirectsParty(10), "disabled policy never redirects")

	s.SpecialGroupsEnabled = true
	s.SpecialGroupsCondition = SpecialGroupsBigger
	assert.True(t, s.RedirectsParty(10))
	assert.False(t, s.RedirectsParty(1))
	assert.False(t, s.RedirectsParty(8))

	s.SpecialGroupsCondition = SpecialGroupsSmaller
	assert.True(t, s.RedirectsParty(1))
	assert.False(t, s.RedirectsParty(10))

	s.SpecialGroupsCondition = SpecialGroupsBoth
	assert.True(t, s.RedirectsParty(1))
	assert.True(t, s.RedirectsParty(10))
}

func TestTableConfiguration_Fits(t *testing.T) {
	bounded := TableConfiguration{Seats: 6, MinPartySize: 3, MaxPartySize: 6}
	assert.False(t, bounded.Fits(2))
	assert.True(t, bounded.Fits(3))
	assert.True(t, bounded.Fits(6))
	assert.False(t, bounded.Fits(7))

	unbounded := TableConfiguration{Seats: 4}
	assert.True(t, unbounded.Fits(1))
	assert.True(t, unbounded.Fits(4))
	assert.False(t, unbounded.Fits(5))
	assert.False(t, unbounded.Fits(0))

	onlyMin := TableConfiguration{Seats: 8, MinPartySize: 5}
	assert.False(t, onlyMin.Fits(4))
	assert.True(t, onlyMin.Fits(8))
	assert.False(t, onlyMin.Fits(9))
}

func TestReservation_OverlapsWith(t *testing.T) {
	r := Reservation{ReservationTime: "19:00", DurationMinutes: 90, Status: StatusPending}

	// 19:00-20:30 against slot windows of 90 minutes
	assert.True(t, r.OverlapsWith(19*60+30, 21*60, 90))
	assert.True(t, r.OverlapsWith(18*60, 19*60+30, 90))
	assert.False(t, r.OverlapsWith(20*60+30, 22*60, 90), "end is exclusive")
	assert.False(t, r.OverlapsWith(17*60+30, 19*60, 90))

	legacy := Reservation{ReservationTime: "19:00"}
	assert.True(t, legacy.OverlapsWith(20*60, 21*60, 90), "falls back to the schedule duration")

	broken := Reservation{ReservationTime: "late", DurationMinutes: 90}
	assert.False(t, broken.OverlapsWith(0, 24*60, 90))
}

func TestReservation_IsActive(t *testing.T) {
	assert.True(t, (&Reservation{Status: StatusPending}).IsActive())
	assert.True(t, (&Reservation{Status: StatusConfirmed}).IsActive())
	assert.False(t, (&Reservation{Status: StatusCancelled}).IsActive())
}

func TestReservation_AssignedTo(t *testing.T) {
	r := Reservation{TableConfigID: int64Ptr(3)}
	assert.True(t, r.AssignedTo(3))
	assert.False(t, r.AssignedTo(4))
	assert.False(t, (&Reservation{}).AssignedTo(3))
}
