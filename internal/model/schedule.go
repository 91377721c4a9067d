package model

import (
	"fmt"
	"time"

	"reserva/internal/timeutil"
)

// SpecialGroupsCondition selects which out-of-range parties are redirected to manual contact.
type SpecialGroupsCondition string

const (
	SpecialGroupsSmaller SpecialGroupsCondition = "smaller"
	SpecialGroupsBigger  SpecialGroupsCondition = "bigger"
	SpecialGroupsBoth    SpecialGroupsCondition = "both"
)

// ContactMethod is how a special group should reach the restaurant.
type ContactMethod string

const (
	ContactWhatsApp ContactMethod = "whatsapp"
	ContactPhone    ContactMethod = "phone"
	ContactBoth     ContactMethod = "both"
)

// Schedule is one weekly recurring availability window of a restaurant.
type Schedule struct {
	ID                         int64                  `json:"id"`
	ClientID                   string                 `json:"client_id"`
	DayOfWeek                  int                    `json:"day_of_week"` // 0-6 (Sunday-Saturday)
	StartTime                  string                 `json:"start_time"`  // "18:00"
	EndTime                    string                 `json:"end_time"`    // "22:00"
	DurationMinutes            int                    `json:"duration_minutes"`
	Capacity                   int                    `json:"capacity"`
	MinPartySize               int                    `json:"min_party_size"`
	MaxPartySize               int                    `json:"max_party_size"`
	SpecialGroupsEnabled       bool                   `json:"special_groups_enabled"`
	SpecialGroupsCondition     SpecialGroupsCondition `json:"special_groups_condition,omitempty"`
	SpecialGroupsContactMethod ContactMethod          `json:"special_groups_contact_method,omitempty"`
	CustomTableConfigs         []TableConfiguration   `json:"custom_table_configs,omitempty"`
	IsActive                   bool                   `json:"is_active"`
	CreatedAt                  time.Time              `json:"created_at"`
	UpdatedAt                  time.Time              `json:"updated_at"`
}

// Window returns the parsed start and end of the schedule.
func (s *Schedule) Window() (start, end timeutil.Clock, err error) {
	start, err = timeutil.ParseClock(s.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule %d start_time: %w", s.ID, err)
	}
	end, err = timeutil.ParseClock(s.EndTime)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule %d end_time: %w", s.ID, err)
	}
	return start, end, nil
}

// Validate checks the schedule invariants.
func (s *Schedule) Validate() error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0-6, got %d", s.DayOfWeek)
	}
	start, end, err := s.Window()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("end_time must be after start_time")
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if s.MinPartySize < 1 {
		return fmt.Errorf("min_party_size must be at least 1")
	}
	if s.MinPartySize > s.MaxPartySize {
		return fmt.Errorf("min_party_size must not exceed max_party_size")
	}
	if s.Capacity < s.MinPartySize {
		return fmt.Errorf("capacity must be at least min_party_size")
	}
	if s.SpecialGroupsEnabled {
		switch s.SpecialGroupsCondition {
		case SpecialGroupsSmaller, SpecialGroupsBigger, SpecialGroupsBoth:
		default:
			return fmt.Errorf("invalid special_groups_condition %q", s.SpecialGroupsCondition)
		}
		switch s.SpecialGroupsContactMethod {
		case ContactWhatsApp, ContactPhone, ContactBoth:
		default:
			return fmt.Errorf("invalid special_groups_contact_method %q", s.SpecialGroupsContactMethod)
		}
	}
	return nil
}

// RedirectsParty reports whether a party outside the normal bounds is routed to
// manual contact instead of being rejected outright.
func (s *Schedule) RedirectsParty(partySize int) bool {
	if !s.SpecialGroupsEnabled {
		return false
	}
	switch {
	case partySize > s.MaxPartySize:
		return s.SpecialGroupsCondition == SpecialGroupsBigger || s.SpecialGroupsCondition == SpecialGroupsBoth
	case partySize < s.MinPartySize:
		return s.SpecialGroupsCondition == SpecialGroupsSmaller || s.SpecialGroupsCondition == SpecialGroupsBoth
	}
	return false
}

// AcceptsPartySize reports whether partySize is within [MinPartySize, MaxPartySize].
func (s *Schedule) AcceptsPartySize(partySize int) bool {
	return partySize >= s.MinPartySize && partySize <= s.MaxPartySize
}
