package model

import (
	"time"

	"reserva/internal/timeutil"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Reservation is one guest booking.
type Reservation struct {
	ID              string            `json:"id"`
	ClientID        string            `json:"client_id"`
	ReservationDate string            `json:"reservation_date"` // "2026-03-06"
	ReservationTime string            `json:"reservation_time"` // "19:30"
	PartySize       int               `json:"party_size"`
	DurationMinutes int               `json:"duration_minutes"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerPhone   string            `json:"customer_phone"`
	SpecialRequests string            `json:"special_requests,omitempty"`
	TableConfigID   *int64            `json:"table_config_id,omitempty"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// IsActive reports whether the reservation still holds capacity.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// Interval returns the reservation's [start, end) in minutes since midnight.
// fallbackDuration is used for rows stored without a duration.
func (r *Reservation) Interval(fallbackDuration int) (start, end int, err error) {
	c, err := timeutil.ParseClock(r.ReservationTime)
	if err != nil {
		return 0, 0, err
	}
	d := r.DurationMinutes
	if d <= 0 {
		d = fallbackDuration
	}
	return c.Minutes(), c.Minutes() + d, nil
}

// OverlapsWith reports whether the reservation intersects [start, end).
// Unparseable times never overlap.
func (r *Reservation) OverlapsWith(start, end, fallbackDuration int) bool {
	rs, re, err := r.Interval(fallbackDuration)
	if err != nil {
		return false
	}
	return timeutil.Overlaps(rs, re, start, end)
}

// AssignedTo reports whether the reservation holds a unit of the given table type.
func (r *Reservation) AssignedTo(tableConfigID int64) bool {
	return r.TableConfigID != nil && *r.TableConfigID == tableConfigID
}
