package model

import "errors"

// ErrNotFound is returned when a restaurant or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStatusConflict means a reservation was no longer in the status a change expected.
var ErrStatusConflict = errors.New("status changed concurrently")

// RestaurantSnapshot is the configuration needed to answer availability queries for
// one restaurant. Reservations are never part of it.
type RestaurantSnapshot struct {
	Restaurant   Restaurant           `json:"restaurant"`
	Schedules    []Schedule           `json:"schedules"`
	TableConfigs []TableConfiguration `json:"table_configs"`
}
