// Package store assembles the storage view used by the availability and booking services.
package store

import (
	"context"
	"time"

	"reserva/internal/booking"
	"reserva/internal/db"
	"reserva/internal/lock"
	"reserva/internal/model"
)

// SnapshotSource yields restaurant configuration, usually a cache in front of the db.
type SnapshotSource interface {
	Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error)
}

// Store reads configuration through snapshots and reservations straight from the db.
type Store struct {
	db        *db.DB
	snapshots SnapshotSource
	locker    *lock.Locker
}

// New returns a Store. When snapshots is nil the db is read directly.
func New(database *db.DB, snapshots SnapshotSource, locker *lock.Locker) *Store {
	if snapshots == nil {
		snapshots = database
	}
	return &Store{db: database, snapshots: snapshots, locker: locker}
}

func (s *Store) Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error) {
	return s.snapshots.Snapshot(ctx, clientID)
}

func (s *Store) ListActiveReservations(ctx context.Context, clientID, date string) ([]model.Reservation, error) {
	return s.db.ListActiveReservations(ctx, clientID, date)
}

func (s *Store) ListActiveReservationsBetween(ctx context.Context, clientID, from, to string) ([]model.Reservation, error) {
	return s.db.ListActiveReservationsBetween(ctx, clientID, from, to)
}

func (s *Store) CountRecentByClient(ctx context.Context, clientID string, since time.Time) (int, error) {
	return s.db.CountRecentByClient(ctx, clientID, since)
}

func (s *Store) CountPendingByEmail(ctx context.Context, clientID, email string) (int, error) {
	return s.db.CountPendingByEmail(ctx, clientID, email)
}

func (s *Store) ListReservationsBetween(ctx context.Context, clientID, from, to string) ([]model.Reservation, error) {
	return s.db.ListReservationsBetween(ctx, clientID, from, to)
}

func (s *Store) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.db.GetReservation(ctx, id)
}

// UpdateReservationStatus is a compare-and-set on the current status. It only moves
// reservations towards confirmed or cancelled, which never adds load to a slot, so it
// does not take the slot lock.
func (s *Store) UpdateReservationStatus(ctx context.Context, clientID, id string, from, to model.ReservationStatus) error {
	return s.db.UpdateReservationStatus(ctx, clientID, id, from, to)
}

// WithSlotLock holds the (clientID, date) lock for the whole write transaction, so
// the capacity re-check inside fn sees every reservation committed before it.
func (s *Store) WithSlotLock(ctx context.Context, clientID, date string, fn func(tx booking.SlotTx) error) error {
	release, err := s.locker.Acquire(ctx, lock.Key(clientID, date))
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithTx(ctx, func(tx *db.Tx) error {
		return fn(tx)
	})
}
