package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reserva/internal/model"
	"reserva/internal/timeutil"

	"github.com/rs/zerolog"
)

// ErrInvalidQuery marks malformed availability parameters.
var ErrInvalidQuery = errors.New("invalid availability query")

// SnapshotSource provides restaurant configuration, usually through the cache.
type SnapshotSource interface {
	Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error)
}

// ReservationReader reads active reservations straight from storage.
type ReservationReader interface {
	ListActiveReservations(ctx context.Context, clientID, date string) ([]model.Reservation, error)
	ListActiveReservationsBetween(ctx context.Context, clientID, from, to string) ([]model.Reservation, error)
}

// Observer is notified of every availability query.
type Observer interface {
	ObserveAvailabilityQuery(kind string, d time.Duration)
}

// Service answers availability questions for the public booking flow.
type Service struct {
	snapshots    SnapshotSource
	reservations ReservationReader
	horizonDays  int
	observer     Observer
	logger       zerolog.Logger
	now          func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithObserver attaches a query observer (metrics).
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService wires the availability service.
func NewService(snapshots SnapshotSource, reservations ReservationReader, horizonDays int, logger zerolog.Logger, opts ...Option) *Service {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	s := &Service{
		snapshots:    snapshots,
		reservations: reservations,
		horizonDays:  horizonDays,
		logger:       logger.With().Str("component", "slots").Logger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AvailableDates lists bookable dates starting today in the restaurant's timezone.
func (s *Service) AvailableDates(ctx context.Context, clientID string) ([]DateOption, error) {
	defer s.observe("dates", time.Now())

	snap, err := s.snapshot(ctx, clientID)
	if err != nil {
		return nil, err
	}
	loc := snap.Restaurant.Location()
	now := s.now()
	today := timeutil.Today(loc, now)
	last := today.AddDate(0, 0, s.horizonDays-1)

	reservations, err := s.reservations.ListActiveReservationsBetween(ctx, clientID, timeutil.DateValue(today), timeutil.DateValue(last))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	byDate := make(map[string][]model.Reservation)
	for _, r := range reservations {
		byDate[r.ReservationDate] = append(byDate[r.ReservationDate], r)
	}

	dates := ComputeAvailableDates(snap.Schedules, byDate, today, s.horizonDays, snap.Restaurant.Locale)

	// today only counts while a slot is still ahead of us
	if len(dates) > 0 && dates[0].Value == timeutil.DateValue(today) {
		if len(s.timesFor(snap, today, byDate[dates[0].Value], now)) == 0 {
			dates = dates[1:]
		}
	}
	return dates, nil
}

// AvailableTimes lists the open slots of a date, merged across the day's schedules.
func (s *Service) AvailableTimes(ctx context.Context, clientID, date string) ([]string, error) {
	defer s.observe("times", time.Now())

	snap, err := s.snapshot(ctx, clientID)
	if err != nil {
		return nil, err
	}
	day, ok, err := s.bookableDay(snap, date)
	if err != nil || !ok {
		return []string{}, err
	}

	reservations, err := s.reservations.ListActiveReservations(ctx, clientID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return s.timesFor(snap, day, reservations, s.now()), nil
}

// PartySizeOptions lists selectable party sizes for a date and an optional time.
func (s *Service) PartySizeOptions(ctx context.Context, clientID, date, clock string) ([]int, error) {
	defer s.observe("party_sizes", time.Now())

	snap, err := s.snapshot(ctx, clientID)
	if err != nil {
		return nil, err
	}
	day, ok, err := s.bookableDay(snap, date)
	if err != nil || !ok {
		return []int{}, err
	}

	if clock == "" {
		return DayPartySizeOptions(SchedulesForDay(snap.Schedules, day.Weekday())), nil
	}
	schedule, err := s.scheduleFor(snap, day, clock)
	if err != nil || schedule == nil {
		return []int{}, err
	}

	reservations, err := s.reservations.ListActiveReservations(ctx, clientID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return ComputePartySizeOptions(schedule, snap.TableConfigs, reservations, clock), nil
}

// AvailableCapacity returns the remaining covers at a slot, or nil when the slot is
// not offered.
func (s *Service) AvailableCapacity(ctx context.Context, clientID, date, clock string) (*int, error) {
	defer s.observe("capacity", time.Now())

	snap, err := s.snapshot(ctx, clientID)
	if err != nil {
		return nil, err
	}
	day, ok, err := s.bookableDay(snap, date)
	if err != nil || !ok {
		return nil, err
	}
	schedule, err := s.scheduleFor(snap, day, clock)
	if err != nil || schedule == nil {
		return nil, err
	}

	reservations, err := s.reservations.ListActiveReservations(ctx, clientID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return ComputeAvailableCapacity(schedule, reservations, clock), nil
}

// snapshot hides inactive restaurants from the public flow.
func (s *Service) snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error) {
	snap, err := s.snapshots.Snapshot(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !snap.Restaurant.IsActive {
		return nil, fmt.Errorf("restaurant %q is inactive: %w", clientID, model.ErrNotFound)
	}
	return snap, nil
}

// bookableDay parses date in the restaurant's timezone and reports whether it falls
// inside [today, today+horizon).
func (s *Service) bookableDay(snap *model.RestaurantSnapshot, date string) (time.Time, bool, error) {
	loc := snap.Restaurant.Location()
	day, err := timeutil.ParseDate(date, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	today := timeutil.Today(loc, s.now())
	if day.Before(today) || !day.Before(today.AddDate(0, 0, s.horizonDays)) {
		return day, false, nil
	}
	return day, true, nil
}

// scheduleFor picks the schedule offering clock on day.
func (s *Service) scheduleFor(snap *model.RestaurantSnapshot, day time.Time, clock string) (*model.Schedule, error) {
	c, err := timeutil.ParseClock(clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return ScheduleForSlot(snap.Schedules, day.Weekday(), c), nil
}

func (s *Service) timesFor(snap *model.RestaurantSnapshot, day time.Time, reservations []model.Reservation, now time.Time) []string {
	daily := SchedulesForDay(snap.Schedules, day.Weekday())
	lists := make([][]string, 0, len(daily))
	for i := range daily {
		lists = append(lists, ComputeAvailableTimes(&daily[i], reservations))
	}
	merged := MergeTimes(lists...)

	loc := snap.Restaurant.Location()
	if timeutil.DateValue(day) != timeutil.DateValue(timeutil.Today(loc, now)) {
		return merged
	}

	current := timeutil.NowClock(loc, now)
	upcoming := make([]string, 0, len(merged))
	for _, t := range merged {
		if c, err := timeutil.ParseClock(t); err == nil && c > current {
			upcoming = append(upcoming, t)
		}
	}
	return upcoming
}

func (s *Service) observe(kind string, started time.Time) {
	if s.observer != nil {
		s.observer.ObserveAvailabilityQuery(kind, time.Since(started))
	}
}
