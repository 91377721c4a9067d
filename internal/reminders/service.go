// Package reminders sends guests a reminder shortly before their reservation.
package reminders

import (
	"context"
	"sync"
	"time"

	"reserva/internal/model"
	"reserva/internal/timeutil"

	"github.com/rs/zerolog"
)

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often upcoming reservations are scanned.
	// Default: 15 minutes.
	CheckInterval time.Duration

	// HoursBefore is how long before the reservation the reminder goes out.
	// Default: 24 hours.
	HoursBefore int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 15 * time.Minute,
		HoursBefore:   24,
	}
}

// Store provides reservations for the reminder scan.
type Store interface {
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	// ListReminderCandidates returns active reservations in [from, to] without a reminder.
	ListReminderCandidates(ctx context.Context, clientID, from, to string) ([]model.Reservation, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

// Notifier hands a due reminder to the delivery pipeline.
type Notifier interface {
	ReservationReminder(ctx context.Context, restaurant model.Restaurant, r model.Reservation)
}

// Service handles sending reservation reminders.
type Service struct {
	config   Config
	store    Store
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a new reminder service.
func NewService(config Config, store Store, notifier Notifier, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.HoursBefore <= 0 {
		config.HoursBefore = def.HoursBefore
	}

	return &Service{
		config:   config,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "reminders").Logger(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// SetClock overrides the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins the reminder check loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Int("hours_before", s.config.HoursBefore).
		Msg("Reminder service started")
}

// Stop gracefully stops the reminder service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("Reminder service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately on start
	s.CheckNow(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// CheckNow scans every active restaurant once and returns the number of reminders sent.
func (s *Service) CheckNow(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	restaurants, err := s.store.ListRestaurants(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list restaurants")
		return 0
	}

	sent := 0
	for _, r := range restaurants {
		if !r.IsActive {
			continue
		}
		sent += s.checkRestaurant(ctx, r)
	}
	return sent
}

func (s *Service) checkRestaurant(ctx context.Context, restaurant model.Restaurant) int {
	loc := restaurant.Location()
	now := s.now().In(loc)
	lead := time.Duration(s.config.HoursBefore) * time.Hour
	until := now.Add(lead)

	candidates, err := s.store.ListReminderCandidates(ctx, restaurant.ClientID, timeutil.DateValue(now), timeutil.DateValue(until))
	if err != nil {
		s.logger.Error().Err(err).Str("client_id", restaurant.ClientID).Msg("Failed to list upcoming reservations")
		return 0
	}

	sent := 0
	for _, r := range candidates {
		start, err := startsAt(r, loc)
		if err != nil {
			s.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("Skipping reservation with bad date")
			continue
		}
		if !start.After(now) || start.After(until) {
			continue
		}

		// Booked inside the reminder window: the confirmation email is recent enough.
		if !r.CreatedAt.IsZero() && r.CreatedAt.After(start.Add(-lead)) {
			s.mark(ctx, r)
			continue
		}

		s.notifier.ReservationReminder(ctx, restaurant, r)
		s.mark(ctx, r)
		sent++

		s.logger.Info().
			Str("client_id", restaurant.ClientID).
			Str("reservation_id", r.ID).
			Str("date", r.ReservationDate).
			Str("time", r.ReservationTime).
			Msg("Reminder queued")
	}
	return sent
}

func (s *Service) mark(ctx context.Context, r model.Reservation) {
	if err := s.store.MarkReminderSent(ctx, r.ID, s.now()); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("Failed to mark reminder as sent")
	}
}

func startsAt(r model.Reservation, loc *time.Location) (time.Time, error) {
	day, err := timeutil.ParseDate(r.ReservationDate, loc)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := timeutil.ParseClock(r.ReservationTime)
	if err != nil {
		return time.Time{}, err
	}
	return clock.On(day), nil
}
