// Package booking validates and commits guest reservations.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"reserva/internal/model"
	"reserva/internal/slots"
	"reserva/internal/tables"
	"reserva/internal/timeutil"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request is a guest's booking submission.
type Request struct {
	ClientID          string `json:"clientId" validate:"required,max=64"`
	ReservationDate   string `json:"reservationDate" validate:"required"`
	ReservationTime   string `json:"reservationTime" validate:"required"`
	PartySize         int    `json:"partySize" validate:"required,min=1"`
	CustomerName      string `json:"customerName" validate:"required,max=120"`
	CustomerEmail     string `json:"customerEmail" validate:"required,email,max=254"`
	CustomerPhone     string `json:"customerPhone" validate:"required,min=6,max=32"`
	SpecialRequests   string `json:"specialRequests,omitempty" validate:"max=1000"`
	VerificationToken string `json:"verificationToken"`
	RemoteIP          string `json:"-"`
}

// Verifier checks a human-verification token. ok=false means the token was refused.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (ok bool, err error)
}

// RateCounter counts the reservations the rate limits look at.
type RateCounter interface {
	CountRecentByClient(ctx context.Context, clientID string, since time.Time) (int, error)
	CountPendingByEmail(ctx context.Context, clientID, email string) (int, error)
}

// SlotTx is the view of storage available inside the slot critical section.
type SlotTx interface {
	RateCounter
	ListActiveReservations(ctx context.Context, clientID, date string) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
}

// Store provides the reads and the serialized write a booking needs.
type Store interface {
	RateCounter
	Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error)
	// WithSlotLock runs fn while holding the (clientID, date) lock inside a write transaction.
	WithSlotLock(ctx context.Context, clientID, date string, fn func(tx SlotTx) error) error
}

// Publisher announces committed reservations.
type Publisher interface {
	ReservationCreated(ctx context.Context, restaurant model.Restaurant, r model.Reservation)
}

// Recorder receives booking metrics.
type Recorder interface {
	BookingAttempt(outcome string)
	BookingCommitted(d time.Duration)
}

// Rules are the tunable limits of the booking flow.
type Rules struct {
	RateWindow         time.Duration
	MaxRecentPerClient int
	MaxPendingPerEmail int
	HorizonDays        int
}

// DefaultRules returns the production limits.
func DefaultRules() Rules {
	return Rules{
		RateWindow:         time.Hour,
		MaxRecentPerClient: 5,
		MaxPendingPerEmail: 3,
		HorizonDays:        slots.DefaultHorizonDays,
	}
}

// Service runs the booking state machine.
type Service struct {
	store     Store
	verifier  Verifier
	publisher Publisher
	recorder  Recorder
	rules     Rules
	fsm       *FSM
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a booking service. publisher and recorder may be nil.
func NewService(store Store, verifier Verifier, publisher Publisher, recorder Recorder, rules Rules, logger zerolog.Logger) *Service {
	if rules.RateWindow <= 0 {
		rules.RateWindow = time.Hour
	}
	if rules.HorizonDays <= 0 {
		rules.HorizonDays = slots.DefaultHorizonDays
	}
	return &Service{
		store:     store,
		verifier:  verifier,
		publisher: publisher,
		recorder:  recorder,
		rules:     rules,
		fsm:       NewFSM(),
		validate:  validator.New(),
		logger:    logger.With().Str("component", "booking").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Book validates req and commits a pending reservation. Every failure is an *Error and
// leaves storage untouched.
func (s *Service) Book(ctx context.Context, req Request) (*model.Reservation, error) {
	att := newAttempt(s.fsm)
	reservation, err := s.book(ctx, req, att)

	log := s.logger.With().
		Str("client_id", req.ClientID).
		Str("date", req.ReservationDate).
		Str("time", req.ReservationTime).
		Int("party_size", req.PartySize).
		Str("trail", att.String()).
		Logger()

	if err != nil {
		att.reject()
		kind := KindOf(err)
		if kind == KindUnexpected {
			log.Error().Err(err).Msg("booking failed")
		} else {
			log.Info().Str("error_kind", string(kind)).Msg(err.Error())
		}
		s.record(string(kind))
		if _, ok := err.(*Error); !ok {
			err = unexpected("booking failed", err)
		}
		return nil, err
	}

	log.Info().Str("reservation_id", reservation.ID).Msg("reservation committed")
	s.record(string(StateCommitted))
	return reservation, nil
}

func (s *Service) book(ctx context.Context, req Request, att *attempt) (*model.Reservation, error) {
	req.normalize()

	if s.verifier != nil {
		ok, err := s.verifier.Verify(ctx, req.VerificationToken, req.RemoteIP)
		if err != nil {
			return nil, unexpected("verification unavailable", err)
		}
		if !ok {
			return nil, newError(KindVerification, "verification failed, please retry")
		}
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, &Error{Kind: KindValidation, Message: describeValidation(err), Err: err}
	}

	snap, err := s.store.Snapshot(ctx, req.ClientID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, newError(KindValidation, "unknown restaurant %q", req.ClientID)
	}
	if err != nil {
		return nil, unexpected("load restaurant", err)
	}
	if !snap.Restaurant.IsActive {
		return nil, newError(KindValidation, "restaurant %q is not accepting reservations", req.ClientID)
	}

	now := s.now()
	if err := s.checkRate(ctx, s.store, req, now); err != nil {
		return nil, err
	}
	if err := att.advance(StateRateChecked); err != nil {
		return nil, unexpected("state", err)
	}

	schedule, slot, err := s.resolveSchedule(snap, req, now)
	if err != nil {
		return nil, err
	}
	if err := att.advance(StateScheduleValidated); err != nil {
		return nil, unexpected("state", err)
	}

	if err := checkPartySize(schedule, &snap.Restaurant, req.PartySize); err != nil {
		return nil, err
	}
	if err := att.advance(StatePartySizeValidated); err != nil {
		return nil, unexpected("state", err)
	}

	reservation := &model.Reservation{
		ClientID:        req.ClientID,
		ReservationDate: req.ReservationDate,
		ReservationTime: slot.String(),
		PartySize:       req.PartySize,
		DurationMinutes: schedule.DurationMinutes,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		SpecialRequests: req.SpecialRequests,
		Status:          model.StatusPending,
	}

	started := time.Now()
	err = s.store.WithSlotLock(ctx, req.ClientID, req.ReservationDate, func(tx SlotTx) error {
		// the write transaction serializes writers, so these counts are exact
		if err := s.checkRate(ctx, tx, req, now); err != nil {
			return err
		}

		existing, err := tx.ListActiveReservations(ctx, req.ClientID, req.ReservationDate)
		if err != nil {
			return unexpected("list reservations", err)
		}

		if slots.OverlapSum(schedule, existing, slot)+req.PartySize > schedule.Capacity {
			return newError(KindAvailability, "not enough capacity at %s for %d guests", slot, req.PartySize)
		}
		if err := att.advance(StateCapacityValidated); err != nil {
			return unexpected("state", err)
		}

		if configs := tables.ActiveConfigs(schedule, snap.TableConfigs); len(configs) > 0 {
			start := slot.Minutes()
			avail := tables.CalculateAvailability(configs, existing, start, start+schedule.DurationMinutes, schedule.DurationMinutes)
			table := tables.FindSuitableTable(req.PartySize, avail)
			if table == nil {
				return newError(KindTableUnavailable, "no table for %d guests at %s", req.PartySize, slot)
			}
			id := table.ID
			reservation.TableConfigID = &id
		}
		if err := att.advance(StateTableResolved); err != nil {
			return unexpected("state", err)
		}

		reservation.ID = uuid.NewString()
		reservation.CreatedAt = now.UTC()
		if err := tx.InsertReservation(ctx, reservation); err != nil {
			return unexpected("insert reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := att.advance(StateCommitted); err != nil {
		return nil, unexpected("state", err)
	}
	if s.recorder != nil {
		s.recorder.BookingCommitted(time.Since(started))
	}

	if s.publisher != nil {
		s.publisher.ReservationCreated(ctx, snap.Restaurant, *reservation)
	}
	return reservation, nil
}

func (s *Service) checkRate(ctx context.Context, counter RateCounter, req Request, now time.Time) error {
	if s.rules.MaxRecentPerClient > 0 {
		recent, err := counter.CountRecentByClient(ctx, req.ClientID, now.Add(-s.rules.RateWindow))
		if err != nil {
			return unexpected("count recent reservations", err)
		}
		if recent >= s.rules.MaxRecentPerClient {
			return newError(KindRateLimit, "too many reservations right now, please try again in a few minutes")
		}
	}
	if s.rules.MaxPendingPerEmail > 0 {
		pending, err := counter.CountPendingByEmail(ctx, req.ClientID, req.CustomerEmail)
		if err != nil {
			return unexpected("count pending reservations", err)
		}
		if pending >= s.rules.MaxPendingPerEmail {
			return newError(KindRateLimit, "you already have %d pending reservations", pending)
		}
	}
	return nil
}

// resolveSchedule also returns the parsed slot start; its String form is what gets stored.
func (s *Service) resolveSchedule(snap *model.RestaurantSnapshot, req Request, now time.Time) (*model.Schedule, timeutil.Clock, error) {
	loc := snap.Restaurant.Location()
	day, err := timeutil.ParseDate(req.ReservationDate, loc)
	if err != nil {
		return nil, 0, &Error{Kind: KindValidation, Message: "reservationDate must be YYYY-MM-DD", Err: err}
	}
	clock, err := timeutil.ParseClock(req.ReservationTime)
	if err != nil {
		return nil, 0, &Error{Kind: KindValidation, Message: "reservationTime must be HH:MM", Err: err}
	}

	today := timeutil.Today(loc, now)
	switch {
	case day.Before(today):
		return nil, 0, newError(KindAvailability, "%s is in the past", req.ReservationDate)
	case !day.Before(today.AddDate(0, 0, s.rules.HorizonDays)):
		return nil, 0, newError(KindAvailability, "reservations open %d days ahead", s.rules.HorizonDays)
	case day.Equal(today) && clock <= timeutil.NowClock(loc, now):
		return nil, 0, newError(KindAvailability, "%s has already started", clock)
	}

	schedule := slots.ScheduleForSlot(snap.Schedules, day.Weekday(), clock)
	if schedule == nil {
		return nil, 0, newError(KindAvailability, "%s on %s is not offered", clock, req.ReservationDate)
	}
	return schedule, clock, nil
}

func checkPartySize(schedule *model.Schedule, restaurant *model.Restaurant, size int) error {
	if schedule.AcceptsPartySize(size) {
		return nil
	}
	if schedule.RedirectsParty(size) {
		return &Error{
			Kind:    KindSpecialGroup,
			Message: "groups of this size are arranged directly with the restaurant",
			Contact: &Contact{
				Method:   schedule.SpecialGroupsContactMethod,
				WhatsApp: restaurant.WhatsAppNumber,
				Phone:    restaurant.Phone,
			},
		}
	}
	return newError(KindValidation, "party size must be between %d and %d", schedule.MinPartySize, schedule.MaxPartySize)
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.BookingAttempt(outcome)
	}
}

func (r *Request) normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.ReservationDate = strings.TrimSpace(r.ReservationDate)
	r.ReservationTime = strings.TrimSpace(r.ReservationTime)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.ToLower(strings.TrimSpace(r.CustomerEmail))
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.SpecialRequests = strings.TrimSpace(r.SpecialRequests)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid reservation request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	default:
		return field + " is invalid"
	}
}
