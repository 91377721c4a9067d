// Package api exposes availability queries, booking submission and staff tools over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"reserva/internal/booking"
	"reserva/internal/events"
	"reserva/internal/model"
	"reserva/internal/slots"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Availability answers the public availability questions.
type Availability interface {
	AvailableDates(ctx context.Context, clientID string) ([]slots.DateOption, error)
	AvailableTimes(ctx context.Context, clientID, date string) ([]string, error)
	PartySizeOptions(ctx context.Context, clientID, date, clock string) ([]int, error)
	AvailableCapacity(ctx context.Context, clientID, date, clock string) (*int, error)
}

// Booker commits reservations.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*model.Reservation, error)
}

// StaffStore backs the staff endpoints.
type StaffStore interface {
	Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error)
	ListReservationsBetween(ctx context.Context, clientID, from, to string) ([]model.Reservation, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	// UpdateReservationStatus fails with model.ErrStatusConflict when the reservation
	// is no longer in status from.
	UpdateReservationStatus(ctx context.Context, clientID, id string, from, to model.ReservationStatus) error
}

// Config holds HTTP-level settings.
type Config struct {
	AllowedOrigins  []string
	StaffAPIKeys    []string
	StreamHeartbeat time.Duration
}

// Server routes HTTP requests to the services.
type Server struct {
	cfg          Config
	availability Availability
	booker       Booker
	staff        StaffStore
	bus          *events.EventBus
	publisher    *events.Publisher
	logger       zerolog.Logger
	router       chi.Router
}

func NewServer(cfg Config, availability Availability, booker Booker, staff StaffStore, bus *events.EventBus, logger zerolog.Logger) *Server {
	if cfg.StreamHeartbeat <= 0 {
		cfg.StreamHeartbeat = 25 * time.Second
	}
	s := &Server{
		cfg:          cfg,
		availability: availability,
		booker:       booker,
		staff:        staff,
		bus:          bus,
		logger:       logger.With().Str("component", "api").Logger(),
	}
	if bus != nil {
		s.publisher = events.NewPublisher(bus)
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(allowOrigins(s.cfg.AllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reservations", s.handleCreateReservation)

		r.Route("/restaurants/{clientID}", func(r chi.Router) {
			r.Get("/dates", s.handleDates)
			r.Get("/times", s.handleTimes)
			r.Get("/party-sizes", s.handlePartySizes)
			r.Get("/capacity", s.handleCapacity)
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(staffOnly(s.cfg.StaffAPIKeys))
				r.Get("/reservations/export", s.handleExport)
				r.Patch("/reservations/{reservationID}", s.handleUpdateStatus)
			})
		})
	})

	return r
}
