package api

import (
	"errors"
	"net"
	"net/http"

	"reserva/internal/booking"
	"reserva/internal/model"
	"reserva/internal/slots"

	"github.com/go-chi/chi/v5"
)

// handleDates handles GET /restaurants/{clientID}/dates
func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.availability.AvailableDates(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// handleTimes handles GET /restaurants/{clientID}/times?date=
func (s *Server) handleTimes(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	times, err := s.availability.AvailableTimes(r.Context(), chi.URLParam(r, "clientID"), date)
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, times)
}

// handlePartySizes handles GET /restaurants/{clientID}/party-sizes?date=&time=
// time is optional.
func (s *Server) handlePartySizes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("date") == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	sizes, err := s.availability.PartySizeOptions(r.Context(), chi.URLParam(r, "clientID"), q.Get("date"), q.Get("time"))
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sizes)
}

// handleCapacity handles GET /restaurants/{clientID}/capacity?date=&time=
// capacity is null when the slot is not offered.
func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("date") == "" || q.Get("time") == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}

	capacity, err := s.availability.AvailableCapacity(r.Context(), chi.URLParam(r, "clientID"), q.Get("date"), q.Get("time"))
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*int{"capacity": capacity})
}

// handleCreateReservation handles POST /reservations
func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, bookingResponse{
			Success:   false,
			ErrorKind: booking.KindValidation,
			Message:   "invalid request body: " + err.Error(),
			Retry:     RetryFixInput,
		})
		return
	}
	req.RemoteIP = clientIP(r)

	reservation, err := s.booker.Book(r.Context(), req)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse{
		Success:       true,
		ReservationID: reservation.ID,
		Status:        string(reservation.Status),
	})
}

func (s *Server) queryFailed(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, slots.ErrInvalidQuery) && !errors.Is(err, model.ErrNotFound) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("availability query failed")
	}
	writeQueryError(w, err)
}

// clientIP returns the caller address after RealIP has rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
