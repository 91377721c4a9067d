package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"reserva/internal/booking"
	"reserva/internal/model"
	"reserva/internal/slots"
)

// Retry tells the client what to do after a failed booking.
type Retry string

const (
	RetryPickAnotherSlot   Retry = "pick_another_slot"
	RetryWaitAndRetry      Retry = "wait_and_retry"
	RetryContactRestaurant Retry = "contact_restaurant"
	RetryFixInput          Retry = "fix_input"
	RetryTryLater          Retry = "try_later"
)

type errorResponse struct {
	Error string `json:"error"`
}

// bookingResponse is the body of POST /reservations, successful or not.
type bookingResponse struct {
	Success       bool             `json:"success"`
	ReservationID string           `json:"reservationId,omitempty"`
	Status        string           `json:"status,omitempty"`
	ErrorKind     booking.Kind     `json:"errorKind,omitempty"`
	Message       string           `json:"message,omitempty"`
	Retry         Retry            `json:"retry,omitempty"`
	Contact       *booking.Contact `json:"contact,omitempty"`
}

func statusForKind(kind booking.Kind) (int, Retry) {
	switch kind {
	case booking.KindValidation:
		return http.StatusBadRequest, RetryFixInput
	case booking.KindSpecialGroup:
		return http.StatusBadRequest, RetryContactRestaurant
	case booking.KindAvailability:
		return http.StatusConflict, RetryPickAnotherSlot
	case booking.KindTableUnavailable:
		return http.StatusConflict, RetryPickAnotherSlot
	case booking.KindRateLimit:
		return http.StatusTooManyRequests, RetryWaitAndRetry
	case booking.KindVerification:
		return http.StatusForbidden, RetryFixInput
	default:
		return http.StatusInternalServerError, RetryTryLater
	}
}

// writeBookingError renders a failed booking. Unexpected failures never leak details.
func writeBookingError(w http.ResponseWriter, err error) {
	var be *booking.Error
	if !errors.As(err, &be) {
		be = &booking.Error{Kind: booking.KindUnexpected}
	}
	status, retry := statusForKind(be.Kind)

	msg := be.Message
	if be.Kind == booking.KindUnexpected {
		msg = "something went wrong, please try again later"
	}
	writeJSON(w, status, bookingResponse{
		Success:   false,
		ErrorKind: be.Kind,
		Message:   msg,
		Retry:     retry,
		Contact:   be.Contact,
	})
}

// writeQueryError maps availability and staff errors to HTTP statuses.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slots.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
