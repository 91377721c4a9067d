package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"reserva/internal/export"
	"reserva/internal/model"
	"reserva/internal/timeutil"

	"github.com/go-chi/chi/v5"
)

// MaxExportDays bounds the range of one export.
const MaxExportDays = 92

type statusRequest struct {
	Status model.ReservationStatus `json:"status"`
}

// allowed staff transitions
var statusTransitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCancelled},
}

func canTransition(from, to model.ReservationStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// handleExport handles GET /restaurants/{clientID}/reservations/export?from=&to=
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if err := validateRange(from, to); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.staff.Snapshot(r.Context(), clientID)
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	reservations, err := s.staff.ListReservationsBetween(r.Context(), clientID, from, to)
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}

	tables := make(map[int64]string)
	for _, t := range snap.TableConfigs {
		tables[t.ID] = t.TableName
	}
	for _, sc := range snap.Schedules {
		for _, t := range sc.CustomTableConfigs {
			tables[t.ID] = t.TableName
		}
	}

	var buf bytes.Buffer
	if err := export.WriteReservations(&buf, reservations, tables); err != nil {
		s.logger.Error().Err(err).Str("client_id", clientID).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(clientID, from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleUpdateStatus handles PATCH /restaurants/{clientID}/reservations/{reservationID}
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	id := chi.URLParam(r, "reservationID")

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	current, err := s.staff.GetReservation(r.Context(), id)
	if err == nil && current.ClientID != clientID {
		err = model.ErrNotFound
	}
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	if !canTransition(current.Status, req.Status) {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot move reservation from %s to %s", current.Status, req.Status))
		return
	}

	err = s.staff.UpdateReservationStatus(r.Context(), clientID, id, current.Status, req.Status)
	if errors.Is(err, model.ErrStatusConflict) {
		writeError(w, http.StatusConflict, "reservation was changed by someone else, reload and retry")
		return
	}
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	current.Status = req.Status

	s.logger.Info().
		Str("client_id", clientID).
		Str("reservation_id", id).
		Str("status", string(req.Status)).
		Msg("reservation status changed")

	if s.publisher != nil {
		var restaurant model.Restaurant
		if snap, err := s.staff.Snapshot(r.Context(), clientID); err == nil {
			restaurant = snap.Restaurant
		}
		s.publisher.ReservationUpdated(r.Context(), restaurant, *current)
	}
	writeJSON(w, http.StatusOK, current)
}

func validateRange(from, to string) error {
	if from == "" || to == "" {
		return errors.New("from and to are required")
	}
	start, err := time.Parse(timeutil.DateLayout, from)
	if err != nil {
		return errors.New("invalid from format; expected YYYY-MM-DD")
	}
	end, err := time.Parse(timeutil.DateLayout, to)
	if err != nil {
		return errors.New("invalid to format; expected YYYY-MM-DD")
	}
	if start.After(end) {
		return errors.New("from must be before or equal to to")
	}
	if int(end.Sub(start).Hours()/24) > MaxExportDays {
		return fmt.Errorf("date range exceeds maximum of %d days", MaxExportDays)
	}
	return nil
}
