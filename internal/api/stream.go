package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reserva/internal/events"

	"github.com/go-chi/chi/v5"
)

// slotChange is what the public stream reveals about a reservation.
type slotChange struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// handleEvents handles GET /restaurants/{clientID}/events?date=
// It streams reservation changes as Server-Sent Events so open booking forms can
// refresh availability. date is an optional filter.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	clientID := chi.URLParam(r, "clientID")
	date := r.URL.Query().Get("date")

	ch := make(chan events.Event, 16)
	forward := func(e events.Event) error {
		if e.ClientID != clientID || (date != "" && e.Date != date) {
			return nil
		}
		select {
		case ch <- e:
		default:
			// slow reader, it will catch up on the next change
		}
		return nil
	}
	defer s.bus.Subscribe(events.ReservationCreated, forward)()
	defer s.bus.Subscribe(events.ReservationUpdated, forward)()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(s.cfg.StreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e := <-ch:
			p, err := events.DecodeReservation(e)
			if err != nil {
				continue
			}
			data, _ := json.Marshal(slotChange{Date: p.ReservationDate, Time: p.ReservationTime})
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
			flusher.Flush()
		}
	}
}
