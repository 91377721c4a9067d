package export

import (
	"fmt"
	"io"
	"sort"

	"reserva/internal/model"
)

const (
	SheetReservations = "Reservas"
	SheetSummary      = "Resumen"
)

var reservationColumns = []string{
	"Fecha", "Hora", "Personas", "Mesa", "Estado",
	"Nombre", "Email", "Teléfono", "Peticiones", "ID", "Creada",
}

// Filename returns the download name for a restaurant and range.
func Filename(clientID, from, to string) string {
	return fmt.Sprintf("reservas_%s_%s_%s.xlsx", clientID, from, to)
}

// WriteReservations writes the reservation list and a per-day summary to wr.
// tables maps table configuration ids to names for the "Mesa" column.
func WriteReservations(wr io.Writer, reservations []model.Reservation, tables map[int64]string) error {
	w := newSheetWriter()
	defer w.Close()

	if err := w.AddSheet(SheetReservations); err != nil {
		return err
	}
	if err := w.WriteHeader(reservationColumns); err != nil {
		return err
	}
	for _, r := range reservations {
		table := ""
		if r.TableConfigID != nil {
			table = tables[*r.TableConfigID]
			if table == "" {
				table = fmt.Sprintf("#%d", *r.TableConfigID)
			}
		}
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format("2006-01-02 15:04")
		}
		row := []any{
			r.ReservationDate, r.ReservationTime, r.PartySize, table, string(r.Status),
			r.CustomerName, r.CustomerEmail, r.CustomerPhone, r.SpecialRequests, r.ID, created,
		}
		if err := w.WriteRow(row); err != nil {
			return fmt.Errorf("write reservation %s: %w", r.ID, err)
		}
	}
	w.SetWidths(12, 8, 10, 14, 12, 24, 28, 16, 32, 38, 18)

	if err := w.AddSheet(SheetSummary); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Fecha", "Reservas activas", "Comensales", "Canceladas"}); err != nil {
		return err
	}
	for _, d := range summarize(reservations) {
		if err := w.WriteRow([]any{d.date, d.active, d.guests, d.cancelled}); err != nil {
			return err
		}
	}
	w.SetWidths(12, 18, 12, 12)

	return w.Save(wr)
}

type daySummary struct {
	date      string
	active    int
	guests    int
	cancelled int
}

func summarize(reservations []model.Reservation) []daySummary {
	byDate := make(map[string]*daySummary)
	for _, r := range reservations {
		d, ok := byDate[r.ReservationDate]
		if !ok {
			d = &daySummary{date: r.ReservationDate}
			byDate[r.ReservationDate] = d
		}
		if r.IsActive() {
			d.active++
			d.guests += r.PartySize
		} else {
			d.cancelled++
		}
	}

	out := make([]daySummary, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date < out[j].date })
	return out
}
