package export

import (
	"bytes"
	"testing"
	"time"

	"reserva/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReservations(t *testing.T) {
	terraza := int64(2)
	unknown := int64(9)
	created := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	reservations := []model.Reservation{
		{ID: "r1", ReservationDate: "2026-03-06", ReservationTime: "19:00", PartySize: 4, TableConfigID: &terraza,
			Status: model.StatusPending, CustomerName: "Ana", CustomerEmail: "ana@example.com", CustomerPhone: "+34600111222", CreatedAt: created},
		{ID: "r2", ReservationDate: "2026-03-06", ReservationTime: "20:00", PartySize: 2,
			Status: model.StatusCancelled, CustomerName: "Luis", CustomerEmail: "luis@example.com", CustomerPhone: "+34600333444"},
		{ID: "r3", ReservationDate: "2026-03-07", ReservationTime: "13:30", PartySize: 6, TableConfigID: &unknown,
			Status: model.StatusConfirmed, CustomerName: "Marta", CustomerEmail: "marta@example.com", CustomerPhone: "+34600555666", SpecialRequests: "trona"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReservations(&buf, reservations, map[int64]string{2: "terraza"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetReservations, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetReservations)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, reservationColumns, rows[0])
	assert.Equal(t, []string{"2026-03-06", "19:00", "4", "terraza", "pending", "Ana", "ana@example.com", "+34600111222", "", "r1", "2026-03-02 09:15"}, rows[1])
	assert.Equal(t, "#9", rows[3][3])
	assert.Equal(t, "trona", rows[3][8])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"2026-03-06", "1", "4", "1"}, summary[1])
	assert.Equal(t, []string{"2026-03-07", "1", "6", "0"}, summary[2])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "reservas_casa-lola_2026-03-01_2026-03-31.xlsx", Filename("casa-lola", "2026-03-01", "2026-03-31"))
}
