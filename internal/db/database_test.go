package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reserva/internal/config"
	"reserva/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const restaurantsYAML = `
restaurants:
  - client_id: casa-lola
    name: Casa Lola
    timezone: Europe/Madrid
    tables:
      - id: 1
        name: pareja
        seats: 2
        quantity: 3
    schedules:
      - id: 10
        day_of_week: 5
        start_time: "18:00"
        end_time: "22:00"
        capacity: 20
        max_party_size: 8
      - id: 11
        day_of_week: 6
        start_time: "13:00"
        end_time: "16:00"
        capacity: 12
        max_party_size: 6
        tables:
          - id: 2
            name: terraza
            seats: 4
            quantity: 2
  - client_id: el-faro
    name: El Faro
    schedules:
      - id: 20
        day_of_week: 1
        start_time: "20:00"
        end_time: "23:00"
        capacity: 30
`

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "reserva.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seededDB(t *testing.T) *DB {
	t.Helper()
	db := newTestDB(t)
	cfg, err := config.ParseRestaurantsConfig([]byte(restaurantsYAML))
	require.NoError(t, err)
	require.NoError(t, db.SyncRestaurantsFromConfig(context.Background(), cfg))
	return db
}

func reservation(id, date, clock string, party int, status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{
		ID:              id,
		ClientID:        "casa-lola",
		ReservationDate: date,
		ReservationTime: clock,
		PartySize:       party,
		DurationMinutes: 90,
		CustomerName:    "Ana",
		CustomerEmail:   "ana@example.com",
		CustomerPhone:   "+34600111222",
		Status:          status,
	}
}

func insert(t *testing.T, db *DB, r *model.Reservation) {
	t.Helper()
	require.NoError(t, db.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertReservation(context.Background(), r)
	}))
}

func TestSnapshot(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	snap, err := db.Snapshot(ctx, "casa-lola")
	require.NoError(t, err)

	assert.Equal(t, "Casa Lola", snap.Restaurant.Name)
	assert.Equal(t, "Europe/Madrid", snap.Restaurant.Timezone)
	require.Len(t, snap.Schedules, 2)
	require.Len(t, snap.TableConfigs, 1)
	assert.Equal(t, "pareja", snap.TableConfigs[0].TableName)

	// ordered by day of week
	assert.Equal(t, int64(10), snap.Schedules[0].ID)
	assert.Empty(t, snap.Schedules[0].CustomTableConfigs)
	require.Len(t, snap.Schedules[1].CustomTableConfigs, 1)
	assert.Equal(t, "terraza", snap.Schedules[1].CustomTableConfigs[0].TableName)

	_, err = db.Snapshot(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSyncRestaurantsFromConfig_DeactivatesMissing(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	trimmed := `
restaurants:
  - client_id: casa-lola
    name: Casa Lola Centro
    schedules:
      - id: 10
        day_of_week: 5
        start_time: "18:00"
        end_time: "23:00"
        capacity: 24
`
	cfg, err := config.ParseRestaurantsConfig([]byte(trimmed))
	require.NoError(t, err)
	require.NoError(t, db.SyncRestaurantsFromConfig(ctx, cfg))

	snap, err := db.Snapshot(ctx, "casa-lola")
	require.NoError(t, err)
	assert.Equal(t, "Casa Lola Centro", snap.Restaurant.Name)
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "23:00", snap.Schedules[0].EndTime)
	assert.Equal(t, 24, snap.Schedules[0].Capacity)
	assert.Empty(t, snap.TableConfigs)

	faro, err := db.GetRestaurant(ctx, "el-faro")
	require.NoError(t, err)
	assert.False(t, faro.IsActive)
}

func TestReservations_ListAndCount(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	insert(t, db, reservation("r1", "2026-03-06", "19:00", 4, model.StatusPending))
	insert(t, db, reservation("r2", "2026-03-06", "20:00", 2, model.StatusConfirmed))
	insert(t, db, reservation("r3", "2026-03-06", "18:30", 6, model.StatusCancelled))
	insert(t, db, reservation("r4", "2026-03-13", "19:00", 2, model.StatusPending))

	active, err := db.ListActiveReservations(ctx, "casa-lola", "2026-03-06")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "r1", active[0].ID)
	assert.Equal(t, "r2", active[1].ID)

	between, err := db.ListActiveReservationsBetween(ctx, "casa-lola", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, between, 3)

	all, err := db.ListReservationsBetween(ctx, "casa-lola", "2026-03-06", "2026-03-06")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	recent, err := db.CountRecentByClient(ctx, "casa-lola", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, recent, "cancelled rows still count")

	old, err := db.CountRecentByClient(ctx, "casa-lola", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, old)

	pending, err := db.CountPendingByEmail(ctx, "casa-lola", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

func TestReservations_TableAssignmentRoundTrip(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	r := reservation("r1", "2026-03-07", "13:30", 3, model.StatusPending)
	tableID := int64(2)
	r.TableConfigID = &tableID
	r.SpecialRequests = "terraza si es posible"
	insert(t, db, r)

	got, err := db.GetReservation(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.TableConfigID)
	assert.Equal(t, int64(2), *got.TableConfigID)
	assert.Equal(t, "terraza si es posible", got.SpecialRequests)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = db.GetReservation(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateReservationStatus(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	insert(t, db, reservation("r1", "2026-03-06", "19:00", 4, model.StatusPending))

	require.NoError(t, db.UpdateReservationStatus(ctx, "casa-lola", "r1", model.StatusPending, model.StatusCancelled))

	active, err := db.ListActiveReservations(ctx, "casa-lola", "2026-03-06")
	require.NoError(t, err)
	assert.Empty(t, active)

	// a confirm that read the row before the cancel must not revive it
	err = db.UpdateReservationStatus(ctx, "casa-lola", "r1", model.StatusPending, model.StatusConfirmed)
	assert.True(t, errors.Is(err, ErrStatusConflict))
	got, err := db.GetReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	err = db.UpdateReservationStatus(ctx, "el-faro", "r1", model.StatusCancelled, model.StatusConfirmed)
	assert.True(t, errors.Is(err, ErrNotFound), "other restaurant")

	err = db.UpdateReservationStatus(ctx, "casa-lola", "missing", model.StatusPending, model.StatusConfirmed)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTx_CountsSeeOwnWrites(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertReservation(ctx, reservation("r1", "2026-03-06", "19:00", 2, model.StatusPending)); err != nil {
			return err
		}
		recent, err := tx.CountRecentByClient(ctx, "casa-lola", since)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, recent)

		pending, err := tx.CountPendingByEmail(ctx, "casa-lola", "ana@example.com")
		if err != nil {
			return err
		}
		assert.Equal(t, 1, pending)
		return nil
	})
	require.NoError(t, err)
}

func TestReminderCandidates(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	insert(t, db, reservation("r1", "2026-03-06", "19:00", 4, model.StatusConfirmed))
	insert(t, db, reservation("r2", "2026-03-07", "14:00", 2, model.StatusPending))
	insert(t, db, reservation("r3", "2026-03-06", "20:00", 2, model.StatusCancelled))
	insert(t, db, reservation("r4", "2026-03-09", "20:00", 2, model.StatusPending))

	got, err := db.ListReminderCandidates(ctx, "casa-lola", "2026-03-06", "2026-03-07")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, "r2", got[1].ID)

	require.NoError(t, db.MarkReminderSent(ctx, "r1", time.Now()))
	require.NoError(t, db.MarkReminderSent(ctx, "r1", time.Now()))

	got, err = db.ListReminderCandidates(ctx, "casa-lola", "2026-03-06", "2026-03-07")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertReservation(ctx, reservation("r1", "2026-03-06", "19:00", 4, model.StatusPending)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	active, err := db.ListActiveReservations(ctx, "casa-lola", "2026-03-06")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBackupService(t *testing.T) {
	db := seededDB(t)
	insert(t, db, reservation("r1", "2026-03-06", "19:00", 4, model.StatusPending))

	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 7}, time.Hour, &logger)

	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)

	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()
	got, err := restored.GetReservation(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.PartySize)

	stale := filepath.Join(dir, backupPrefix+"20200101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(keep, old, old))

	svc.CleanupOldBackups()
	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
	assert.FileExists(t, path)
}
