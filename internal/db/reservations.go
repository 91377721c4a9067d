package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reserva/internal/model"
)

const reservationColumns = `id, client_id, reservation_date, reservation_time, party_size, duration_minutes,
	customer_name, customer_email, customer_phone, special_requests, table_config_id, status, created_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		r        model.Reservation
		requests sql.NullString
		tableID  sql.NullInt64
		status   string
	)
	err := row.Scan(&r.ID, &r.ClientID, &r.ReservationDate, &r.ReservationTime, &r.PartySize, &r.DurationMinutes,
		&r.CustomerName, &r.CustomerEmail, &r.CustomerPhone, &requests, &tableID, &status, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.SpecialRequests = requests.String
	r.Status = model.ReservationStatus(status)
	if tableID.Valid {
		id := tableID.Int64
		r.TableConfigID = &id
	}
	return &r, nil
}

func listReservations(ctx context.Context, q queryer, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func listActiveReservations(ctx context.Context, q queryer, clientID, date string) ([]model.Reservation, error) {
	result, err := listReservations(ctx, q, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE client_id = ? AND reservation_date = ? AND status IN ('pending', 'confirmed')
		ORDER BY reservation_time, created_at`, clientID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations %s %s: %w", clientID, date, err)
	}
	return result, nil
}

func insertReservation(ctx context.Context, q queryer, r *model.Reservation) error {
	var tableID sql.NullInt64
	if r.TableConfigID != nil {
		tableID = sql.NullInt64{Int64: *r.TableConfigID, Valid: true}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO reservations (
			id, client_id, reservation_date, reservation_time, party_size, duration_minutes,
			customer_name, customer_email, customer_phone, special_requests, table_config_id,
			status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ClientID, r.ReservationDate, r.ReservationTime, r.PartySize, r.DurationMinutes,
		r.CustomerName, r.CustomerEmail, r.CustomerPhone, nullString(r.SpecialRequests), tableID,
		string(r.Status), r.CreatedAt, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation %s: %w", r.ID, err)
	}
	return nil
}

// ListActiveReservations returns pending and confirmed reservations of a date.
func (db *DB) ListActiveReservations(ctx context.Context, clientID, date string) ([]model.Reservation, error) {
	return listActiveReservations(ctx, db.DB, clientID, date)
}

// ListActiveReservationsBetween returns pending and confirmed reservations with
// from <= date <= to.
func (db *DB) ListActiveReservationsBetween(ctx context.Context, clientID, from, to string) ([]model.Reservation, error) {
	result, err := listReservations(ctx, db.DB, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE client_id = ? AND reservation_date BETWEEN ? AND ? AND status IN ('pending', 'confirmed')
		ORDER BY reservation_date, reservation_time`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reservations %s %s..%s: %w", clientID, from, to, err)
	}
	return result, nil
}

// ListReservationsBetween returns every reservation of the range, any status.
func (db *DB) ListReservationsBetween(ctx context.Context, clientID, from, to string) ([]model.Reservation, error) {
	result, err := listReservations(ctx, db.DB, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE client_id = ? AND reservation_date BETWEEN ? AND ?
		ORDER BY reservation_date, reservation_time, created_at`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reservations %s %s..%s: %w", clientID, from, to, err)
	}
	return result, nil
}

// GetReservation loads a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return r, nil
}

func countRecentByClient(ctx context.Context, q queryer, clientID string, since time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE client_id = ? AND created_at >= ?`,
		clientID, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent reservations: %w", err)
	}
	return count, nil
}

func countPendingByEmail(ctx context.Context, q queryer, clientID, email string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE client_id = ? AND customer_email = ? AND status = 'pending'`,
		clientID, email,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending reservations: %w", err)
	}
	return count, nil
}

// CountRecentByClient counts reservation rows of any status created at or after since.
func (db *DB) CountRecentByClient(ctx context.Context, clientID string, since time.Time) (int, error) {
	return countRecentByClient(ctx, db.DB, clientID, since)
}

// CountPendingByEmail counts the pending reservations an email holds at a restaurant.
func (db *DB) CountPendingByEmail(ctx context.Context, clientID, email string) (int, error) {
	return countPendingByEmail(ctx, db.DB, clientID, email)
}

// UpdateReservationStatus moves a reservation of clientID from one status to another.
// The change only applies while the row is still in from; otherwise ErrStatusConflict
// is returned, or ErrNotFound when the reservation does not exist.
func (db *DB) UpdateReservationStatus(ctx context.Context, clientID, id string, from, to model.ReservationStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND client_id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, clientID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE id = ? AND client_id = ?`, id, clientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("reservation %s is no longer %s: %w", id, from, ErrStatusConflict)
}

// ListReminderCandidates returns active reservations of the range whose reminder has not
// been sent.
func (db *DB) ListReminderCandidates(ctx context.Context, clientID, from, to string) ([]model.Reservation, error) {
	result, err := listReservations(ctx, db.DB, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE client_id = ? AND reservation_date BETWEEN ? AND ?
			AND status IN ('pending', 'confirmed') AND reminder_sent_at IS NULL
		ORDER BY reservation_date, reservation_time`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates %s: %w", clientID, err)
	}
	return result, nil
}

// MarkReminderSent records that the reminder for id went out (or was skipped) at at.
func (db *DB) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE reservations SET reminder_sent_at = ?, updated_at = ? WHERE id = ? AND reminder_sent_at IS NULL`,
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark reminder %s: %w", id, err)
	}
	return nil
}

// ListActiveReservations reads inside the transaction.
func (t *Tx) ListActiveReservations(ctx context.Context, clientID, date string) ([]model.Reservation, error) {
	return listActiveReservations(ctx, t.tx, clientID, date)
}

// InsertReservation writes r inside the transaction.
func (t *Tx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return insertReservation(ctx, t.tx, r)
}

// CountRecentByClient counts inside the transaction.
func (t *Tx) CountRecentByClient(ctx context.Context, clientID string, since time.Time) (int, error) {
	return countRecentByClient(ctx, t.tx, clientID, since)
}

// CountPendingByEmail counts inside the transaction.
func (t *Tx) CountPendingByEmail(ctx context.Context, clientID, email string) (int, error) {
	return countPendingByEmail(ctx, t.tx, clientID, email)
}
