package db

import (
	"context"
	"database/sql"
	"fmt"

	"reserva/internal/model"
)

// ListSchedules returns the active schedules of a restaurant.
func (db *DB) ListSchedules(ctx context.Context, clientID string) ([]model.Schedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, client_id, day_of_week, start_time, end_time, duration_minutes, capacity,
		       min_party_size, max_party_size, special_groups_enabled, special_groups_condition,
		       special_groups_contact_method, is_active, created_at, updated_at
		FROM schedules
		WHERE client_id = ? AND is_active = 1
		ORDER BY day_of_week, start_time`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var result []model.Schedule
	for rows.Next() {
		var (
			s                 model.Schedule
			condition, method sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.ClientID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.DurationMinutes,
			&s.Capacity, &s.MinPartySize, &s.MaxPartySize, &s.SpecialGroupsEnabled, &condition,
			&method, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.SpecialGroupsCondition = model.SpecialGroupsCondition(condition.String)
		s.SpecialGroupsContactMethod = model.ContactMethod(method.String)
		result = append(result, s)
	}
	return result, rows.Err()
}

type tableConfigRow struct {
	model.TableConfiguration
	scheduleID *int64
}

// listTableConfigs returns the active table configurations of a restaurant, both
// restaurant-wide and schedule-specific.
func (db *DB) listTableConfigs(ctx context.Context, clientID string) ([]tableConfigRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, client_id, schedule_id, table_name, seats, quantity, min_party_size,
		       max_party_size, is_active, created_at, updated_at
		FROM table_configs
		WHERE client_id = ? AND is_active = 1
		ORDER BY seats, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list table configs: %w", err)
	}
	defer rows.Close()

	var result []tableConfigRow
	for rows.Next() {
		var (
			c          tableConfigRow
			scheduleID sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.ClientID, &scheduleID, &c.TableName, &c.Seats, &c.Quantity,
			&c.MinPartySize, &c.MaxPartySize, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if scheduleID.Valid {
			id := scheduleID.Int64
			c.scheduleID = &id
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
