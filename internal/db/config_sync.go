package db

import (
	"context"
	"fmt"
	"time"

	"reserva/internal/config"
	"reserva/internal/model"
)

// SyncRestaurantsFromConfig applies restaurants.yaml to the database.
// It upserts restaurants, schedules and table configurations by id and marks rows
// that disappeared from the file inactive. Reservations are never touched.
func (db *DB) SyncRestaurantsFromConfig(ctx context.Context, cfg *config.RestaurantsConfig) error {
	if cfg == nil {
		return fmt.Errorf("restaurants config is nil")
	}

	return db.WithTx(ctx, func(tx *Tx) error {
		now := time.Now().UTC()
		seenClients := make(map[string]struct{})
		seenSchedules := make(map[int64]struct{})
		seenTables := make(map[int64]struct{})

		for _, rc := range cfg.Restaurants {
			r := rc.Restaurant()
			if err := tx.upsertRestaurant(ctx, &r, now); err != nil {
				return fmt.Errorf("sync restaurant %s: %w", r.ClientID, err)
			}
			seenClients[r.ClientID] = struct{}{}

			for _, tc := range rc.Tables {
				t := tc.TableConfiguration(r.ClientID)
				if err := tx.upsertTableConfig(ctx, &t, nil, now); err != nil {
					return fmt.Errorf("sync table %d: %w", t.ID, err)
				}
				seenTables[t.ID] = struct{}{}
			}

			for _, sc := range rc.Schedules {
				s := sc.Schedule(r.ClientID)
				if err := tx.upsertSchedule(ctx, &s, now); err != nil {
					return fmt.Errorf("sync schedule %d: %w", s.ID, err)
				}
				seenSchedules[s.ID] = struct{}{}

				scheduleID := s.ID
				for _, t := range s.CustomTableConfigs {
					if err := tx.upsertTableConfig(ctx, &t, &scheduleID, now); err != nil {
						return fmt.Errorf("sync table %d: %w", t.ID, err)
					}
					seenTables[t.ID] = struct{}{}
				}
			}
		}

		// Deactivate rows that disappeared from config.
		if err := tx.deactivateMissingClients(ctx, seenClients, now); err != nil {
			return err
		}
		if err := tx.deactivateMissingIDs(ctx, "schedules", seenSchedules, now); err != nil {
			return err
		}
		return tx.deactivateMissingIDs(ctx, "table_configs", seenTables, now)
	})
}

func (t *Tx) upsertRestaurant(ctx context.Context, r *model.Restaurant, now time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO restaurants (client_id, name, timezone, locale, notify_email, telegram_chat_id,
			whatsapp_number, phone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			locale = excluded.locale,
			notify_email = excluded.notify_email,
			telegram_chat_id = excluded.telegram_chat_id,
			whatsapp_number = excluded.whatsapp_number,
			phone = excluded.phone,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		r.ClientID, r.Name, r.Timezone, r.Locale, nullString(r.NotifyEmail), r.TelegramChatID,
		nullString(r.WhatsAppNumber), nullString(r.Phone), boolToInt(r.IsActive), now, now,
	)
	return err
}

func (t *Tx) upsertSchedule(ctx context.Context, s *model.Schedule, now time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO schedules (id, client_id, day_of_week, start_time, end_time, duration_minutes, capacity,
			min_party_size, max_party_size, special_groups_enabled, special_groups_condition,
			special_groups_contact_method, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			day_of_week = excluded.day_of_week,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_minutes = excluded.duration_minutes,
			capacity = excluded.capacity,
			min_party_size = excluded.min_party_size,
			max_party_size = excluded.max_party_size,
			special_groups_enabled = excluded.special_groups_enabled,
			special_groups_condition = excluded.special_groups_condition,
			special_groups_contact_method = excluded.special_groups_contact_method,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		s.ID, s.ClientID, s.DayOfWeek, s.StartTime, s.EndTime, s.DurationMinutes, s.Capacity,
		s.MinPartySize, s.MaxPartySize, boolToInt(s.SpecialGroupsEnabled), nullString(string(s.SpecialGroupsCondition)),
		nullString(string(s.SpecialGroupsContactMethod)), boolToInt(s.IsActive), now, now,
	)
	return err
}

func (t *Tx) upsertTableConfig(ctx context.Context, c *model.TableConfiguration, scheduleID *int64, now time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO table_configs (id, client_id, schedule_id, table_name, seats, quantity,
			min_party_size, max_party_size, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			schedule_id = excluded.schedule_id,
			table_name = excluded.table_name,
			seats = excluded.seats,
			quantity = excluded.quantity,
			min_party_size = excluded.min_party_size,
			max_party_size = excluded.max_party_size,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		c.ID, c.ClientID, scheduleID, c.TableName, c.Seats, c.Quantity,
		c.MinPartySize, c.MaxPartySize, boolToInt(c.IsActive), now, now,
	)
	return err
}

func (t *Tx) deactivateMissingClients(ctx context.Context, seen map[string]struct{}, now time.Time) error {
	rows, err := t.tx.QueryContext(ctx, `SELECT client_id FROM restaurants WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range missing {
		if _, err := t.tx.ExecContext(ctx, `UPDATE restaurants SET is_active = 0, updated_at = ? WHERE client_id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate restaurant %s: %w", id, err)
		}
	}
	return nil
}

// table is one of the fixed names above, never user input.
func (t *Tx) deactivateMissingIDs(ctx context.Context, table string, seen map[int64]struct{}, now time.Time) error {
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE is_active = 1`, table))
	if err != nil {
		return err
	}
	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range missing {
		if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = 0, updated_at = ? WHERE id = ?`, table), now, id); err != nil {
			return fmt.Errorf("deactivate %s %d: %w", table, id, err)
		}
	}
	return nil
}
