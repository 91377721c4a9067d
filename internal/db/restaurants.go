package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reserva/internal/model"
)

const restaurantColumns = `client_id, name, timezone, locale, notify_email, telegram_chat_id,
	whatsapp_number, phone, is_active, created_at, updated_at`

func scanRestaurant(row interface{ Scan(...any) error }) (*model.Restaurant, error) {
	var (
		r                            model.Restaurant
		notifyEmail, whatsapp, phone sql.NullString
	)
	err := row.Scan(&r.ClientID, &r.Name, &r.Timezone, &r.Locale, &notifyEmail, &r.TelegramChatID,
		&whatsapp, &phone, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.NotifyEmail = notifyEmail.String
	r.WhatsAppNumber = whatsapp.String
	r.Phone = phone.String
	return &r, nil
}

// GetRestaurant loads a restaurant by client id.
func (db *DB) GetRestaurant(ctx context.Context, clientID string) (*model.Restaurant, error) {
	row := db.QueryRowContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE client_id = ?`, clientID)
	r, err := scanRestaurant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("restaurant %q: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant %q: %w", clientID, err)
	}
	return r, nil
}

// ListRestaurants returns every restaurant ordered by client id.
func (db *DB) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	var result []model.Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// Snapshot loads a restaurant with its active schedules and table configurations.
// Schedule-specific table configurations are attached to their schedule; the rest
// are returned as the restaurant-wide list.
func (db *DB) Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error) {
	restaurant, err := db.GetRestaurant(ctx, clientID)
	if err != nil {
		return nil, err
	}

	schedules, err := db.ListSchedules(ctx, clientID)
	if err != nil {
		return nil, err
	}

	configs, err := db.listTableConfigs(ctx, clientID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]int, len(schedules))
	for i := range schedules {
		byID[schedules[i].ID] = i
	}

	var global []model.TableConfiguration
	for _, c := range configs {
		if c.scheduleID == nil {
			global = append(global, c.TableConfiguration)
			continue
		}
		if i, ok := byID[*c.scheduleID]; ok {
			schedules[i].CustomTableConfigs = append(schedules[i].CustomTableConfigs, c.TableConfiguration)
		}
	}

	return &model.RestaurantSnapshot{
		Restaurant:   *restaurant,
		Schedules:    schedules,
		TableConfigs: global,
	}, nil
}
