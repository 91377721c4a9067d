package model

import (
	"time"

	"reserva/internal/timeutil"
)

// Restaurant is a tenant of the platform.
type Restaurant struct {
	ClientID       string    `json:"client_id"`
	Name           string    `json:"name"`
	Timezone       string    `json:"timezone"`
	Locale         string    `json:"locale"`
	NotifyEmail    string    `json:"notify_email,omitempty"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	WhatsAppNumber string    `json:"whatsapp_number,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Location resolves the restaurant's timezone, falling back to UTC.
func (r *Restaurant) Location() *time.Location {
	loc, err := timeutil.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
