package model

import "time"

// TableConfiguration is a physical table type that can seat parties.
type TableConfiguration struct {
	ID           int64     `json:"id"`
	ClientID     string    `json:"client_id"`
	TableName    string    `json:"table_name"`
	Seats        int       `json:"seats"`
	Quantity     int       `json:"quantity"`
	MinPartySize int       `json:"min_party_size,omitempty"` // 0 = unset
	MaxPartySize int       `json:"max_party_size,omitempty"` // 0 = unset
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fits reports whether a party of the given size may be seated at this table type.
// Without explicit bounds the seat count decides.
func (t *TableConfiguration) Fits(partySize int) bool {
	if t.MinPartySize <= 0 && t.MaxPartySize <= 0 {
		return partySize >= 1 && t.Seats >= partySize
	}
	lo, hi := t.MinPartySize, t.MaxPartySize
	if lo <= 0 {
		lo = 1
	}
	if hi <= 0 {
		hi = t.Seats
	}
	return partySize >= lo && partySize <= hi
}
