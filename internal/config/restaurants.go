package config

import (
	"fmt"
	"os"

	"reserva/internal/model"
	"reserva/internal/timeutil"

	"gopkg.in/yaml.v3"
)

// TableConfig is a table type in restaurants.yaml.
type TableConfig struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	Seats        int    `yaml:"seats"`
	Quantity     int    `yaml:"quantity"`
	MinPartySize int    `yaml:"min_party_size,omitempty"`
	MaxPartySize int    `yaml:"max_party_size,omitempty"`
	IsActive     *bool  `yaml:"is_active,omitempty"`
}

// SpecialGroupsConfig routes out-of-range parties to manual contact.
type SpecialGroupsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Condition     string `yaml:"condition"`      // smaller | bigger | both
	ContactMethod string `yaml:"contact_method"` // whatsapp | phone | both
}

// ScheduleConfig is one weekly service window.
type ScheduleConfig struct {
	ID              int64                `yaml:"id"`
	DayOfWeek       int                  `yaml:"day_of_week"` // 0=Sun .. 6=Sat
	StartTime       string               `yaml:"start_time"`  // "18:00"
	EndTime         string               `yaml:"end_time"`    // "22:00"
	DurationMinutes int                  `yaml:"duration_minutes"`
	Capacity        int                  `yaml:"capacity"`
	MinPartySize    int                  `yaml:"min_party_size"`
	MaxPartySize    int                  `yaml:"max_party_size"`
	SpecialGroups   *SpecialGroupsConfig `yaml:"special_groups,omitempty"`
	Tables          []TableConfig        `yaml:"tables,omitempty"`
	IsActive        *bool                `yaml:"is_active,omitempty"`
}

// RestaurantConfig declares a tenant with its schedules and tables.
type RestaurantConfig struct {
	ClientID       string           `yaml:"client_id"`
	Name           string           `yaml:"name"`
	Timezone       string           `yaml:"timezone"`
	Locale         string           `yaml:"locale"`
	NotifyEmail    string           `yaml:"notify_email,omitempty"`
	TelegramChatID int64            `yaml:"telegram_chat_id,omitempty"`
	WhatsAppNumber string           `yaml:"whatsapp_number,omitempty"`
	Phone          string           `yaml:"phone,omitempty"`
	IsActive       *bool            `yaml:"is_active,omitempty"`
	Schedules      []ScheduleConfig `yaml:"schedules"`
	Tables         []TableConfig    `yaml:"tables,omitempty"`
}

// ScheduleDefaults fill schedule fields left at zero.
type ScheduleDefaults struct {
	DurationMinutes int `yaml:"duration_minutes"`
	Capacity        int `yaml:"capacity"`
	MinPartySize    int `yaml:"min_party_size"`
	MaxPartySize    int `yaml:"max_party_size"`
}

// RestaurantDefaults are applied to every restaurant at load time.
type RestaurantDefaults struct {
	Timezone string           `yaml:"timezone"`
	Locale   string           `yaml:"locale"`
	Schedule ScheduleDefaults `yaml:"schedule"`
}

// RestaurantsConfig is the root of restaurants.yaml.
type RestaurantsConfig struct {
	Defaults    RestaurantDefaults `yaml:"defaults"`
	Restaurants []RestaurantConfig `yaml:"restaurants"`
}

// LoadRestaurantsConfig loads, defaults and validates restaurants.yaml.
func LoadRestaurantsConfig(path string) (*RestaurantsConfig, error) {
	if path == "" {
		path = "configs/restaurants.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read restaurants config: %w", err)
	}
	return ParseRestaurantsConfig(data)
}

// ParseRestaurantsConfig decodes restaurants.yaml content.
func ParseRestaurantsConfig(data []byte) (*RestaurantsConfig, error) {
	var cfg RestaurantsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse restaurants config: %w", err)
	}

	// Defaults go first so validation sees the effective values.
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate restaurants config: %w", err)
	}
	return &cfg, nil
}

func (c *RestaurantsConfig) applyDefaults() {
	d := c.Defaults
	if d.Timezone == "" {
		d.Timezone = "UTC"
	}
	if d.Locale == "" {
		d.Locale = timeutil.DefaultLocale
	}
	if d.Schedule.DurationMinutes <= 0 {
		d.Schedule.DurationMinutes = 90
	}
	if d.Schedule.MinPartySize <= 0 {
		d.Schedule.MinPartySize = 1
	}
	if d.Schedule.MaxPartySize <= 0 {
		d.Schedule.MaxPartySize = 8
	}
	c.Defaults = d

	for i := range c.Restaurants {
		r := &c.Restaurants[i]
		if r.Timezone == "" {
			r.Timezone = d.Timezone
		}
		if r.Locale == "" {
			r.Locale = d.Locale
		}
		for j := range r.Schedules {
			s := &r.Schedules[j]
			if s.DurationMinutes <= 0 {
				s.DurationMinutes = d.Schedule.DurationMinutes
			}
			if s.MinPartySize <= 0 {
				s.MinPartySize = d.Schedule.MinPartySize
			}
			if s.MaxPartySize <= 0 {
				s.MaxPartySize = d.Schedule.MaxPartySize
			}
			if s.Capacity <= 0 {
				s.Capacity = d.Schedule.Capacity
			}
		}
	}
}

// Validate checks the configuration for errors.
func (c *RestaurantsConfig) Validate() error {
	if len(c.Restaurants) == 0 {
		return fmt.Errorf("no restaurants defined")
	}

	clientIDs := make(map[string]bool)
	scheduleIDs := make(map[int64]bool)
	tableIDs := make(map[int64]bool)

	for i, r := range c.Restaurants {
		prefix := fmt.Sprintf("restaurant[%d]", i)
		if r.ClientID == "" {
			return fmt.Errorf("%s: client_id is required", prefix)
		}
		if clientIDs[r.ClientID] {
			return fmt.Errorf("%s: duplicate client_id '%s'", prefix, r.ClientID)
		}
		clientIDs[r.ClientID] = true

		if r.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if _, err := timeutil.LoadLocation(r.Timezone); err != nil {
			return fmt.Errorf("%s: invalid timezone '%s'", prefix, r.Timezone)
		}
		if !timeutil.SupportedLocale(r.Locale) {
			return fmt.Errorf("%s: unsupported locale '%s'", prefix, r.Locale)
		}

		for j, t := range r.Tables {
			if err := validateTable(t, fmt.Sprintf("%s.tables[%d]", prefix, j), tableIDs); err != nil {
				return err
			}
		}

		for j, s := range r.Schedules {
			sp := fmt.Sprintf("%s.schedules[%d]", prefix, j)
			if s.ID <= 0 {
				return fmt.Errorf("%s: id must be positive, got %d", sp, s.ID)
			}
			if scheduleIDs[s.ID] {
				return fmt.Errorf("%s: duplicate id %d", sp, s.ID)
			}
			scheduleIDs[s.ID] = true

			schedule := s.Schedule(r.ClientID)
			if err := schedule.Validate(); err != nil {
				return fmt.Errorf("%s: %w", sp, err)
			}
			for k, t := range s.Tables {
				if err := validateTable(t, fmt.Sprintf("%s.tables[%d]", sp, k), tableIDs); err != nil {
					return err
				}
			}
		}
		if err := validateNoOverlap(r, prefix); err != nil {
			return err
		}
	}
	return nil
}

// validateNoOverlap rejects active schedules of one weekday whose [start, end)
// windows intersect; a slot must belong to exactly one schedule. Windows are
// already known to parse.
func validateNoOverlap(r RestaurantConfig, prefix string) error {
	active := make([]model.Schedule, 0, len(r.Schedules))
	for _, s := range r.Schedules {
		if schedule := s.Schedule(r.ClientID); schedule.IsActive {
			active = append(active, schedule)
		}
	}

	for i := range active {
		a := &active[i]
		aStart, aEnd, _ := a.Window()
		for j := i + 1; j < len(active); j++ {
			b := &active[j]
			if a.DayOfWeek != b.DayOfWeek {
				continue
			}
			bStart, bEnd, _ := b.Window()
			if timeutil.Overlaps(aStart.Minutes(), aEnd.Minutes(), bStart.Minutes(), bEnd.Minutes()) {
				return fmt.Errorf("%s: schedules %d (%s-%s) and %d (%s-%s) overlap on day %d",
					prefix, a.ID, a.StartTime, a.EndTime, b.ID, b.StartTime, b.EndTime, a.DayOfWeek)
			}
		}
	}
	return nil
}

func validateTable(t TableConfig, prefix string, seen map[int64]bool) error {
	if t.ID <= 0 {
		return fmt.Errorf("%s: id must be positive, got %d", prefix, t.ID)
	}
	if seen[t.ID] {
		return fmt.Errorf("%s: duplicate id %d", prefix, t.ID)
	}
	seen[t.ID] = true

	if t.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if t.Seats <= 0 {
		return fmt.Errorf("%s: seats must be positive", prefix)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%s: quantity must be positive", prefix)
	}
	if t.MinPartySize > 0 && t.MaxPartySize > 0 && t.MinPartySize > t.MaxPartySize {
		return fmt.Errorf("%s: min_party_size must not exceed max_party_size", prefix)
	}
	return nil
}

func enabled(b *bool) bool {
	return b == nil || *b
}

// Restaurant converts the entry to the domain type.
func (r RestaurantConfig) Restaurant() model.Restaurant {
	return model.Restaurant{
		ClientID:       r.ClientID,
		Name:           r.Name,
		Timezone:       r.Timezone,
		Locale:         r.Locale,
		NotifyEmail:    r.NotifyEmail,
		TelegramChatID: r.TelegramChatID,
		WhatsAppNumber: r.WhatsAppNumber,
		Phone:          r.Phone,
		IsActive:       enabled(r.IsActive),
	}
}

// Schedule converts the entry to the domain type, custom tables included.
func (s ScheduleConfig) Schedule(clientID string) model.Schedule {
	schedule := model.Schedule{
		ID:              s.ID,
		ClientID:        clientID,
		DayOfWeek:       s.DayOfWeek,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		Capacity:        s.Capacity,
		MinPartySize:    s.MinPartySize,
		MaxPartySize:    s.MaxPartySize,
		IsActive:        enabled(s.IsActive),
	}
	if sg := s.SpecialGroups; sg != nil && sg.Enabled {
		schedule.SpecialGroupsEnabled = true
		schedule.SpecialGroupsCondition = model.SpecialGroupsCondition(sg.Condition)
		schedule.SpecialGroupsContactMethod = model.ContactMethod(sg.ContactMethod)
	}
	for _, t := range s.Tables {
		schedule.CustomTableConfigs = append(schedule.CustomTableConfigs, t.TableConfiguration(clientID))
	}
	return schedule
}

// TableConfiguration converts the entry to the domain type.
func (t TableConfig) TableConfiguration(clientID string) model.TableConfiguration {
	return model.TableConfiguration{
		ID:           t.ID,
		ClientID:     clientID,
		TableName:    t.Name,
		Seats:        t.Seats,
		Quantity:     t.Quantity,
		MinPartySize: t.MinPartySize,
		MaxPartySize: t.MaxPartySize,
		IsActive:     enabled(t.IsActive),
	}
}

// String returns a summary of the configuration.
func (c *RestaurantsConfig) String() string {
	schedules := 0
	for _, r := range c.Restaurants {
		schedules += len(r.Schedules)
	}
	return fmt.Sprintf("RestaurantsConfig: %d restaurants, %d schedules", len(c.Restaurants), schedules)
}
