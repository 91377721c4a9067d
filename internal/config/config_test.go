package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reserva/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRestaurants = `
defaults:
  timezone: Europe/Madrid
  schedule:
    duration_minutes: 90
    max_party_size: 8
restaurants:
  - client_id: casa-lola
    name: Casa Lola
    whatsapp_number: "+34600000000"
    tables:
      - id: 1
        name: pareja
        seats: 2
        quantity: 3
        min_party_size: 1
        max_party_size: 2
    schedules:
      - id: 10
        day_of_week: 5
        start_time: "18:00"
        end_time: "22:00"
        capacity: 20
        special_groups:
          enabled: true
          condition: bigger
          contact_method: whatsapp
      - id: 11
        day_of_week: 6
        start_time: "13:00"
        end_time: "16:00"
        capacity: 12
        is_active: false
        tables:
          - id: 2
            name: terraza
            seats: 4
            quantity: 3
`

func TestParseRestaurantsConfig(t *testing.T) {
	cfg, err := ParseRestaurantsConfig([]byte(sampleRestaurants))
	require.NoError(t, err)
	require.Len(t, cfg.Restaurants, 1)

	r := cfg.Restaurants[0]
	assert.Equal(t, "Europe/Madrid", r.Timezone, "inherits defaults.timezone")
	assert.Equal(t, "es", r.Locale)
	assert.True(t, r.Restaurant().IsActive)

	dinner := r.Schedules[0].Schedule(r.ClientID)
	assert.Equal(t, 90, dinner.DurationMinutes)
	assert.Equal(t, 1, dinner.MinPartySize)
	assert.Equal(t, 8, dinner.MaxPartySize)
	assert.True(t, dinner.SpecialGroupsEnabled)
	assert.Equal(t, model.SpecialGroupsBigger, dinner.SpecialGroupsCondition)
	assert.True(t, dinner.IsActive)

	lunch := r.Schedules[1].Schedule(r.ClientID)
	assert.False(t, lunch.IsActive)
	require.Len(t, lunch.CustomTableConfigs, 1)
	assert.Equal(t, "terraza", lunch.CustomTableConfigs[0].TableName)
	assert.True(t, lunch.CustomTableConfigs[0].IsActive)
}

func TestRestaurantsConfig_Validate(t *testing.T) {
	valid := func() *RestaurantsConfig {
		cfg, err := ParseRestaurantsConfig([]byte(sampleRestaurants))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *RestaurantsConfig)
	}{
		{"no restaurants", func(c *RestaurantsConfig) { c.Restaurants = nil }},
		{"missing client id", func(c *RestaurantsConfig) { c.Restaurants[0].ClientID = "" }},
		{"duplicate client id", func(c *RestaurantsConfig) { c.Restaurants = append(c.Restaurants, c.Restaurants[0]) }},
		{"bad timezone", func(c *RestaurantsConfig) { c.Restaurants[0].Timezone = "Mars/Olympus" }},
		{"bad locale", func(c *RestaurantsConfig) { c.Restaurants[0].Locale = "xx" }},
		{"duplicate schedule id", func(c *RestaurantsConfig) { c.Restaurants[0].Schedules[1].ID = 10 }},
		{"inverted window", func(c *RestaurantsConfig) { c.Restaurants[0].Schedules[0].EndTime = "17:00" }},
		{"capacity below min", func(c *RestaurantsConfig) { c.Restaurants[0].Schedules[0].Capacity = 0 }},
		{"bad special condition", func(c *RestaurantsConfig) { c.Restaurants[0].Schedules[0].SpecialGroups.Condition = "huge" }},
		{"duplicate table id", func(c *RestaurantsConfig) { c.Restaurants[0].Schedules[1].Tables[0].ID = 1 }},
		{"zero seats", func(c *RestaurantsConfig) { c.Restaurants[0].Tables[0].Seats = 0 }},
		{"overlapping schedules", func(c *RestaurantsConfig) {
			late := c.Restaurants[0].Schedules[0]
			late.ID = 12
			late.StartTime = "21:30"
			late.EndTime = "23:30"
			c.Restaurants[0].Schedules = append(c.Restaurants[0].Schedules, late)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRestaurantsConfig_ValidateSchedulesSharingADay(t *testing.T) {
	cfg, err := ParseRestaurantsConfig([]byte(sampleRestaurants))
	require.NoError(t, err)
	r := &cfg.Restaurants[0]
	dinner := r.Schedules[0]

	lunch := dinner
	lunch.ID = 12
	lunch.StartTime = "13:00"
	lunch.EndTime = "18:00"
	r.Schedules = append(r.Schedules, lunch)
	assert.NoError(t, cfg.Validate(), "back-to-back windows do not overlap")

	off := false
	r.Schedules[2].EndTime = "19:00"
	r.Schedules[2].IsActive = &off
	assert.NoError(t, cfg.Validate(), "inactive schedules are ignored")

	r.Schedules[2].IsActive = nil
	assert.ErrorContains(t, cfg.Validate(), "overlap")
}

func TestLoad_ExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: ` + filepath.Join(dir, "data", "test.db") + `
notifications:
  telegram:
    bot_token: ${RESERVA_TEST_TOKEN}
booking:
  max_recent_per_client: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("RESERVA_TEST_TOKEN", "secret-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, 7, cfg.MaxRecentPerClient())
	assert.Equal(t, 3, cfg.MaxPendingPerEmail())
	assert.Equal(t, time.Hour, cfg.RateWindow())
	assert.Equal(t, 28, cfg.HorizonDays())
	assert.Equal(t, ":8080", cfg.ServerAddress())
	assert.Equal(t, "configs/restaurants.yaml", cfg.Restaurants.Path)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestWatchRestaurants_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restaurants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRestaurants), 0o644))

	var (
		mu    sync.Mutex
		names []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchRestaurants(ctx, path, 10*time.Millisecond, nil, func(c *RestaurantsConfig) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, c.Restaurants[0].Name)
	})
	require.NoError(t, err)

	updated := []byte(strings.Replace(sampleRestaurants, "name: Casa Lola", "name: Casa Lola Centro", 1))
	require.NoError(t, os.WriteFile(path, updated, 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 2 && names[1] == "Casa Lola Centro"
	}, 2*time.Second, 10*time.Millisecond)
}
