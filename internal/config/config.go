package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// BackupConfig controls periodic database snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Server struct {
		Address         string   `yaml:"address"`
		ReadTimeoutSec  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSec int      `yaml:"write_timeout_seconds"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		StaffAPIKeys    []string `yaml:"staff_api_keys"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	Restaurants struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"restaurants"`

	Verification struct {
		Enabled   bool   `yaml:"enabled"`
		VerifyURL string `yaml:"verify_url"`
		Secret    string `yaml:"secret"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"verification"`

	Booking struct {
		HorizonDays        int `yaml:"horizon_days"`
		RateWindowMinutes  int `yaml:"rate_window_minutes"`
		MaxRecentPerClient int `yaml:"max_recent_per_client"`
		MaxPendingPerEmail int `yaml:"max_pending_per_email"`
	} `yaml:"booking"`

	Notifications struct {
		Enabled       bool  `yaml:"enabled"`
		QueueSize     int   `yaml:"queue_size"`
		RatePerSecond int   `yaml:"rate_per_second"`
		RetryDelaysMS []int `yaml:"retry_delays_ms"`

		Email struct {
			Enabled        bool   `yaml:"enabled"`
			Host           string `yaml:"host"`
			Port           int    `yaml:"port"`
			Username       string `yaml:"username"`
			Password       string `yaml:"password"`
			From           string `yaml:"from"`
			TimeoutSeconds int    `yaml:"timeout_seconds"`
		} `yaml:"email"`

		Telegram struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
		} `yaml:"telegram"`
	} `yaml:"notifications"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		CheckIntervalMinutes int  `yaml:"check_interval_minutes"`
		HoursBefore          int  `yaml:"hours_before"`
	} `yaml:"reminders"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
	} `yaml:"logging"`
}

// Load reads the YAML config at path. A .env file next to the working directory is
// loaded first so ${VAR} placeholders can be satisfied from it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/reserva.db"
	}
	if cfg.Restaurants.Path == "" {
		cfg.Restaurants.Path = "configs/restaurants.yaml"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ServerAddress() string {
	if c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

// WriteTimeout is zero by default because the event stream keeps responses open.
func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) ReloadInterval() time.Duration {
	if c.Restaurants.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Restaurants.ReloadIntervalSeconds) * time.Second
}

func (c *Config) VerifyTimeout() time.Duration {
	if c.Verification.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Verification.TimeoutMS) * time.Millisecond
}

func (c *Config) HorizonDays() int {
	if c.Booking.HorizonDays <= 0 {
		return 28
	}
	return c.Booking.HorizonDays
}

func (c *Config) RateWindow() time.Duration {
	if c.Booking.RateWindowMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Booking.RateWindowMinutes) * time.Minute
}

func (c *Config) MaxRecentPerClient() int {
	if c.Booking.MaxRecentPerClient <= 0 {
		return 5
	}
	return c.Booking.MaxRecentPerClient
}

func (c *Config) MaxPendingPerEmail() int {
	if c.Booking.MaxPendingPerEmail <= 0 {
		return 3
	}
	return c.Booking.MaxPendingPerEmail
}

func (c *Config) EmailTimeout() time.Duration {
	if c.Notifications.Email.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Notifications.Email.TimeoutSeconds) * time.Second
}

func (c *Config) NotificationRetryDelays() []time.Duration {
	delays := c.Notifications.RetryDelaysMS
	if len(delays) == 0 {
		delays = []int{1000, 5000, 30000}
	}
	result := make([]time.Duration, len(delays))
	for i, ms := range delays {
		result[i] = time.Duration(ms) * time.Millisecond
	}
	return result
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.CheckIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalMinutes) * time.Minute
}
