package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reserva/internal/api"
	"reserva/internal/booking"
	"reserva/internal/cache"
	"reserva/internal/config"
	"reserva/internal/db"
	"reserva/internal/events"
	"reserva/internal/lock"
	"reserva/internal/metrics"
	"reserva/internal/notify"
	"reserva/internal/reminders"
	"reserva/internal/slots"
	"reserva/internal/store"
	"reserva/internal/verify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("RESERVA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	rdb := connectRedis(ctx, cfg, &logger)
	if rdb != nil {
		defer rdb.Close()
	}

	restaurants := cache.NewRestaurantCache(database, rdb, cfg.CacheTTL(), &logger)
	err = config.WatchRestaurants(ctx, cfg.Restaurants.Path, cfg.ReloadInterval(), &logger, func(rc *config.RestaurantsConfig) {
		if err := database.SyncRestaurantsFromConfig(ctx, rc); err != nil {
			logger.Error().Err(err).Msg("restaurant sync failed")
			return
		}
		restaurants.InvalidateAll(ctx)
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Restaurants.Path).Msg("load restaurants config")
	}

	st := store.New(database, restaurants, lock.New(rdb, cfg.LockTTL(), &logger))
	recorder := metrics.Recorder{}

	var verifier booking.Verifier = verify.Noop{}
	if cfg.Verification.Enabled {
		verifier = verify.NewSiteVerifier(cfg.Verification.VerifyURL, cfg.Verification.Secret, cfg.VerifyTimeout())
	} else {
		logger.Warn().Msg("human verification disabled")
	}

	bus := events.NewEventBus(&logger)
	publisher := events.NewPublisher(bus)
	availability := slots.NewService(st, st, cfg.HorizonDays(), logger, slots.WithObserver(recorder))
	bookings := booking.NewService(st, verifier, publisher, recorder, booking.Rules{
		RateWindow:         cfg.RateWindow(),
		MaxRecentPerClient: cfg.MaxRecentPerClient(),
		MaxPendingPerEmail: cfg.MaxPendingPerEmail(),
		HorizonDays:        cfg.HorizonDays(),
	}, logger)

	if cfg.Notifications.Enabled {
		drain := startNotifications(cfg, restaurants, bus, &logger)
		defer drain()

		if cfg.Reminders.Enabled {
			reminder := reminders.NewService(reminders.Config{
				CheckInterval: cfg.ReminderInterval(),
				HoursBefore:   cfg.Reminders.HoursBefore,
			}, database, publisher, logger)
			reminder.Start(ctx)
			defer reminder.Stop()
		}
	}

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, cfg.Backup, cfg.BackupInterval(), &logger)
		go backups.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	handler := api.NewServer(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaffAPIKeys:   cfg.Server.StaffAPIKeys,
	}, availability, bookings, st, bus, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
	}
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// open event streams never finish on their own
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Warn().Err(err).Msg("api shutdown timed out, closing connections")
			_ = srv.Close()
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("reservation API started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("api server error")
	}
	<-shutdownDone
	logger.Info().Msg("reservation API stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", "reserva").Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger()
}

// connectRedis returns nil when Redis is not configured or unreachable; locks and the
// restaurant cache then stay in-process.
func connectRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-process locks and cache")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctxPing).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unreachable, using in-process locks and cache")
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// startNotifications wires the delivery channels and returns a function that drains
// the queue on shutdown.
func startNotifications(cfg *config.Config, restaurants notify.RestaurantSource, bus *events.EventBus, logger *zerolog.Logger) func() {
	var channels []notify.Channel

	if e := cfg.Notifications.Email; e.Enabled {
		email, err := notify.NewEmailChannel(notify.EmailConfig{
			Host:     e.Host,
			Port:     e.Port,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
			Timeout:  cfg.EmailTimeout(),
		})
		if err != nil {
			logger.Error().Err(err).Msg("email channel init failed, guest emails disabled")
		} else {
			channels = append(channels, email)
		}
	}

	if t := cfg.Notifications.Telegram; t.Enabled {
		bot, err := tgbotapi.NewBotAPI(t.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram bot init failed, telegram alerts disabled")
		} else {
			logger.Info().Str("bot", bot.Self.UserName).Msg("telegram alerts enabled")
			channels = append(channels, notify.NewTelegramChannel(bot))
		}
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize:     cfg.Notifications.QueueSize,
		RatePerSecond: float64(cfg.Notifications.RatePerSecond),
		RetryDelays:   cfg.NotificationRetryDelays(),
	}, restaurants, *logger, channels...)

	// The worker gets its own context so queued messages still go out after SIGTERM.
	dispatcher.Start(context.Background())
	unsubscribe := dispatcher.Subscribe(bus)

	return func() {
		unsubscribe()
		done := make(chan struct{})
		go func() {
			dispatcher.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(15 * time.Second):
			logger.Warn().Msg("notification queue not drained before shutdown")
		}
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
