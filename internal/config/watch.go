package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchRestaurants reloads restaurants.yaml on change and calls onUpdate with the latest
// config. It performs an initial load before entering the watch loop; a broken edit is
// logged and the previous config stays in effect.
func WatchRestaurants(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*RestaurantsConfig)) error {
	if path == "" {
		path = "configs/restaurants.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadRestaurantsConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadRestaurantsConfig(path)
				if err != nil {
					if logger != nil {
						logger.Error().Err(err).Str("path", path).Msg("Restaurants config reload failed")
					}
					lastMod = info.ModTime()
					continue
				}
				lastMod = info.ModTime()
				if logger != nil {
					logger.Info().Str("config", cfg.String()).Msg("Restaurants config reloaded")
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
