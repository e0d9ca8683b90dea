package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	Port        string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	RedisURL    string

	TwitchClientID     string
	TwitchClientSecret string
	KickClientID       string
	KickClientSecret   string

	// TwitchGameName is the game whose live pool is fetched and matched.
	TwitchGameName string

	// PollInterval is the default client poller interval.
	PollInterval time.Duration

	// MaxServersPerRequest bounds the serverIds batch size (anti-abuse).
	MaxServersPerRequest int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		TwitchClientID:       getEnv("TWITCH_CLIENT_ID", ""),
		TwitchClientSecret:   getEnv("TWITCH_CLIENT_SECRET", ""),
		KickClientID:         getEnv("KICK_CLIENT_ID", ""),
		KickClientSecret:     getEnv("KICK_CLIENT_SECRET", ""),
		TwitchGameName:       getEnv("TWITCH_GAME_NAME", "Grand Theft Auto V"),
		PollInterval:         30 * time.Second,
		MaxServersPerRequest: 20,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Platform credentials are optional, but a pair must be set together.
	// A missing pair disables that platform rather than failing startup.
	if (cfg.TwitchClientID == "") != (cfg.TwitchClientSecret == "") {
		return nil, fmt.Errorf("TWITCH_CLIENT_ID and TWITCH_CLIENT_SECRET must be set together")
	}
	if (cfg.KickClientID == "") != (cfg.KickClientSecret == "") {
		return nil, fmt.Errorf("KICK_CLIENT_ID and KICK_CLIENT_SECRET must be set together")
	}

	if raw := getEnv("POLL_INTERVAL_SECONDS", ""); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 5 {
			return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be an integer >= 5, got %q", raw)
		}
		cfg.PollInterval = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// TwitchEnabled reports whether Twitch credentials are present.
func (c *Config) TwitchEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

// KickEnabled reports whether Kick credentials are present.
func (c *Config) KickEnabled() bool {
	return c.KickClientID != "" && c.KickClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
