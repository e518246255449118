package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string // empty = local-only mode, no snapshot persistence

	Timezone                   string
	FirstReminderMinutesBefore int
	FinalReminderMinutesBefore int
	NoShowGraceMinutes         int
	WaitlistResponseMinutes    int

	TickInterval     time.Duration
	SnapshotInterval time.Duration
	ReplyTTL         time.Duration

	GatewayBaseURL    string
	GatewayToken      string
	GatewayInstanceID string
	ChannelEnabled    bool

	DefaultCountryCode string

	LogLevel  string
	LogFormat string
}

// FromEnv loads configuration from the environment, reading a .env file
// first when one is present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),

		Timezone: envDefault("TIMEZONE", "America/New_York"),

		GatewayBaseURL:    strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL")),
		GatewayToken:      strings.TrimSpace(os.Getenv("GATEWAY_TOKEN")),
		GatewayInstanceID: strings.TrimSpace(os.Getenv("GATEWAY_INSTANCE_ID")),

		DefaultCountryCode: envDefault("DEFAULT_COUNTRY_CODE", "1"),

		LogLevel:  envDefault("LOG_LEVEL", "info"),
		LogFormat: envDefault("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.FirstReminderMinutesBefore, err = envInt("FIRST_REMINDER_MINUTES_BEFORE", 120); err != nil {
		return cfg, err
	}
	if cfg.FinalReminderMinutesBefore, err = envInt("FINAL_REMINDER_MINUTES_BEFORE", 30); err != nil {
		return cfg, err
	}
	if cfg.NoShowGraceMinutes, err = envInt("NO_SHOW_GRACE_MINUTES", 15); err != nil {
		return cfg, err
	}
	if cfg.WaitlistResponseMinutes, err = envInt("WAITLIST_RESPONSE_MINUTES", 10); err != nil {
		return cfg, err
	}
	if cfg.TickInterval, err = envDuration("TICK_INTERVAL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.SnapshotInterval, err = envDuration("SNAPSHOT_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ReplyTTL, err = envDuration("REPLY_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}

	cfg.ChannelEnabled = envDefault("CHANNEL_ENABLED", "1") == "1"
	if cfg.GatewayBaseURL == "" {
		// Missing channel credentials is a configuration state, not an
		// error: the engine still runs, sends are skipped.
		cfg.ChannelEnabled = false
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("TIMEZONE %q is not a valid location: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location resolves the configured reference timezone. FromEnv already
// validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func envInt(k string, d int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", k, err)
	}
	return n, nil
}

func envDuration(k string, d time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", k, err)
	}
	return out, nil
}
