// Package config reads the bot's settings from environment variables and
// flags through viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"speaksmart/internal/gemini"
	"speaksmart/internal/session"
)

var ErrMissingToken = errors.New("TELEGRAM_TOKEN env variable is required")

const (
	StoreFile   = "file"
	StoreMemory = "memory"
)

type Config struct {
	Telegram TelegramConfig
	Gemini   GeminiConfig
	Health   HealthConfig
	Session  SessionConfig
	Workers  int
	Logging  LoggingConfig
}

type TelegramConfig struct {
	Token       string
	Debug       bool
	PollTimeout int
}

type GeminiConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Enabled reports whether an API key is set. Without one the bot still starts
// and every rewrite fails with a configuration message.
func (c GeminiConfig) Enabled() bool { return c.APIKey != "" }

type HealthConfig struct {
	Port int
}

type SessionConfig struct {
	Store       string
	File        string
	TTL         time.Duration
	MaxSessions int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// env maps config keys to the variables they are read from.
var env = map[string]string{
	"telegram.token":        "TELEGRAM_TOKEN",
	"telegram.debug":        "BOT_DEBUG",
	"telegram.poll_timeout": "TELEGRAM_POLL_TIMEOUT",
	"gemini.api_key":        "GEMINI_API_KEY",
	"gemini.endpoint":       "GEMINI_ENDPOINT",
	"gemini.timeout":        "GEMINI_TIMEOUT",
	"health.port":           "PORT",
	"session.store":         "SESSION_STORE",
	"session.file":          "STATE_FILE",
	"session.ttl":           "SESSION_TTL",
	"session.max":           "SESSION_MAX",
	"workers.max":           "MAX_CONCURRENT_CHATS",
	"logging.level":         "LOG_LEVEL",
	"logging.format":        "LOG_FORMAT",
}

// SetDefaults installs defaults and env bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("gemini.endpoint", gemini.DefaultEndpoint)
	v.SetDefault("gemini.timeout", gemini.DefaultTimeout.String())
	v.SetDefault("health.port", "8080")
	v.SetDefault("session.store", StoreFile)
	v.SetDefault("session.file", "data/sessions.json")
	v.SetDefault("session.ttl", session.DefaultTTL.String())
	v.SetDefault("session.max", session.DefaultMaxSessions)
	v.SetDefault("workers.max", 16)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	for key, name := range env {
		_ = v.BindEnv(key, name)
	}
}

// Load validates everything except the token; call RequireToken before
// starting the bot.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}

	geminiTimeout, err := parseDuration(v, "gemini.timeout")
	if err != nil {
		return Config{}, err
	}
	ttl, err := parseDuration(v, "session.ttl")
	if err != nil {
		return Config{}, err
	}
	port, err := parsePort(v.GetString("health.port"))
	if err != nil {
		return Config{}, err
	}

	pollTimeout := v.GetInt("telegram.poll_timeout")
	if pollTimeout < 0 {
		return Config{}, fmt.Errorf("invalid TELEGRAM_POLL_TIMEOUT value %d", pollTimeout)
	}
	maxSessions := v.GetInt("session.max")
	if maxSessions < 0 {
		return Config{}, fmt.Errorf("invalid SESSION_MAX value %d", maxSessions)
	}
	workers := v.GetInt("workers.max")
	if workers <= 0 {
		return Config{}, fmt.Errorf("invalid MAX_CONCURRENT_CHATS value %d", workers)
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("session.store")))
	switch store {
	case StoreFile, StoreMemory:
	default:
		return Config{}, fmt.Errorf("invalid SESSION_STORE value %q", store)
	}

	format := strings.ToLower(strings.TrimSpace(v.GetString("logging.format")))
	switch format {
	case "", "text", "json":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}

	return Config{
		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(v.GetString("telegram.token")),
			Debug:       v.GetBool("telegram.debug"),
			PollTimeout: pollTimeout,
		},
		Gemini: GeminiConfig{
			APIKey:   strings.TrimSpace(v.GetString("gemini.api_key")),
			Endpoint: strings.TrimSpace(v.GetString("gemini.endpoint")),
			Timeout:  geminiTimeout,
		},
		Health: HealthConfig{Port: port},
		Session: SessionConfig{
			Store:       store,
			File:        strings.TrimSpace(v.GetString("session.file")),
			TTL:         ttl,
			MaxSessions: maxSessions,
		},
		Workers: workers,
		Logging: LoggingConfig{
			Level:  strings.TrimSpace(v.GetString("logging.level")),
			Format: format,
		},
	}, nil
}

func (c Config) RequireToken() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	return nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	// Bare numbers are seconds.
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s value %q", env[key], raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", env[key], raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s value %q", env[key], raw)
	}
	return d, nil
}

func parsePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid PORT value %q", raw)
	}
	return port, nil
}
