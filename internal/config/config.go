// Package config loads the server configuration from the environment and
// holds the protocol constants shared by the hub, the services and the client.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// Typing
	TypingTTL = 3 * time.Second

	// Reconciliation
	PullInterval = 2 * time.Second

	// WebSocket
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxFrameSize   = 64 * 1024
	SendBufferSize = 256

	// Rendering
	DefaultTimeLayout = "3:04 PM"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
)

// Config is filled from RAAIBAR_* variables.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":3000" validate:"required"`
	JWTSecret       string        `envconfig:"JWT_SECRET" validate:"required,min=16"`
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"72h" validate:"gt=0"`
	MessageStore    string        `envconfig:"MESSAGE_STORE" default:"memory" validate:"oneof=memory postgres badger"`
	GraphStore      string        `envconfig:"GRAPH_STORE" default:"memory" validate:"oneof=memory postgres redis"`
	PostgresDSN     string        `envconfig:"POSTGRES_DSN" validate:"required_if=MessageStore postgres,required_if=GraphStore postgres"`
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	BadgerPath      string        `envconfig:"BADGER_PATH" validate:"required_if=MessageStore badger"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	TimeLayout      string        `envconfig:"TIME_LAYOUT" default:"3:04 PM"`
	TimeZone        string        `envconfig:"TIME_ZONE" default:"Local"`
	EchoToSender    bool          `envconfig:"ECHO_TO_SENDER" default:"false"`
	RequireFriends  bool          `envconfig:"REQUIRE_FRIENDSHIP" default:"false"`
	DefaultLanguage string        `envconfig:"DEFAULT_LANGUAGE" default:"en" validate:"required"`
}

var validate = validator.New()

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the environment without touching .env.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("RAAIBAR", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves TimeZone, used to render message times.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("config: TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
