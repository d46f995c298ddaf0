package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Nested structs group the settings of the outbound
// collaborators (assistant, predictor, SMTP).
type Config struct {
	Env            string `validate:"required"`         // application environment (dev/test/prod)
	Port           string `validate:"required,numeric"` // HTTP port to listen on
	DBUser         string `validate:"required"`
	DBPass         string
	DBHost         string `validate:"required"`
	DBPort         string `validate:"required,numeric"`
	DBName         string `validate:"required"`
	JWTSecret      string `validate:"required,min=16"`
	AccessTTLMin   int    `validate:"gte=1"`
	RefreshTTLDays int    `validate:"gte=1"`
	BcryptCost     int    `validate:"gte=4,lte=31"`

	// Root account seeded on startup when no user with RootEmail exists.
	RootEmail    string `validate:"omitempty,email"`
	RootUsername string
	RootPassword string

	Log       LogConfig
	Assistant AssistantConfig
	Predictor PredictorConfig
	SMTP      SMTPConfig
}

// LogConfig controls the process-wide slog logger.  When File is empty the
// logger writes to stdout.
type LogConfig struct {
	Level      string `validate:"omitempty,oneof=debug info warn warning error"`
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AssistantConfig points at an OpenAI-compatible chat completions API.
type AssistantConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	HistoryLimit int `validate:"gte=0,lte=100"`
	Timeout      time.Duration
}

// PredictorConfig points at the ML model service.
type PredictorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	Username string
	Password string
	From     string `validate:"omitempty,email"`
}

const defaultSystemPrompt = "You are a quality assistant for metal micro-wire production. " +
	"Answer questions about wire materials, process parameters and inspection results concisely."

// Load reads configuration values from environment variables and returns a
// Config.  All missing required variables are reported together.
func Load() (Config, error) {
	var missing []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	mustInt := func(key string) int {
		s := must(key)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			missing = append(missing, fmt.Errorf("invalid int for %s: %q", key, s))
		}
		return n
	}

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		RootEmail:      envStr("ROOT_EMAIL", ""),
		RootUsername:   envStr("ROOT_USERNAME", "root"),
		RootPassword:   os.Getenv("ROOT_PASSWORD"),
		Log: LogConfig{
			Level:      envStr("LOG_LEVEL", "info"),
			File:       envStr("LOG_FILE", ""),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 30),
		},
		Assistant: AssistantConfig{
			BaseURL:      envStr("ASSISTANT_BASE_URL", ""),
			APIKey:       os.Getenv("ASSISTANT_API_KEY"),
			Model:        envStr("ASSISTANT_MODEL", ""),
			SystemPrompt: envStr("ASSISTANT_SYSTEM_PROMPT", defaultSystemPrompt),
			HistoryLimit: envInt("ASSISTANT_HISTORY_LIMIT", 10),
			Timeout:      envDur("ASSISTANT_TIMEOUT", 60*time.Second),
		},
		Predictor: PredictorConfig{
			BaseURL: envStr("PREDICTOR_BASE_URL", ""),
			Timeout: envDur("PREDICTOR_TIMEOUT", 15*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     envStr("SMTP_HOST", ""),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envStr("SMTP_FROM", ""),
		},
	}
	if len(missing) > 0 {
		return cfg, errors.Join(missing...)
	}
	if cfg.RootEmail != "" && cfg.RootPassword == "" {
		return cfg, errors.New("ROOT_PASSWORD is required when ROOT_EMAIL is set")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
