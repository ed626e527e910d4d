package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration for both binaries.
type Config struct {
	Env      string
	LogLevel string

	// Reservation service
	Port        string
	DatabaseURL string

	// Wizard host
	WizardPort      string
	ReservationsURL string
	AllowedOrigins  []string
	TrustedProxies  []string
	SubmitPerMinute int
	SessionTTL      time.Duration
	SubmitLockTTL   time.Duration
	SuccessCooldown time.Duration
	UseMemoryStore  bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Google sign-in and instructor calendar
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	CalendarRefreshToken string
	CalendarTimezone     string

	// SendGrid
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from the environment, optionally overlaid on a
// config.yaml found in the working directory or ./config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	cfg := &Config{
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),

		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),

		WizardPort:      v.GetString("WIZARD_PORT"),
		ReservationsURL: v.GetString("RESERVATIONS_URL"),
		AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
		TrustedProxies:  splitList(v.GetString("TRUSTED_PROXIES")),
		SubmitPerMinute: v.GetInt("SUBMIT_PER_MINUTE"),
		SessionTTL:      v.GetDuration("SESSION_TTL"),
		SubmitLockTTL:   v.GetDuration("SUBMIT_LOCK_TTL"),
		SuccessCooldown: v.GetDuration("SUCCESS_COOLDOWN"),
		UseMemoryStore:  v.GetBool("USE_MEMORY_STORE"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),

		JWTSecret: strings.TrimSpace(v.GetString("JWT_HMAC_SECRET")),
		TokenTTL:  v.GetDuration("TOKEN_TTL"),

		GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:    v.GetString("GOOGLE_REDIRECT_URL"),
		CalendarRefreshToken: v.GetString("GOOGLE_CALENDAR_REFRESH_TOKEN"),
		CalendarTimezone:     v.GetString("CALENDAR_TIMEZONE"),

		SendGridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		SendGridFromEmail: v.GetString("SENDGRID_FROM_EMAIL"),
		SendGridFromName:  v.GetString("SENDGRID_FROM_NAME"),
	}
	return cfg, nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GoogleConfigured reports whether Google sign-in credentials are present.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")
	v.SetDefault("WIZARD_PORT", "8081")
	v.SetDefault("RESERVATIONS_URL", "http://localhost:8080")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("SUBMIT_PER_MINUTE", 20)
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("SUBMIT_LOCK_TTL", "30s")
	v.SetDefault("SUCCESS_COOLDOWN", "500ms")
	v.SetDefault("USE_MEMORY_STORE", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("CALENDAR_TIMEZONE", "Europe/Madrid")
	v.SetDefault("SENDGRID_FROM_NAME", "Taller de Cerámica")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
