package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	BookingsTable string
	SessionsTable string
	ArchiveTable  string
	SitesTable    string

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioWebhookSecret string
	// PublicWebhookURL is the externally visible webhook URL Twilio signs
	// against. Signature validation is skipped when the secret is empty.
	PublicWebhookURL string

	AdminJWTSecret string

	// DefaultCountryCode is prepended to national numbers that arrive
	// without a country code.
	DefaultCountryCode string
	SessionTTL         time.Duration
	MaxSelectionSize   int
	CascadeWindow      time.Duration
	CleanupTimezone    string
	PurgeBatchSize     int
	MaxOccurrences     int

	WebhookRatePerSec float64
	WebhookRateBurst  int
}

// ErrMissingMessagingCredentials indicates the outbound SMS transport cannot
// be constructed. Checked once at process start, not per request.
var ErrMissingMessagingCredentials = errors.New("config: twilio credentials missing")

// ErrMissingAdminSecret indicates the admin surface would be unprotected.
var ErrMissingAdminSecret = errors.New("config: admin jwt secret missing")

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BookingsTable: getEnv("BOOKINGS_TABLE", "salon-bookings"),
		SessionsTable: getEnv("SESSIONS_TABLE", "salon-selection-sessions"),
		ArchiveTable:  getEnv("ARCHIVE_TABLE", "salon-archived-bookings"),
		SitesTable:    getEnv("SITES_TABLE", "salon-sites"),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		PublicWebhookURL:    getEnv("PUBLIC_WEBHOOK_URL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "972"),
		SessionTTL:         getEnvAsDuration("SELECTION_SESSION_TTL", 10*time.Minute),
		MaxSelectionSize:   getEnvAsInt("SELECTION_MAX_CHOICES", 5),
		CascadeWindow:      getEnvAsDuration("CASCADE_WINDOW", 90*time.Minute),
		CleanupTimezone:    getEnv("CLEANUP_TIMEZONE", "Asia/Jerusalem"),
		PurgeBatchSize:     getEnvAsInt("PURGE_BATCH_SIZE", 25),
		MaxOccurrences:     getEnvAsInt("MAX_RECURRENCE_OCCURRENCES", 60),

		WebhookRatePerSec: getEnvAsFloat("WEBHOOK_RATE_PER_SEC", 5),
		WebhookRateBurst:  getEnvAsInt("WEBHOOK_RATE_BURST", 10),
	}
}

// Validate fails fast on configuration the process cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TwilioAccountSID) == "" || strings.TrimSpace(c.TwilioAuthToken) == "" {
		return ErrMissingMessagingCredentials
	}
	if c.Env != "development" && strings.TrimSpace(c.AdminJWTSecret) == "" {
		return ErrMissingAdminSecret
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
