package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	Env      string
	LogLevel string

	// Ops HTTP server (healthz/metrics).
	OpsPort string

	TelegramToken   string
	OperatorChatID  int64
	LoyaltyInfoText string

	// Google API access.
	GoogleCredentialsFile string
	CalendarID            string
	SpreadsheetID         string
	SheetRange            string

	// Scheduling constants. Block width is independent of service duration.
	TimeZone        string
	WorkdayStart    string
	WorkdayEnd      string
	SlotGranularity time.Duration
	SlotBlockWidth  time.Duration

	// Re-check slot freshness against the calendar right before commit.
	RevalidateOnCommit bool

	ExternalCallTimeout time.Duration

	CatalogFile string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// Loyalty balances: "redis" or a JSON file when LoyaltyFile is set.
	LoyaltyFile string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OpsPort: getEnv("OPS_PORT", "9090"),

		TelegramToken:   getEnv("TELEGRAM_TOKEN", ""),
		OperatorChatID:  getEnvAsInt64("OPERATOR_CHAT_ID", 0),
		LoyaltyInfoText: getEnv("LOYALTY_INFO_TEXT", "Earn points with every visit and spend them on any service."),

		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		CalendarID:            getEnv("CALENDAR_ID", ""),
		SpreadsheetID:         getEnv("SPREADSHEET_ID", ""),
		SheetRange:            getEnv("SHEET_RANGE", "Bookings!A:F"),

		TimeZone:        getEnv("TIME_ZONE", "Europe/Moscow"),
		WorkdayStart:    getEnv("WORKDAY_START", "10:00"),
		WorkdayEnd:      getEnv("WORKDAY_END", "20:00"),
		SlotGranularity: getEnvAsDuration("SLOT_GRANULARITY", 30*time.Minute),
		SlotBlockWidth:  getEnvAsDuration("SLOT_BLOCK_WIDTH", 60*time.Minute),

		RevalidateOnCommit: getEnvAsBool("REVALIDATE_ON_COMMIT", false),

		ExternalCallTimeout: getEnvAsDuration("EXTERNAL_CALL_TIMEOUT", 15*time.Second),

		CatalogFile: getEnv("CATALOG_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		LoyaltyFile: getEnv("LOYALTY_FILE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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
