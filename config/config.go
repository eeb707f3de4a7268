package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Payment gateway configuration
	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string

	// Gateway capture notifications (PubNub channel the processor publishes to)
	GatewaySubKey    string
	GatewaySecret    string
	GatewayUUID      string
	GatewayChannel   string
	GatewayCipherKey string

	// Summarizer configuration
	SummarizerURL    string
	SummarizerAPIKey string

	// Booking configuration
	DraftTTL       time.Duration
	CommissionRate decimal.Decimal

	// Session configuration
	SessionTokenSecret string
	SessionTokenTTL    time.Duration

	// PubNub notification configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Chat configuration
	ChatSendBuffer int

	// Cleanup configuration
	CleanupInterval time.Duration

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Payment gateway
		GatewayBaseURL:   getEnv("PAYMENT_GATEWAY_URL", "https://api.razorpay.com/v1"),
		GatewayKeyID:     getEnv("PAYMENT_GATEWAY_KEY_ID", ""),
		GatewayKeySecret: getEnv("PAYMENT_GATEWAY_KEY_SECRET", ""),

		GatewaySubKey:    getEnv("PAYMENT_GATEWAY_PN_SUBKEY", ""),
		GatewaySecret:    getEnv("PAYMENT_GATEWAY_PN_SECRET", ""),
		GatewayUUID:      getEnv("PAYMENT_GATEWAY_PN_UUID", ""),
		GatewayChannel:   getEnv("PAYMENT_GATEWAY_PN_CHANNEL", "payment-capture-notifications"),
		GatewayCipherKey: getEnv("PAYMENT_GATEWAY_PN_CIPHERKEY", ""),

		// Summarizer
		SummarizerURL:    getEnv("SUMMARIZER_URL", ""),
		SummarizerAPIKey: getEnv("SUMMARIZER_API_KEY", ""),

		// Booking
		DraftTTL:       getEnvAsDuration("DRAFT_TTL", "15m"),
		CommissionRate: getEnvAsDecimal("COMMISSION_RATE", "0.10"),

		// Sessions
		SessionTokenSecret: getEnv("SESSION_TOKEN_SECRET", ""),
		SessionTokenTTL:    getEnvAsDuration("SESSION_TOKEN_TTL", "1h"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Chat
		ChatSendBuffer: getEnvAsInt("CHAT_SEND_BUFFER", 32),

		// Cleanup
		CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	value, _ := decimal.NewFromString(defaultValue)
	return value
}
