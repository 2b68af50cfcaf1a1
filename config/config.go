package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (live tally + attendee channels)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Ticketing configuration
	ScanCodeKey  string // HMAC key for scan-code digests
	TicketPrefix string

	// Check-in configuration
	ScanRateLimit    int
	ScanRateWindow   time.Duration
	OperatorGrantTTL time.Duration

	// Registration configuration
	IntentTTL time.Duration

	// Payment gateway configuration
	Gateway GatewayConfig

	// Monitoring
	EnableMetrics bool
}

// GatewayConfig holds the payment gateway credentials. The callback
// subscription fields are the gateway's own PubNub keyspace, separate
// from the application keys above.
type GatewayConfig struct {
	Provider   string
	BaseURL    string
	PartnerID  string
	ClientID   string
	ClientKey  string
	HMACKey    string
	MerchantID string

	PNSubKey    string
	PNSubSecret string
	PNUUID      string
	PNChannel   string
	PNCipherKey string
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

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Ticketing
		ScanCodeKey:  getEnv("SCAN_CODE_KEY", "dev-scan-code-key"),
		TicketPrefix: getEnv("TICKET_PREFIX", "GP"),

		// Check-in
		ScanRateLimit:    getEnvAsInt("SCAN_RATE_LIMIT", 60),
		ScanRateWindow:   getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),
		OperatorGrantTTL: getEnvAsDuration("OPERATOR_GRANT_TTL", "18h"),

		// Registration
		IntentTTL: getEnvAsDuration("INTENT_TTL", "30m"),

		// Payment gateway
		Gateway: GatewayConfig{
			Provider:   getEnv("GATEWAY_PROVIDER", "jdb"),
			BaseURL:    getEnv("GATEWAY_BASE_URL", ""),
			PartnerID:  getEnv("GATEWAY_PARTNER_ID", ""),
			ClientID:   getEnv("GATEWAY_CLIENT_ID", ""),
			ClientKey:  getEnv("GATEWAY_CLIENT_KEY", ""),
			HMACKey:    getEnv("GATEWAY_HMAC_KEY", ""),
			MerchantID: getEnv("GATEWAY_MERCHANT_ID", ""),

			PNSubKey:    getEnv("GATEWAY_PN_SUBKEY", ""),
			PNSubSecret: getEnv("GATEWAY_PN_SUBSECRET", ""),
			PNUUID:      getEnv("GATEWAY_PN_UUID", ""),
			PNChannel:   getEnv("GATEWAY_PN_CHANNEL", ""),
			PNCipherKey: getEnv("GATEWAY_PN_CIPHERKEY", ""),
		},

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
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
