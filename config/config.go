package config

import (
	"os"
	"strconv"
	"strings"
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

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Payment gateway
	GatewayProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeAPIURL        string
	PaymentCurrency     string
	CurrencyMinorUnits  int
	GatewayTimeout      time.Duration

	// Notifications
	NotifyDriver     string
	KafkaBrokers     []string
	EmailTicketTopic string
	NotifyBuffer     int

	// Checkout
	ValidationLockTTL  time.Duration
	RateLimitPerMinute int

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

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ticket-platform"),

		// Gateway
		GatewayProvider:     getEnv("GATEWAY_PROVIDER", "stripe"),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeAPIURL:        getEnv("STRIPE_API_URL", ""),
		PaymentCurrency:     strings.ToLower(getEnv("PAYMENT_CURRENCY", "vnd")),
		CurrencyMinorUnits:  getEnvAsInt("CURRENCY_MINOR_UNITS", 0),
		GatewayTimeout:      getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),

		// Notifications
		NotifyDriver:     getEnv("NOTIFY_DRIVER", "pubnub"),
		KafkaBrokers:     getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		EmailTicketTopic: getEnv("EMAIL_TICKET_TOPIC", "email-ticket"),
		NotifyBuffer:     getEnvAsInt("NOTIFY_BUFFER", 256),

		// Checkout
		ValidationLockTTL:  getEnvAsDuration("VALIDATION_LOCK_TTL", "30s"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
