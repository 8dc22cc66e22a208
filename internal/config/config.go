package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Conversation state
	HistoryBackend      string
	HistoryTTL          time.Duration
	HistoryTable        string
	SessionLockTTL      time.Duration
	WebchatSessionKey   string
	ClearOnTerminal     bool
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	AgentRequestTimeout time.Duration

	// Language model
	BedrockModelID   string
	RewriterModelID  string
	GeminiAPIKey     string
	GeminiModelID    string
	AgentMaxTokens   int
	AgentTemperature float64

	// WhatsApp over Twilio
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWebhookSecret string
	TwilioWhatsAppFrom  string
	PhoneCountryCode    string

	// Dashboard
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables, after applying a
// local .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		HistoryBackend:      strings.ToLower(strings.TrimSpace(getEnv("HISTORY_BACKEND", "redis"))),
		HistoryTTL:          getEnvAsDuration("HISTORY_TTL", 24*time.Hour),
		HistoryTable:        getEnv("HISTORY_TABLE", "appointment_conversations"),
		SessionLockTTL:      getEnvAsDuration("SESSION_LOCK_TTL", 30*time.Second),
		WebchatSessionKey:   getEnv("WEBCHAT_SESSION_KEY", "webchat:default"),
		ClearOnTerminal:     getEnvAsBool("CLEAR_ON_TERMINAL", true),
		RedisAddr:           getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		AgentRequestTimeout: getEnvAsDuration("AGENT_REQUEST_TIMEOUT", 45*time.Second),

		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		RewriterModelID:  getEnv("REWRITER_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		AgentMaxTokens:   getEnvAsInt("AGENT_MAX_TOKENS", 512),
		AgentTemperature: getEnvAsFloat("AGENT_TEMPERATURE", 0),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		TwilioWhatsAppFrom:  getEnv("TWILIO_WHATSAPP_FROM", ""),
		PhoneCountryCode:    getEnv("PHONE_COUNTRY_CODE", "880"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
