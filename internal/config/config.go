package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	ClinicName    string
	ClinicTZ      string
	CatalogPath   string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	HistoryTTL    time.Duration
	// HistoryTable is used for transcripts when Redis is not configured.
	HistoryTable string
	// SessionPurgeAfter is how long an unfinished session lives before the
	// scheduled purge removes it.
	SessionPurgeAfter time.Duration

	// LLM providers backing the intake agent, confirmation and handoff summaries.
	LLMProvider         string
	LLMFallbackProvider string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	AgentMaxSteps       int
	TurnTimeout         time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Turn dispatch
	UseMemoryQueue       bool
	ConversationQueueURL string
	WorkerCount          int

	// Finished packets
	ArchiveBucket            string
	EmailProvider            string
	SendGridAPIKey           string
	EmailFromAddress         string
	EmailFromName            string
	HandoffNotificationEmail string

	CORSAllowedOrigins   []string
	StaffJWTSecret       string
	MessageRatePerMinute int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ClinicName:    getEnv("CLINIC_NAME", "Kvinde Klinikken"),
		ClinicTZ:      getEnv("CLINIC_TIMEZONE", "Europe/Copenhagen"),
		CatalogPath:   getEnv("CATALOG_PATH", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		HistoryTTL:    getEnvAsDuration("HISTORY_TTL", 24*time.Hour),
		HistoryTable:  getEnv("HISTORY_TABLE", ""),

		SessionPurgeAfter: getEnvAsDuration("SESSION_PURGE_AFTER", 48*time.Hour),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		AgentMaxSteps:       getEnvAsInt("AGENT_MAX_STEPS", 5),
		TurnTimeout:         getEnvAsDuration("TURN_TIMEOUT", 90*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "eu-north-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),

		ArchiveBucket:            getEnv("ARCHIVE_BUCKET", ""),
		EmailProvider:            strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:           getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Clinic Triage"),
		HandoffNotificationEmail: getEnv("HANDOFF_NOTIFICATION_EMAIL", ""),

		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		StaffJWTSecret:       getEnv("STAFF_JWT_SECRET", ""),
		MessageRatePerMinute: getEnvAsInt("MESSAGE_RATE_PER_MINUTE", 30),
	}
}

// Location resolves the clinic timezone, falling back to UTC when unknown.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.ClinicTZ) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTZ)
	if err != nil {
		return time.UTC
	}
	return loc
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
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
