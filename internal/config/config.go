package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Clinic profile used when Redis holds no profile for ClinicOrgID.
	ClinicOrgID           string
	ClinicName            string
	ClinicPhone           string
	ClinicEmail           string
	ClinicAddress         string
	ClinicHours           string
	ClinicOutreachMessage string
	ClinicMapURL          string
	ClinicContactPath     string

	// KnowledgeFile is an optional YAML knowledge base.
	KnowledgeFile string

	// Chat timing
	ChatGreetingDelay  time.Duration
	ChatTypingDelay    time.Duration
	ChatNudgeInterval  time.Duration
	ChatSessionIdleTTL time.Duration
	ChatTimezone       string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	AdminJWTSecret     string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ClinicOrgID:           getEnv("CLINIC_ORG_ID", "diamond-smiles"),
		ClinicName:            getEnv("CLINIC_NAME", ""),
		ClinicPhone:           getEnv("CLINIC_PHONE", ""),
		ClinicEmail:           getEnv("CLINIC_EMAIL", ""),
		ClinicAddress:         getEnv("CLINIC_ADDRESS", ""),
		ClinicHours:           getEnv("CLINIC_HOURS", ""),
		ClinicOutreachMessage: getEnv("CLINIC_OUTREACH_MESSAGE", ""),
		ClinicMapURL:          getEnv("CLINIC_MAP_URL", ""),
		ClinicContactPath:     getEnv("CLINIC_CONTACT_PATH", ""),

		KnowledgeFile: getEnv("KNOWLEDGE_FILE", ""),

		ChatGreetingDelay:  getEnvAsDuration("CHAT_GREETING_DELAY", 600*time.Millisecond),
		ChatTypingDelay:    getEnvAsDuration("CHAT_TYPING_DELAY", 800*time.Millisecond),
		ChatNudgeInterval:  getEnvAsDuration("CHAT_NUDGE_INTERVAL", 25*time.Second),
		ChatSessionIdleTTL: getEnvAsDuration("CHAT_SESSION_IDLE_TTL", 30*time.Minute),
		ChatTimezone:       getEnv("CHAT_TIMEZONE", "America/Bogota"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
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

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
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
	return out
}
