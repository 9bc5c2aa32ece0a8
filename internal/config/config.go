package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Clinic identity used in notifications and responses
	ClinicName    string
	ClinicContact string
	DoctorName    string
	Timezone      string

	// Admin access
	AdminPassword  string
	AdminJWTSecret string
	AdminTokenTTL  time.Duration

	CORSAllowedOrigins []string

	// DynamoDB tables
	AppointmentsTable string
	DoctorLeavesTable string
	DoctorStatusTable string

	// Notification pipeline
	NotifyQueueURL string
	UseMemoryQueue bool
	WorkerCount    int

	// Twilio WhatsApp delivery
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	PhoneCountryCode   string

	// Operator email delivery
	EmailProvider     string
	SESFromEmail      string
	SESFromName       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OperatorEmails    []string

	// Queue snapshot cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	QueueCacheTTL time.Duration

	// Daily export
	ArchiveBucket string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		ClinicName:    getEnv("CLINIC_NAME", "Shanmuga Diabetic Clinic"),
		ClinicContact: getEnv("CLINIC_CONTACT", ""),
		DoctorName:    getEnv("DOCTOR_NAME", "Dr. Saravanan"),
		Timezone:      getEnv("CLINIC_TZ", "Asia/Kolkata"),

		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenTTL:  getEnvAsDuration("ADMIN_TOKEN_TTL", 12*time.Hour),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", "appointments"),
		DoctorLeavesTable: getEnv("DOCTOR_LEAVES_TABLE", "doctor_leaves"),
		DoctorStatusTable: getEnv("DOCTOR_STATUS_TABLE", "doctor_status"),

		NotifyQueueURL: getEnv("NOTIFY_QUEUE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		PhoneCountryCode:   getEnv("PHONE_COUNTRY_CODE", "+91"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "ses"))),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Shanmuga Diabetic Clinic"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Shanmuga Diabetic Clinic"),
		OperatorEmails:    getEnvAsList("OPERATOR_EMAILS"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		QueueCacheTTL: getEnvAsDuration("QUEUE_CACHE_TTL", 15*time.Second),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// Location resolves the clinic timezone, falling back to UTC when the
// configured name cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
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
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
