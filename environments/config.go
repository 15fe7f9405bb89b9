package environments

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OpenPhone OpenPhoneConfig
	Notifier  NotifierConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// OpenPhoneConfig covers the inbound side of the provider integration.
type OpenPhoneConfig struct {
	// WebhookSecret signs inbound webhooks; when empty, signature
	// verification is skipped (local development).
	WebhookSecret string
	// PhoneNumber is the business's own number, used to pick the contact
	// out of a call's participant list.
	PhoneNumber string
}

// NotifierConfig covers the outbound side: the provider endpoint used for
// confirmation SMS.
type NotifierConfig struct {
	MessageURL string
	APIKey     string
	FromNumber string
	Timeout    time.Duration
}

type AuthConfig struct {
	CRMAPIKey string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "crm"),
			Password: GetEnv("DB_PASSWORD", "crm123"),
			DBName:   GetEnv("DB_NAME", "crm_comms"),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},
		OpenPhone: OpenPhoneConfig{
			WebhookSecret: GetEnv("OPENPHONE_WEBHOOK_SECRET", ""),
			PhoneNumber:   GetEnv("OPENPHONE_NUMBER", ""),
		},
		Notifier: NotifierConfig{
			MessageURL: GetEnv("OPENPHONE_MESSAGE_URL", "https://api.openphone.com/v1/messages"),
			APIKey:     GetEnv("OPENPHONE_API_KEY", ""),
			FromNumber: GetEnv("OPENPHONE_NUMBER", ""),
			Timeout:    time.Duration(GetEnvAsInt("NOTIFIER_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Auth: AuthConfig{
			CRMAPIKey: GetEnv("CRM_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
