package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/payflow/infra/conn"
)

type CKey string

type Config struct {
	Validator *validator.Validate
	SecretKey string
	DB        *conn.DB
}

var (
	instance *Config
)

func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
			// the secret key will change every time the application is restarted.
			SecretKey: GetEnv("APP_SECRET_KEY", "asdf1234"),
		}
	}
	return instance
}

// InitDB opens the shared Postgres pool and attaches it to the singleton
// Config, so ProviderConfig and store.Postgres can both be built from
// App().DB without each opening their own connection.
func InitDB() *conn.DB {
	db := &conn.DB{}
	db.ConnectDatabase()
	App().DB = db
	return db
}

// GetEnv returns the value of key from the environment (populated from
// .env at process start via godotenv.Load in cmd/main.go), falling back to
// defaultValue when unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// AppConfig is the process-wide ambient configuration for the HTTP server
// and its audit logging sinks, kept separate from Config since it's derived
// entirely from the environment rather than built up at runtime.
type AppConfig struct {
	Port             string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableLogging    bool
	LoggingLevel     string
	LogRetentionDays int
}

var appConfigInstance *AppConfig

// GetAppConfig returns the singleton AppConfig, reading environment
// variables once on first call.
func GetAppConfig() *AppConfig {
	if appConfigInstance != nil {
		return appConfigInstance
	}

	enableLogging, err := strconv.ParseBool(GetEnv("ENABLE_OPENSEARCH_LOGGING", "true"))
	if err != nil {
		enableLogging = true
	}
	retentionDays, err := strconv.Atoi(GetEnv("LOG_RETENTION_DAYS", "30"))
	if err != nil {
		retentionDays = 30
	}

	appConfigInstance = &AppConfig{
		Port:             GetEnv("APP_PORT", "9999"),
		OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableLogging:    enableLogging,
		LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
		LogRetentionDays: retentionDays,
	}
	return appConfigInstance
}
