package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxIdleConns int
	DBMaxOpenConns int

	// Key used to encrypt mailbox refresh tokens at rest.
	EncryptionKey string

	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenant       string
	GraphBaseURL          string

	// Public base URL Graph posts change notifications to.
	WebhookBaseURL string

	DebounceInterval     time.Duration
	SyncTimeout          time.Duration
	SnapshotPageSize     int
	SnapshotOnEmptyDelta bool
	SyncSweepInterval    time.Duration

	SubscriptionTTL  time.Duration
	RenewalThreshold time.Duration

	HydrationWorkers    int
	HydrationBatchSize  int
	HydrationBatchPause time.Duration

	FirebaseCredentials string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadwire"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
		MicrosoftTenant:       getEnv("MICROSOFT_TENANT", "common"),
		GraphBaseURL:          getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),

		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", ""),

		DebounceInterval:     getEnvAsDuration("SYNC_DEBOUNCE_INTERVAL", 5*time.Second),
		SyncTimeout:          getEnvAsDuration("SYNC_TIMEOUT", 2*time.Minute),
		SnapshotPageSize:     getEnvAsInt("SNAPSHOT_PAGE_SIZE", 25),
		SnapshotOnEmptyDelta: getEnvAsBool("SNAPSHOT_ON_EMPTY_DELTA", true),
		SyncSweepInterval:    getEnvAsDuration("SYNC_SWEEP_INTERVAL", 1*time.Hour),

		SubscriptionTTL:  getEnvAsDuration("SUBSCRIPTION_TTL", 70*time.Hour),
		RenewalThreshold: getEnvAsDuration("SUBSCRIPTION_RENEWAL_THRESHOLD", 24*time.Hour),

		HydrationWorkers:    getEnvAsInt("HYDRATION_WORKERS", 3),
		HydrationBatchSize:  getEnvAsInt("HYDRATION_BATCH_SIZE", 10),
		HydrationBatchPause: getEnvAsDuration("HYDRATION_BATCH_PAUSE", 2*time.Second),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
	}

	// Validate required configuration
	if cfg.DBPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Environment == "production" {
		if cfg.MicrosoftClientID == "" || cfg.MicrosoftClientSecret == "" {
			return nil, fmt.Errorf("Microsoft OAuth credentials are required in production")
		}
		if cfg.WebhookBaseURL == "" {
			return nil, fmt.Errorf("WEBHOOK_BASE_URL is required in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}
