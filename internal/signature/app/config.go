package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./signature.db)
	PepperFile   string // Optional: path to the password pepper file (default: ./pepper)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	TLSCertFile          string        // Optional: serve HTTPS when both cert and key are set
	TLSKeyFile           string        // Optional: see TLSCertFile
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Session sweep interval (default: 1h)
	MetricsEnabled       bool          // Serve /metrics (default: true)

	SessionTTL   time.Duration // Admin session lifetime (default: 24h)
	CookieSecure bool          // Mark the session cookie Secure (default: true)

	// Directory (Microsoft Graph). Sync is disabled unless all three
	// credentials are set.
	TenantID          string
	ClientID          string
	ClientSecret      string
	GraphBaseURL      string        // Optional: override for sovereign clouds and tests
	GraphLoginURL     string        // Optional: see GraphBaseURL
	SyncInterval      time.Duration // Periodic full sync, 0 disables (default: 0)
	SyncLimit         int           // Most directory users read per full sync (default: 1000)
	GraphRequestsPerS float64       // Outbound request pacing (default: 5)

	// Created on startup when no admin account exists yet.
	BootstrapAdminUsername string
	BootstrapAdminPassword string
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "signature.db"),
		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		TLSCertFile:          os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:           os.Getenv("TLS_KEY_FILE"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		MetricsEnabled:       getEnvBoolOrDefault("METRICS_ENABLED", true),

		SessionTTL:   getEnvDurationOrDefault("SESSION_TTL", 24*time.Hour),
		CookieSecure: getEnvBoolOrDefault("COOKIE_SECURE", true),

		TenantID:          os.Getenv("TENANT_ID"),
		ClientID:          os.Getenv("CLIENT_ID"),
		ClientSecret:      os.Getenv("CLIENT_SECRET"),
		GraphBaseURL:      os.Getenv("GRAPH_BASE_URL"),
		GraphLoginURL:     os.Getenv("GRAPH_LOGIN_URL"),
		SyncInterval:      getEnvDurationOrDefault("SIGNATURE_SYNC_INTERVAL", 0),
		SyncLimit:         getEnvIntOrDefault("SIGNATURE_SYNC_LIMIT", 1000),
		GraphRequestsPerS: getEnvFloatOrDefault("GRAPH_REQUESTS_PER_SECOND", 5),

		BootstrapAdminUsername: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
}

// DirectoryConfigured reports whether Graph credentials were supplied.
func (c Config) DirectoryConfigured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
