// Package config loads service settings from the environment. A .env file in
// the working directory is honored when present, matching how the deployment
// scripts provision local instances.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// devSecret is the fallback signing secret outside production. Load
	// refuses to start a production instance with it.
	devSecret = "dev-secret-change-in-production"

	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Config carries every externally tunable setting.
type Config struct {
	AppName string
	Env     string
	Port    string

	// Database. DSN wins when set; otherwise it is assembled from parts.
	// DBDisabled switches the service to in-memory stores and makes
	// PostgresDSN return the empty string.
	DSN        string
	DBDisabled bool
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	DBMaxConns int

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	CORSOrigins []string
	LogLevel    string

	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment, applying development
// defaults. It fails when a production posture is requested without a real
// signing secret.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		AppName:    "iris-fleet-api",
		Env:        getenv("APP_ENV", "development"),
		Port:       getenv("PORT", "8080"),
		DSN:        os.Getenv("DB_DSN"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBName:     getenv("DB_NAME", "iris_fleet"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),
		JWTSecret:  getenv("JWT_SECRET", devSecret),
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}

	var err error
	if c.DBDisabled, err = getbool("DB_DISABLED", false); err != nil {
		return nil, err
	}
	if c.DBMaxConns, err = getint("DB_MAX_CONNECTIONS", 20); err != nil {
		return nil, err
	}
	if c.AccessTTL, err = getduration("JWT_EXPIRES_IN", defaultAccessTTL); err != nil {
		return nil, err
	}
	if c.RefreshTTL, err = getduration("JWT_REFRESH_EXPIRES_IN", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if c.RateBurst, err = getint("RATE_LIMIT_BURST", 50); err != nil {
		return nil, err
	}
	if c.RatePerSec, err = getint("RATE_LIMIT_PER_SEC", 25); err != nil {
		return nil, err
	}

	origins := getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173,http://localhost:8080")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}

	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devSecret) {
		return nil, errors.New("config: JWT_SECRET must be set in production")
	}
	if c.IsProduction() && c.DBDisabled {
		return nil, errors.New("config: DB_DISABLED is not allowed in production")
	}
	return c, nil
}

// IsProduction reports whether the service runs in production posture.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// PostgresDSN returns the connection string for the credential store, or the
// empty string when the database is disabled.
func (c *Config) PostgresDSN() string {
	if c.DBDisabled {
		return ""
	}
	if c.DSN != "" {
		return c.DSN
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
	if c.DBPassword != "" {
		dsn += " password=" + c.DBPassword
	}
	return dsn
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean: %w", key, err)
	}
	return v, nil
}

func getint(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return v, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration such as 24h: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return v, nil
}
