package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL != 24*time.Hour {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTTL)
	}
	if cfg.IsProduction() {
		t.Fatalf("development posture expected")
	}
	if len(cfg.CORSOrigins) == 0 {
		t.Fatalf("expected default CORS origins")
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing production secret")
	}

	t.Setenv("JWT_SECRET", "a-real-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with explicit secret: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production posture")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_EXPIRES_IN", "7d")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_EXPIRES_IN") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}

func TestPostgresDSNAssembly(t *testing.T) {
	c := &Config{
		DBHost: "db.internal", DBPort: "5433", DBUser: "fleet",
		DBName: "iris_fleet", DBSSLMode: "require", DBPassword: "s3cret",
	}
	dsn := c.PostgresDSN()
	for _, want := range []string{"host=db.internal", "port=5433", "dbname=iris_fleet", "sslmode=require", "password=s3cret"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn missing %q: %s", want, dsn)
		}
	}

	c.DSN = "postgres://explicit"
	if got := c.PostgresDSN(); got != "postgres://explicit" {
		t.Fatalf("explicit DSN should win, got %s", got)
	}

	c.DBDisabled = true
	if got := c.PostgresDSN(); got != "" {
		t.Fatalf("disabled database should yield empty DSN, got %s", got)
	}
}

func TestLoadDBDisabled(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DISABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DBDisabled {
		t.Fatalf("expected DBDisabled to be set")
	}
	if dsn := cfg.PostgresDSN(); dsn != "" {
		t.Fatalf("expected empty DSN, got %s", dsn)
	}

	t.Setenv("DB_DISABLED", "maybe")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DB_DISABLED") {
		t.Fatalf("expected boolean parse error, got %v", err)
	}
}

func TestLoadRejectsDBDisabledInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("DB_DISABLED", "true")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DB_DISABLED") {
		t.Fatalf("expected production rejection, got %v", err)
	}
}
