package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"ENV_NAME", "ENVIRONMENT", "PORT", "DATABASE_URL", "CORS_ORIGINS",
	"WEATHER_API_KEY", "WEATHER_API_URL", "RATE_LIMIT_RPS",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// chdirTemp switches into a fresh directory for the duration of the test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8000" {
		t.Errorf("ServerPort = %q, want 8000", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "sqlite:///./weather.db" {
		t.Errorf("DatabaseURL = %q, want sqlite default", cfg.DatabaseURL)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://localhost:5173"}) {
		t.Errorf("CORSOrigins = %v, want default origin", cfg.CORSOrigins)
	}
	if cfg.WeatherAPIURL != "https://api.weatherapi.com/v1" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
	if cfg.WeatherAPITimeout != 10*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 10s", cfg.WeatherAPITimeout)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.DatabaseMaxOpenConns != 15 || cfg.DatabaseMaxIdleConns != 5 {
		t.Errorf("pool = %d/%d, want 15/5", cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 100 {
		t.Errorf("rate limit = %d/%d, want 50/100", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true by default")
	}
}

// TestLoad_MissingAPIKeyIsNotFatal verifies the service starts without a
// credential; only range-fetch depends on it.
func TestLoad_MissingAPIKeyIsNotFatal(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIConfigured() {
		t.Errorf("WeatherAPIConfigured() = true with key %q", cfg.WeatherAPIKey)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
environment: production
server:
  port: "9090"
database:
  url: "postgres://weather:secret@db:5432/weather"
  max_open_conns: 20
  max_idle_conns: 4
  conn_max_lifetime: "1h"
cors:
  origins: ["https://app.example.com", "https://admin.example.com"]
weather_api:
  url: "https://weather.example.com/v1/"
  timeout: "4s"
  circuit_breaker:
    enabled: true
    failure_threshold: 3
    timeout: "1m"
request:
  timeout: "20s"
reliability:
  rate_limit_rps: 0
  rate_limit_burst: 10
shutdown:
  timeout: "5s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "postgres://weather:secret@db:5432/weather" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.DatabaseMaxOpenConns != 20 || cfg.DatabaseMaxIdleConns != 4 || cfg.DatabaseConnMaxLifetime != time.Hour {
		t.Errorf("pool = %d/%d/%v", cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns, cfg.DatabaseConnMaxLifetime)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.WeatherAPIURL != "https://weather.example.com/v1" {
		t.Errorf("WeatherAPIURL = %q, want trailing slash trimmed", cfg.WeatherAPIURL)
	}
	if cfg.WeatherAPITimeout != 4*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 4s", cfg.WeatherAPITimeout)
	}
	if !cfg.CircuitBreakerEnabled || cfg.CircuitBreakerFailureThreshold != 3 || cfg.CircuitBreakerTimeout != time.Minute {
		t.Errorf("circuit breaker = %v/%d/%v", cfg.CircuitBreakerEnabled, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerTimeout)
	}
	if cfg.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v, want 20s", cfg.RequestTimeout)
	}
	if cfg.RateLimitRPS != 0 {
		t.Errorf("RateLimitRPS = %d, want 0 (disabled)", cfg.RateLimitRPS)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true for production")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
server:
  port: "9090"
database:
  url: "sqlite:///file.db"
`)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "sqlite:///env.db")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("WEATHER_API_KEY", "key-from-env")
	t.Setenv("RATE_LIMIT_RPS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "sqlite:///env.db" {
		t.Errorf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.WeatherAPIKey != "key-from-env" {
		t.Errorf("WeatherAPIKey = %q, want env value over secrets file", cfg.WeatherAPIKey)
	}
	if cfg.RateLimitRPS != 7 {
		t.Errorf("RateLimitRPS = %d, want 7", cfg.RateLimitRPS)
	}
}

func TestLoad_SecretsFile(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want key from secrets file", cfg.WeatherAPIKey)
	}
	if !cfg.WeatherAPIConfigured() {
		t.Error("WeatherAPIConfigured() = false")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_URL=sqlite:///dotenv.db\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "sqlite:///dotenv.db" {
		t.Errorf("DatabaseURL = %q, want value from .env", cfg.DatabaseURL)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
weather_api:
  timeout: "soon"
request:
  timeout: "-1s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPITimeout != 10*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want default 10s", cfg.WeatherAPITimeout)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want default 15s", cfg.RequestTimeout)
	}
}

func TestLoad_RequestTimeoutRaisedAboveUpstreamTimeout(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
weather_api:
  timeout: "20s"
request:
  timeout: "5s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
}

func TestLoad_ValidationFailsWhenWeatherAPITimeoutZero(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
weather_api:
  timeout: "0s"
`)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when weather_api.timeout is zero, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "weather_api.timeout") {
		t.Errorf("Load() error = %v, want message about weather_api.timeout", err)
	}
}

func TestLoad_InvalidRateLimitEnv(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)
	t.Setenv("RATE_LIMIT_RPS", "fast")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "RATE_LIMIT_RPS") {
		t.Errorf("Load() error = %v, want RATE_LIMIT_RPS error", err)
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeSecretsFile(t, dir, "not valid: yaml: [[[")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for invalid secrets YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "secrets") {
		t.Errorf("Load() error = %v, want message about secrets", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearEnv(t)
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "not: valid: yaml: [[[")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for invalid config YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want message about parse config file", err)
	}
}

func TestLoad_ProjectDevConfig(t *testing.T) {
	clearEnv(t)
	origWd, _ := os.Getwd()
	if err := os.Chdir(findProjectRoot(t)); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origWd) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIURL == "" || cfg.ServerPort == "" || cfg.DatabaseURL == "" {
		t.Errorf("Load() did not populate config from config/dev.yaml: %+v", cfg)
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "secrets.yaml"), []byte(content), 0600); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
}

// findProjectRoot walks up from the test directory to the directory holding go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}
