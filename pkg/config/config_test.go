package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}

	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}

	if got := cfg.Dashboard.CacheTTL; got != 5*time.Minute {
		t.Fatalf("expected cache ttl 5m, got %v", got)
	}

	if got := len(cfg.Pipeline.Countries()); got != 8 {
		t.Fatalf("expected 8 default countries, got %d", got)
	}

	if cfg.Pipeline.TotalSentinel != "TOTAL GENERAL" {
		t.Fatalf("unexpected sentinel %q", cfg.Pipeline.TotalSentinel)
	}

	if cfg.Source.AmountColumn != "afiliado" {
		t.Fatalf("expected skewed amount column default, got %q", cfg.Source.AmountColumn)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBDriver, "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown driver to return an error")
	}
}

func TestLoad_RejectsEmptyCountries(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvKnownCountries, " , ")

	if _, err := Load(); err == nil {
		t.Fatal("expected empty country list to return an error")
	}
}

func TestLoad_CustomCountries(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvKnownCountries, "Chile, Uruguay")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	got := cfg.Pipeline.Countries()
	if len(got) != 2 || got[0] != "Chile" || got[1] != "Uruguay" {
		t.Fatalf("unexpected countries %v", got)
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvDBDriver, "mysql")
	t.Setenv(EnvDBDSN, "user:pass@tcp(localhost:3306)/ltv?parseTime=true")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestEnsureDSN_MySQLLegacy(t *testing.T) {
	db := DBConfig{
		Driver:         "mysql",
		LegacyHost:     "db",
		LegacyPort:     3306,
		LegacyUser:     "etl",
		LegacyPassword: "secret",
		LegacyName:     "ltv",
	}
	if err := db.ensureDSN(); err != nil {
		t.Fatalf("ensureDSN returned error: %v", err)
	}
	want := "etl:secret@tcp(db:3306)/ltv?parseTime=true&loc=UTC"
	if db.DSN != want {
		t.Fatalf("expected %q, got %q", want, db.DSN)
	}
}

func TestEnsureDSN_PostgresLegacy(t *testing.T) {
	db := DBConfig{
		Driver:        "postgres",
		LegacyHost:    "db",
		LegacyPort:    5432,
		LegacyUser:    "etl",
		LegacyName:    "ltv",
		LegacySSLMode: "disable",
	}
	if err := db.ensureDSN(); err != nil {
		t.Fatalf("ensureDSN returned error: %v", err)
	}
	want := "postgres://etl@db:5432/ltv?sslmode=disable"
	if db.DSN != want {
		t.Fatalf("expected %q, got %q", want, db.DSN)
	}
}

func TestEnsureDSN_MissingLegacy(t *testing.T) {
	db := DBConfig{Driver: "postgres", LegacyHost: "db"}
	if err := db.ensureDSN(); err == nil {
		t.Fatal("expected missing legacy values to return an error")
	}
}

func TestLoad_OptionalSinks(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.GCS.Enabled() || cfg.PubSub.Enabled() {
		t.Fatal("archive and run events should be off by default")
	}
	if cfg.Dashboard.ReloadLimit != 6 || cfg.Dashboard.ReloadWindow != time.Minute {
		t.Fatalf("unexpected reload throttle %d/%v", cfg.Dashboard.ReloadLimit, cfg.Dashboard.ReloadWindow)
	}

	t.Setenv(EnvGCSBucket, "ltv-archive")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if !cfg.GCS.Enabled() || cfg.GCS.ArchivePrefix != "snapshots" {
		t.Fatalf("unexpected gcs config %+v", cfg.GCS)
	}
}

func TestLoad_OperationalDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.App.LogFormat != "json" {
		t.Fatalf("expected json log format, got %q", cfg.App.LogFormat)
	}
	if cfg.DB.SlowQuery != 500*time.Millisecond {
		t.Fatalf("expected 500ms slow query threshold, got %v", cfg.DB.SlowQuery)
	}
	if cfg.Cron.MetricsAddr != "" {
		t.Fatalf("expected cron metrics listener off, got %q", cfg.Cron.MetricsAddr)
	}

	t.Setenv(EnvLogFormat, "xml")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown log format to return an error")
	}
}
