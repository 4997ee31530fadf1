package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Endpoint != "http://localhost:8080" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "waq.db" {
		t.Fatalf("database defaults: %+v", cfg.Database)
	}
	if cfg.Triggers.DefaultInterval != "1h" || cfg.Triggers.MaxDisplayRows != 10 {
		t.Fatalf("trigger defaults: %+v", cfg.Triggers)
	}
	if !cfg.Health.Enabled || cfg.Health.Interval != "30s" {
		t.Fatalf("health defaults: %+v", cfg.Health)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://gateway.internal:9090
database:
  driver: postgres
  host: db.internal
  password: hunter2
triggers:
  maxDisplayRows: 25
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Endpoint != "http://gateway.internal:9090" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" {
		t.Fatalf("database overrides: %+v", cfg.Database)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.Port != 5432 || cfg.Database.SSLMode != "disable" {
		t.Fatalf("database defaults lost: %+v", cfg.Database)
	}
	if cfg.Triggers.MaxDisplayRows != 25 || cfg.Triggers.DefaultInterval != "1h" {
		t.Fatalf("trigger config: %+v", cfg.Triggers)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "endpoint: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: "postgres", Host: "db.internal", Port: 5433,
		User: "waq", Password: "pw", Name: "catalog", SSLMode: "require",
	}
	want := "host=db.internal port=5433 user=waq password=pw dbname=catalog sslmode=require"
	if got := pg.DSN(); got != want {
		t.Fatalf("postgres dsn = %q, want %q", got, want)
	}

	lite := DatabaseConfig{Driver: "sqlite", Path: "/var/lib/waq/waq.db"}
	if got := lite.DSN(); got != "/var/lib/waq/waq.db" {
		t.Fatalf("sqlite dsn = %q", got)
	}
}
