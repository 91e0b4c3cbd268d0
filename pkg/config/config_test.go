package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `{
	"sources": [
		{"name": "remotive", "provider": "remotive", "enabled": true}
	],
	"queries": [{"keywords": "golang", "remote": true}],
	"database": {"dsn": "postgres://localhost/jobs"}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
	interval, err := cfg.AggregationInterval()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interval != time.Hour {
		t.Errorf("expected default 1h interval, got %s", interval)
	}
	staleAfter, err := cfg.StaleAfter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if staleAfter != 168*time.Hour {
		t.Errorf("expected default 7-day stale window, got %s", staleAfter)
	}
	if cfg.Export.OutputDir != "exports" {
		t.Errorf("expected default export dir, got %q", cfg.Export.OutputDir)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://prod/jobs")
	t.Setenv("REMOTIVE_API_KEY", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.DSN != "postgres://prod/jobs" {
		t.Errorf("DATABASE_URL should win, got %q", cfg.Database.DSN)
	}
	if cfg.Sources[0].APIKey != "from-env" {
		t.Errorf("API key not loaded from environment, got %q", cfg.Sources[0].APIKey)
	}
}

func TestLoadConfigKeyWinsOverMissingEnv(t *testing.T) {
	config := `{
		"sources": [{"name": "usajobs", "provider": "usajobs", "enabled": true, "api_key": "from-file"}],
		"database": {"dsn": "postgres://localhost/jobs"}
	}`
	cfg, err := Load(writeConfig(t, config))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sources[0].APIKey != "from-file" {
		t.Errorf("file key should survive, got %q", cfg.Sources[0].APIKey)
	}
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	config := `{"sources": [], "database": {"dsn": ""}}`
	if _, err := Load(writeConfig(t, config)); err == nil {
		t.Fatal("expected error without a DSN")
	}
}

func TestLoadRejectsDuplicateSources(t *testing.T) {
	config := `{
		"sources": [
			{"name": "remotive", "provider": "remotive"},
			{"name": "remotive", "provider": "remotive"}
		],
		"database": {"dsn": "postgres://localhost/jobs"}
	}`
	if _, err := Load(writeConfig(t, config)); err == nil {
		t.Fatal("expected error on duplicate source names")
	}
}

func TestLoadRejectsShortInterval(t *testing.T) {
	config := `{
		"sources": [],
		"aggregation": {"interval": "10s"},
		"database": {"dsn": "postgres://localhost/jobs"}
	}`
	if _, err := Load(writeConfig(t, config)); err == nil {
		t.Fatal("expected error on sub-minute interval")
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"usajobs", "USAJOBS_API_KEY"},
		{"grad-circle", "GRAD_CIRCLE_API_KEY"},
		{"my source", "MY_SOURCE_API_KEY"},
	}
	for _, tt := range tests {
		if got := apiKeyEnvVar(tt.source); got != tt.want {
			t.Errorf("apiKeyEnvVar(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}
