package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
log:
  level: debug
  format: text
auth:
  jwt_secret: test-secret
  token_expire_hours: 12
analyzer:
  api_url: https://llm.example.com/v1
  api_key: key-123
  model: gpt-4o-mini
  temperature: 0.2
  timeout_seconds: 30
cache:
  in_progress_ttl_seconds: 5
  complete_ttl_seconds: 120
store:
  max_audits: 100
audit:
  min_transcript_chars: 25
users:
  - username: auditor1
    password: secret
    role: auditor
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected level debug, got %s", cfg.Log.Level)
	}
	if cfg.Analyzer.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", cfg.Analyzer.Model)
	}
	if cfg.Analyzer.TimeoutSeconds != 30 {
		t.Errorf("Expected timeout 30, got %d", cfg.Analyzer.TimeoutSeconds)
	}
	if cfg.Cache.InProgressTTLSeconds != 5 {
		t.Errorf("Expected in-progress TTL 5, got %d", cfg.Cache.InProgressTTLSeconds)
	}
	if cfg.Cache.CompleteTTLSeconds != 120 {
		t.Errorf("Expected complete TTL 120, got %d", cfg.Cache.CompleteTTLSeconds)
	}
	if cfg.Store.MaxAudits != 100 {
		t.Errorf("Expected max audits 100, got %d", cfg.Store.MaxAudits)
	}
	if cfg.Audit.MinTranscriptChars != 25 {
		t.Errorf("Expected min chars 25, got %d", cfg.Audit.MinTranscriptChars)
	}
	if len(cfg.Users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(cfg.Users))
	}
	if cfg.Users[0].Role != "auditor" {
		t.Errorf("Expected role auditor, got %s", cfg.Users[0].Role)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: test-secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.TokenExpireHours != 24 {
		t.Errorf("Expected default expiry 24h, got %d", cfg.Auth.TokenExpireHours)
	}
	if cfg.Analyzer.Model != "gpt-4o" {
		t.Errorf("Expected default model gpt-4o, got %s", cfg.Analyzer.Model)
	}
	if cfg.Analyzer.TimeoutSeconds != 120 {
		t.Errorf("Expected default timeout 120, got %d", cfg.Analyzer.TimeoutSeconds)
	}
	if cfg.Cache.InProgressTTLSeconds != 10 {
		t.Errorf("Expected default in-progress TTL 10, got %d", cfg.Cache.InProgressTTLSeconds)
	}
	if cfg.Cache.CompleteTTLSeconds != 60 {
		t.Errorf("Expected default complete TTL 60, got %d", cfg.Cache.CompleteTTLSeconds)
	}
	if cfg.Audit.MinTranscriptChars != 50 {
		t.Errorf("Expected default min chars 50, got %d", cfg.Audit.MinTranscriptChars)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: from-yaml
analyzer:
  api_key: from-yaml
`)

	t.Setenv("ANALYZER_API_KEY", "from-env")
	t.Setenv("JWT_SECRET", "secret-from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Analyzer.APIKey != "from-env" {
		t.Errorf("Expected api key from env, got %s", cfg.Analyzer.APIKey)
	}
	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Expected jwt secret from env, got %s", cfg.Auth.JWTSecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestFindUser(t *testing.T) {
	cfg := &Config{
		Users: []User{
			{Username: "auditor1", Password: "secret", Role: "auditor"},
		},
	}

	if user := cfg.FindUser("auditor1"); user == nil || user.Role != "auditor" {
		t.Errorf("Expected auditor1, got %+v", user)
	}
	if cfg.FindUser("nobody") != nil {
		t.Error("Expected nil for unknown user")
	}
}
