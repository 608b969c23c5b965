// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

identity:
  base_url: "https://id.example.com"
  anon_key: "anon-key"

webhook:
  url: "https://flows.example.com/webhook/truvy-final"
  source: "web-chat-interface"

gemini:
  api_key: "test-key"
  model: "gemini-2.5-flash"

chat:
  session_ttl: "15m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Identity.BaseURL != "https://id.example.com" {
		t.Errorf("Identity.BaseURL = %q", cfg.Identity.BaseURL)
	}
	if cfg.Webhook.URL != "https://flows.example.com/webhook/truvy-final" {
		t.Errorf("Webhook.URL = %q", cfg.Webhook.URL)
	}
	if cfg.Chat.SessionTTL != 15*time.Minute {
		t.Errorf("Chat.SessionTTL = %v, want %v", cfg.Chat.SessionTTL, 15*time.Minute)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./test.db"

identity:
  base_url: "https://id.example.com"

webhook:
  url: "https://flows.example.com/webhook/truvy-final"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Webhook.Source != DefaultSource {
		t.Errorf("Webhook.Source = %q, want %q", cfg.Webhook.Source, DefaultSource)
	}
	if cfg.Gemini.Model != DefaultModel {
		t.Errorf("Gemini.Model = %q, want %q", cfg.Gemini.Model, DefaultModel)
	}
	if cfg.Chat.Greeting != DefaultGreeting {
		t.Errorf("Chat.Greeting = %q", cfg.Chat.Greeting)
	}
	if cfg.Chat.Fallback != DefaultFallback {
		t.Errorf("Chat.Fallback = %q", cfg.Chat.Fallback)
	}
	if cfg.Chat.SessionTTL != DefaultSessionTTL {
		t.Errorf("Chat.SessionTTL = %v, want %v", cfg.Chat.SessionTTL, DefaultSessionTTL)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TRUVY_TEST_ANON_KEY", "expanded-anon-key")

	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./test.db"

identity:
  base_url: "https://id.example.com"
  anon_key: "${TRUVY_TEST_ANON_KEY}"

webhook:
  url: "https://flows.example.com/webhook/truvy-final"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Identity.AnonKey != "expanded-anon-key" {
		t.Errorf("Identity.AnonKey = %q, want expanded value", cfg.Identity.AnonKey)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: "./test.db"
identity:
  base_url: "https://id.example.com"
webhook:
  url: "https://flows.example.com/hook"
`,
			wantErr: "server.http_addr",
		},
		{
			name: "missing webhook url",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
identity:
  base_url: "https://id.example.com"
`,
			wantErr: "webhook.url",
		},
		{
			name: "missing identity base_url",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
webhook:
  url: "https://flows.example.com/hook"
`,
			wantErr: "identity.base_url",
		},
		{
			name: "tailscale without hostname",
			content: `
tailscale:
  enabled: true
database:
  path: "./test.db"
identity:
  base_url: "https://id.example.com"
webhook:
  url: "https://flows.example.com/hook"
`,
			wantErr: "tailscale.hostname",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "./test.db"
identity:
  base_url: "https://id.example.com"
webhook:
  url: "https://flows.example.com/hook"
chat:
  session_ttl: "not-a-duration"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() succeeded with invalid session_ttl")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() succeeded for missing file")
	}
}
