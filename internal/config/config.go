// ABOUTME: Configuration loading and parsing for truvy-web
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete truvy-web configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Identity  IdentityConfig  `yaml:"identity"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Chat      ChatConfig      `yaml:"chat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve HTTPS with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds the session-cache database configuration.
// Conversation history is deliberately not stored here; only browser
// sessions are persisted so a server restart doesn't log everyone out.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// IdentityConfig holds the external identity provider configuration.
// The provider is a GoTrue-style service (Supabase auth): truvy-web never
// stores passwords itself.
type IdentityConfig struct {
	BaseURL   string `yaml:"base_url"`
	AnonKey   string `yaml:"anon_key"`
	JWTSecret string `yaml:"jwt_secret"` // Provider's HS256 secret; enables local token verification
}

// WebhookConfig holds the workflow webhook endpoint configuration
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Source string `yaml:"source"`
}

// GeminiConfig holds the generative-text service configuration.
// The API key may also come from the GEMINI_API_KEY environment variable.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ChatConfig holds conversation presentation strings
type ChatConfig struct {
	AssistantName string `yaml:"assistant_name"`
	Greeting      string `yaml:"greeting"`
	Fallback      string `yaml:"fallback"`

	// SessionTTL controls how long idle browser chat state is kept
	SessionTTL    time.Duration `yaml:"-"`
	SessionTTLRaw string        `yaml:"session_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves fields empty.
const (
	DefaultSource        = "web-chat-interface"
	DefaultModel         = "gemini-2.5-flash"
	DefaultAssistantName = "Truvy"
	DefaultGreeting      = "Hello. I am Truvy, your corporate assistant. How may I help you with your tasks today?"
	DefaultFallback      = "I'm having trouble connecting to the Truvy server. Please try again later."
	DefaultSessionTTL    = 30 * time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in optional fields left empty by the config file
func (c *Config) applyDefaults() {
	if c.Webhook.Source == "" {
		c.Webhook.Source = DefaultSource
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultModel
	}
	if c.Chat.AssistantName == "" {
		c.Chat.AssistantName = DefaultAssistantName
	}
	if c.Chat.Greeting == "" {
		c.Chat.Greeting = DefaultGreeting
	}
	if c.Chat.Fallback == "" {
		c.Chat.Fallback = DefaultFallback
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required")
	}

	if c.Identity.BaseURL == "" {
		return fmt.Errorf("identity.base_url is required")
	}

	return nil
}

// parseDurations converts raw duration strings into time.Duration values
func (c *Config) parseDurations() error {
	if c.Chat.SessionTTLRaw == "" {
		c.Chat.SessionTTL = DefaultSessionTTL
		return nil
	}

	ttl, err := time.ParseDuration(c.Chat.SessionTTLRaw)
	if err != nil {
		return fmt.Errorf("parsing chat.session_ttl %q: %w", c.Chat.SessionTTLRaw, err)
	}
	c.Chat.SessionTTL = ttl
	return nil
}
