// Package config handles configuration loading for truvy-web.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TRUVY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/truvy/web.yaml
//  3. ~/.config/truvy/web.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	identity:
//	  anon_key: "${SUPABASE_ANON_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Session database:
//
//	database:
//	  path: "/var/lib/truvy/sessions.db"
//
// Identity provider (GoTrue-style):
//
//	identity:
//	  base_url: "https://xyz.supabase.co"
//	  anon_key: "${SUPABASE_ANON_KEY}"
//
// Workflow webhook:
//
//	webhook:
//	  url: "https://workflows.example.com/webhook/chat"
//	  source: "web-chat-interface"
//
// Gemini (optional, enables refine and reply suggestions):
//
//	gemini:
//	  api_key: "${GEMINI_API_KEY}"
//	  model: "gemini-2.5-flash"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "truvy-web"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
// Chat presentation:
//
//	chat:
//	  assistant_name: "Truvy"
//	  session_ttl: "30m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/truvy/web.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
