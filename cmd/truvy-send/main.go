// ABOUTME: One-shot CLI that sends a message to the workflow webhook
// ABOUTME: Useful for probing a webhook endpoint without the browser UI

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/truvium/truvy-web/internal/config"
	"github.com/truvium/truvy-web/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", defaultConfigPath(), "path to truvy-web config file")
		url        = flag.String("url", "", "webhook URL (overrides config)")
		sessionID  = flag.String("session", "", "session id to send under (default: random)")
		email      = flag.String("email", "probe@example.com", "sender email")
		name       = flag.String("name", "probe", "sender display name")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: truvy-send [flags] <message>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	message := strings.Join(flag.Args(), " ")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *url, *sessionID, *email, *name, message); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, url, sessionID, email, name, message string) error {
	source := config.DefaultSource

	if url == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config (or pass -url): %w", err)
		}
		url = cfg.Webhook.URL
		source = cfg.Webhook.Source
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	client := webhook.NewClient(url, source)
	reply, err := client.Send(ctx, webhook.Request{
		Message:   message,
		SessionID: sessionID,
		Email:     email,
		Name:      name,
	})
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

func defaultConfigPath() string {
	if envPath := os.Getenv("TRUVY_CONFIG"); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "web.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "truvy", "web.yaml")
}
