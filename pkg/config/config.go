// Package config loads hermod configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hermodbot/hermod/pkg/logger"
)

// Config is the full hermod configuration.
type Config struct {
	Log      logger.Config  `yaml:"log"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Session  SessionConfig  `yaml:"session"`
	Relay    RelayConfig    `yaml:"relay"`
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackConfig    `yaml:"slack"`
	Console  ConsoleConfig  `yaml:"console"`
}

// GatewayConfig configures the HTTP webhook ingress.
type GatewayConfig struct {
	Addr string `yaml:"addr" env:"HERMOD_GATEWAY_ADDR"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	// Backend is one of "memory", "sqlite", "valkey".
	Backend string `yaml:"backend" env:"HERMOD_SESSION_BACKEND"`
	// Path is the SQLite database file for the sqlite backend.
	Path string `yaml:"path" env:"HERMOD_SESSION_PATH"`
	// Address is the Valkey address for the valkey backend.
	Address  string `yaml:"address" env:"HERMOD_SESSION_ADDRESS"`
	Username string `yaml:"username" env:"HERMOD_SESSION_USERNAME"`
	Password string `yaml:"password" env:"HERMOD_SESSION_PASSWORD"`
	// TTL is how long idle sessions live. Zero disables expiry.
	TTL time.Duration `yaml:"ttl" env:"HERMOD_SESSION_TTL"`
	// SweepCron is the cron expression driving expiry sweeps.
	SweepCron string `yaml:"sweep_cron" env:"HERMOD_SESSION_SWEEP_CRON"`
}

// RelayConfig configures the optional AMQP event relay.
type RelayConfig struct {
	Enabled  bool   `yaml:"enabled" env:"HERMOD_RELAY_ENABLED"`
	URL      string `yaml:"url" env:"HERMOD_RELAY_URL"`
	Exchange string `yaml:"exchange" env:"HERMOD_RELAY_EXCHANGE"`
}

// TelegramConfig enables the Telegram adapter when a token is present.
type TelegramConfig struct {
	Token         string `yaml:"token" env:"HERMOD_TELEGRAM_TOKEN"`
	WebhookSecret string `yaml:"webhook_secret" env:"HERMOD_TELEGRAM_WEBHOOK_SECRET"`
}

// DiscordConfig enables the Discord adapter when a token is present.
type DiscordConfig struct {
	Token string `yaml:"token" env:"HERMOD_DISCORD_TOKEN"`
}

// SlackConfig enables the Slack adapter when a bot token is present.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token" env:"HERMOD_SLACK_BOT_TOKEN"`
	SigningSecret string `yaml:"signing_secret" env:"HERMOD_SLACK_SIGNING_SECRET"`
}

// ConsoleConfig enables the local terminal adapter.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled" env:"HERMOD_CONSOLE_ENABLED"`
}

// Defaults returns a config with sensible defaults applied.
func Defaults() *Config {
	return &Config{
		Log:     logger.Config{Level: "info"},
		Gateway: GatewayConfig{Addr: ":8787"},
		Session: SessionConfig{
			Backend:   "memory",
			TTL:       24 * time.Hour,
			SweepCron: "*/5 * * * *",
		},
		Relay: RelayConfig{Exchange: "hermod.events"},
	}
}

// Load reads the YAML file at path (if it exists) and applies environment
// overrides on top. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case "memory":
	case "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for the sqlite backend")
		}
	case "valkey":
		if c.Session.Address == "" {
			return fmt.Errorf("session.address is required for the valkey backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if c.Relay.Enabled && c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required when the relay is enabled")
	}
	return nil
}
