// Package config loads runtime configuration from the environment, plus an
// optional YAML policy file for per-status chat behavior.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"dinestream/internal/auth"
	"dinestream/internal/events"
	"dinestream/internal/push"
)

// Config holds every runtime knob of the realtime service.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	RedisURL    string `envconfig:"REDIS_URL"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// HeartbeatInterval paces the keepalive comment frames that defeat
	// idle-connection timeouts in intermediate proxies.
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`

	// ChatPolicyFile optionally points at a YAML file overriding which
	// order statuses produce customer-facing chat messages.
	ChatPolicyFile string `envconfig:"CHAT_POLICY_FILE"`

	Auth auth.Config
	Push push.Config

	// ChatPolicy is resolved from ChatPolicyFile; nil means defaults.
	ChatPolicy events.ChatPolicy `ignored:"true"`
}

// Load reads the environment and, when configured, the chat policy file.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.ChatPolicyFile != "" {
		pol, err := loadChatPolicy(cfg.ChatPolicyFile)
		if err != nil {
			return cfg, fmt.Errorf("chat policy: %w", err)
		}
		cfg.ChatPolicy = pol
	}
	return cfg, nil
}

type chatPolicyFile struct {
	// StatusMessages maps an order status to whether a status change posts
	// a chat message to the customer session.
	StatusMessages map[string]bool `yaml:"statusMessages"`
}

func loadChatPolicy(path string) (events.ChatPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f chatPolicyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return events.ChatPolicy(f.StatusMessages), nil
}
