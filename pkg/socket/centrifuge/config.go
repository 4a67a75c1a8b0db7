package centrifuge

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	MaxConnections    int `toml:"max_connections"`
	HeartbeatInterval int `toml:"heartbeat_interval"`

	// "single" keeps everything in memory, "distributed" fans out through redis.
	DeploymentMode string `toml:"deployment_mode"`
	RedisURL       string `toml:"redis_url"`

	// HistorySize keeps the last publications of a session channel so a
	// reconnecting client can recover what it missed.
	HistorySize    int      `toml:"history_size"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    10000,
		HeartbeatInterval: 25,
		DeploymentMode:    "single",
		HistorySize:       50,
		AllowedOrigins:    []string{"*"},
	}
}

func (c *Config) Validate() error {
	if c.DeploymentMode == "distributed" && c.RedisURL == "" {
		return fmt.Errorf("redis_url is required for distributed mode")
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10000
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 25
	}
	return nil
}

// ResolveEnvVars expands "${NAME}" placeholders.
func (c *Config) ResolveEnvVars() {
	c.RedisURL = resolveEnvVar(c.RedisURL)
}

func resolveEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if v := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")); v != "" {
			return v
		}
	}
	return value
}
