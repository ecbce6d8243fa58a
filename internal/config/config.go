// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// tokenEnvVars are the recognized upstream credential variables, checked in
// order. The token is optional: without one the service runs in a degraded
// mode with stricter upstream rate limits.
var tokenEnvVars = []string{"GITHUB_TOKEN", "SHIP_GITHUB_TOKEN", "GH_TOKEN"}

// Config holds the server settings.
type Config struct {
	Host    string `env:"SHIP_HOST, default=0.0.0.0"`
	Port    int    `env:"SHIP_PORT, default=8080"`
	GinMode string `env:"GIN_MODE, default=release"`
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GitHubToken returns the first configured upstream credential, or the
// empty string when none is set.
func GitHubToken() string {
	for _, name := range tokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
