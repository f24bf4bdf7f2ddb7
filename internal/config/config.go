package config

import (
	"fmt"
	"os"
	"time"
)

type Config interface {
	EnvConfig
	HubConfig
	SecurityConfig
	LoginConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
	GetDatabaseURL() string
}

type HubConfig interface {
	GetSessionMaxAge() time.Duration
	GetSpawnTimeout() time.Duration
	GetConsentTimeout() time.Duration
	GetAuthCodeTimeout() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetAdminAccess() bool
	GetShutdownOnLogout() bool
	GetSpawner() SpawnerSpec
	GetUsers() []UserSpec
}

type LoginConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
}

type mainConfig struct {
	EnvVars
	Hub
	Security
	Login
}

// New returns the environment backed configuration with no config file.
func New() Config {
	return mainConfig{Hub: Hub{file: &FileConfig{}}}
}

// Load reads the optional YAML file at path. Environment variables still take
// precedence over any value set in the file.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config Load] read %s: %w", path, err)
	}
	fc, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("[config Load] %s: %w", path, err)
	}
	return mainConfig{Hub: Hub{file: fc}}, nil
}
