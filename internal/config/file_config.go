package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// UserSpec declares a hub user to create at startup.
type UserSpec struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

// SpawnerSpec selects the backend launched for every user and its default options.
type SpawnerSpec struct {
	Kind              string            `yaml:"kind"` // "local" or "inprocess"
	Command           []string          `yaml:"command"`
	Debug             bool              `yaml:"debug"`
	DisableUserConfig bool              `yaml:"disable_user_config"`
	Env               map[string]string `yaml:"env"`
}

// FileConfig is the YAML layout of the hub config file.
type FileConfig struct {
	AdminAccess      *bool       `yaml:"admin_access"`
	ShutdownOnLogout *bool       `yaml:"shutdown_on_logout"`
	SessionMaxAge    string      `yaml:"session_max_age"`
	SpawnTimeout     string      `yaml:"spawn_timeout"`
	Users            []UserSpec  `yaml:"users"`
	Spawner          SpawnerSpec `yaml:"spawner"`
}

// ParseFile decodes a YAML config document.
func ParseFile(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, d := range []string{fc.SessionMaxAge, fc.SpawnTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("parse config: invalid duration %q: %w", d, err)
		}
	}
	seen := make(map[string]struct{}, len(fc.Users))
	for _, u := range fc.Users {
		if u.Name == "" {
			return nil, fmt.Errorf("parse config: user with empty name")
		}
		if _, dup := seen[u.Name]; dup {
			return nil, fmt.Errorf("parse config: duplicate user %q", u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return &fc, nil
}
