package config

import (
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/utils"
)

const (
	sessionMaxAgeVar    = "HUB_SESSION_MAX_AGE"
	spawnTimeoutVar     = "HUB_SPAWN_TIMEOUT"
	consentTimeoutVar   = "HUB_CONSENT_TIMEOUT"
	adminAccessVar      = "HUB_ADMIN_ACCESS"
	shutdownOnLogoutVar = "HUB_SHUTDOWN_ON_LOGOUT"
	spawnerKindVar      = "HUB_SPAWNER"
)

// Hub holds the gateway settings. Values come from the environment first and
// the optional config file second.
type Hub struct {
	file *FileConfig
}

var _ HubConfig = Hub{}

func (h Hub) fc() *FileConfig {
	if h.file == nil {
		return &FileConfig{}
	}
	return h.file
}

func (h Hub) GetSessionMaxAge() time.Duration {
	return GetEnvDuration(sessionMaxAgeVar, fileDuration(h.fc().SessionMaxAge, 14*24*time.Hour))
}

func (h Hub) GetSpawnTimeout() time.Duration {
	return GetEnvDuration(spawnTimeoutVar, fileDuration(h.fc().SpawnTimeout, 60*time.Second))
}

func (Hub) GetConsentTimeout() time.Duration {
	return GetEnvDuration(consentTimeoutVar, 10*time.Minute)
}

func (Hub) GetAuthCodeTimeout() time.Duration {
	return 5 * time.Minute
}

func (Hub) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (h Hub) GetAdminAccess() bool {
	if v, ok := GetEnvBool(adminAccessVar); ok {
		return v
	}
	return utils.Value(h.fc().AdminAccess)
}

func (h Hub) GetShutdownOnLogout() bool {
	if v, ok := GetEnvBool(shutdownOnLogoutVar); ok {
		return v
	}
	return utils.Value(h.fc().ShutdownOnLogout)
}

func (h Hub) GetSpawner() SpawnerSpec {
	spec := h.fc().Spawner
	spec.Kind = GetEnv(spawnerKindVar, spec.Kind)
	if spec.Kind == "" {
		spec.Kind = "local"
	}
	return spec
}

func (h Hub) GetUsers() []UserSpec {
	return h.fc().Users
}

func fileDuration(raw string, defaultValue time.Duration) time.Duration {
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
