package config

import (
	"crypto/rand"
	"sync"

	"github.com/rs/zerolog/log"
)

type SecurityConfig interface {
	GetTokenSecret() []byte
	GetSecureCookies() bool
	GetCodeGenerationLength() int
}

type Security struct{}

var _ SecurityConfig = Security{}

var (
	generatedSecret     []byte
	generatedSecretOnce sync.Once
)

// GetTokenSecret returns the HMAC key for access tokens. Without HUB_TOKEN_SECRET a
// random key is generated once per process, so tokens do not survive a restart.
func (Security) GetTokenSecret() []byte {
	if secret := GetEnv("HUB_TOKEN_SECRET", ""); secret != "" {
		return []byte(secret)
	}
	generatedSecretOnce.Do(func() {
		generatedSecret = make([]byte, 32)
		if _, err := rand.Read(generatedSecret); err != nil {
			panic("failed to generate token secret: " + err.Error())
		}
		log.Warn().Msg("HUB_TOKEN_SECRET not set, using a generated secret")
	})
	return generatedSecret
}

func (Security) GetSecureCookies() bool {
	return GetEnv("ENV", "DEV") == "PROD"
}

func (Security) GetCodeGenerationLength() int {
	return 32
}
