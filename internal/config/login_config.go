package config

// Login selects how users prove their identity to the hub. When an OIDC issuer is
// configured the hub delegates login to it, otherwise it checks local passwords.
type Login struct{}

var _ LoginConfig = Login{}

func (Login) GetOIDCIssuer() string {
	return GetEnv("HUB_OIDC_ISSUER", "")
}

func (Login) GetOIDCClientID() string {
	return GetEnv("HUB_OIDC_CLIENT_ID", "")
}

func (Login) GetOIDCClientSecret() string {
	return GetEnv("HUB_OIDC_CLIENT_SECRET", "")
}
