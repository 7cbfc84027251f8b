package providers

import (
	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/logger"
)

// AuthKey wraps the token signing key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the token signing key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.KeyPath())
	if err != nil {
		return nil, err
	}

	log.Info("Token key loaded",
		"session_ttl", cfg.Session.TTL,
		"staff_token_ttl", cfg.Session.StaffTokenTTL,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Session.TTL, cfg.Session.StaffTokenTTL)
}
