package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/ratelimit"
)

// ProvideUpstreamClient provides the Open Supply Hub REST client.
func ProvideUpstreamClient(i do.Injector) (*oshub.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := oshub.New(cfg.Upstream, log.Component("oshub"))

	log.Info("Upstream client ready",
		"base_url", cfg.Upstream.BaseURL,
		"timeout", cfg.Upstream.Timeout,
		"authenticated", cfg.Upstream.Token != "",
	)

	return client, nil
}

// ProvideFeatureSource provides the feature flags.
func ProvideFeatureSource(i do.Injector) (*features.Source, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return features.New(cfg.Features, log.Component("features"))
}

// SubmitLimiterHandle wraps the per-session submit limiter with shutdown capability.
type SubmitLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *SubmitLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideSubmitLimiter provides the limiter guarding contribution submits.
func ProvideSubmitLimiter(i do.Injector) (*SubmitLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	perSecond := cfg.Limits.SubmitPerMinute / 60
	limiter := ratelimit.New(perSecond, max(cfg.Limits.SubmitBurst, 1), cfg.Session.TTL+time.Hour)

	return &SubmitLimiterHandle{KeyedRateLimiter: limiter}, nil
}
