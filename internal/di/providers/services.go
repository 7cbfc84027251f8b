package providers

import (
	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/service"
)

// SessionServiceHandle wraps the session service with shutdown capability.
// Shutdown persists every live workflow before the store closes.
type SessionServiceHandle struct {
	*service.SessionService
}

// Shutdown implements do.Shutdownable.
func (h *SessionServiceHandle) Shutdown() error {
	return h.SessionService.Shutdown()
}

// ProvideSessionService provides the workflow session service.
func ProvideSessionService(i do.Injector) (*SessionServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewSessionService(storeHandle.Store, tokenService, sseHandle.Manager, log.Component("session"), cfg.Session.TTL)
	return &SessionServiceHandle{SessionService: svc}, nil
}

// ProvideSearchService provides the landing page and search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*SessionServiceHandle](i)
	upstream := do.MustInvoke[*oshub.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(sessions.SessionService, upstream, log.Component("search"), cfg.Upstream.MatchPageSize), nil
}

// ProvideContributionService provides the single-location contribution form service.
func ProvideContributionService(i do.Injector) (*service.ContributionService, error) {
	sessions := do.MustInvoke[*SessionServiceHandle](i)
	upstream := do.MustInvoke[*oshub.Client](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	flags := do.MustInvoke[*features.Source](i)
	limiter := do.MustInvoke[*SubmitLimiterHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewContributionService(
		sessions.SessionService,
		upstream,
		cacheHandle.Store,
		flags,
		limiter.KeyedRateLimiter,
		sseHandle.Manager,
		log.Component("contribution"),
	), nil
}

// ProvideTrackerService provides the submission tracker service.
func ProvideTrackerService(i do.Injector) (*service.TrackerService, error) {
	sessions := do.MustInvoke[*SessionServiceHandle](i)
	upstream := do.MustInvoke[*oshub.Client](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTrackerService(sessions.SessionService, upstream, cacheHandle.Store, sseHandle.Manager, log.Component("tracker")), nil
}

// ProvideModerationService provides the staff dashboard service.
func ProvideModerationService(i do.Injector) (*service.ModerationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*SessionServiceHandle](i)
	upstream := do.MustInvoke[*oshub.Client](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewModerationService(
		sessions.SessionService,
		upstream,
		indexHandle.Index,
		cacheHandle.Store,
		sseHandle.Manager,
		log.Component("moderation"),
		cfg.Upstream.MatchPageSize,
	), nil
}

// ProvideFilterService provides the select-option list service.
func ProvideFilterService(i do.Injector) (*service.FilterService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*SessionServiceHandle](i)
	upstream := do.MustInvoke[*oshub.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFilterService(sessions.SessionService, upstream, log.Component("filters"), cfg.Tracker.FilterOptionsTTL), nil
}
