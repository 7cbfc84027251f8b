// Package di provides dependency injection configuration for the contribution gateway.
package di

import (
	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/di/providers"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSubmissionCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Upstream and flags
	do.Provide(injector, providers.ProvideUpstreamClient)
	do.Provide(injector, providers.ProvideFeatureSource)
	do.Provide(injector, providers.ProvideSubmitLimiter)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideContributionService)
	do.Provide(injector, providers.ProvideTrackerService)
	do.Provide(injector, providers.ProvideModerationService)
	do.Provide(injector, providers.ProvideFilterService)

	// Workers
	do.Provide(injector, providers.ProvideTrackerPoller)
	do.Provide(injector, providers.ProvideFlagsWatcher)
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the workers and the HTTP server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*oshub.Client](injector)
	_ = do.MustInvoke[*features.Source](injector)

	// Business services
	_ = do.MustInvoke[*providers.SessionServiceHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.ContributionService](injector)
	_ = do.MustInvoke[*service.TrackerService](injector)
	_ = do.MustInvoke[*service.ModerationService](injector)
	_ = do.MustInvoke[*service.FilterService](injector)

	// Workers
	_ = do.MustInvoke[*providers.TrackerPollerHandle](injector)
	_ = do.MustInvoke[*providers.FlagsWatcherHandle](injector)
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild an empty moderation index from the backend
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
