package api

import (
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/search"
	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/store"
	"github.com/opensupplyhub/contribute/internal/store/sqlite"
)

// Services groups the workflow services used by the API server.
type Services struct {
	Session      *service.SessionService
	Search       *service.SearchService
	Contribution *service.ContributionService
	Tracker      *service.TrackerService
	Moderation   *service.ModerationService
	Filters      *service.FilterService
}

// Backends groups the stores and clients the health check and flag routes read directly.
type Backends struct {
	Store    *store.Store     // Session snapshots
	Cache    *sqlite.Store    // Submission cache
	Index    *search.Index    // Moderation queue index
	Upstream *oshub.Client    // Open Supply Hub API
	Flags    *features.Source // Feature flags
	SSE      *sse.Manager     // Event stream
}
