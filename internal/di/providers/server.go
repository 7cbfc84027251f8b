package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/api"
	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Shutdown()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	upstream := do.MustInvoke[*oshub.Client](i)
	flags := do.MustInvoke[*features.Source](i)

	sessions := do.MustInvoke[*SessionServiceHandle](i)
	services := &api.Services{
		Session:      sessions.SessionService,
		Search:       do.MustInvoke[*service.SearchService](i),
		Contribution: do.MustInvoke[*service.ContributionService](i),
		Tracker:      do.MustInvoke[*service.TrackerService](i),
		Moderation:   do.MustInvoke[*service.ModerationService](i),
		Filters:      do.MustInvoke[*service.FilterService](i),
	}

	backends := &api.Backends{
		Store:    storeHandle.Store,
		Cache:    cacheHandle.Store,
		Index:    indexHandle.Index,
		Upstream: upstream,
		Flags:    flags,
		SSE:      sseHandle.Manager,
	}

	sseHandler := sse.NewHandler(sseHandle.Manager, api.StreamAuthenticator(sessions.SessionService), log.Logger)
	handler := api.NewServer(cfg, services, backends, sseHandler, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
