package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/search"
	"github.com/opensupplyhub/contribute/internal/service"
)

// SearchIndexHandle wraps the moderation index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve moderation index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.Open(search.Options{
		DataPath: cfg.Data.IndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Info("Moderation index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from the backend queue.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	moderation := do.MustInvoke[*service.ModerationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.Count()
	if docCount > 0 {
		return
	}

	log.Info("Moderation index is empty, triggering initial reindex")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reindexTimeout)
		defer cancel()

		n, err := moderation.Reindex(ctx)
		if err != nil {
			log.Warn("Initial reindex failed", "error", err)
			return
		}
		log.Info("Initial reindex completed", "events", n)
	}()
}
