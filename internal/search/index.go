package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/opensupplyhub/contribute/internal/domain"
)

// Index wraps a Bleve index of moderation events.
//
// All public methods are safe for concurrent use. The mutex guards the
// underlying index against swaps during Rebuild.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Uses slog.Default if nil
}

// mappingVersion is bumped whenever the index mapping changes.
// A mismatch on startup drops and recreates the index.
const mappingVersion = "1"

// batchSize bounds the number of documents committed per Bleve batch.
const batchSize = 500

// Open creates or opens the moderation index under opts.DataPath.
// A corrupted index or one built with an older mapping is removed and recreated empty.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	indexPath := filepath.Join(opts.DataPath, "moderation.bleve")
	versionPath := filepath.Join(opts.DataPath, "moderation.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("moderation index has no version file, rebuilding",
				"new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("moderation index mapping version changed, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath,
				"error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write index version file", "error", writeErr)
		}
		logger.Info("created moderation index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened moderation index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexEvent indexes or replaces a single moderation event.
func (s *Index) IndexEvent(ev *domain.ModerationEvent) error {
	doc := FromEvent(ev)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexEvents indexes events in chunks of batchSize.
func (s *Index) IndexEvents(events []domain.ModerationEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < len(events); i += batchSize {
		end := min(i+batchSize, len(events))

		batch := s.index.NewBatch()
		for j := i; j < end; j++ {
			doc := FromEvent(&events[j])
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteEvent removes a moderation event from the index.
func (s *Index) DeleteEvent(moderationID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(moderationID)
}

// Count returns the number of indexed events.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and recreates it empty.
//
// It holds the exclusive lock for the whole swap; searches block until it returns.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt moderation index", "path", s.path)

	return nil
}
