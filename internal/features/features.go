// Package features serves the instance feature flags. Defaults come from configuration;
// an optional JSON flags file overrides them and is re-read whenever it changes on disk,
// so maintenance mode can be toggled without a restart.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/domain"
)

// fileFlags is the on-disk format. Absent keys keep the configured default.
type fileFlags struct {
	DisableListUploading      *bool `json:"disable_list_uploading"`
	ShowAdditionalIdentifiers *bool `json:"show_additional_identifiers"`
	PrivateInstance           *bool `json:"private_instance"`
}

// Source holds the current feature flags.
type Source struct {
	logger   *slog.Logger
	path     string
	defaults domain.FeatureFlags
	current  atomic.Pointer[domain.FeatureFlags]

	mu          sync.Mutex
	subscribers []func(domain.FeatureFlags)
}

// New creates a flag source from configuration and loads the flags file if one is configured.
// A flags file that does not exist yet is not an error.
func New(cfg config.FeaturesConfig, logger *slog.Logger) (*Source, error) {
	s := &Source{
		logger: logger,
		path:   cfg.FlagsFile,
		defaults: domain.FeatureFlags{
			DisableListUploading:     cfg.DisableListUploading,
			ShowAdditionalIdentifier: cfg.ShowAdditionalIdentifiers,
			PrivateInstance:          cfg.PrivateInstance,
		},
	}
	flags := s.defaults
	s.current.Store(&flags)

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Flags returns a copy of the current flags.
func (s *Source) Flags() domain.FeatureFlags {
	return *s.current.Load()
}

// MaintenanceMode reports whether contribution submits are disabled instance-wide.
func (s *Source) MaintenanceMode() bool {
	return s.Flags().DisableListUploading
}

// Path returns the watched flags file, or "" when none is configured.
func (s *Source) Path() string {
	return s.path
}

// Subscribe registers fn to be called with the new flags after every change.
func (s *Source) Subscribe(fn func(domain.FeatureFlags)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Set replaces the current flags and notifies subscribers when they differ.
func (s *Source) Set(flags domain.FeatureFlags) {
	prev := s.current.Swap(&flags)
	if prev != nil && *prev == flags {
		return
	}

	s.logger.Info("feature flags updated",
		"disable_list_uploading", flags.DisableListUploading,
		"show_additional_identifiers", flags.ShowAdditionalIdentifier,
		"private_instance", flags.PrivateInstance,
	)

	s.mu.Lock()
	subs := make([]func(domain.FeatureFlags), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(flags)
	}
}

// Reload re-reads the flags file and applies it on top of the configured defaults.
// A removed file reverts to the defaults.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.Set(s.defaults)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read flags file: %w", err)
	}

	var ff fileFlags
	if err := json.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("parse flags file %s: %w", s.path, err)
	}

	flags := s.defaults
	if ff.DisableListUploading != nil {
		flags.DisableListUploading = *ff.DisableListUploading
	}
	if ff.ShowAdditionalIdentifiers != nil {
		flags.ShowAdditionalIdentifier = *ff.ShowAdditionalIdentifiers
	}
	if ff.PrivateInstance != nil {
		flags.PrivateInstance = *ff.PrivateInstance
	}
	s.Set(flags)
	return nil
}
