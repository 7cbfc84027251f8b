package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/state"
)

// FilterOptionsView is one option list and whether it came from the session cache.
type FilterOptionsView struct {
	Kind    domain.FilterKind     `json:"kind"`
	Options []domain.FilterOption `json:"options"`
	Cached  bool                  `json:"cached"`
	Error   *state.Failure        `json:"error,omitempty"`
}

// FilterService serves select-input option lists, cached per session for ttl.
type FilterService struct {
	sessions *SessionService
	upstream *oshub.Client
	logger   *slog.Logger
	ttl      time.Duration
}

// NewFilterService creates a new filter options service.
func NewFilterService(sessions *SessionService, upstream *oshub.Client, logger *slog.Logger, ttl time.Duration) *FilterService {
	return &FilterService{
		sessions: sessions,
		upstream: upstream,
		logger:   logger,
		ttl:      ttl,
	}
}

// Options returns the option list of kind, fetching it when the cached copy is stale.
// A failed refresh keeps serving the previous list with the error attached.
func (s *FilterService) Options(ctx context.Context, wf *Workflow, kind domain.FilterKind) (FilterOptionsView, error) {
	if !kind.Valid() {
		return FilterOptionsView{}, domainerrors.NotFoundf("unknown filter kind %q", kind)
	}

	var view FilterOptionsView
	err := s.sessions.Do(ctx, wf, func() error {
		cached := wf.State().FilterOptions.Fresh(kind, time.Now(), s.ttl)
		if !cached {
			_, err := state.Run(ctx, wf.store, state.OpFetchFilterOptions, string(kind),
				func(ctx context.Context) ([]domain.FilterOption, error) {
					return s.upstream.FilterOptions(ctx, kind)
				})
			if errors.Is(err, state.ErrStoreClosed) {
				return err
			}
			if err != nil {
				s.logger.Warn("filter options load failed", "kind", kind, "error", err)
			}
		}

		list := wf.State().FilterOptions.Lists[kind]
		options := list.Data
		if options == nil {
			options = []domain.FilterOption{}
		}
		view = FilterOptionsView{Kind: kind, Options: options, Cached: cached, Error: list.Error}
		return nil
	})
	return view, err
}
