package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

// LandingView is the search landing page as the client renders it.
type LandingView struct {
	Tab         workflow.Tab               `json:"tab"`
	URL         string                     `json:"url"`
	OSID        workflow.OSIDSearch        `json:"os_id"`
	CanLookup   bool                       `json:"can_lookup"`
	NameAddress workflow.NameAddressSearch `json:"name_address"`
	CanSearch   bool                       `json:"can_search"`
}

func landingView(d workflow.Dispatcher) LandingView {
	return LandingView{
		Tab:         d.Tab,
		URL:         workflow.TabURL(d.Tab),
		OSID:        d.OSID,
		CanLookup:   d.OSID.CanSubmit(),
		NameAddress: d.NameAddress,
		CanSearch:   d.NameAddress.CanSubmit(),
	}
}

// SearchService drives the landing page tabs and the two lookups behind them.
type SearchService struct {
	sessions  *SessionService
	upstream  *oshub.Client
	logger    *slog.Logger
	matchSize int
}

// NewSearchService creates a new search service.
func NewSearchService(sessions *SessionService, upstream *oshub.Client, logger *slog.Logger, matchSize int) *SearchService {
	return &SearchService{
		sessions:  sessions,
		upstream:  upstream,
		logger:    logger,
		matchSize: matchSize,
	}
}

// Landing opens the landing page on the raw tab parameter. When the tab is missing or
// unknown, redirect is the canonical URL the client must be sent to.
func (s *SearchService) Landing(ctx context.Context, wf *Workflow, rawTab string) (view LandingView, redirect string, err error) {
	err = s.sessions.Do(ctx, wf, func() error {
		tab, rewrite := workflow.ResolveTab(rawTab)
		wf.search.Tab = tab
		if rewrite {
			redirect = workflow.TabURL(tab)
		}
		view = landingView(wf.search)
		return nil
	})
	return view, redirect, err
}

// SelectTab switches tabs keeping both tabs' inputs.
func (s *SearchService) SelectTab(ctx context.Context, wf *Workflow, tab workflow.Tab) (LandingView, error) {
	var view LandingView
	err := s.sessions.Do(ctx, wf, func() error {
		wf.search.SelectTab(tab)
		view = landingView(wf.search)
		return nil
	})
	return view, err
}

// SetOSID stores the OS ID input.
func (s *SearchService) SetOSID(ctx context.Context, wf *Workflow, value string) (LandingView, error) {
	var view LandingView
	err := s.sessions.Do(ctx, wf, func() error {
		wf.search.OSID.SetValue(value)
		view = landingView(wf.search)
		return nil
	})
	return view, err
}

// SubmitOSID returns the lookup route for the entered OS ID.
func (s *SearchService) SubmitOSID(ctx context.Context, wf *Workflow) (string, error) {
	var path string
	err := s.sessions.Do(ctx, wf, func() error {
		if !wf.search.OSID.CanSubmit() {
			return domainerrors.ValidationWithDetails("OS ID must be 15 characters",
				map[string]string{"os_id": "Enter a 15 character OS ID."})
		}
		path = wf.search.OSID.SubmitPath()
		return nil
	})
	return path, err
}

// SetNameAddressField updates one name/address input.
func (s *SearchService) SetNameAddressField(ctx context.Context, wf *Workflow, field, value string) (LandingView, error) {
	var view LandingView
	err := s.sessions.Do(ctx, wf, func() error {
		if err := wf.search.NameAddress.SetField(field, value); err != nil {
			return domainerrors.Validation(err.Error())
		}
		view = landingView(wf.search)
		return nil
	})
	return view, err
}

// BlurNameAddressField flags an empty required input.
func (s *SearchService) BlurNameAddressField(ctx context.Context, wf *Workflow, field string) (LandingView, error) {
	var view LandingView
	err := s.sessions.Do(ctx, wf, func() error {
		if err := wf.search.NameAddress.BlurField(field); err != nil {
			return domainerrors.Validation(err.Error())
		}
		view = landingView(wf.search)
		return nil
	})
	return view, err
}

// SubmitNameAddress returns the results URL, or a validation error naming the empty fields.
func (s *SearchService) SubmitNameAddress(ctx context.Context, wf *Workflow) (string, error) {
	var url string
	err := s.sessions.Do(ctx, wf, func() error {
		if !wf.search.NameAddress.CanSubmit() {
			for _, f := range []string{workflow.FieldName, workflow.FieldAddress, workflow.FieldCountry} {
				_ = wf.search.NameAddress.BlurField(f)
			}
			return domainerrors.ValidationWithDetails("name, address and country are required", wf.search.NameAddress.Errors)
		}
		url = wf.search.NameAddress.SubmitURL()
		return nil
	})
	return url, err
}

// LookupOSID fetches one location by current or historical OS ID and renders the result.
// Backend failures are part of the view, not returned.
func (s *SearchService) LookupOSID(ctx context.Context, wf *Workflow, osID string) (workflow.OSIDResult, error) {
	var view workflow.OSIDResult
	err := s.sessions.Do(ctx, wf, func() error {
		_, err := state.Run(ctx, wf.store, state.OpFetchLocationByOSID, osID,
			func(ctx context.Context) (*domain.ProductionLocation, error) {
				return s.upstream.GetLocation(ctx, osID)
			})
		if errors.Is(err, state.ErrStoreClosed) {
			return err
		}
		if err != nil && domainerrors.CodeOf(err) != domainerrors.CodeNotFound {
			s.logger.Warn("os id lookup failed", "os_id", osID, "error", err)
		}
		view = workflow.PresentOSIDResult(wf.State().ContributeProductionLocation.SingleProductionLocation, osID)
		return nil
	})
	return view, err
}

// SearchCandidates runs the name/address potential-match search and renders the list.
func (s *SearchService) SearchCandidates(ctx context.Context, wf *Workflow, q workflow.SearchQuery) (workflow.CandidatesResult, error) {
	var view workflow.CandidatesResult
	err := s.sessions.Do(ctx, wf, func() error {
		_, err := state.Run(ctx, wf.store, state.OpFetchPotentialMatches, q.Encode(),
			func(ctx context.Context) ([]domain.Candidate, error) {
				page, err := s.upstream.SearchLocations(ctx, oshub.LocationQuery{
					Name:    q.Name,
					Address: q.Address,
					Country: q.Country,
					Size:    s.matchSize,
				})
				if err != nil {
					return nil, err
				}
				if page.Data == nil {
					return []domain.Candidate{}, nil
				}
				return page.Data, nil
			})
		if errors.Is(err, state.ErrStoreClosed) {
			return err
		}
		if err != nil {
			s.logger.Warn("potential match search failed", "error", err)
		}
		view = workflow.PresentCandidates(wf.State().ContributeProductionLocation.ProductionLocations, q)
		return nil
	})
	return view, err
}
