package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/id"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/ratelimit"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/store/sqlite"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

// rateLimitedMessage is the toast shown when a session submits too often.
const rateLimitedMessage = "You are submitting too quickly. Please wait a moment and try again."

// FormView is the contribution form as the client renders it.
type FormView struct {
	Form    *workflow.Form          `json:"form"`
	Errors  map[string]string       `json:"visible_errors"`
	Submit  workflow.SubmitButton   `json:"submit"`
	Toast   string                  `json:"toast,omitempty"`
	Tracker *workflow.TrackerDialog `json:"tracker,omitempty"`
}

// InitForm are the inputs of the info page. OSID selects update mode; the other
// fields prefill a new location from a name/address search.
type InitForm struct {
	OSID    string
	Name    string
	Address string
	Country string
}

// ContributionService drives the contribution form and submits it.
type ContributionService struct {
	sessions *SessionService
	upstream *oshub.Client
	cache    *sqlite.Store
	flags    *features.Source
	limiter  *ratelimit.KeyedRateLimiter
	events   EventEmitter
	logger   *slog.Logger
}

// NewContributionService creates a new contribution service.
func NewContributionService(
	sessions *SessionService,
	upstream *oshub.Client,
	cache *sqlite.Store,
	flags *features.Source,
	limiter *ratelimit.KeyedRateLimiter,
	events EventEmitter,
	logger *slog.Logger,
) *ContributionService {
	return &ContributionService{
		sessions: sessions,
		upstream: upstream,
		cache:    cache,
		flags:    flags,
		limiter:  limiter,
		events:   events,
		logger:   logger,
	}
}

func (s *ContributionService) view(f *workflow.Form) FormView {
	return FormView{
		Form:   f,
		Errors: f.VisibleErrors(),
		Submit: f.SubmitState(s.flags.MaintenanceMode()),
	}
}

// Initialize opens the info form. With an OS ID the form updates that location and is
// prefilled from it; otherwise it creates a new one.
func (s *ContributionService) Initialize(ctx context.Context, wf *Workflow, in InitForm) (FormView, error) {
	var view FormView
	err := s.sessions.Do(ctx, wf, func() error {
		if _, err := wf.store.Dispatch(state.Set(state.OpResetPendingSubmission, nil)); err != nil {
			return err
		}

		mode := domain.RequestCreate
		var prefill *domain.ProductionLocation
		if osID := strings.ToUpper(strings.TrimSpace(in.OSID)); osID != "" {
			loc, err := s.location(ctx, wf, osID)
			if err != nil {
				return err
			}
			mode = domain.RequestUpdate
			prefill = loc
		} else if in.Name != "" || in.Address != "" || in.Country != "" {
			prefill = &domain.ProductionLocation{
				Name:    in.Name,
				Address: in.Address,
				Country: domain.Country{Alpha2: strings.ToUpper(in.Country)},
			}
		}

		form, err := workflow.Initialize(mode, prefill)
		if err != nil {
			return err
		}
		wf.form = form
		wf.trackerOpen = ""
		view = s.view(form)
		return nil
	})
	return view, err
}

// location returns the located production location, reusing the lookup already in state.
func (s *ContributionService) location(ctx context.Context, wf *Workflow, osID string) (*domain.ProductionLocation, error) {
	cur := wf.State().ContributeProductionLocation.SingleProductionLocation
	if loc := cur.Data; loc != nil && cur.Error == nil &&
		(string(loc.OSID) == osID || loc.IsHistoricalID(domain.OSID(osID))) {
		return loc, nil
	}
	return state.Run(ctx, wf.store, state.OpFetchLocationByOSID, osID,
		func(ctx context.Context) (*domain.ProductionLocation, error) {
			return s.upstream.GetLocation(ctx, osID)
		})
}

// withForm runs fn on the open form.
func (s *ContributionService) withForm(ctx context.Context, wf *Workflow, fn func(f *workflow.Form) error) (FormView, error) {
	var view FormView
	err := s.sessions.Do(ctx, wf, func() error {
		if wf.form == nil {
			return domainerrors.Conflict("no contribution form is open")
		}
		if err := fn(wf.form); err != nil {
			return err
		}
		view = s.view(wf.form)
		return nil
	})
	return view, err
}

// Form returns the open form.
func (s *ContributionService) Form(ctx context.Context, wf *Workflow) (FormView, error) {
	return s.withForm(ctx, wf, func(*workflow.Form) error { return nil })
}

// SetField assigns one form field.
func (s *ContributionService) SetField(ctx context.Context, wf *Workflow, name string, value any) (FormView, error) {
	return s.withForm(ctx, wf, func(f *workflow.Form) error {
		return f.SetField(name, value)
	})
}

// BlurField marks a field as touched so its error shows.
func (s *ContributionService) BlurField(ctx context.Context, wf *Workflow, name string) (FormView, error) {
	return s.withForm(ctx, wf, func(f *workflow.Form) error {
		return f.BlurField(name)
	})
}

// SetAdditionalInformation toggles the extended fields section.
func (s *ContributionService) SetAdditionalInformation(ctx context.Context, wf *Workflow, on bool) (FormView, error) {
	return s.withForm(ctx, wf, func(f *workflow.Form) error {
		f.SetAdditionalInformation(on)
		return nil
	})
}

// DismissFailure closes the submission error panel.
func (s *ContributionService) DismissFailure(ctx context.Context, wf *Workflow) (FormView, error) {
	return s.withForm(ctx, wf, func(f *workflow.Form) error {
		f.DismissFailure()
		_, err := wf.store.Dispatch(state.Set(state.OpDismissSubmitError, nil))
		return err
	})
}

// Submit sends the form to the backend. Validation, maintenance, throttling and in-flight
// errors are returned; backend failures are applied to the form and reported in the view.
func (s *ContributionService) Submit(ctx context.Context, wf *Workflow) (FormView, error) {
	var view FormView
	err := s.sessions.Do(ctx, wf, func() error {
		f := wf.form
		if f == nil {
			return domainerrors.Conflict("no contribution form is open")
		}
		if err := f.BeginSubmit(s.flags.MaintenanceMode()); err != nil {
			return err
		}

		sessionID := wf.Session().ID
		if !s.limiter.Allow(sessionID) {
			f.ApplySubmitFailure(nil)
			return domainerrors.RateLimited(rateLimitedMessage)
		}

		log := scopedLogger(ctx, s.logger, sessionID)
		mode, osID, payload := f.Mode, f.OSID, f.Payload()
		event, err := state.Run(ctx, wf.store, state.OpSubmitProductionLoc, "",
			func(ctx context.Context) (*domain.ModerationEvent, error) {
				return s.send(ctx, mode, osID, payload)
			})
		if errors.Is(err, state.ErrStoreClosed) {
			f.ApplySubmitFailure(nil)
			return err
		}
		if err != nil {
			log.WithError(err).Warn("contribution submit failed", "request_type", mode)
			toast := f.ApplySubmitFailure(state.FailureFrom(err))
			view = s.view(f)
			view.Toast = toast
			return nil
		}

		f.ApplySubmitSuccess()
		sub := &domain.Submission{
			ModerationID: event.ModerationID.String(),
			SessionID:    sessionID,
			RequestType:  mode,
			OSID:         event.OSID,
			Status:       event.Status,
			CleanedData:  event.CleanedData,
			CreatedAt:    event.CreatedAt,
			UpdatedAt:    event.UpdatedAt,
		}
		log = log.WithModeration(sub.ModerationID)
		if err := s.cache.PutSubmission(context.WithoutCancel(ctx), sub); err != nil {
			log.WithError(err).Warn("failed to cache submission")
		}
		s.events.Emit(sse.NewSubmittedEvent(sub))
		wf.trackerOpen = sub.ModerationID
		wf.form = nil

		log.Info("contribution submitted", "request_type", mode)

		view = s.view(f)
		tracker := workflow.PresentTracker(*sub, event, domain.ClaimStatusNone)
		view.Tracker = &tracker
		return nil
	})
	return view, err
}

// send performs the create or update call and turns the answer into a pending moderation event.
func (s *ContributionService) send(ctx context.Context, mode domain.RequestType, osID domain.OSID, payload domain.ContributionData) (*domain.ModerationEvent, error) {
	var (
		sub *oshub.Submission
		err error
	)
	if mode == domain.RequestUpdate {
		sub, err = s.upstream.UpdateLocation(ctx, string(osID), payload)
	} else {
		sub, err = s.upstream.CreateLocation(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	moderationID, err := id.ParseModerationID(sub.ModerationID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUpstream, "the backend returned an invalid moderation id")
	}

	created := sub.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	status := sub.Status
	if status == "" {
		status = domain.ModerationPending
	}
	data := sub.CleanedData
	if data.Name == "" {
		data = payload
	}
	return &domain.ModerationEvent{
		ModerationID: moderationID,
		OSID:         sub.OSID,
		RequestType:  mode,
		Source:       domain.SourceSLC,
		Status:       status,
		CleanedData:  data,
		CreatedAt:    created,
		UpdatedAt:    created,
	}, nil
}
