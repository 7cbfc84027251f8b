package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/store"
	"github.com/opensupplyhub/contribute/internal/store/sqlite"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

const (
	// pollBatch bounds the submissions re-checked per tick.
	pollBatch = 50
	// submissionRetention is how long settled submissions stay cached.
	submissionRetention = 30 * 24 * time.Hour
)

// NavigationView answers a back action.
type NavigationView struct {
	Intercepted bool   `json:"intercepted"`
	Path        string `json:"path,omitempty"`
}

// TrackerService renders the submission confirmation dialog and keeps cached
// submissions in step with the backend.
type TrackerService struct {
	sessions *SessionService
	upstream *oshub.Client
	cache    *sqlite.Store
	events   EventEmitter
	logger   *slog.Logger
}

// NewTrackerService creates a new tracker service.
func NewTrackerService(
	sessions *SessionService,
	upstream *oshub.Client,
	cache *sqlite.Store,
	events EventEmitter,
	logger *slog.Logger,
) *TrackerService {
	return &TrackerService{
		sessions: sessions,
		upstream: upstream,
		cache:    cache,
		events:   events,
		logger:   logger,
	}
}

// Dialog opens the tracker dialog of a moderation event. The cached submission covers
// the window before the backend has indexed the event. Contributors only see their own
// submissions; staff may open any event.
func (s *TrackerService) Dialog(ctx context.Context, wf *Workflow, moderationID string) (workflow.TrackerDialog, error) {
	var view workflow.TrackerDialog
	err := s.sessions.Do(ctx, wf, func() error {
		cached, err := s.cache.GetSubmission(ctx, moderationID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			cached = nil
		case err != nil:
			return err
		}
		if session := wf.Session(); !session.IsStaff() {
			if cached == nil || cached.SessionID != session.ID {
				return domainerrors.NotFound("moderation event " + moderationID + " not found")
			}
		}

		event, err := state.Run(ctx, wf.store, state.OpFetchModerationEvent, moderationID,
			func(ctx context.Context) (*domain.ModerationEvent, error) {
				return s.upstream.GetModerationEvent(ctx, moderationID)
			})
		if errors.Is(err, state.ErrStoreClosed) {
			return err
		}
		if err != nil {
			if cached == nil {
				return err
			}
			s.logger.Debug("moderation event not available, using cached submission",
				"moderation_id", moderationID, "error", err)
			event = nil
		}

		base := domain.Submission{ModerationID: moderationID}
		if cached != nil {
			base = *cached
		}

		claim := base.ClaimStatus
		if event != nil {
			claim = s.claimStatus(ctx, event.OSID, claim)
			if cached != nil {
				if _, err := s.cache.RecordCheck(ctx, moderationID, event.Status, event.OSID, claim, time.Now()); err != nil {
					s.logger.Warn("failed to record submission check", "moderation_id", moderationID, "error", err)
				}
			}
		}

		wf.trackerOpen = moderationID
		view = workflow.PresentTracker(base, event, claim)
		return nil
	})
	return view, err
}

// claimStatus looks up the claim state of a location, falling back to fallback when it
// cannot be read.
func (s *TrackerService) claimStatus(ctx context.Context, osID domain.OSID, fallback domain.ClaimStatus) domain.ClaimStatus {
	if osID == "" {
		return fallback
	}
	loc, err := s.upstream.GetLocation(ctx, string(osID))
	if err != nil {
		s.logger.Debug("claim status lookup failed", "os_id", osID, "error", err)
		return fallback
	}
	return loc.ClaimStatus
}

// Close closes the tracker dialog.
func (s *TrackerService) Close(ctx context.Context, wf *Workflow) error {
	return s.sessions.Do(ctx, wf, func() error {
		wf.trackerOpen = ""
		return nil
	})
}

// Back handles the back action. With the dialog open it is closed and the client is sent
// to the landing page.
func (s *TrackerService) Back(ctx context.Context, wf *Workflow) (NavigationView, error) {
	var view NavigationView
	err := s.sessions.Do(ctx, wf, func() error {
		path, intercepted := workflow.BackNavigation(wf.trackerOpen != "")
		if intercepted {
			wf.trackerOpen = ""
		}
		view = NavigationView{Intercepted: intercepted, Path: path}
		return nil
	})
	return view, err
}

// SubmissionItem is one cached submission of a session with its claim action.
type SubmissionItem struct {
	domain.Submission
	Settled bool                 `json:"settled"`
	Claim   workflow.ClaimButton `json:"claim"`
}

// Submissions lists the contributions submitted from the session, newest first.
func (s *TrackerService) Submissions(ctx context.Context, wf *Workflow) ([]SubmissionItem, error) {
	subs, err := s.cache.ListSessionSubmissions(ctx, wf.Session().ID)
	if err != nil {
		return nil, err
	}
	items := make([]SubmissionItem, 0, len(subs))
	for _, sub := range subs {
		items = append(items, SubmissionItem{
			Submission: *sub,
			Settled:    sub.Settled(),
			Claim:      workflow.ClaimAction(sub.Status, sub.ClaimStatus, sub.OSID),
		})
	}
	return items, nil
}

// Run polls pending submissions every interval until ctx is cancelled.
func (s *TrackerService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("submission tracker started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("submission tracker stopped")
			return
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("submission poll failed", "error", err)
			}
		}
	}
}

// Poll re-checks the least recently checked pending submissions and notifies their
// sessions of every change. Returns the number of changed submissions.
func (s *TrackerService) Poll(ctx context.Context) (int, error) {
	pending, err := s.cache.ListPendingSubmissions(ctx, pollBatch)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, sub := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}

		event, err := s.upstream.GetModerationEvent(ctx, sub.ModerationID)
		if err != nil {
			if domainerrors.CodeOf(err) != domainerrors.CodeNotFound {
				s.logger.Debug("moderation event check failed", "moderation_id", sub.ModerationID, "error", err)
			}
			continue
		}

		claim := s.claimStatus(ctx, event.OSID, sub.ClaimStatus)
		updated, err := s.cache.RecordCheck(ctx, sub.ModerationID, event.Status, event.OSID, claim, time.Now())
		if err != nil {
			return changed, err
		}
		if !updated {
			continue
		}

		changed++
		s.logger.Info("submission status changed",
			"moderation_id", sub.ModerationID,
			"status", event.Status,
			"os_id", event.OSID)
		if sub.SessionID != "" {
			s.events.Emit(sse.NewStatusChangedEvent(sub.SessionID, event, claim))
		}
	}

	if n, err := s.cache.DeleteSubmissionsBefore(ctx, time.Now().Add(-submissionRetention)); err != nil {
		s.logger.Warn("failed to prune settled submissions", "error", err)
	} else if n > 0 {
		s.logger.Info("pruned settled submissions", "count", n)
	}
	return changed, nil
}
