package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/id"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/search"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/store"
	"github.com/opensupplyhub/contribute/internal/store/sqlite"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

const (
	defaultQueuePageSize = 25
	maxQueuePageSize     = 100
)

// Mutation actions reported in MutationResult.Action.
const (
	ActionRejected        = "reject"
	ActionCreatedLocation = "create_location"
	ActionConfirmedMatch  = "confirm_potential_match"
)

// QueueQuery filters and pages the moderation queue. A non-empty Query switches to a
// text search over the local index.
type QueueQuery struct {
	Query    string
	Status   domain.ModerationStatus
	Country  string
	Source   domain.Source
	Page     int
	PageSize int
}

func (q QueueQuery) normalized() QueueQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = defaultQueuePageSize
	case q.PageSize > maxQueuePageSize:
		q.PageSize = maxQueuePageSize
	}
	q.Query = strings.TrimSpace(q.Query)
	q.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	return q
}

func (q QueueQuery) key() string {
	return strings.Join([]string{
		q.Query, string(q.Status), q.Country, string(q.Source),
		strconv.Itoa(q.Page), strconv.Itoa(q.PageSize),
	}, "|")
}

// QueueView is the moderation queue as the dashboard renders it.
type QueueView struct {
	Sort     state.QueueSort          `json:"sort"`
	Columns  []workflow.SortColumn    `json:"columns"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Count    int                      `json:"count"`
	Events   []domain.ModerationEvent `json:"events"`
	Facets   *search.QueueFacets      `json:"facets,omitempty"`
	Error    *state.Failure           `json:"error,omitempty"`
}

// RecordView is one moderation event with its matches and available actions.
type RecordView struct {
	Event        *domain.ModerationEvent `json:"event"`
	Actions      workflow.RecordActions  `json:"actions"`
	Matches      []workflow.MatchItem    `json:"potential_matches"`
	MatchesError *state.Failure          `json:"potential_matches_error,omitempty"`
	Reject       workflow.SubmitButton   `json:"reject"`
	Mutation     *state.MutationResult   `json:"mutation,omitempty"`
	Error        *state.Failure          `json:"error,omitempty"`
}

// ModerationService drives the staff dashboard: the queue, the record view and the
// decisions taken on it.
type ModerationService struct {
	sessions  *SessionService
	upstream  *oshub.Client
	index     *search.Index
	cache     *sqlite.Store
	events    EventEmitter
	logger    *slog.Logger
	matchSize int
}

// NewModerationService creates a new moderation service.
func NewModerationService(
	sessions *SessionService,
	upstream *oshub.Client,
	index *search.Index,
	cache *sqlite.Store,
	events EventEmitter,
	logger *slog.Logger,
	matchSize int,
) *ModerationService {
	return &ModerationService{
		sessions:  sessions,
		upstream:  upstream,
		index:     index,
		cache:     cache,
		events:    events,
		logger:    logger,
		matchSize: matchSize,
	}
}

// Queue loads one page of the moderation queue under the session's sort.
func (s *ModerationService) Queue(ctx context.Context, wf *Workflow, q QueueQuery) (QueueView, error) {
	var view QueueView
	err := s.sessions.Do(ctx, wf, func() error {
		var err error
		view, err = s.queue(ctx, wf, q.normalized())
		return err
	})
	return view, err
}

// SetSort applies a column header click and reloads the queue.
func (s *ModerationService) SetSort(ctx context.Context, wf *Workflow, column workflow.SortColumn, q QueueQuery) (QueueView, error) {
	var view QueueView
	err := s.sessions.Do(ctx, wf, func() error {
		dash := wf.State().DashboardContributionRecord
		next, err := workflow.ToggleSort(dash.Sort, column, dash.Queue.Fetching)
		if err != nil {
			return domainerrors.Validation(err.Error())
		}
		if _, err := wf.store.Dispatch(state.Set(state.OpSetQueueSort, next)); err != nil {
			return err
		}
		view, err = s.queue(ctx, wf, q.normalized())
		return err
	})
	return view, err
}

func (s *ModerationService) queue(ctx context.Context, wf *Workflow, q QueueQuery) (QueueView, error) {
	sort := wf.State().DashboardContributionRecord.Sort
	var facets *search.QueueFacets

	_, err := state.Run(ctx, wf.store, state.OpFetchQueue, q.key(),
		func(ctx context.Context) (state.QueuePage, error) {
			if q.Query != "" {
				page, f, err := s.searchQueue(ctx, q, sort)
				facets = f
				return page, err
			}
			return s.fetchQueue(ctx, q, sort)
		})
	if errors.Is(err, state.ErrStoreClosed) {
		return QueueView{}, err
	}
	if err != nil {
		s.logger.Warn("moderation queue load failed", "error", err)
	}

	cur := wf.State().DashboardContributionRecord
	events := cur.Queue.Data.Events
	if events == nil {
		events = []domain.ModerationEvent{}
	}
	return QueueView{
		Sort:     cur.Sort,
		Columns:  workflow.SortColumns,
		Page:     q.Page,
		PageSize: q.PageSize,
		Count:    cur.Queue.Data.Count,
		Events:   events,
		Facets:   facets,
		Error:    cur.Queue.Error,
	}, nil
}

// fetchQueue reads a queue page from the backend and mirrors it into the local index.
func (s *ModerationService) fetchQueue(ctx context.Context, q QueueQuery, sort state.QueueSort) (state.QueuePage, error) {
	page, err := s.upstream.ListModerationEvents(ctx, oshub.ModerationQuery{
		Status:    q.Status,
		Country:   q.Country,
		Source:    q.Source,
		SortBy:    workflow.SortColumn(sort.Column).BackendField(),
		OrderDesc: sort.Desc,
		From:      (q.Page - 1) * q.PageSize,
		Size:      q.PageSize,
	})
	if err != nil {
		return state.QueuePage{}, err
	}
	if err := s.index.IndexEvents(page.Data); err != nil {
		s.logger.Warn("failed to index moderation events", "count", len(page.Data), "error", err)
	}
	events := page.Data
	if events == nil {
		events = []domain.ModerationEvent{}
	}
	return state.QueuePage{Count: page.Count, Events: events}, nil
}

// searchQueue answers a text query from the local index.
func (s *ModerationService) searchQueue(ctx context.Context, q QueueQuery, sort state.QueueSort) (state.QueuePage, *search.QueueFacets, error) {
	params := search.QueueParams{
		Query:         q.Query,
		Limit:         q.PageSize,
		Offset:        (q.Page - 1) * q.PageSize,
		SortColumn:    sort.Column,
		Desc:          sort.Desc,
		IncludeFacets: true,
	}
	if q.Status != "" {
		params.Statuses = []string{string(q.Status)}
	}
	if q.Country != "" {
		params.Countries = []string{q.Country}
	}
	if q.Source != "" {
		params.Sources = []string{string(q.Source)}
	}

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return state.QueuePage{}, nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid queue search")
	}

	events := make([]domain.ModerationEvent, 0, len(res.Hits))
	for _, h := range res.Hits {
		ev, err := eventFromHit(h)
		if err != nil {
			s.logger.Warn("skipping unreadable index entry", "id", h.ModerationID, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return state.QueuePage{Count: int(res.Total), Events: events}, &res.Facets, nil
}

func eventFromHit(h search.Hit) (domain.ModerationEvent, error) {
	moderationID, err := id.ParseModerationID(h.ModerationID)
	if err != nil {
		return domain.ModerationEvent{}, err
	}
	return domain.ModerationEvent{
		ModerationID:    moderationID,
		OSID:            domain.OSID(h.OSID),
		ContributorName: h.Contributor,
		RequestType:     domain.RequestType(h.RequestType),
		Source:          domain.Source(h.Source),
		Status:          domain.ModerationStatus(h.Status),
		CleanedData: domain.ContributionData{
			Name:        h.Name,
			Address:     h.Address,
			CountryCode: h.Country,
		},
		CreatedAt: h.CreatedAt,
	}, nil
}

// Record loads a moderation event and its potential matches.
func (s *ModerationService) Record(ctx context.Context, wf *Workflow, moderationID string) (RecordView, error) {
	var view RecordView
	err := s.sessions.Do(ctx, wf, func() error {
		if err := s.loadRecord(ctx, wf, moderationID); err != nil {
			return err
		}
		view = s.recordView(wf)
		return nil
	})
	return view, err
}

func (s *ModerationService) loadRecord(ctx context.Context, wf *Workflow, moderationID string) error {
	if _, err := id.ParseModerationID(moderationID); err != nil {
		return domainerrors.Validation("invalid moderation id")
	}

	event, err := state.Run(ctx, wf.store, state.OpFetchRecord, moderationID,
		func(ctx context.Context) (*domain.ModerationEvent, error) {
			return s.upstream.GetModerationEvent(ctx, moderationID)
		})
	if domainerrors.CodeOf(err) == domainerrors.CodeNotFound {
		// The backend dropped the event; stop listing it in local searches.
		if derr := s.index.DeleteEvent(moderationID); derr != nil {
			s.logger.Warn("failed to drop moderation event from index", "moderation_id", moderationID, "error", derr)
		}
	}
	if err != nil {
		return err
	}
	if err := s.index.IndexEvent(event); err != nil {
		s.logger.Warn("failed to index moderation event", "moderation_id", moderationID, "error", err)
	}

	_, err = state.Run(ctx, wf.store, state.OpFetchRecordMatches, moderationID,
		func(ctx context.Context) ([]domain.PotentialMatch, error) {
			return s.potentialMatches(ctx, event)
		})
	if errors.Is(err, state.ErrStoreClosed) {
		return err
	}
	if err != nil {
		s.logger.Warn("potential match load failed", "moderation_id", moderationID, "error", err)
	}
	return nil
}

// potentialMatches returns the matches the backend attached to the event or, for a
// pending event without any, searches for similar locations.
func (s *ModerationService) potentialMatches(ctx context.Context, ev *domain.ModerationEvent) ([]domain.PotentialMatch, error) {
	if len(ev.PotentialMatches) > 0 || ev.Status.Decided() {
		matches := ev.PotentialMatches
		if matches == nil {
			matches = []domain.PotentialMatch{}
		}
		return matches, nil
	}

	data := ev.CleanedData
	page, err := s.upstream.SearchLocations(ctx, oshub.LocationQuery{
		Name:    data.Name,
		Address: data.Address,
		Country: data.CountryCode,
		Size:    s.matchSize,
	})
	if err != nil {
		return nil, err
	}
	matches := make([]domain.PotentialMatch, 0, len(page.Data))
	for _, c := range page.Data {
		m := domain.PotentialMatch{
			OSID:        c.OSID,
			Name:        c.Name,
			Address:     c.Address,
			CountryCode: c.Country.Alpha2,
			ClaimStatus: string(c.ClaimStatus),
		}
		if c.Confidence != nil {
			m.Confidence = *c.Confidence
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *ModerationService) recordView(wf *Workflow) RecordView {
	dash := wf.State().DashboardContributionRecord
	actions := workflow.PresentRecordActions(dash.Event.Fetching, dash.Mutation.Fetching, dash.Event.Data)
	return RecordView{
		Event:        dash.Event.Data,
		Actions:      actions,
		Matches:      workflow.PresentMatches(dash.PotentialMatches.Data, actions),
		MatchesError: dash.PotentialMatches.Error,
		Reject:       wf.reject.Button(),
		Mutation:     dash.Mutation.Data,
		Error:        dash.Event.Error,
	}
}

// openRecord makes sure the record in state is moderationID and returns its actions.
func (s *ModerationService) openRecord(ctx context.Context, wf *Workflow, moderationID string) (workflow.RecordActions, error) {
	dash := wf.State().DashboardContributionRecord
	if dash.Event.Data == nil || dash.Event.Data.ModerationID.String() != moderationID {
		if err := s.loadRecord(ctx, wf, moderationID); err != nil {
			return workflow.RecordActions{}, err
		}
		dash = wf.State().DashboardContributionRecord
	}
	return workflow.PresentRecordActions(dash.Event.Fetching, dash.Mutation.Fetching, dash.Event.Data), nil
}

// Reject rejects a pending event. The justification is rich text and must be long
// enough once its markup is removed.
func (s *ModerationService) Reject(ctx context.Context, wf *Workflow, moderationID, justification string) (RecordView, error) {
	var view RecordView
	err := s.sessions.Do(ctx, wf, func() error {
		wf.reject = workflow.RejectDialog{Justification: justification}
		if !wf.reject.CanReject() {
			return domainerrors.ValidationWithDetails("justification is too short",
				map[string]string{"justification": workflow.RejectTooltip})
		}

		actions, err := s.openRecord(ctx, wf, moderationID)
		if err != nil {
			return err
		}
		if !actions.Reject.Enabled {
			return domainerrors.Conflict(actions.Reject.Reason)
		}

		plain, markdown := wf.reject.PlainJustification(), wf.reject.MarkdownJustification()
		_, err = state.Run(ctx, wf.store, state.OpRejectEvent, moderationID,
			func(ctx context.Context) (*state.MutationResult, error) {
				ev, err := s.upstream.RejectModerationEvent(ctx, moderationID, plain, justification)
				if err != nil {
					return nil, err
				}
				status := ev.Status
				if status == "" {
					status = domain.ModerationRejected
				}
				return &state.MutationResult{
					ModerationID: moderationID,
					Action:       ActionRejected,
					Status:       status,
					Reason:       markdown,
				}, nil
			})
		if err != nil {
			return err
		}

		wf.reject = workflow.RejectDialog{}
		s.afterDecision(ctx, wf, ActionRejected)
		view = s.recordView(wf)
		return nil
	})
	return view, err
}

// CreateLocation approves a pending event as a new production location.
func (s *ModerationService) CreateLocation(ctx context.Context, wf *Workflow, moderationID string) (RecordView, error) {
	var view RecordView
	err := s.sessions.Do(ctx, wf, func() error {
		actions, err := s.openRecord(ctx, wf, moderationID)
		if err != nil {
			return err
		}
		if !actions.CreateLocation.Enabled {
			return domainerrors.Conflict(actions.CreateLocation.Reason)
		}

		_, err = state.Run(ctx, wf.store, state.OpCreateLocationFromRec, moderationID,
			func(ctx context.Context) (*state.MutationResult, error) {
				created, err := s.upstream.CreateLocationFromEvent(ctx, moderationID)
				if err != nil {
					return nil, err
				}
				return &state.MutationResult{
					ModerationID: moderationID,
					Action:       ActionCreatedLocation,
					Status:       domain.ModerationApproved,
					OSID:         created.OSID,
				}, nil
			})
		if err != nil {
			return err
		}

		s.afterDecision(ctx, wf, ActionCreatedLocation)
		view = s.recordView(wf)
		return nil
	})
	return view, err
}

// ConfirmMatch approves a pending event as an update of an existing location.
func (s *ModerationService) ConfirmMatch(ctx context.Context, wf *Workflow, moderationID, osID string) (RecordView, error) {
	var view RecordView
	err := s.sessions.Do(ctx, wf, func() error {
		osID = strings.ToUpper(strings.TrimSpace(osID))
		if !domain.IsValidOSID(osID) {
			return domainerrors.ValidationWithDetails("invalid OS ID", map[string]string{"os_id": "Enter a 15 character OS ID."})
		}

		actions, err := s.openRecord(ctx, wf, moderationID)
		if err != nil {
			return err
		}
		if !actions.CreateLocation.Enabled {
			return domainerrors.Conflict(actions.CreateLocation.Reason)
		}

		_, err = state.Run(ctx, wf.store, state.OpConfirmMatch, moderationID,
			func(ctx context.Context) (*state.MutationResult, error) {
				created, err := s.upstream.ConfirmPotentialMatch(ctx, moderationID, osID)
				if err != nil {
					return nil, err
				}
				confirmed := created.OSID
				if confirmed == "" {
					confirmed = domain.OSID(osID)
				}
				return &state.MutationResult{
					ModerationID: moderationID,
					Action:       ActionConfirmedMatch,
					Status:       domain.ModerationApproved,
					OSID:         confirmed,
				}, nil
			})
		if err != nil {
			return err
		}

		s.afterDecision(ctx, wf, ActionConfirmedMatch)
		view = s.recordView(wf)
		return nil
	})
	return view, err
}

// afterDecision reindexes the decided event and tells staff and the contributor.
func (s *ModerationService) afterDecision(ctx context.Context, wf *Workflow, action string) {
	ev := wf.State().DashboardContributionRecord.Event.Data
	if ev == nil {
		return
	}
	decided := *ev
	now := time.Now().UTC()
	if decided.Status.Decided() && decided.DecisionDate == nil {
		decided.DecisionDate = &now
	}
	decided.UpdatedAt = now
	moderationID := decided.ModerationID.String()

	log := scopedLogger(ctx, s.logger, wf.Session().ID).WithModeration(moderationID)
	log.Info("moderation event decided", "action", action, "status", decided.Status, "os_id", decided.OSID)

	if err := s.index.IndexEvent(&decided); err != nil {
		log.WithError(err).Warn("failed to reindex moderation event")
	}
	s.events.Emit(sse.NewStaffStatusChangedEvent(&decided))

	// The contributor's status event must not depend on the staff request staying open.
	cacheCtx := context.WithoutCancel(ctx)
	sub, err := s.cache.GetSubmission(cacheCtx, moderationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).Warn("failed to read cached submission")
		}
		return
	}
	changed, err := s.cache.RecordCheck(cacheCtx, moderationID, decided.Status, decided.OSID, sub.ClaimStatus, now)
	if err != nil {
		log.WithError(err).Warn("failed to update cached submission")
		return
	}
	if changed && sub.SessionID != "" {
		s.events.Emit(sse.NewStatusChangedEvent(sub.SessionID, &decided, sub.ClaimStatus))
	}
}

// ClaimTarget resolves where the claim action of a record leads.
func (s *ModerationService) ClaimTarget(ctx context.Context, wf *Workflow, moderationID string) (*state.ClaimTarget, error) {
	var target *state.ClaimTarget
	err := s.sessions.Do(ctx, wf, func() error {
		actions, err := s.openRecord(ctx, wf, moderationID)
		if err != nil {
			return err
		}
		if !actions.GoToClaim.Enabled {
			return domainerrors.Conflict(actions.GoToClaim.Reason)
		}

		osID := wf.State().DashboardContributionRecord.Event.Data.OSID
		target, err = state.Run(ctx, wf.store, state.OpFetchClaimTarget, string(osID),
			func(ctx context.Context) (*state.ClaimTarget, error) {
				loc, err := s.upstream.GetLocation(ctx, string(osID))
				if err != nil {
					return nil, err
				}
				return &state.ClaimTarget{
					OSID:        loc.OSID,
					ClaimStatus: loc.ClaimStatus,
					Path:        workflow.ClaimPath(loc.OSID),
				}, nil
			})
		return err
	})
	return target, err
}

// Reindex rebuilds the local index from every page of the backend queue.
func (s *ModerationService) Reindex(ctx context.Context) (int, error) {
	if err := s.index.Rebuild(); err != nil {
		return 0, err
	}

	total := 0
	for from := 0; ; from += maxQueuePageSize {
		page, err := s.upstream.ListModerationEvents(ctx, oshub.ModerationQuery{
			SortBy:    workflow.ColumnCreatedAt.BackendField(),
			OrderDesc: true,
			From:      from,
			Size:      maxQueuePageSize,
		})
		if err != nil {
			return total, err
		}
		if err := s.index.IndexEvents(page.Data); err != nil {
			return total, err
		}
		total += len(page.Data)
		if len(page.Data) < maxQueuePageSize || total >= page.Count {
			break
		}
	}

	s.logger.Info("moderation index rebuilt", "events", total)
	return total, nil
}
