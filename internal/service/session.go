// Package service provides the business logic layer behind the gateway handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/id"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/store"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

// scopedLogger returns the request logger carried by ctx, tagged with the session.
func scopedLogger(ctx context.Context, fallback *slog.Logger, sessionID string) *logger.Logger {
	l := &logger.Logger{Logger: logger.FromContext(ctx, fallback)}
	return l.WithSession(sessionID)
}

// EventEmitter pushes events to connected clients.
type EventEmitter interface {
	Emit(event sse.Event)
}

// Workflow is the live state of one session: the application state store plus the
// view models of the search dispatcher, the info form and the dialogs.
//
// Every read or write of the view models happens under mu, via SessionService.Do.
type Workflow struct {
	mu          sync.Mutex
	session     *domain.Session
	store       *state.Store
	unsubscribe func()
	lastUsed    time.Time
	evicted     bool

	search      workflow.Dispatcher
	form        *workflow.Form
	reject      workflow.RejectDialog
	trackerOpen string // moderation id of the open tracker dialog
}

// workflowSnapshot is the persisted form of a Workflow.
type workflowSnapshot struct {
	State       state.State         `json:"state"`
	Search      workflow.Dispatcher `json:"search"`
	Form        *workflow.Form      `json:"form,omitempty"`
	TrackerOpen string              `json:"tracker_open,omitempty"`
}

// Session returns the session behind the workflow.
func (w *Workflow) Session() *domain.Session {
	return w.session
}

// State returns the current application state.
func (w *Workflow) State() state.State {
	return w.store.Snapshot()
}

func (w *Workflow) snapshot() workflowSnapshot {
	return workflowSnapshot{
		State:       w.store.Snapshot(),
		Search:      w.search,
		Form:        w.form,
		TrackerOpen: w.trackerOpen,
	}
}

// SessionService creates, resumes and persists workflow sessions.
type SessionService struct {
	store  *store.Store
	tokens *auth.TokenService
	events EventEmitter
	logger *slog.Logger
	ttl    time.Duration

	mu   sync.Mutex
	live map[string]*Workflow
}

// NewSessionService creates a new session service.
func NewSessionService(store *store.Store, tokens *auth.TokenService, events EventEmitter, logger *slog.Logger, ttl time.Duration) *SessionService {
	return &SessionService{
		store:  store,
		tokens: tokens,
		events: events,
		logger: logger,
		ttl:    ttl,
		live:   make(map[string]*Workflow),
	}
}

// Create starts a new session. A valid staff grant makes it a staff session.
// Returns the workflow and its session token.
func (s *SessionService) Create(ctx context.Context, staffGrant string) (*Workflow, string, error) {
	role := domain.RoleContributor
	contributorID := 0
	if staffGrant != "" {
		claims, err := s.tokens.VerifyStaffToken(staffGrant)
		if err != nil {
			return nil, "", domainerrors.Unauthorized("invalid staff token").WithCause(err)
		}
		role = domain.RoleStaff
		contributorID = claims.ContributorID
	}

	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, "", fmt.Errorf("generate session ID: %w", err)
	}
	sess := domain.NewSession(sessionID, role, contributorID)
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.IssueSessionToken(sess)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	wf := s.attach(sess, workflowSnapshot{State: state.Initial(), Search: workflow.NewDispatcher()})
	s.save(ctx, wf)

	s.logger.Info("session created", "session_id", sessionID, "role", role)
	return wf, token, nil
}

// Authenticate verifies a session token without loading its state.
func (s *SessionService) Authenticate(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, domainerrors.Unauthorized("missing session token")
	}
	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid session token").WithCause(err)
	}
	return claims, nil
}

// Resume returns the workflow of a session token, restoring it from its snapshot when
// it is not in memory. Activity restarts the session's expiry.
func (s *SessionService) Resume(ctx context.Context, token string) (*Workflow, error) {
	claims, err := s.Authenticate(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.store.TouchSession(ctx, claims.SessionID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
			s.drop(claims.SessionID)
			return nil, domainerrors.Unauthorized("session expired").WithCause(err)
		}
		return nil, fmt.Errorf("touch session: %w", err)
	}

	s.mu.Lock()
	wf, ok := s.live[sess.ID]
	s.mu.Unlock()
	if ok {
		wf.mu.Lock()
		evicted := wf.evicted
		if !evicted {
			wf.session = sess
			wf.lastUsed = time.Now()
		}
		wf.mu.Unlock()
		if !evicted {
			return wf, nil
		}
	}

	snap := workflowSnapshot{State: state.Initial(), Search: workflow.NewDispatcher()}
	if err := s.store.LoadSnapshot(ctx, sess.ID, &snap); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("discarding unreadable session snapshot", "session_id", sess.ID, "error", err)
		snap = workflowSnapshot{State: state.Initial(), Search: workflow.NewDispatcher()}
	}
	return s.attach(sess, snap), nil
}

// ResumeStaff is Resume for dashboard routes.
func (s *SessionService) ResumeStaff(ctx context.Context, token string) (*Workflow, error) {
	wf, err := s.Resume(ctx, token)
	if err != nil {
		return nil, err
	}
	if !wf.Session().IsStaff() {
		return nil, domainerrors.Forbidden("staff session required")
	}
	return wf, nil
}

// attach registers a workflow in memory, or returns the one another request attached first.
func (s *SessionService) attach(sess *domain.Session, snap workflowSnapshot) *Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wf, ok := s.live[sess.ID]; ok {
		return wf
	}

	if snap.State.FilterOptions.Lists == nil {
		snap.State.FilterOptions = state.Initial().FilterOptions
	}
	wf := &Workflow{
		session:     sess,
		store:       state.NewStore(snap.State, s.logger),
		search:      snap.Search,
		form:        snap.Form,
		trackerOpen: snap.TrackerOpen,
		lastUsed:    time.Now(),
	}
	if wf.search.Tab == "" {
		wf.search = workflow.NewDispatcher()
	}
	sessionID := sess.ID
	wf.unsubscribe = wf.store.Subscribe(func(a state.Action, _ state.State) {
		s.events.Emit(sse.NewStateChangedEvent(sessionID, a.Type(), a.Key))
	})
	s.live[sess.ID] = wf
	return wf
}

// Do runs fn with exclusive access to the workflow and persists the result.
func (s *SessionService) Do(ctx context.Context, wf *Workflow, fn func() error) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	wf.lastUsed = time.Now()
	err := fn()
	s.save(ctx, wf)
	return err
}

// save persists the workflow snapshot. Failures are logged: the live state stays authoritative.
func (s *SessionService) save(ctx context.Context, wf *Workflow) {
	if err := s.store.SaveSnapshot(ctx, wf.session.ID, wf.snapshot()); err != nil {
		s.logger.Warn("failed to save session snapshot", "session_id", wf.session.ID, "error", err)
	}
}

// End deletes a session and its state.
func (s *SessionService) End(ctx context.Context, wf *Workflow) error {
	s.drop(wf.session.ID)
	if err := s.store.DeleteSession(ctx, wf.session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionService) drop(sessionID string) {
	s.mu.Lock()
	wf, ok := s.live[sessionID]
	delete(s.live, sessionID)
	s.mu.Unlock()
	if ok {
		wf.release()
	}
}

func (w *Workflow) release() {
	w.unsubscribe()
	w.store.Close()
}

// Evict releases in-memory workflows idle for longer than idle. Their snapshots stay.
func (s *SessionService) Evict(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	// Idle workflows leave the map in the same critical section that finds them idle.
	s.mu.Lock()
	var stale []*Workflow
	for id, wf := range s.live {
		if !wf.mu.TryLock() {
			continue
		}
		if wf.lastUsed.Before(cutoff) {
			wf.evicted = true
			delete(s.live, id)
			stale = append(stale, wf)
		}
		wf.mu.Unlock()
	}
	s.mu.Unlock()

	for _, wf := range stale {
		wf.release()
	}
	return len(stale)
}

// Prune deletes expired sessions from storage and memory.
func (s *SessionService) Prune(ctx context.Context) (int, error) {
	n, err := s.store.DeleteStaleSessions(ctx, time.Now(), s.ttl)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if s.ttl > 0 {
		s.Evict(s.ttl)
	}
	if n > 0 {
		s.logger.Info("pruned expired sessions", "count", n)
	}
	return n, nil
}

// LiveCount returns the number of workflows held in memory.
func (s *SessionService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown persists and releases every live workflow.
func (s *SessionService) Shutdown() error {
	s.mu.Lock()
	live := make([]*Workflow, 0, len(s.live))
	for _, wf := range s.live {
		live = append(live, wf)
	}
	s.mu.Unlock()

	for _, wf := range live {
		wf.mu.Lock()
		s.save(context.Background(), wf)
		wf.mu.Unlock()
		s.drop(wf.session.ID)
	}
	return nil
}
