package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrStoreClosed is returned when dispatching into a closed store.
var ErrStoreClosed = errors.New("state store closed")

// Listener is notified after every applied action, on the store goroutine.
// Listeners must not dispatch into the same store.
type Listener func(a Action, next State)

type envelope struct {
	action Action
	reply  chan State
}

// Store serialises actions through a single goroutine that owns the state.
type Store struct {
	current atomic.Pointer[State]
	actions chan envelope
	done    chan struct{}
	logger  *slog.Logger

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64

	closeMu sync.RWMutex
	closed  bool
}

// NewStore starts a store seeded with initial.
func NewStore(initial State, logger *slog.Logger) *Store {
	s := &Store{
		actions:   make(chan envelope, 64),
		done:      make(chan struct{}),
		logger:    logger,
		listeners: make(map[uint64]Listener),
	}
	s.current.Store(&initial)
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.done)
	for env := range s.actions {
		next := Reduce(*s.current.Load(), env.action)
		s.current.Store(&next)

		s.logger.Debug("action applied", "type", env.action.Type(), "key", env.action.Key)

		s.listenersMu.RLock()
		for _, fn := range s.listeners {
			fn(env.action, next)
		}
		s.listenersMu.RUnlock()

		if env.reply != nil {
			env.reply <- next
		}
	}
}

// Dispatch applies a and returns the resulting state once it has been reduced.
func (s *Store) Dispatch(a Action) (State, error) {
	reply := make(chan State, 1)

	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return s.Snapshot(), ErrStoreClosed
	}
	s.actions <- envelope{action: a, reply: reply}
	s.closeMu.RUnlock()

	return <-reply, nil
}

// Snapshot returns the most recently reduced state.
func (s *Store) Snapshot() State {
	return *s.current.Load()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Close stops accepting actions and waits for queued ones to be applied.
func (s *Store) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	close(s.actions)
	s.closeMu.Unlock()

	<-s.done
}

// Run performs fn as one async operation: a start action, then success or failure.
// fn runs detached from ctx cancellation so a completion still lands in the store
// after the caller has gone away.
func Run[T any](ctx context.Context, s *Store, op Op, key string, fn func(context.Context) (T, error)) (T, error) {
	if _, err := s.Dispatch(Start(op, key)); err != nil {
		var zero T
		return zero, err
	}

	v, err := fn(context.WithoutCancel(ctx))
	if err != nil {
		if _, dispatchErr := s.Dispatch(Failed(op, key, err)); dispatchErr != nil {
			s.logger.Warn("dropped failure action", "type", op, "error", err)
		}
		return v, err
	}

	if _, dispatchErr := s.Dispatch(Success(op, key, v)); dispatchErr != nil {
		s.logger.Warn("dropped success action", "type", op)
	}
	return v, nil
}
