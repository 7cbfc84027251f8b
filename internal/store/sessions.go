package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/opensupplyhub/contribute/internal/domain"
)

// CreateSession stores a new workflow session.
func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	key := buildKey(sessionPrefix, session.ID)
	defer releaseKey(key)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check session exists: %w", err)
	}
	if exists {
		return ErrAlreadyExists.WithCause(fmt.Errorf("session %s", session.ID))
	}

	indexKey := buildRoleIndexKey(string(session.Role), session.ID)
	defer releaseKey(indexKey)

	sessionEntry, err := s.entry(key, session)
	if err != nil {
		return err
	}
	indexEntry := badger.NewEntry(indexKey, nil)
	if s.ttl > 0 {
		indexEntry = indexEntry.WithTTL(s.ttl)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(sessionEntry); err != nil {
			return err
		}
		return txn.SetEntry(indexEntry)
	})
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	key := buildKey(sessionPrefix, id)
	defer releaseKey(key)

	var session domain.Session
	if err := s.get(key, &session); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.IsStale(time.Now(), s.ttl) {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// TouchSession records activity and restarts the session's expiry.
func (s *Store) TouchSession(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Touch(now)

	key := buildKey(sessionPrefix, id)
	defer releaseKey(key)
	indexKey := buildRoleIndexKey(string(session.Role), id)
	defer releaseKey(indexKey)

	sessionEntry, err := s.entry(key, session)
	if err != nil {
		return nil, err
	}
	indexEntry := badger.NewEntry(indexKey, nil)
	if s.ttl > 0 {
		indexEntry = indexEntry.WithTTL(s.ttl)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(sessionEntry); err != nil {
			return err
		}
		if err := txn.SetEntry(indexEntry); err != nil {
			return err
		}
		return s.retouchSnapshot(txn, id)
	})
	if err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session, its role index entry and its snapshot.
func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	key := buildKey(sessionPrefix, sessionID)
	defer releaseKey(key)

	// Read the raw record so an expired session is still cleaned up.
	var session domain.Session
	if err := s.get(key, &session); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Already gone
		}
		return fmt.Errorf("get session for deletion: %w", err)
	}

	indexKey := buildRoleIndexKey(string(session.Role), sessionID)
	defer releaseKey(indexKey)
	snapKey := buildKey(snapshotPrefix, sessionID)
	defer releaseKey(snapKey)

	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{key, indexKey, snapKey} {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// ListSessions pages through live sessions of one role, in key order.
func (s *Store) ListSessions(ctx context.Context, role domain.Role, params PaginationParams) (*PaginatedResult[*domain.Session], error) {
	params.Validate()

	after, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	prefix := []byte(sessionByRolePrefix + string(role) + ":")
	result := &PaginatedResult[*domain.Session]{Items: []*domain.Session{}}
	var lastKey string

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false // We only need keys

		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if after != "" {
			start = []byte(after)
		}

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			if key == after {
				continue
			}
			if len(result.Items) == params.Limit {
				result.HasMore = true
				break
			}

			sessionID := strings.TrimPrefix(key, string(prefix))
			session, err := s.GetSession(ctx, sessionID)
			if err != nil {
				if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionNotFound) {
					continue // Skip expired/missing sessions
				}
				return err
			}
			result.Items = append(result.Items, session)
			lastKey = key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	if result.HasMore {
		result.NextCursor = EncodeCursor(lastKey)
	}
	return result, nil
}

// DeleteStaleSessions removes sessions idle longer than ttl as of now.
// Badger expires entries on its own; this catches sessions written before a TTL change.
func (s *Store) DeleteStaleSessions(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	prefix := []byte(sessionPrefix)
	var staleIDs []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var session domain.Session
				if unmarshalErr := json.Unmarshal(val, &session); unmarshalErr != nil {
					//nolint:nilerr // Skip malformed sessions and keep iterating
					return nil
				}
				if session.IsStale(now, ttl) {
					staleIDs = append(staleIDs, session.ID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("find stale sessions: %w", err)
	}

	for _, sessionID := range staleIDs {
		if err := s.DeleteSession(ctx, sessionID); err != nil && s.logger != nil {
			s.logger.Warn("failed to delete stale session", "session_id", sessionID, "error", err)
		}
	}

	return len(staleIDs), nil
}
