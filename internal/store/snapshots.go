package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// SaveSnapshot stores the serialized application state of a session.
func (s *Store) SaveSnapshot(_ context.Context, sessionID string, snapshot any) error {
	key := buildKey(snapshotPrefix, sessionID)
	defer releaseKey(key)

	if err := s.set(key, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot decodes the stored state of a session into dest.
// It returns ErrNotFound when the session has never been snapshotted.
func (s *Store) LoadSnapshot(_ context.Context, sessionID string, dest any) error {
	key := buildKey(snapshotPrefix, sessionID)
	defer releaseKey(key)

	if err := s.get(key, dest); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load snapshot: %w", err)
	}
	return nil
}

// retouchSnapshot rewrites the snapshot inside txn so it shares the session's expiry.
func (s *Store) retouchSnapshot(txn *badger.Txn, sessionID string) error {
	if s.ttl <= 0 {
		return nil
	}
	key := []byte(snapshotPrefix + sessionID)

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return txn.SetEntry(badger.NewEntry(key, val).WithTTL(s.ttl))
}
