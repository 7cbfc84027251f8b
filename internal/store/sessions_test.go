package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/domain"
)

func setupTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "badger"), ttl, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestCreateSession(t *testing.T) {
	store := setupTestStore(t, time.Hour)
	ctx := context.Background()

	session := domain.NewSession("ses-test123", domain.RoleContributor, 42)
	require.NoError(t, store.CreateSession(ctx, session))

	retrieved, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, domain.RoleContributor, retrieved.Role)
	assert.Equal(t, 42, retrieved.ContributorID)
}

func TestCreateSession_DuplicateID(t *testing.T) {
	store := setupTestStore(t, time.Hour)
	ctx := context.Background()

	session := domain.NewSession("ses-test123", domain.RoleContributor, 0)
	require.NoError(t, store.CreateSession(ctx, session))

	err := store.CreateSession(ctx, session)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetSession_NotFound(t *testing.T) {
	store := setupTestStore(t, time.Hour)

	_, err := store.GetSession(context.Background(), "ses-missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSession_Stale(t *testing.T) {
	store := setupTestStore(t, time.Hour)
	ctx := context.Background()

	session := domain.NewSession("ses-old", domain.RoleContributor, 0)
	session.LastSeenAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.CreateSession(ctx, session))

	_, err := store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestTouchSession(t *testing.T) {
	store := setupTestStore(t, time.Hour)
	ctx := context.Background()

	session := domain.NewSession("ses-touch", domain.RoleContributor, 0)
	session.LastSeenAt = time.Now().Add(-30 * time.Minute)
	require.NoError(t, store.CreateSession(ctx, session))
	require.NoError(t, store.SaveSnapshot(ctx, session.ID, map[string]string{"tab": "os-id"}))

	now := time.Now()
	touched, err := store.TouchSession(ctx, session.ID, now)
	require.NoError(t, err)
	assert.WithinDuration(t, now, touched.LastSeenAt, time.Second)

	var snap map[string]string
	require.NoError(t, store.LoadSnapshot(ctx, session.ID, &snap))
	assert.Equal(t, "os-id", snap["tab"])
}

func TestDeleteSession_RemovesSnapshot(t *testing.T) {
	store := setupTestStore(t, time.Hour)
	ctx := context.Background()

	session := domain.NewSession("ses-del", domain.RoleStaff, 0)
	require.NoError(t, store.CreateSession(ctx, session))
	require.NoError(t, store.SaveSnapshot(ctx, session.ID, map[string]int{"n": 1}))

	require.NoError(t, store.DeleteSession(ctx, session.ID))
	require.NoError(t, store.DeleteSession(ctx, session.ID), "deleting twice is fine")

	_, err := store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	var snap map[string]int
	assert.ErrorIs(t, store.LoadSnapshot(ctx, session.ID, &snap), ErrNotFound)
}

func TestListSessions_PagesByRole(t *testing.T) {
	store := setupTestStore(t, time.Hour)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, store.CreateSession(ctx, domain.NewSession(fmt.Sprintf("ses-c%d", i), domain.RoleContributor, 0)))
	}
	require.NoError(t, store.CreateSession(ctx, domain.NewSession("ses-s0", domain.RoleStaff, 0)))

	page, err := store.ListSessions(ctx, domain.RoleContributor, PaginationParams{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)

	next, err := store.ListSessions(ctx, domain.RoleContributor, PaginationParams{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, next.Items, 2)
	assert.False(t, next.HasMore)
	assert.NotEqual(t, page.Items[0].ID, next.Items[0].ID)

	staff, err := store.ListSessions(ctx, domain.RoleStaff, PaginationParams{})
	require.NoError(t, err)
	require.Len(t, staff.Items, 1)
	assert.Equal(t, "ses-s0", staff.Items[0].ID)
}

func TestDeleteStaleSessions(t *testing.T) {
	store := setupTestStore(t, 0)
	ctx := context.Background()

	fresh := domain.NewSession("ses-fresh", domain.RoleContributor, 0)
	stale := domain.NewSession("ses-stale", domain.RoleContributor, 0)
	stale.LastSeenAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.CreateSession(ctx, fresh))
	require.NoError(t, store.CreateSession(ctx, stale))

	n, err := store.DeleteStaleSessions(ctx, time.Now(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetSession(ctx, "ses-stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.GetSession(ctx, "ses-fresh")
	assert.NoError(t, err)
}

func TestPing(t *testing.T) {
	store := setupTestStore(t, 0)
	assert.NoError(t, store.Ping())
	assert.NoError(t, store.RunGC())
}

func TestPaginationParams_Validate(t *testing.T) {
	p := PaginationParams{}
	p.Validate()
	assert.Equal(t, DefaultPageLimit, p.Limit)

	p.Limit = 5000
	p.Validate()
	assert.Equal(t, MaxPageLimit, p.Limit)

	cursor := EncodeCursor("idx:sessions:role:staff:ses-1")
	decoded, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, "idx:sessions:role:staff:ses-1", decoded)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}
