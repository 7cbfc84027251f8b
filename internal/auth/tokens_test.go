package auth

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/domain"
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	key, err := LoadOrGenerateKey(filepath.Join(t.TempDir(), "token.key"))
	require.NoError(t, err)
	svc, err := NewTokenService(key, time.Hour, 12*time.Hour)
	require.NoError(t, err)
	return svc
}

func TestLoadOrGenerateKey_Stable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.key")

	first, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	second, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, loaded)
}

func TestLoadKey_Missing(t *testing.T) {
	_, err := LoadKey(filepath.Join(t.TempDir(), "absent.key"))
	assert.Error(t, err)
}

func TestNewTokenService_BadKey(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestSessionToken_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	sess := domain.NewSession("ses-abc", domain.RoleContributor, 0)

	token, err := svc.IssueSessionToken(sess)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.VerifySessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ses-abc", claims.SessionID)
	assert.Equal(t, domain.RoleContributor, claims.Role)
	assert.False(t, claims.IsStaff())
}

func TestStaffToken_NotASessionToken(t *testing.T) {
	svc := newTestService(t)

	grant, err := svc.IssueStaffToken(42, "Moderator")
	require.NoError(t, err)

	claims, err := svc.VerifyStaffToken(grant)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.ContributorID)
	assert.Equal(t, "Moderator", claims.Name)
	assert.True(t, claims.IsStaff())

	_, err = svc.VerifySessionToken(grant)
	assert.Error(t, err)
}

func TestSessionToken_Expired(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.IssueSessionToken(domain.NewSession("ses-old", domain.RoleContributor, 0))
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifySessionToken(token)
	assert.Error(t, err)
}

func TestSessionToken_OtherKey(t *testing.T) {
	a := newTestService(t)
	b := newTestService(t)

	token, err := a.IssueSessionToken(domain.NewSession("ses-1", domain.RoleStaff, 7))
	require.NoError(t, err)

	_, err = b.VerifySessionToken(token)
	assert.Error(t, err)
}
