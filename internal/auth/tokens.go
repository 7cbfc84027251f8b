package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/id"
)

const (
	tokenIssuer     = "opensupplyhub-contribute"
	sessionAudience = "contribute-client"
	staffAudience   = "contribute-staff-grant"
)

// ErrWrongKind is returned when a valid token of the other family is presented.
var ErrWrongKind = errors.New("wrong token kind")

// TokenService handles PASETO token generation and verification.
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	sessionTTL   time.Duration
	staffTTL     time.Duration
	now          func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, sessionTTL, staffTTL time.Duration) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(key))
	}
	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &TokenService{
		symmetricKey: symmetricKey,
		sessionTTL:   sessionTTL,
		staffTTL:     staffTTL,
		now:          time.Now,
	}, nil
}

// IssueSessionToken creates a v4.local token for a gateway session.
func (s *TokenService) IssueSessionToken(sess *domain.Session) (string, error) {
	token, err := s.newToken(sessionAudience, sess.ID, s.sessionTTL)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Token.Set only errors on unmarshalable values
	_ = token.Set("kind", KindSession)
	//nolint:errcheck
	_ = token.Set("session_id", sess.ID)
	//nolint:errcheck
	_ = token.Set("role", sess.Role)
	if sess.ContributorID != 0 {
		//nolint:errcheck
		_ = token.Set("contributor_id", sess.ContributorID)
	}
	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// IssueStaffToken creates an operator grant that can be exchanged for a staff session.
func (s *TokenService) IssueStaffToken(contributorID int, name string) (string, error) {
	token, err := s.newToken(staffAudience, strconv.Itoa(contributorID), s.staffTTL)
	if err != nil {
		return "", err
	}
	//nolint:errcheck
	_ = token.Set("kind", KindStaff)
	//nolint:errcheck
	_ = token.Set("role", domain.RoleStaff)
	//nolint:errcheck
	_ = token.Set("contributor_id", contributorID)
	//nolint:errcheck
	_ = token.Set("name", name)
	return token.V4Encrypt(s.symmetricKey, nil), nil
}

func (s *TokenService) newToken(audience, subject string, ttl time.Duration) (*paseto.Token, error) {
	now := s.now()
	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(subject)
	token.SetAudience(audience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(ttl))

	tokenID, err := id.Generate("tok")
	if err != nil {
		return nil, fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)
	return &token, nil
}

// VerifySessionToken parses a session token.
func (s *TokenService) VerifySessionToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, sessionAudience, KindSession)
}

// VerifyStaffToken parses an operator staff grant.
func (s *TokenService) VerifyStaffToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, staffAudience, KindStaff)
}

func (s *TokenService) verify(tokenString, audience string, kind Kind) (*Claims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(audience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return &claims, nil
}

