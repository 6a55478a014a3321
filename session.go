package accounts

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a session token stays valid
const DefaultSessionTTL = 48 * time.Hour

// Session is returned by sign in and by a completed password reset. The
// identity is always the sanitized view.
type Session struct {
	Identity  *IdentityView `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// SessionObject is what a verified session token says about its bearer
type SessionObject struct {
	UserID         string     `json:"user_id,omitempty"`
	RoleID         string     `json:"role_id,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	Audience       []string   `json:"audience,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

// sessionFromClaims maps verified claims onto a SessionObject
func sessionFromClaims(claims *JWTClaims) *SessionObject {
	session := &SessionObject{
		UserID:   claims.UserID(),
		RoleID:   claims.Role(),
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
	}

	if claims.IssuedAt != nil {
		issuedAt := claims.IssuedAt.Time
		session.IssuedAt = &issuedAt
	}

	if claims.ExpiresAt != nil {
		expires := claims.ExpiresAt.Time
		session.ExpirationDate = &expires
	}

	return session
}

// mintSession signs a session token for identity and pairs it with the
// sanitized view.
func mintSession(tokens TokenService, ttl time.Duration, identity *Identity) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	token, expiresAt, err := tokens.Mint(
		identity.ID.String(),
		ttl,
		WithScopes(ScopeSession),
		WithRole(identity.RoleID.String()),
	)
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity:  ToView(identity),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
