package accounts

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// ScopeSession marks a signed in session token
	ScopeSession = "session"
	// ScopePasswordReset marks a proof that a reset code was verified
	ScopePasswordReset = "password_reset"
)

// JWTClaims are the claims minted by TokenService
type JWTClaims struct {
	jwt.RegisteredClaims
	UID         string   `json:"uid,omitempty"`
	UserRole    string   `json:"role,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	ResetDigest string   `json:"rcd,omitempty"`
}

// UserID returns the identity ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the role ID embedded at mint time
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// HasScope checks the scopes claim
func (c *JWTClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenGrant is what a token authorizes beyond who it was minted for.
// Mint owns the registered claims, options only ever see the grant.
type TokenGrant struct {
	Role        string
	Scopes      []string
	ResetDigest string
}

// ClaimsOption customizes the grant before signing
type ClaimsOption func(*TokenGrant)

// WithRole embeds the identity role reference
func WithRole(role string) ClaimsOption {
	return func(g *TokenGrant) {
		g.Role = role
	}
}

// WithScopes replaces the scopes claim
func WithScopes(scopes ...string) ClaimsOption {
	return func(g *TokenGrant) {
		g.Scopes = append([]string(nil), scopes...)
	}
}

// WithResetDigest binds the token to a single reset code issuance
func WithResetDigest(digest string) ClaimsOption {
	return func(g *TokenGrant) {
		g.ResetDigest = digest
	}
}

// validate rejects grants that could not be checked later: a reset proof
// must carry the digest of the code it was minted for, and only a reset
// proof may carry one.
func (g TokenGrant) validate() error {
	if len(g.Scopes) == 0 {
		return invalidGrant("token needs at least one scope")
	}

	isReset := slices.Contains(g.Scopes, ScopePasswordReset)
	switch {
	case isReset && g.ResetDigest == "":
		return invalidGrant("password reset proof requires a reset digest")
	case !isReset && g.ResetDigest != "":
		return invalidGrant("reset digest is only valid on a password reset proof")
	case isReset && len(g.Scopes) > 1:
		return invalidGrant("password reset proof can not carry other scopes")
	}

	return nil
}

func invalidGrant(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode("INVALID_TOKEN_GRANT")
}
