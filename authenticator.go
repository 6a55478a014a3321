package accounts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Authenticator is the Session Issuer
type Authenticator struct {
	repo       RepositoryManager
	tokens     TokenService
	hasher     PasswordHasher
	sessionTTL time.Duration
	activity   ActivitySink
	logger     Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Authenticator {
	return &Authenticator{
		repo:       repo,
		tokens:     tokens,
		hasher:     NewBcryptHasher(0),
		sessionTTL: DefaultSessionTTL,
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
}

func (s *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithHasher overrides the password hasher.
func (s *Authenticator) WithHasher(hasher PasswordHasher) *Authenticator {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithSessionTTL sets the lifetime of minted session tokens.
func (s *Authenticator) WithSessionTTL(ttl time.Duration) *Authenticator {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	s.activity = normalizeActivitySink(sink)
	return s
}

// SignIn authenticates identifier (email or username) with password. A
// missing identity and a wrong password both return ErrUnauthorized.
func (s *Authenticator) SignIn(ctx context.Context, identifier, password string) (*Session, error) {
	identity, err := s.repo.Identities().FindByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, newInternalError(s.logger, err, "failed to look up identity")
		}

		// keep the response time close to a real comparison
		_ = s.hasher.ComparePasswordAndHash(password, s.placeholderHash())

		s.emitFailure(ctx, "", "identity not found")
		return nil, ErrUnauthorized
	}

	if err := s.hasher.ComparePasswordAndHash(password, identity.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			s.logger.Error("password comparison failed for identity %s: %v", identity.ID, err)
		}
		s.emitFailure(ctx, identity.ID.String(), "password mismatch")
		return nil, ErrUnauthorized
	}

	session, err := s.IssueSession(identity)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventSignInSuccess,
		IdentityID: identity.ID.String(),
	})

	return session, nil
}

// IssueSession mints a session token for an already authenticated identity
func (s *Authenticator) IssueSession(identity *Identity) (*Session, error) {
	session, err := mintSession(s.tokens, s.sessionTTL, identity)
	if err != nil {
		return nil, newInternalError(s.logger, err, "failed to mint session token")
	}
	return session, nil
}

// SessionFromToken verifies a session token and returns its claims
func (s *Authenticator) SessionFromToken(token string) (*SessionObject, error) {
	claims, err := s.tokens.VerifyScoped(token, ScopeSession)
	if err != nil {
		return nil, err
	}
	return sessionFromClaims(claims), nil
}

// IdentityFromToken verifies a session token and loads its identity
func (s *Authenticator) IdentityFromToken(ctx context.Context, token string) (*Identity, error) {
	session, err := s.SessionFromToken(token)
	if err != nil {
		return nil, err
	}
	return s.IdentityFromSession(ctx, session)
}

// IdentityFromSession loads the identity a session belongs to. A session
// for a deleted identity is unauthorized.
func (s *Authenticator) IdentityFromSession(ctx context.Context, session *SessionObject) (*Identity, error) {
	id, err := session.GetUserUUID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	identity, err := s.repo.Identities().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, newInternalError(s.logger, err, "failed to load session identity")
	}

	return identity, nil
}

func (s *Authenticator) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			s.logger.Warn("failed to compute placeholder hash: %v", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Authenticator) emitFailure(ctx context.Context, identityID, reason string) {
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventSignInFailure,
		IdentityID: identityID,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}
