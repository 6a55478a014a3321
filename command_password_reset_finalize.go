package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Proof      string `json:"proof" doc:"Proof returned by reset code verification"`
	Password   string `json:"password" example:"some_secret_word" doc:"New password"`
	OnResponse func(session *Session)
}

func (m FinalizePasswordResetMessage) Type() string { return "identity.password_reset.finalize" }

// FinalizePasswordResetHandler consumes a verified reset code, replaces the
// credential and signs the identity in.
type FinalizePasswordResetHandler struct {
	repo       RepositoryManager
	tokens     TokenService
	hasher     PasswordHasher
	sessionTTL time.Duration
	activity   ActivitySink
	logger     Logger
	now        func() time.Time
	timeout    time.Duration
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens TokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:       repo,
		tokens:     tokens,
		hasher:     NewBcryptHasher(0),
		sessionTTL: DefaultSessionTTL,
		activity:   noopActivitySink{},
		logger:     defLogger{},
		now:        defaultClock,
		timeout:    time.Second * 10,
	}
}

// WithHasher overrides the password hasher.
func (h *FinalizePasswordResetHandler) WithHasher(hasher PasswordHasher) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithSessionTTL(ttl time.Duration) *FinalizePasswordResetHandler {
	if ttl > 0 {
		h.sessionTTL = ttl
	}
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *FinalizePasswordResetHandler) WithClock(clock func() time.Time) *FinalizePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	claims, err := h.tokens.VerifyScoped(event.Proof, ScopePasswordReset)
	if err != nil {
		h.logger.Debug("password reset proof rejected: %v", err)
		return ErrResetProofInvalid
	}

	passwordHash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return domainOrInternal(h.logger, err, "failed to hash new password")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var identity *Identity

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		identity, err = h.repo.Identities().FindByEmailTx(ctx, tx, event.Email)
		if err != nil {
			return err
		}

		if identity.ID.String() != claims.UserID() {
			return ErrResetProofInvalid
		}

		// the proof is only good for the code it was minted against
		if !identity.HasActiveResetCode() ||
			!resetDigestsEqual(resetCodeDigest(identity.ID, *identity.ResetCode), claims.ResetDigest) {
			return ErrResetProofInvalid
		}

		if CurrentResetState(identity, h.now()) == ResetStateCodeExpired {
			return ErrResetCodeExpired
		}

		if err := h.repo.Identities().ResetPasswordTx(ctx, tx, identity.ID, passwordHash, *identity.ResetCode); err != nil {
			return err
		}

		identity.PasswordHash = passwordHash
		identity.ResetCode = nil
		identity.ResetCodeExpiresAt = nil

		return nil
	})

	if err != nil {
		return domainOrInternal(h.logger, err, "failed to finalize password reset")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetCompleted,
		IdentityID: identity.ID.String(),
		OccurredAt: h.now(),
	})

	session, err := mintSession(h.tokens, h.sessionTTL, identity)
	if err != nil {
		return newInternalError(h.logger, err, "failed to mint session after password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(session)
	}

	return nil
}
