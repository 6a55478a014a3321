package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultResetProofTTL is how long a verified code can be exchanged for a
// new password
const DefaultResetProofTTL = 10 * time.Minute

type VerifyResetCodeMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Code       string `json:"code" example:"042817" doc:"Six digit reset code."`
	OnResponse func(resp *VerifyResetCodeResponse)
}

func (m VerifyResetCodeMessage) Type() string { return "identity.password_reset.verify" }

type VerifyResetCodeResponse struct {
	Proof     string    `json:"proof"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyResetCodeHandler checks a reset code and returns a proof token. The
// stored code is left in place, only the reset consumes it.
type VerifyResetCodeHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	proofTTL time.Duration
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	timeout  time.Duration
}

func NewVerifyResetCodeHandler(repo RepositoryManager, tokens TokenService) *VerifyResetCodeHandler {
	return &VerifyResetCodeHandler{
		repo:     repo,
		tokens:   tokens,
		proofTTL: DefaultResetProofTTL,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      defaultClock,
		timeout:  time.Second * 10,
	}
}

func (h *VerifyResetCodeHandler) WithProofTTL(ttl time.Duration) *VerifyResetCodeHandler {
	if ttl > 0 {
		h.proofTTL = ttl
	}
	return h
}

func (h *VerifyResetCodeHandler) WithActivitySink(sink ActivitySink) *VerifyResetCodeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *VerifyResetCodeHandler) WithLogger(logger Logger) *VerifyResetCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *VerifyResetCodeHandler) WithClock(clock func() time.Time) *VerifyResetCodeHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *VerifyResetCodeHandler) Execute(ctx context.Context, event VerifyResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset code verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyResetCodeHandler) execute(ctx context.Context, event VerifyResetCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	identity, err := h.repo.Identities().FindByEmail(ctx, event.Email)
	if err != nil {
		return domainOrInternal(h.logger, err, "failed to retrieve identity for code verification")
	}

	if err := checkResetCode(identity, strings.TrimSpace(event.Code), h.now()); err != nil {
		return err
	}

	proof, expiresAt, err := h.tokens.Mint(
		identity.ID.String(),
		h.proofTTL,
		WithScopes(ScopePasswordReset),
		WithResetDigest(resetCodeDigest(identity.ID, *identity.ResetCode)),
	)
	if err != nil {
		return newInternalError(h.logger, err, "failed to mint reset proof")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetVerified,
		IdentityID: identity.ID.String(),
		OccurredAt: h.now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&VerifyResetCodeResponse{
			Proof:     proof,
			ExpiresAt: expiresAt,
		})
	}

	return nil
}
