package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultResetCodeTTL is how long an issued reset code stays valid
	DefaultResetCodeTTL = 15 * time.Minute
	// PasswordResetTemplate is the template rendered for reset emails
	PasswordResetTemplate = "password_reset"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "identity.password_reset.request" }

type InitializePasswordResetResponse struct {
	IdentityID string
	ExpiresAt  time.Time
}

// InitializePasswordResetHandler issues a reset code and mails it
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	renderer MessageRenderer
	generate CodeGenerator
	codeTTL  time.Duration
	resetURL string
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	timeout  time.Duration
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		mailer:   mailer,
		generate: GenerateResetCode,
		codeTTL:  DefaultResetCodeTTL,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      defaultClock,
		timeout:  time.Second * 10,
	}
}

// WithRenderer sets the template renderer used for the email body.
func (h *InitializePasswordResetHandler) WithRenderer(renderer MessageRenderer) *InitializePasswordResetHandler {
	h.renderer = renderer
	return h
}

// WithCodeGenerator replaces the reset code source.
func (h *InitializePasswordResetHandler) WithCodeGenerator(generate CodeGenerator) *InitializePasswordResetHandler {
	if generate != nil {
		h.generate = generate
	}
	return h
}

func (h *InitializePasswordResetHandler) WithCodeTTL(ttl time.Duration) *InitializePasswordResetHandler {
	if ttl > 0 {
		h.codeTTL = ttl
	}
	return h
}

// WithResetURL sets the link included in the email.
func (h *InitializePasswordResetHandler) WithResetURL(url string) *InitializePasswordResetHandler {
	h.resetURL = url
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *InitializePasswordResetHandler) WithClock(clock func() time.Time) *InitializePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	identity, err := h.repo.Identities().FindByEmail(ctx, event.Email)
	if err != nil {
		return domainOrInternal(h.logger, err, "failed to retrieve identity for password reset")
	}

	code, err := h.generate()
	if err != nil {
		return newInternalError(h.logger, err, "failed to generate reset code")
	}

	expiresAt := h.now().Add(h.codeTTL)

	// overwrites any outstanding code in one statement
	if err := h.repo.Identities().SetResetCode(ctx, identity.ID, code, expiresAt); err != nil {
		return domainOrInternal(h.logger, err, "failed to store reset code")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequested,
		IdentityID: identity.ID.String(),
		OccurredAt: h.now(),
	})

	body, err := h.renderBody(identity, code)
	if err != nil {
		return newInternalError(h.logger, err, "failed to render password reset email")
	}

	if err := h.mailer.Send(ctx, identity.Email, ResetEmailSubject(code), body); err != nil {
		h.logger.Error("password reset email delivery failed for identity %s: %v", identity.ID, err)
		return newDeliveryFailedError(err)
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			IdentityID: identity.ID.String(),
			ExpiresAt:  expiresAt,
		})
	}

	return nil
}

func (h *InitializePasswordResetHandler) renderBody(identity *Identity, code string) (string, error) {
	data := map[string]any{
		"name":       identity.FullName(),
		"email":      identity.Email,
		"code":       code,
		"expires_in": int(h.codeTTL.Minutes()),
		"reset_url":  h.resetURL,
	}

	if h.renderer != nil {
		return h.renderer.Render(PasswordResetTemplate, data)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", identity.FullName())
	fmt.Fprintf(&b, "Your password reset code is %s. It expires in %d minutes.\n", code, int(h.codeTTL.Minutes()))
	if h.resetURL != "" {
		fmt.Fprintf(&b, "\nContinue at %s\n", h.resetURL)
	}
	return b.String(), nil
}

// ResetEmailSubject is the subject line of the reset email
func ResetEmailSubject(code string) string {
	return "Your reset code - " + code
}
