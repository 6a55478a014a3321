package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Accounts wires the registry, reaper, reset flow and session issuer over
// a single repository manager.
type Accounts struct {
	repo     RepositoryManager
	tokens   TokenService
	reaper   *Reaper
	auth     *Authenticator
	register *RegisterIdentityHandler
	profile  *UpdateProfileHandler
	request  *InitializePasswordResetHandler
	verify   *VerifyResetCodeHandler
	finalize *FinalizePasswordResetHandler
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

type accountsOptions struct {
	logger      Logger
	activity    ActivitySink
	renderer    MessageRenderer
	hasher      PasswordHasher
	generate    CodeGenerator
	tokens      TokenService
	now         func() time.Time
	noScheduler bool
}

// Option customizes Accounts
type Option func(*accountsOptions)

func WithLogger(logger Logger) Option {
	return func(o *accountsOptions) {
		o.logger = logger
	}
}

func WithActivitySink(sink ActivitySink) Option {
	return func(o *accountsOptions) {
		o.activity = sink
	}
}

// WithRenderer sets the email template renderer
func WithRenderer(renderer MessageRenderer) Option {
	return func(o *accountsOptions) {
		o.renderer = renderer
	}
}

func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(o *accountsOptions) {
		o.hasher = hasher
	}
}

func WithCodeGenerator(generate CodeGenerator) Option {
	return func(o *accountsOptions) {
		o.generate = generate
	}
}

// WithTokenService replaces the token service built from Config
func WithTokenService(tokens TokenService) Option {
	return func(o *accountsOptions) {
		o.tokens = tokens
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *accountsOptions) {
		o.now = clock
	}
}

// WithoutReaperTimers disables per identity timers, only Run sweeps.
func WithoutReaperTimers() Option {
	return func(o *accountsOptions) {
		o.noScheduler = true
	}
}

// NewAccounts builds the account manager. defaultRole is the role id handed
// to new identities, see ResolveRole.
func NewAccounts(repo RepositoryManager, cfg Config, mailer Mailer, defaultRole uuid.UUID, opts ...Option) *Accounts {
	o := &accountsOptions{
		now: defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	logger := normalizeLogger(o.logger)
	activity := normalizeActivitySink(o.activity)
	if o.now == nil {
		o.now = defaultClock
	}

	hasher := o.hasher
	if hasher == nil {
		hasher = NewBcryptHasher(cfg.GetPasswordCost())
	}

	tokens := o.tokens
	if tokens == nil {
		tokens = NewTokenServiceFromConfig(cfg, WithTokenLogger(logger), WithTokenClock(o.now))
	}

	reaper := NewReaper(
		repo.Identities(),
		WithGracePeriod(cfg.GetVerificationGracePeriod()),
		WithSweepInterval(cfg.GetSweepInterval()),
		WithReaperLogger(logger),
		WithReaperActivitySink(activity),
		WithReaperClock(o.now),
	)

	register := NewRegisterIdentityHandler(repo, defaultRole).
		WithHasher(hasher).
		WithPhoneRegion(cfg.GetPhoneRegion()).
		WithActivitySink(activity).
		WithLogger(logger)
	if !o.noScheduler {
		register.WithReaper(reaper)
	}

	profile := NewUpdateProfileHandler(repo).
		WithPhoneRegion(cfg.GetPhoneRegion()).
		WithActivitySink(activity).
		WithLogger(logger).
		WithClock(o.now)

	request := NewInitializePasswordResetHandler(repo, mailer).
		WithRenderer(o.renderer).
		WithCodeGenerator(o.generate).
		WithCodeTTL(cfg.GetResetCodeTTL()).
		WithResetURL(cfg.GetResetURL()).
		WithActivitySink(activity).
		WithLogger(logger).
		WithClock(o.now)

	verify := NewVerifyResetCodeHandler(repo, tokens).
		WithProofTTL(cfg.GetResetProofTTL()).
		WithActivitySink(activity).
		WithLogger(logger).
		WithClock(o.now)

	finalize := NewFinalizePasswordResetHandler(repo, tokens).
		WithHasher(hasher).
		WithSessionTTL(cfg.GetSessionTTL()).
		WithActivitySink(activity).
		WithLogger(logger).
		WithClock(o.now)

	auth := NewAuthenticator(repo, tokens).
		WithHasher(hasher).
		WithSessionTTL(cfg.GetSessionTTL()).
		WithActivitySink(activity).
		WithLogger(logger)

	return &Accounts{
		repo:     repo,
		tokens:   tokens,
		reaper:   reaper,
		auth:     auth,
		register: register,
		profile:  profile,
		request:  request,
		verify:   verify,
		finalize: finalize,
		activity: activity,
		logger:   logger,
		now:      o.now,
	}
}

// Reaper returns the reaper, call Run to start the periodic sweep
func (a *Accounts) Reaper() *Reaper {
	return a.reaper
}

func (a *Accounts) Authenticator() *Authenticator {
	return a.auth
}

func (a *Accounts) TokenService() TokenService {
	return a.tokens
}

// Register creates an unverified identity. The returned record is raw,
// sanitize it before it leaves the process.
func (a *Accounts) Register(ctx context.Context, msg RegisterIdentityMessage) (*Identity, error) {
	var created *Identity
	onResponse := msg.OnResponse
	msg.OnResponse = func(identity *Identity) {
		created = identity
		if onResponse != nil {
			onResponse(identity)
		}
	}

	if err := a.register.Execute(ctx, msg); err != nil {
		return nil, err
	}

	return created, nil
}

// ConfirmEmail marks the identity as verified, the reaper leaves it alone
// from then on.
func (a *Accounts) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.Identities().MarkEmailVerified(ctx, id); err != nil {
		return domainOrInternal(a.logger, err, "failed to confirm email")
	}

	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType:  ActivityEventIdentityVerified,
		IdentityID: id.String(),
		OccurredAt: a.now(),
	})

	return nil
}

// UpdateProfile edits the profile of identity id and returns the raw record.
// Username and email stay unique across identities.
func (a *Accounts) UpdateProfile(ctx context.Context, id uuid.UUID, msg UpdateProfileMessage) (*Identity, error) {
	var updated *Identity
	msg.IdentityID = id
	msg.OnResponse = func(identity *Identity) {
		updated = identity
	}

	if err := a.profile.Execute(ctx, msg); err != nil {
		return nil, err
	}

	return updated, nil
}

// RequestReset issues a new reset code for email and mails it
func (a *Accounts) RequestReset(ctx context.Context, email string) error {
	return a.request.Execute(ctx, InitializePasswordResetMessage{Email: email})
}

// VerifyResetCode checks code and returns a proof for ResetPassword
func (a *Accounts) VerifyResetCode(ctx context.Context, email, code string) (*VerifyResetCodeResponse, error) {
	var resp *VerifyResetCodeResponse
	err := a.verify.Execute(ctx, VerifyResetCodeMessage{
		Email: email,
		Code:  code,
		OnResponse: func(r *VerifyResetCodeResponse) {
			resp = r
		},
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ResetPassword consumes the verified code, sets the new password and
// returns a fresh session.
func (a *Accounts) ResetPassword(ctx context.Context, email, proof, password string) (*Session, error) {
	var session *Session
	err := a.finalize.Execute(ctx, FinalizePasswordResetMessage{
		Email:    email,
		Proof:    proof,
		Password: password,
		OnResponse: func(s *Session) {
			session = s
		},
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (a *Accounts) SignIn(ctx context.Context, identifier, password string) (*Session, error) {
	return a.auth.SignIn(ctx, identifier, password)
}

// Me resolves the identity behind a session token
func (a *Accounts) Me(ctx context.Context, token string) (*Identity, error) {
	return a.auth.IdentityFromToken(ctx, token)
}

// FindByID returns the raw identity record
func (a *Accounts) FindByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	identity, err := a.repo.Identities().FindByID(ctx, id)
	if err != nil {
		return nil, domainOrInternal(a.logger, err, "failed to load identity")
	}
	return identity, nil
}

// DeleteIdentity removes an identity on its own request
func (a *Accounts) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.Identities().Delete(ctx, id); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return err
		}
		return newInternalError(a.logger, err, "failed to delete identity")
	}

	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType:  ActivityEventIdentityDeleted,
		IdentityID: id.String(),
		OccurredAt: a.now(),
	})

	return nil
}

// Locations lists the locations an identity can register with
func (a *Accounts) Locations(ctx context.Context) ([]*Location, error) {
	locations, err := a.repo.Locations().List(ctx)
	if err != nil {
		return nil, newInternalError(a.logger, err, "failed to list locations")
	}
	return locations, nil
}
