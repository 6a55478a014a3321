package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type RegisterIdentityMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	LocationID string `json:"location_id"`
	UseHashid  bool
	OnResponse func(identity *Identity)
}

func (e RegisterIdentityMessage) Type() string { return "identity.register" }

// RegisterIdentityHandler is the Identity Registry
type RegisterIdentityHandler struct {
	repo        RepositoryManager
	hasher      PasswordHasher
	reaper      ReaperScheduler
	defaultRole uuid.UUID
	phoneRegion string
	activity    ActivitySink
	logger      Logger
	timeout     time.Duration
}

// NewRegisterIdentityHandler creates a registry that assigns defaultRole to
// every new identity. The role is resolved once by the caller.
func NewRegisterIdentityHandler(repo RepositoryManager, defaultRole uuid.UUID) *RegisterIdentityHandler {
	return &RegisterIdentityHandler{
		repo:        repo,
		hasher:      NewBcryptHasher(0),
		defaultRole: defaultRole,
		phoneRegion: "ET",
		activity:    noopActivitySink{},
		logger:      defLogger{},
		timeout:     time.Second * 10,
	}
}

// WithHasher overrides the password hasher.
func (h *RegisterIdentityHandler) WithHasher(hasher PasswordHasher) *RegisterIdentityHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithReaper arms the reaper for every identity created.
func (h *RegisterIdentityHandler) WithReaper(reaper ReaperScheduler) *RegisterIdentityHandler {
	h.reaper = reaper
	return h
}

// WithPhoneRegion sets the region used to parse numbers without a country prefix.
func (h *RegisterIdentityHandler) WithPhoneRegion(region string) *RegisterIdentityHandler {
	if region != "" {
		h.phoneRegion = strings.ToUpper(region)
	}
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterIdentityHandler) WithActivitySink(sink ActivitySink) *RegisterIdentityHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterIdentityHandler) WithLogger(logger Logger) *RegisterIdentityHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterIdentityHandler) Execute(ctx context.Context, event RegisterIdentityMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during identity registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterIdentityHandler) execute(ctx context.Context, event RegisterIdentityMessage) error {
	email := NormalizeEmail(event.Email)
	if email == "" {
		return goerrors.New("email is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	username := strings.TrimSpace(event.Username)
	if username == "" {
		return goerrors.New("username is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	phone, err := normalizePhone(event.Phone, h.phoneRegion)
	if err != nil {
		return err
	}

	identity := &Identity{
		Email:      email,
		Username:   username,
		FirstName:  strings.TrimSpace(event.FirstName),
		LastName:   strings.TrimSpace(event.LastName),
		Phone:      phone,
		LocationID: strings.TrimSpace(event.LocationID),
		RoleID:     h.defaultRole,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			identity.ID = id
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err = h.repo.RunInTx(opCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.checkAvailable(ctx, tx, identity); err != nil {
			return err
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return err
		}
		identity.PasswordHash = hash

		created, err := h.repo.Identities().InsertTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		identity = created

		return nil
	})

	if err != nil {
		return domainOrInternal(h.logger, err, "identity registration failed")
	}

	if h.reaper != nil {
		h.reaper.Schedule(identity.ID)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventIdentityRegistered,
		IdentityID: identity.ID.String(),
		Metadata: map[string]any{
			MetadataKeyLocationID: identity.LocationID,
		},
		OccurredAt: identity.CreatedAt,
	})

	if event.OnResponse != nil {
		event.OnResponse(identity)
	}

	return nil
}

// checkAvailable runs the registration preconditions in order: email,
// username, location. The unique constraints remain the real guard.
func (h *RegisterIdentityHandler) checkAvailable(ctx context.Context, tx bun.IDB, identity *Identity) error {
	if _, err := h.repo.Identities().FindByEmailTx(ctx, tx, identity.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return err
	}

	if _, err := h.repo.Identities().FindByUsernameTx(ctx, tx, identity.Username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return err
	}

	exists, err := h.repo.Locations().ExistsTx(ctx, tx, identity.LocationID)
	if err != nil {
		return err
	}

	if !exists {
		return ErrLocationNotFound
	}

	return nil
}

func normalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
