package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage carries a partial profile update. Nil fields are
// left as they are.
type UpdateProfileMessage struct {
	IdentityID              uuid.UUID
	FirstName               *string
	LastName                *string
	Username                *string
	Email                   *string
	Phone                   *string
	Bio                     *string
	LocationID              *string
	NotificationPreferences []NotificationPreference
	SocialLinks             []SocialLink
	OnResponse              func(identity *Identity)
}

func (e UpdateProfileMessage) Type() string { return "identity.update_profile" }

// UpdateProfileHandler edits an identity's own profile. It is the only
// writer of username and email besides registration, so it repeats the
// registry's uniqueness checks against every other identity.
type UpdateProfileHandler struct {
	repo        RepositoryManager
	phoneRegion string
	activity    ActivitySink
	logger      Logger
	now         func() time.Time
	timeout     time.Duration
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:        repo,
		phoneRegion: "ET",
		activity:    noopActivitySink{},
		logger:      defLogger{},
		now:         defaultClock,
		timeout:     time.Second * 10,
	}
}

func (h *UpdateProfileHandler) WithPhoneRegion(region string) *UpdateProfileHandler {
	if region != "" {
		h.phoneRegion = strings.ToUpper(region)
	}
	return h
}

func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) WithClock(clock func() time.Time) *UpdateProfileHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	if event.IdentityID == uuid.Nil {
		return ErrIdentityNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var updated *Identity
	var fields []string

	err := h.repo.RunInTx(opCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		identity, err := h.repo.Identities().FindByIDTx(ctx, tx, event.IdentityID)
		if err != nil {
			return err
		}

		fields, err = h.apply(identity, event)
		if err != nil {
			return err
		}

		if len(fields) == 0 {
			updated = identity
			return nil
		}

		if err := h.checkAvailable(ctx, tx, identity, fields); err != nil {
			return err
		}

		if err := h.repo.Identities().UpdateProfileTx(ctx, tx, identity); err != nil {
			return err
		}

		updated = identity
		return nil
	})

	if err != nil {
		return domainOrInternal(h.logger, err, "profile update failed")
	}

	if len(fields) > 0 {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType:  ActivityEventIdentityUpdated,
			IdentityID: updated.ID.String(),
			Metadata: map[string]any{
				MetadataKeyFields: fields,
			},
			OccurredAt: h.now(),
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

// apply copies the supplied fields onto identity and returns the names of
// the ones that changed.
func (h *UpdateProfileHandler) apply(identity *Identity, event UpdateProfileMessage) ([]string, error) {
	var changed []string

	setString := func(name string, dst *string, src *string) {
		if src == nil {
			return
		}
		value := strings.TrimSpace(*src)
		if value != *dst {
			*dst = value
			changed = append(changed, name)
		}
	}

	if event.Username != nil && strings.TrimSpace(*event.Username) == "" {
		return nil, goerrors.New("username can not be empty", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if event.Email != nil {
		email := NormalizeEmail(*event.Email)
		if email == "" || !isEmail(email) {
			return nil, goerrors.New("email is not valid", goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest)
		}
		event.Email = &email
	}

	if event.Phone != nil {
		phone, err := normalizePhone(*event.Phone, h.phoneRegion)
		if err != nil {
			return nil, err
		}
		event.Phone = &phone
	}

	setString("username", &identity.Username, event.Username)
	setString("email", &identity.Email, event.Email)
	setString("first_name", &identity.FirstName, event.FirstName)
	setString("last_name", &identity.LastName, event.LastName)
	setString("phone_number", &identity.Phone, event.Phone)
	setString("bio", &identity.Bio, event.Bio)
	setString("location_id", &identity.LocationID, event.LocationID)

	if event.NotificationPreferences != nil {
		identity.NotificationPreferences = append([]NotificationPreference(nil), event.NotificationPreferences...)
		changed = append(changed, "notification_preferences")
	}

	if event.SocialLinks != nil {
		identity.SocialLinks = append([]SocialLink(nil), event.SocialLinks...)
		changed = append(changed, "social_links")
	}

	return changed, nil
}

// checkAvailable fails when another identity holds the new email or
// username. Holding it yourself is fine.
func (h *UpdateProfileHandler) checkAvailable(ctx context.Context, tx bun.IDB, identity *Identity, fields []string) error {
	for _, field := range fields {
		switch field {
		case "email":
			holder, err := h.repo.Identities().FindByEmailTx(ctx, tx, identity.Email)
			if err == nil && holder.ID != identity.ID {
				return ErrEmailTaken
			} else if err != nil && !errors.Is(err, ErrIdentityNotFound) {
				return err
			}
		case "username":
			holder, err := h.repo.Identities().FindByUsernameTx(ctx, tx, identity.Username)
			if err == nil && holder.ID != identity.ID {
				return ErrUsernameTaken
			} else if err != nil && !errors.Is(err, ErrIdentityNotFound) {
				return err
			}
		case "location_id":
			exists, err := h.repo.Locations().ExistsTx(ctx, tx, identity.LocationID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrLocationNotFound
			}
		}
	}

	return nil
}
