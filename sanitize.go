package accounts

import (
	"time"

	"github.com/google/uuid"
)

// IdentityView is the only identity shape allowed to cross the package
// boundary. It is an allow-list: a field added to Identity stays private
// until it is copied here explicitly.
type IdentityView struct {
	ID                      uuid.UUID                `json:"id"`
	Username                string                   `json:"username"`
	Email                   string                   `json:"email"`
	EmailVerified           bool                     `json:"email_verified"`
	VerifiedAt              *time.Time               `json:"verified_at,omitempty"`
	RoleID                  uuid.UUID                `json:"role_id"`
	LocationID              string                   `json:"location_id"`
	FirstName               string                   `json:"first_name"`
	LastName                string                   `json:"last_name"`
	Phone                   string                   `json:"phone_number,omitempty"`
	Bio                     string                   `json:"bio,omitempty"`
	NotificationPreferences []NotificationPreference `json:"notification_preferences"`
	SocialLinks             []SocialLink             `json:"social_links"`
	CreatedAt               time.Time                `json:"created_at"`
	UpdatedAt               time.Time                `json:"updated_at"`
}

// Sanitize returns a copy of the identity with the credential hash and
// reset code fields cleared. Sanitize(Sanitize(x)) equals Sanitize(x).
func Sanitize(identity *Identity) *Identity {
	if identity == nil {
		return nil
	}

	clean := *identity
	clean.PasswordHash = ""
	clean.ResetCode = nil
	clean.ResetCodeExpiresAt = nil
	clean.NotificationPreferences = append([]NotificationPreference(nil), identity.NotificationPreferences...)
	clean.SocialLinks = append([]SocialLink(nil), identity.SocialLinks...)

	return &clean
}

// ToView projects an identity onto the allow-listed view
func ToView(identity *Identity) *IdentityView {
	if identity == nil {
		return nil
	}

	clean := Sanitize(identity)

	return &IdentityView{
		ID:                      clean.ID,
		Username:                clean.Username,
		Email:                   clean.Email,
		EmailVerified:           clean.EmailVerified,
		VerifiedAt:              clean.VerifiedAt,
		RoleID:                  clean.RoleID,
		LocationID:              clean.LocationID,
		FirstName:               clean.FirstName,
		LastName:                clean.LastName,
		Phone:                   clean.Phone,
		Bio:                     clean.Bio,
		NotificationPreferences: clean.NotificationPreferences,
		SocialLinks:             clean.SocialLinks,
		CreatedAt:               clean.CreatedAt,
		UpdatedAt:               clean.UpdatedAt,
	}
}

// ToViews projects a slice of identities
func ToViews(identities []*Identity) []*IdentityView {
	out := make([]*IdentityView, 0, len(identities))
	for _, identity := range identities {
		if v := ToView(identity); v != nil {
			out = append(out, v)
		}
	}
	return out
}
