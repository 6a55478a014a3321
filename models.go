package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRoleName is the role handed to self registered identities
const DefaultRoleName = "Volunteer"

// NotificationOption names a notification a volunteer can opt out of
type NotificationOption = string

const (
	NotifyTaskAssigned            NotificationOption = "task_assigned"
	NotifyProjectRecommendation   NotificationOption = "new_project_recommendation"
	NotifyProjectStatusUpdate     NotificationOption = "project_status_update"
	NotifyDeadlines               NotificationOption = "deadlines"
	NotifyApplicationStatusUpdate NotificationOption = "application_status_update"
	NotifyBadgeAndCertificate     NotificationOption = "badge_and_certificate"
)

// NotificationPreference toggles a single notification option
type NotificationPreference struct {
	Option NotificationOption `json:"option"`
	Value  bool               `json:"value"`
}

// SocialLink is a profile link for a given platform, URL may be empty
type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url,omitempty"`
}

// Identity is a registered account record.
//
// PasswordHash, ResetCode and ResetCodeExpiresAt never leave the package
// boundary, use ToView or Sanitize before returning an identity.
type Identity struct {
	bun.BaseModel           `bun:"table:identities,alias:idn"`
	ID                      uuid.UUID                `bun:"id,pk,type:uuid" json:"id"`
	Username                string                   `bun:"username,notnull,unique" json:"username"`
	Email                   string                   `bun:"email,notnull,unique" json:"email"`
	PasswordHash            string                   `bun:"password_hash,notnull" json:"-"`
	EmailVerified           bool                     `bun:"email_verified,notnull" json:"email_verified"`
	VerifiedAt              *time.Time               `bun:"verified_at" json:"verified_at,omitempty"`
	ResetCode               *string                  `bun:"reset_code" json:"-"`
	ResetCodeExpiresAt      *time.Time               `bun:"reset_code_expires_at" json:"-"`
	RoleID                  uuid.UUID                `bun:"role_id,notnull,type:uuid" json:"role_id"`
	LocationID              string                   `bun:"location_id,notnull" json:"location_id"`
	FirstName               string                   `bun:"first_name,notnull" json:"first_name"`
	LastName                string                   `bun:"last_name,notnull" json:"last_name"`
	Phone                   string                   `bun:"phone_number" json:"phone_number,omitempty"`
	Bio                     string                   `bun:"bio" json:"bio,omitempty"`
	NotificationPreferences []NotificationPreference `bun:"notification_preferences" json:"notification_preferences"`
	SocialLinks             []SocialLink             `bun:"social_links" json:"social_links"`
	CreatedAt               time.Time                `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt               time.Time                `bun:"updated_at,notnull" json:"updated_at"`
}

// FullName joins first and last name
func (i *Identity) FullName() string {
	if i == nil {
		return ""
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// HasActiveResetCode reports whether a reset code is currently stored
func (i *Identity) HasActiveResetCode() bool {
	return i != nil && i.ResetCode != nil && *i.ResetCode != ""
}

// Role is a named permission bundle referenced by identities
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	Description   string    `bun:"description" json:"description,omitempty"`
}

// Location is where a volunteer is based
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:loc"`
	ID            string `bun:"id,pk" json:"id"`
	Name          string `bun:"name,notnull" json:"name"`
	Code          string `bun:"code,notnull,unique" json:"code"`
}

// DefaultNotificationPreferences returns every option enabled
func DefaultNotificationPreferences() []NotificationPreference {
	options := []NotificationOption{
		NotifyTaskAssigned,
		NotifyProjectRecommendation,
		NotifyProjectStatusUpdate,
		NotifyDeadlines,
		NotifyApplicationStatusUpdate,
		NotifyBadgeAndCertificate,
	}

	prefs := make([]NotificationPreference, 0, len(options))
	for _, opt := range options {
		prefs = append(prefs, NotificationPreference{Option: opt, Value: true})
	}
	return prefs
}

// DefaultSocialLinks returns one empty link per supported platform
func DefaultSocialLinks() []SocialLink {
	return []SocialLink{
		{Platform: "LinkedIn"},
		{Platform: "GitHub"},
		{Platform: "Behance"},
		{Platform: "Instagram"},
		{Platform: "Dribbble"},
		{Platform: "Website"},
	}
}

func prepareIdentityDefaults(record *Identity, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.NotificationPreferences == nil {
		record.NotificationPreferences = DefaultNotificationPreferences()
	}

	if record.SocialLinks == nil {
		record.SocialLinks = DefaultSocialLinks()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now
}
