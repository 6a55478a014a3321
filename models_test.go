package accounts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPrepareIdentityDefaults(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	record := &Identity{Email: "a@b.c"}

	prepareIdentityDefaults(record, now)

	if record.ID == uuid.Nil {
		t.Fatalf("expected id to be generated")
	}
	if len(record.NotificationPreferences) != 6 {
		t.Fatalf("expected 6 notification preferences, got %d", len(record.NotificationPreferences))
	}
	for _, pref := range record.NotificationPreferences {
		if !pref.Value {
			t.Fatalf("expected %s to default to true", pref.Option)
		}
	}
	if len(record.SocialLinks) != 6 {
		t.Fatalf("expected 6 social links, got %d", len(record.SocialLinks))
	}
	if !record.CreatedAt.Equal(now) || !record.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps to be set to %v", now)
	}
	if record.EmailVerified {
		t.Fatalf("expected new identity to be unverified")
	}
}

func TestPrepareIdentityDefaultsKeepsID(t *testing.T) {
	id := uuid.New()
	record := &Identity{ID: id}

	prepareIdentityDefaults(record, time.Now())

	if record.ID != id {
		t.Fatalf("expected id %s to be kept, got %s", id, record.ID)
	}
}

func TestIdentityFullName(t *testing.T) {
	cases := []struct {
		identity *Identity
		expected string
	}{
		{&Identity{FirstName: "Alice", LastName: "Liddell"}, "Alice Liddell"},
		{&Identity{FirstName: "Alice"}, "Alice"},
		{nil, ""},
	}

	for _, tc := range cases {
		if got := tc.identity.FullName(); got != tc.expected {
			t.Fatalf("expected %q, got %q", tc.expected, got)
		}
	}
}

func TestSanitizeClearsCredentials(t *testing.T) {
	code := "123456"
	expires := time.Now()
	record := &Identity{
		ID:                 uuid.New(),
		Email:              "alice@x.com",
		PasswordHash:       "$2a$10$hash",
		ResetCode:          &code,
		ResetCodeExpiresAt: &expires,
	}

	clean := Sanitize(record)

	if clean.PasswordHash != "" || clean.ResetCode != nil || clean.ResetCodeExpiresAt != nil {
		t.Fatalf("expected credentials to be cleared, got %+v", clean)
	}
	if record.PasswordHash == "" || record.ResetCode == nil {
		t.Fatalf("expected original record to be untouched")
	}

	again := Sanitize(clean)
	if again.PasswordHash != clean.PasswordHash || again.ResetCode != nil || again.Email != clean.Email {
		t.Fatalf("expected sanitize to be idempotent")
	}

	if Sanitize(nil) != nil || ToView(nil) != nil {
		t.Fatalf("expected nil in, nil out")
	}
}

func TestViewJSONOmitsSecrets(t *testing.T) {
	code := "654321"
	record := &Identity{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: "$2a$10$hash",
		ResetCode:    &code,
	}
	prepareIdentityDefaults(record, time.Now())

	for name, value := range map[string]any{"record": record, "view": ToView(record)} {
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}

		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}

		for _, secret := range []string{"password_hash", "PasswordHash", "reset_code", "ResetCode", "reset_code_expires_at"} {
			if _, ok := fields[secret]; ok {
				t.Fatalf("%s: expected %s to be omitted", name, secret)
			}
		}
		if fields["username"] != "alice" {
			t.Fatalf("%s: expected username to be kept", name)
		}
	}

	views := ToViews([]*Identity{record, nil})
	if len(views) != 1 {
		t.Fatalf("expected nil identities to be dropped, got %d views", len(views))
	}
}
