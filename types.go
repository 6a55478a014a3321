package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds account options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetSessionTTL() time.Duration
	GetResetCodeTTL() time.Duration
	GetResetProofTTL() time.Duration
	GetVerificationGracePeriod() time.Duration
	GetSweepInterval() time.Duration
	GetPasswordCost() int
	GetDefaultRole() string
	GetResetURL() string
	GetPhoneRegion() string
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers an already rendered message to a single address.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MessageRenderer renders a named message template.
type MessageRenderer interface {
	Render(name string, data map[string]any) (string, error)
}

// ReaperScheduler arms the deletion timer for a fresh identity.
type ReaperScheduler interface {
	Schedule(id uuid.UUID)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func defaultClock() time.Time {
	return time.Now().UTC()
}
