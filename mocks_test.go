package accounts_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

// MockActivitySink implements accounts.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockReaperScheduler implements accounts.ReaperScheduler
type MockReaperScheduler struct {
	mock.Mock
}

func (m *MockReaperScheduler) Schedule(id uuid.UUID) {
	m.Called(id)
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type logLine struct {
	level   string
	message string
}

// captureLogger keeps every formatted line, safe for use from timers
type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, message: fmt.Sprintf(format, args...)})
}

func (l *captureLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.record("error", format, args...) }

func (l *captureLogger) errorsContaining(substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == "error" && strings.Contains(line.message, substr) {
			n++
		}
	}
	return n
}

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

// fakeMailer records messages and fails while err is set
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeMailer) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastCode extracts the reset code from the last subject line
func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no email sent")
	subject := f.sent[len(f.sent)-1].Subject
	code := strings.TrimPrefix(subject, accounts.ResetEmailSubject(""))
	require.Len(t, code, accounts.ResetCodeLength)
	return code
}

type testConfig struct {
	grace    time.Duration
	codeTTL  time.Duration
	proofTTL time.Duration
}

func (c testConfig) GetSigningKey() string  { return testSigningKey }
func (c testConfig) GetIssuer() string      { return "accounts-test" }
func (c testConfig) GetAudience() []string  { return []string{"volunteers"} }
func (c testConfig) GetPasswordCost() int   { return bcrypt.MinCost }
func (c testConfig) GetDefaultRole() string { return accounts.DefaultRoleName }
func (c testConfig) GetResetURL() string    { return "https://example.com/reset" }
func (c testConfig) GetPhoneRegion() string { return "ET" }

func (c testConfig) GetSessionTTL() time.Duration {
	return accounts.DefaultSessionTTL
}

func (c testConfig) GetResetCodeTTL() time.Duration {
	if c.codeTTL > 0 {
		return c.codeTTL
	}
	return accounts.DefaultResetCodeTTL
}

func (c testConfig) GetResetProofTTL() time.Duration {
	if c.proofTTL > 0 {
		return c.proofTTL
	}
	return accounts.DefaultResetProofTTL
}

func (c testConfig) GetVerificationGracePeriod() time.Duration {
	if c.grace > 0 {
		return c.grace
	}
	return accounts.DefaultVerificationGracePeriod
}

func (c testConfig) GetSweepInterval() time.Duration {
	return 20 * time.Millisecond
}

// newTestDB opens a private in-memory sqlite database with the schema and
// default rows in place.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := accounts.OpenDB("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, accounts.Migrate(ctx, db))
	require.NoError(t, accounts.SeedDefaults(ctx, db))
	_, err = accounts.NewLocationsRepository(db).Create(ctx, &accounts.Location{
		ID:   "loc-1",
		Name: "Test Location",
		Code: "LOC1",
	})
	require.NoError(t, err)

	return db
}

type testEnv struct {
	db       *bun.DB
	repo     accounts.RepositoryManager
	accounts *accounts.Accounts
	mailer   *fakeMailer
	clock    *testClock
	role     *accounts.Role
}

func newTestEnv(t *testing.T, cfg testConfig, opts ...accounts.Option) *testEnv {
	t.Helper()

	db := newTestDB(t)
	clock := newTestClock()
	repo := accounts.NewRepositoryManager(db, accounts.WithIdentitiesClock(clock.Now))

	role, err := accounts.ResolveRole(context.Background(), repo, cfg.GetDefaultRole())
	require.NoError(t, err)

	mailer := &fakeMailer{}
	opts = append([]accounts.Option{
		accounts.WithLogger(testLogger{}),
		accounts.WithClock(clock.Now),
		accounts.WithPasswordHasher(accounts.NewBcryptHasher(bcrypt.MinCost)),
	}, opts...)

	acc := accounts.NewAccounts(repo, cfg, mailer, role.ID, opts...)
	t.Cleanup(acc.Reaper().Stop)

	return &testEnv{
		db:       db,
		repo:     repo,
		accounts: acc,
		mailer:   mailer,
		clock:    clock,
		role:     role,
	}
}

func aliceMessage() accounts.RegisterIdentityMessage {
	return accounts.RegisterIdentityMessage{
		FirstName:  "Alice",
		LastName:   "Liddell",
		Username:   "alice",
		Email:      "alice@x.com",
		Password:   "Secret123!",
		LocationID: "loc-1",
	}
}

func (e *testEnv) registerAlice(t *testing.T) *accounts.Identity {
	t.Helper()
	identity, err := e.accounts.Register(context.Background(), aliceMessage())
	require.NoError(t, err)
	return identity
}
