package accounts_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// sequenceCodes returns the given codes in order, then fails
func sequenceCodes(codes ...string) accounts.CodeGenerator {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return "", errors.New("no more codes")
		}
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
}

type stubRenderer struct {
	name string
	data map[string]any
}

func (r *stubRenderer) Render(name string, data map[string]any) (string, error) {
	r.name = name
	r.data = data
	return fmt.Sprintf("<p>code %v</p>", data["code"]), nil
}

func TestRequestResetSendsCode(t *testing.T) {
	renderer := &stubRenderer{}
	env := newTestEnv(t, testConfig{},
		accounts.WithCodeGenerator(sequenceCodes("042817")),
		accounts.WithRenderer(renderer),
	)
	alice := env.registerAlice(t)
	ctx := context.Background()

	require.NoError(t, env.accounts.RequestReset(ctx, "Alice@x.com"))

	require.Equal(t, 1, env.mailer.count())
	assert.Equal(t, "042817", env.mailer.lastCode(t))
	assert.Equal(t, "alice@x.com", env.mailer.sent[0].To)
	assert.Equal(t, "Your reset code - 042817", env.mailer.sent[0].Subject)
	assert.Equal(t, "<p>code 042817</p>", env.mailer.sent[0].Body)

	assert.Equal(t, accounts.PasswordResetTemplate, renderer.name)
	assert.Equal(t, "Alice Liddell", renderer.data["name"])
	assert.Equal(t, 15, renderer.data["expires_in"])
	assert.Equal(t, "https://example.com/reset", renderer.data["reset_url"])

	stored, err := env.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetCode)
	assert.Equal(t, "042817", *stored.ResetCode)
	require.NotNil(t, stored.ResetCodeExpiresAt)
	assert.True(t, stored.ResetCodeExpiresAt.Equal(env.clock.Now().Add(accounts.DefaultResetCodeTTL)))
	assert.Equal(t, accounts.ResetStateCodeIssued, accounts.CurrentResetState(stored, env.clock.Now()))
}

func TestRequestResetPlainTextFallback(t *testing.T) {
	env := newTestEnv(t, testConfig{}, accounts.WithCodeGenerator(sequenceCodes("111111")))
	env.registerAlice(t)

	require.NoError(t, env.accounts.RequestReset(context.Background(), "alice@x.com"))

	body := env.mailer.sent[0].Body
	assert.Contains(t, body, "Hello Alice Liddell")
	assert.Contains(t, body, "111111")
	assert.Contains(t, body, "15 minutes")
	assert.Contains(t, body, "https://example.com/reset")
}

func TestRequestResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t, testConfig{})

	err := env.accounts.RequestReset(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
	assert.True(t, accounts.IsNotFound(err))
	assert.Zero(t, env.mailer.count())
}

func TestRequestResetDeliveryFailureKeepsCode(t *testing.T) {
	env := newTestEnv(t, testConfig{}, accounts.WithCodeGenerator(sequenceCodes("222222")))
	env.registerAlice(t)
	ctx := context.Background()

	env.mailer.failWith(errors.New("smtp: 421 try again later"))

	err := env.accounts.RequestReset(ctx, "alice@x.com")
	require.Error(t, err)
	assert.True(t, accounts.IsDeliveryFailed(err))
	assert.False(t, accounts.IsInternal(err))

	// the code was stored before delivery, it still verifies
	resp, err := env.accounts.VerifyResetCode(ctx, "alice@x.com", "222222")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Proof)
}

func TestRequestResetGeneratorFailureIsInternal(t *testing.T) {
	env := newTestEnv(t, testConfig{}, accounts.WithCodeGenerator(sequenceCodes()))
	env.registerAlice(t)

	err := env.accounts.RequestReset(context.Background(), "alice@x.com")
	assert.True(t, accounts.IsInternal(err))
	assert.Zero(t, env.mailer.count())
}

func TestRequestResetRecordsActivity(t *testing.T) {
	sink := &MockActivitySink{}
	sink.On("Record", mock.Anything, mock.Anything).Return(nil)

	env := newTestEnv(t, testConfig{}, accounts.WithActivitySink(sink))
	alice := env.registerAlice(t)

	require.NoError(t, env.accounts.RequestReset(context.Background(), "alice@x.com"))

	sink.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(e accounts.ActivityEvent) bool {
		return e.EventType == accounts.ActivityEventPasswordResetRequested &&
			e.IdentityID == alice.ID.String() &&
			e.Metadata["code"] == nil
	}))
}

func TestRequestResetCancelledContext(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	env.registerAlice(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := env.accounts.RequestReset(ctx, "alice@x.com")
	assert.Error(t, err)
	assert.Zero(t, env.mailer.count())
}
