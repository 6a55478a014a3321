package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSignIn(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	alice := env.registerAlice(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{name: "by email", identifier: "alice@x.com", password: "Secret123!"},
		{name: "by email mixed case", identifier: " Alice@X.com ", password: "Secret123!"},
		{name: "by username", identifier: "alice", password: "Secret123!"},
		{name: "wrong password", identifier: "alice@x.com", password: "wrong", wantErr: accounts.ErrUnauthorized},
		{name: "unknown identity", identifier: "nobody@x.com", password: "Secret123!", wantErr: accounts.ErrUnauthorized},
		{name: "empty identifier", identifier: "", password: "Secret123!", wantErr: accounts.ErrUnauthorized},
		{name: "identity id is not an identifier", identifier: alice.ID.String(), password: "Secret123!", wantErr: accounts.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := env.accounts.SignIn(ctx, tt.identifier, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, accounts.IsUnauthorized(err))
				assert.Nil(t, session)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, session.Identity)
			assert.Equal(t, alice.ID, session.Identity.ID)
			assert.NotEmpty(t, session.Token)
			assert.Equal(t, env.clock.Now().Add(accounts.DefaultSessionTTL), session.ExpiresAt)
		})
	}
}

func TestSignInErrorsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	env.registerAlice(t)
	ctx := context.Background()

	_, unknownErr := env.accounts.SignIn(ctx, "ghost@x.com", "Secret123!")
	_, wrongErr := env.accounts.SignIn(ctx, "alice@x.com", "nope")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestSessionTokenResolvesIdentity(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	alice := env.registerAlice(t)
	ctx := context.Background()

	session, err := env.accounts.SignIn(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	obj, err := env.accounts.Authenticator().SessionFromToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID.String(), obj.GetUserID())
	assert.Equal(t, env.role.ID.String(), obj.RoleID)
	require.NotNil(t, obj.ExpirationDate)
	assert.Equal(t, session.ExpiresAt.Unix(), obj.ExpirationDate.Unix())

	me, err := env.accounts.Me(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, me.ID)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	env.registerAlice(t)
	ctx := context.Background()

	session, err := env.accounts.SignIn(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	env.clock.Advance(accounts.DefaultSessionTTL + time.Second)

	_, err = env.accounts.Me(ctx, session.Token)
	assert.ErrorIs(t, err, accounts.ErrTokenExpired)
}

func TestSessionForDeletedIdentityIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	alice := env.registerAlice(t)
	ctx := context.Background()

	session, err := env.accounts.SignIn(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	require.NoError(t, env.accounts.DeleteIdentity(ctx, alice.ID))

	_, err = env.accounts.Me(ctx, session.Token)
	assert.ErrorIs(t, err, accounts.ErrUnauthorized)
}

func TestSessionFromResetProofIsRejected(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	env.registerAlice(t)
	ctx := context.Background()

	require.NoError(t, env.accounts.RequestReset(ctx, "alice@x.com"))
	resp, err := env.accounts.VerifyResetCode(ctx, "alice@x.com", env.mailer.lastCode(t))
	require.NoError(t, err)

	_, err = env.accounts.Me(ctx, resp.Proof)
	assert.ErrorIs(t, err, accounts.ErrTokenScope)
}

func TestSignInRecordsActivity(t *testing.T) {
	sink := &MockActivitySink{}
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e accounts.ActivityEvent) bool {
		return e.EventType == accounts.ActivityEventIdentityRegistered
	})).Return(nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e accounts.ActivityEvent) bool {
		return e.EventType == accounts.ActivityEventSignInSuccess && e.IdentityID != ""
	})).Return(nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e accounts.ActivityEvent) bool {
		return e.EventType == accounts.ActivityEventSignInFailure && e.Metadata["reason"] == "password mismatch"
	})).Return(nil).Once()

	env := newTestEnv(t, testConfig{}, accounts.WithActivitySink(sink))
	env.registerAlice(t)
	ctx := context.Background()

	_, err := env.accounts.SignIn(ctx, "alice", "Secret123!")
	require.NoError(t, err)

	_, err = env.accounts.SignIn(ctx, "alice", "bad password")
	require.Error(t, err)

	sink.AssertExpectations(t)
}

func TestActivitySinkFailureDoesNotFailSignIn(t *testing.T) {
	sink := accounts.ActivitySinkFunc(func(context.Context, accounts.ActivityEvent) error {
		return assert.AnError
	})

	env := newTestEnv(t, testConfig{}, accounts.WithActivitySink(sink))
	env.registerAlice(t)

	session, err := env.accounts.SignIn(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}
