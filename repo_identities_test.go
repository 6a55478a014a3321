package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentities(t *testing.T) (accounts.RepositoryManager, *testClock, uuid.UUID) {
	t.Helper()
	clock := newTestClock()
	repo := accounts.NewRepositoryManager(newTestDB(t), accounts.WithIdentitiesClock(clock.Now))
	role, err := accounts.ResolveRole(context.Background(), repo, "")
	require.NoError(t, err)
	return repo, clock, role.ID
}

func newIdentityRecord(roleID uuid.UUID, username, email string) *accounts.Identity {
	return &accounts.Identity{
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		RoleID:       roleID,
		LocationID:   "loc-1",
		FirstName:    "Test",
	}
}

func TestIdentitiesInsertAndFind(t *testing.T) {
	repo, clock, roleID := newTestIdentities(t)
	ctx := context.Background()
	store := repo.Identities()

	created, err := store.Insert(ctx, newIdentityRecord(roleID, "alice", "  Alice@X.com "))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "alice@x.com", created.Email)
	assert.True(t, created.CreatedAt.Equal(clock.Now()))

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Len(t, byID.NotificationPreferences, 6)
	assert.Len(t, byID.SocialLinks, 6)

	byEmail, err := store.FindByEmail(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byIdentifier, err := store.FindByIdentifier(ctx, " Alice@X.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byIdentifier.ID)

	byIdentifier, err = store.FindByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byIdentifier.ID)

	_, err = store.FindByIdentifier(ctx, created.ID.String())
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)

	_, err = store.FindByUsername(ctx, "bob")
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
}

func TestIdentitiesUniqueConstraints(t *testing.T) {
	repo, _, roleID := newTestIdentities(t)
	ctx := context.Background()
	store := repo.Identities()

	_, err := store.Insert(ctx, newIdentityRecord(roleID, "alice", "alice@x.com"))
	require.NoError(t, err)

	_, err = store.Insert(ctx, newIdentityRecord(roleID, "alice2", "alice@x.com"))
	assert.ErrorIs(t, err, accounts.ErrIdentityConflict)

	_, err = store.Insert(ctx, newIdentityRecord(roleID, "alice", "other@x.com"))
	assert.ErrorIs(t, err, accounts.ErrIdentityConflict)
}

func TestIdentitiesResetCode(t *testing.T) {
	repo, clock, roleID := newTestIdentities(t)
	ctx := context.Background()
	store := repo.Identities()

	created, err := store.Insert(ctx, newIdentityRecord(roleID, "alice", "alice@x.com"))
	require.NoError(t, err)

	expires := clock.Now().Add(15 * time.Minute)
	require.NoError(t, store.SetResetCode(ctx, created.ID, "111111", expires))
	require.NoError(t, store.SetResetCode(ctx, created.ID, "222222", expires))

	stored, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetCode)
	assert.Equal(t, "222222", *stored.ResetCode)

	err = store.ResetPassword(ctx, created.ID, "new-hash", "111111")
	assert.ErrorIs(t, err, accounts.ErrResetProofInvalid)

	require.NoError(t, store.ResetPassword(ctx, created.ID, "new-hash", "222222"))

	stored, err = store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.Nil(t, stored.ResetCode)
	assert.Nil(t, stored.ResetCodeExpiresAt)

	err = store.ResetPassword(ctx, created.ID, "newer-hash", "222222")
	assert.ErrorIs(t, err, accounts.ErrResetProofInvalid)

	err = store.SetResetCode(ctx, uuid.New(), "333333", expires)
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
}

func TestIdentitiesDeleteUnverified(t *testing.T) {
	repo, _, roleID := newTestIdentities(t)
	ctx := context.Background()
	store := repo.Identities()

	pending, err := store.Insert(ctx, newIdentityRecord(roleID, "pending", "pending@x.com"))
	require.NoError(t, err)
	verified, err := store.Insert(ctx, newIdentityRecord(roleID, "verified", "verified@x.com"))
	require.NoError(t, err)
	require.NoError(t, store.MarkEmailVerified(ctx, verified.ID))

	deleted, err := store.DeleteUnverified(ctx, verified.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = store.DeleteUnverified(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteUnverified(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.FindByID(ctx, verified.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, store.MarkEmailVerified(ctx, pending.ID), accounts.ErrIdentityNotFound)
}

func TestIdentitiesDeleteUnverifiedBefore(t *testing.T) {
	repo, clock, roleID := newTestIdentities(t)
	ctx := context.Background()
	store := repo.Identities()

	old, err := store.Insert(ctx, newIdentityRecord(roleID, "old", "old@x.com"))
	require.NoError(t, err)
	oldVerified, err := store.Insert(ctx, newIdentityRecord(roleID, "oldverified", "oldverified@x.com"))
	require.NoError(t, err)
	require.NoError(t, store.MarkEmailVerified(ctx, oldVerified.ID))

	clock.Advance(10 * time.Minute)
	fresh, err := store.Insert(ctx, newIdentityRecord(roleID, "fresh", "fresh@x.com"))
	require.NoError(t, err)

	n, err := store.DeleteUnverifiedBefore(ctx, clock.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
	_, err = store.FindByID(ctx, oldVerified.ID)
	assert.NoError(t, err)
	_, err = store.FindByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestIdentitiesDelete(t *testing.T) {
	repo, _, roleID := newTestIdentities(t)
	ctx := context.Background()
	store := repo.Identities()

	created, err := store.Insert(ctx, newIdentityRecord(roleID, "alice", "alice@x.com"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	assert.ErrorIs(t, store.Delete(ctx, created.ID), accounts.ErrIdentityNotFound)
}
