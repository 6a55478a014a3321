package accounts

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Identities is the Identity Store. Uniqueness of username and email is
// enforced by the table constraints, lookups here only give nicer errors.
type Identities interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Identity, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Identity, error)

	Insert(ctx context.Context, record *Identity) (*Identity, error)
	InsertTx(ctx context.Context, tx bun.IDB, record *Identity) (*Identity, error)
	UpdateProfile(ctx context.Context, record *Identity) error
	UpdateProfileTx(ctx context.Context, tx bun.IDB, record *Identity) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	SetResetCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash, code string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash, code string) error

	DeleteUnverified(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type identities struct {
	db  *bun.DB
	now func() time.Time
}

var _ Identities = (*identities)(nil)

// IdentitiesOption customizes the store
type IdentitiesOption func(*identities)

// WithIdentitiesClock injects a custom clock (useful for tests).
func WithIdentitiesClock(clock func() time.Time) IdentitiesOption {
	return func(i *identities) {
		if clock != nil {
			i.now = clock
		}
	}
}

// NewIdentitiesRepository returns a bun backed Identity Store
func NewIdentitiesRepository(db *bun.DB, opts ...IdentitiesOption) Identities {
	repo := &identities{
		db:  db,
		now: defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *identities) FindByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *identities) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Identity, error) {
	return a.findOneTx(ctx, tx, "id", id)
}

func (a *identities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *identities) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Identity, error) {
	return a.findOneTx(ctx, tx, "email", NormalizeEmail(email))
}

func (a *identities) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	return a.FindByUsernameTx(ctx, a.db, username)
}

func (a *identities) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Identity, error) {
	return a.findOneTx(ctx, tx, "username", strings.TrimSpace(username))
}

// FindByIdentifier resolves an email or username, the sign in lookup.
// Identity ids are public and never accepted here.
func (a *identities) FindByIdentifier(ctx context.Context, identifier string) (*Identity, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil, ErrIdentityNotFound
	}

	if isEmail(trimmed) {
		record, err := a.FindByEmail(ctx, trimmed)
		if err == nil || !errors.Is(err, ErrIdentityNotFound) {
			return record, err
		}
	}

	return a.FindByUsername(ctx, trimmed)
}

func (a *identities) findOneTx(ctx context.Context, tx bun.IDB, column string, value any) (*Identity, error) {
	record := &Identity{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *identities) Insert(ctx context.Context, record *Identity) (*Identity, error) {
	return a.InsertTx(ctx, a.db, record)
}

func (a *identities) InsertTx(ctx context.Context, tx bun.IDB, record *Identity) (*Identity, error) {
	record.Email = NormalizeEmail(record.Email)
	prepareIdentityDefaults(record, a.now())

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrIdentityConflict
		}
		return nil, err
	}

	return record, nil
}

func (a *identities) UpdateProfile(ctx context.Context, record *Identity) error {
	return a.UpdateProfileTx(ctx, a.db, record)
}

// UpdateProfileTx writes the editable profile columns. Credentials, the
// verification flag and the reset code are never touched here.
func (a *identities) UpdateProfileTx(ctx context.Context, tx bun.IDB, record *Identity) error {
	record.Email = NormalizeEmail(record.Email)
	record.UpdatedAt = a.now()

	res, err := tx.NewUpdate().
		Model(record).
		Column(
			"username",
			"email",
			"first_name",
			"last_name",
			"phone_number",
			"bio",
			"location_id",
			"notification_preferences",
			"social_links",
			"updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdentityConflict
		}
		return err
	}

	return expectAffected(res, ErrIdentityNotFound)
}

func (a *identities) Delete(ctx context.Context, id uuid.UUID) error {
	return a.DeleteTx(ctx, a.db, id)
}

func (a *identities) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Identity)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	return expectAffected(res, ErrIdentityNotFound)
}

func (a *identities) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	now := a.now()
	res, err := a.db.NewUpdate().
		Model((*Identity)(nil)).
		Set("email_verified = ?", true).
		Set("verified_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	return expectAffected(res, ErrIdentityNotFound)
}

// SetResetCode overwrites any previous code in a single statement, so an
// identity never holds two valid codes.
func (a *identities) SetResetCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	res, err := a.db.NewUpdate().
		Model((*Identity)(nil)).
		Set("reset_code = ?", code).
		Set("reset_code_expires_at = ?", expiresAt).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	return expectAffected(res, ErrIdentityNotFound)
}

func (a *identities) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash, code string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash, code)
}

// ResetPasswordTx updates the credential and clears the reset code, only if
// the stored code is still the one that was verified.
func (a *identities) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash, code string) error {
	res, err := tx.NewUpdate().
		Model((*Identity)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_code = NULL").
		Set("reset_code_expires_at = NULL").
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Where("reset_code = ?", code).
		Exec(ctx)
	if err != nil {
		return err
	}

	return expectAffected(res, ErrResetProofInvalid)
}

// DeleteUnverified removes the identity unless it has been verified. The
// verification check is part of the statement so a concurrent verification
// always wins.
func (a *identities) DeleteUnverified(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*Identity)(nil)).
		Where("id = ?", id).
		Where("email_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (a *identities) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.NewDelete().
		Model((*Identity)(nil)).
		Where("email_verified = ?", false).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return notFound
	}

	return nil
}

// NormalizeEmail trims and lower cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
