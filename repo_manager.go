package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Identities() Identities
	Roles() Roles
	Locations() Locations
}

type mngr struct {
	db         *bun.DB
	identities Identities
	roles      Roles
	locations  Locations
}

// NewRepositoryManager wires every store on the same database
func NewRepositoryManager(db *bun.DB, opts ...IdentitiesOption) RepositoryManager {
	return &mngr{
		db:         db,
		identities: NewIdentitiesRepository(db, opts...),
		roles:      NewRolesRepository(db),
		locations:  NewLocationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.identities == nil {
		return errors.New("repository identities should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.locations == nil {
		return errors.New("repository locations should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Identities() Identities {
	return m.identities
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Locations() Locations {
	return m.locations
}

// OpenDB opens a bun database for "sqlite" or "postgres"
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "sqlite", "sqlite3", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers, one connection avoids SQLITE_BUSY under load
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates the tables and indexes if they do not exist
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Role)(nil),
		(*Location)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, err := db.NewCreateTable().
		Model((*Identity)(nil)).
		IfNotExists().
		ForeignKey(`("role_id") REFERENCES "roles" ("id")`).
		ForeignKey(`("location_id") REFERENCES "locations" ("id")`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create identities table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*Identity)(nil)).
		Index("identities_unverified_created_at_idx").
		IfNotExists().
		Column("email_verified", "created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create identities index: %w", err)
	}

	return nil
}

// DefaultLocations are seeded on a fresh database
var DefaultLocations = []*Location{
	{ID: "addaba", Name: "Addis Ababa", Code: "ADDABA"},
	{ID: "debber", Name: "Debre Berhan", Code: "DEBBER"},
}

// SeedDefaults inserts the default roles and locations when missing
func SeedDefaults(ctx context.Context, db *bun.DB) error {
	roleRecords := []*Role{
		{Name: "Admin", Description: "Full access to all features"},
		{Name: DefaultRoleName, Description: "Can contribute to projects"},
	}

	rolesRepo := NewRolesRepository(db)
	for _, role := range roleRecords {
		if _, err := rolesRepo.FindByName(ctx, role.Name); err == nil {
			continue
		} else if !errors.Is(err, ErrRoleNotFound) {
			return err
		}

		if _, err := rolesRepo.Create(ctx, role); err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}

	locationRecords := make([]*Location, 0, len(DefaultLocations))
	for _, loc := range DefaultLocations {
		copied := *loc
		locationRecords = append(locationRecords, &copied)
	}

	_, err := db.NewInsert().
		Model(&locationRecords).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed locations: %w", err)
	}

	return nil
}

// ResolveRole looks up a role by name once at start up
func ResolveRole(ctx context.Context, repo RepositoryManager, name string) (*Role, error) {
	if name == "" {
		name = DefaultRoleName
	}
	return repo.Roles().FindByName(ctx, name)
}
