package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles gives access to the roles table
type Roles interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, record *Role) (*Role, error)
}

// Locations gives access to the locations table
type Locations interface {
	Exists(ctx context.Context, id string) (bool, error)
	ExistsTx(ctx context.Context, tx bun.IDB, id string) (bool, error)
	Create(ctx context.Context, record *Location) (*Location, error)
	List(ctx context.Context) ([]*Location, error)
}

type roles struct {
	db *bun.DB
}

// NewRolesRepository returns the roles store
func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (r *roles) FindByName(ctx context.Context, name string) (*Role, error) {
	record := &Role{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return record, nil
}

func (r *roles) Create(ctx context.Context, record *Role) (*Role, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

type locations struct {
	db *bun.DB
}

// NewLocationsRepository returns the locations store
func NewLocationsRepository(db *bun.DB) Locations {
	return &locations{db: db}
}

func (l *locations) Exists(ctx context.Context, id string) (bool, error) {
	return l.ExistsTx(ctx, l.db, id)
}

func (l *locations) ExistsTx(ctx context.Context, tx bun.IDB, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	return tx.NewSelect().
		Model((*Location)(nil)).
		Where("?TableAlias.id = ?", id).
		Exists(ctx)
}

func (l *locations) Create(ctx context.Context, record *Location) (*Location, error) {
	if record.ID == "" {
		record.ID = strings.ToLower(record.Code)
	}
	if _, err := l.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (l *locations) List(ctx context.Context) ([]*Location, error) {
	var records []*Location
	if err := l.db.NewSelect().Model(&records).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}
