package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"
)

const profileColumns = `id, email, name, role, created_at`

// ProfileRepository reads profiles owned by the identity service. Only the role is
// ever written from here.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.Profile, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "profiles")
	defer span.End()

	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get profile", err, domain.ErrProfileNotFound)
	}
	return p, nil
}

func (r *ProfileRepository) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "profiles")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, mapError("check profile", err, domain.ErrProfileNotFound)
	}
	return exists, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "profiles")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError("list profiles", err, domain.ErrProfileNotFound)
	}
	defer rows.Close()

	profiles := []*domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapError("scan profile", err, domain.ErrProfileNotFound)
		}
		profiles = append(profiles, p)
	}
	return profiles, mapError("list profiles", rows.Err(), domain.ErrProfileNotFound)
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id domain.UserID, role domain.Role) (*domain.Profile, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update", "profiles")
	defer span.End()

	p, err := scanProfile(r.pool.QueryRow(ctx,
		`UPDATE profiles SET role = $2 WHERE id = $1 RETURNING `+profileColumns, id, role))
	if err != nil {
		return nil, mapError("update profile role", err, domain.ErrProfileNotFound)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	p := &domain.Profile{}
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Role, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}
