// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authstate/internal/auth"
)

// Pool is the subset of *pgxpool.Pool used by the repository.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DirectoryRepository implements auth.Directory using PostgreSQL.
type DirectoryRepository struct {
	pool Pool
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(pool Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

var _ auth.Directory = (*DirectoryRepository)(nil)

const selectUser = `
	SELECT id, provider_id, name, nationality, areas, interests, photo_url
	FROM users
	WHERE provider_id = $1`

// Lookup returns the user registered for providerID.
func (r *DirectoryRepository) Lookup(ctx context.Context, providerID string) (*auth.User, error) {
	var (
		id   string
		user auth.User
	)
	err := r.pool.QueryRow(ctx, selectUser, providerID).Scan(
		&id,
		&user.ProviderID,
		&user.Name,
		&user.Nationality,
		&user.Areas,
		&user.Interests,
		&user.PhotoURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("DIRECTORY_USER_NOT_FOUND").
			With("provider_id", providerID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("DIRECTORY_LOOKUP_FAILED").
			With("provider_id", providerID).
			Wrap(err)
	}

	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.Code("DIRECTORY_USER_CORRUPT").
			With("provider_id", providerID).
			With("user_id", id).
			Wrap(err)
	}
	user.ID = &parsed
	return &user, nil
}

// Create stores a new user and returns the id assigned to it.
func (r *DirectoryRepository) Create(ctx context.Context, user *auth.User) (ulid.ULID, error) {
	if user == nil || user.ProviderID == "" {
		return ulid.ULID{}, oops.Code("DIRECTORY_USER_INVALID").Errorf("user with provider id is required")
	}
	if user.HasID() {
		return ulid.ULID{}, oops.Code("DIRECTORY_USER_INVALID").
			With("user_id", user.ID.String()).
			Errorf("user already has an id")
	}

	id := ulid.Make()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, provider_id, name, nationality, areas, interests, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id.String(),
		user.ProviderID,
		user.Name,
		user.Nationality,
		user.Areas,
		user.Interests,
		user.PhotoURL,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ulid.ULID{}, oops.Code("DIRECTORY_USER_EXISTS").
				With("provider_id", user.ProviderID).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrAlreadyExists)
		}
		return ulid.ULID{}, oops.Code("DIRECTORY_CREATE_FAILED").
			With("provider_id", user.ProviderID).
			Wrap(err)
	}
	return id, nil
}
