// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/pkg/errutil"
)

var userColumns = []string{"id", "provider_id", "name", "nationality", "areas", "interests", "photo_url"}

func ptr[T any](v T) *T { return &v }

func TestDirectoryRepository_Lookup(t *testing.T) {
	id := ulid.Make()

	tests := []struct {
		name       string
		providerID string
		setupMock  func(mock pgxmock.PgxPoolIface)
		want       *auth.User
		wantErr    error
		wantCode   string
	}{
		{
			name:       "found with full profile",
			providerID: "pid-1",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns).
					AddRow(id.String(), "pid-1", "Ada Lovelace", ptr("GB"),
						[]string{"north"}, []string{"math", "poetry"}, ptr("https://img/ada.png"))
				mock.ExpectQuery(`SELECT id, provider_id, name`).
					WithArgs("pid-1").
					WillReturnRows(rows)
			},
			want: &auth.User{
				ID:          &id,
				ProviderID:  "pid-1",
				Name:        "Ada Lovelace",
				Nationality: ptr("GB"),
				Areas:       []string{"north"},
				Interests:   []string{"math", "poetry"},
				PhotoURL:    ptr("https://img/ada.png"),
			},
		},
		{
			name:       "found with empty optional fields",
			providerID: "pid-2",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns).
					AddRow(id.String(), "pid-2", "", (*string)(nil),
						[]string(nil), []string(nil), (*string)(nil))
				mock.ExpectQuery(`SELECT id, provider_id, name`).
					WithArgs("pid-2").
					WillReturnRows(rows)
			},
			want: &auth.User{ID: &id, ProviderID: "pid-2"},
		},
		{
			name:       "not found",
			providerID: "pid-3",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, provider_id, name`).
					WithArgs("pid-3").
					WillReturnRows(pgxmock.NewRows(userColumns))
			},
			wantErr:  auth.ErrNotFound,
			wantCode: "DIRECTORY_USER_NOT_FOUND",
		},
		{
			name:       "corrupt id",
			providerID: "pid-4",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns).
					AddRow("not-a-ulid", "pid-4", "", (*string)(nil),
						[]string(nil), []string(nil), (*string)(nil))
				mock.ExpectQuery(`SELECT id, provider_id, name`).
					WithArgs("pid-4").
					WillReturnRows(rows)
			},
			wantCode: "DIRECTORY_USER_CORRUPT",
		},
		{
			name:       "database error",
			providerID: "pid-5",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, provider_id, name`).
					WithArgs("pid-5").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "DIRECTORY_LOOKUP_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewDirectoryRepository(mock)
			got, err := repo.Lookup(context.Background(), tt.providerID)

			if tt.wantCode != "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestDirectoryRepository_Create(t *testing.T) {
	t.Run("inserts and returns a fresh id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		user := &auth.User{ProviderID: "pid-1", Name: "Ada", Areas: []string{"north"}}
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "pid-1", "Ada", (*string)(nil), []string{"north"}, []string(nil), (*string)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		id, err := NewDirectoryRepository(mock).Create(context.Background(), user)
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, id)
		assert.False(t, user.HasID(), "create must not mutate the user")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate provider id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_provider_id_key"})

		_, err = NewDirectoryRepository(mock).Create(context.Background(), &auth.User{ProviderID: "pid-1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)
		errutil.AssertErrorCode(t, err, "DIRECTORY_USER_EXISTS")
		errutil.AssertErrorContext(t, err, "constraint", "users_provider_id_key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(errors.New("connection reset"))

		_, err = NewDirectoryRepository(mock).Create(context.Background(), &auth.User{ProviderID: "pid-1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrAlreadyExists)
		errutil.AssertErrorCode(t, err, "DIRECTORY_CREATE_FAILED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid users without a query", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := NewDirectoryRepository(mock)

		_, err = repo.Create(context.Background(), nil)
		errutil.AssertErrorCode(t, err, "DIRECTORY_USER_INVALID")

		_, err = repo.Create(context.Background(), &auth.User{})
		errutil.AssertErrorCode(t, err, "DIRECTORY_USER_INVALID")

		id := ulid.Make()
		_, err = repo.Create(context.Background(), &auth.User{ID: &id, ProviderID: "pid-1"})
		errutil.AssertErrorCode(t, err, "DIRECTORY_USER_INVALID")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
