// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authstate/pkg/errutil"
)

// mockMigrate implements migrateIface for testing.
type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	closeSourceErr error
	closeDBErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/directory")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@db:5432/directory", "pgx5://u:p@db:5432/directory"},
		{"postgresql://u:p@db:5432/directory", "pgx5://u:p@db:5432/directory"},
		{"pgx5://u:p@db:5432/directory", "pgx5://u:p@db:5432/directory"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

func TestMigrator_Operations(t *testing.T) {
	tests := []struct {
		name     string
		mock     *mockMigrate
		run      func(*Migrator) error
		wantCode string
	}{
		{"up", &mockMigrate{}, (*Migrator).Up, ""},
		{"up no change", &mockMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up failure", &mockMigrate{upErr: errors.New("database locked")}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &mockMigrate{}, (*Migrator).Down, ""},
		{"down no change", &mockMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down failure", &mockMigrate{downErr: errors.New("constraint")}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &mockMigrate{}, func(m *Migrator) error { return m.Steps(1) }, ""},
		{"steps no change", &mockMigrate{stepsErr: migrate.ErrNoChange}, func(m *Migrator) error { return m.Steps(0) }, ""},
		{"steps failure", &mockMigrate{stepsErr: errors.New("bad step")}, func(m *Migrator) error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"close", &mockMigrate{}, (*Migrator).Close, ""},
		{"close source failure", &mockMigrate{closeSourceErr: errors.New("src")}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
		{"close both failures", &mockMigrate{closeSourceErr: errors.New("src"), closeDBErr: errors.New("db")}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.mock})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	tests := []struct {
		name      string
		mock      *mockMigrate
		want      uint
		wantDirty bool
		wantErr   bool
	}{
		{"applied", &mockMigrate{versionVal: 2}, 2, false, false},
		{"dirty", &mockMigrate{versionVal: 1, dirty: true}, 1, true, false},
		{"empty database", &mockMigrate{versionErr: migrate.ErrNilVersion}, 0, false, false},
		{"failure", &mockMigrate{versionErr: errors.New("connection lost")}, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, dirty, err := (&Migrator{m: tt.mock}).Version()
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.wantDirty, dirty)
		})
	}
}

func TestMigrator_Pending(t *testing.T) {
	all, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	pending, err := (&Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}).Pending()
	require.NoError(t, err)
	assert.Equal(t, all, pending)

	pending, err = (&Migrator{m: &mockMigrate{versionVal: all[len(all)-1]}}).Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = (&Migrator{m: &mockMigrate{versionErr: errors.New("down")}}).Pending()
	require.Error(t, err)
}
