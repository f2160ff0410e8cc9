// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollkit/enroll/pkg/errutil"
)

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestNewMigrator_PostgresqlSchemeIsRecognized(t *testing.T) {
	_, err := NewMigrator("postgresql://127.0.0.1:1/enroll?sslmode=disable&connect_timeout=1")
	require.Error(t, err, "nothing listens on port 1")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@host/db", "pgx5://u:p@host/db"},
		{"postgresql://u:p@host/db", "pgx5://u:p@host/db"},
		{"pgx5://u:p@host/db", "pgx5://u:p@host/db"},
		{"sqlite://x", "sqlite://x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in), tt.in)
	}
}

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func TestMigrator_Up(t *testing.T) {
	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Up())
	require.NoError(t, (&Migrator{m: &mockMigrate{upErr: migrate.ErrNoChange}}).Up(), "no change is success")

	err := (&Migrator{m: &mockMigrate{upErr: errors.New("database locked")}}).Up()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
}

func TestMigrator_Down(t *testing.T) {
	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Down())
	require.NoError(t, (&Migrator{m: &mockMigrate{downErr: migrate.ErrNoChange}}).Down())

	err := (&Migrator{m: &mockMigrate{downErr: errors.New("constraint violation")}}).Down()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Steps(t *testing.T) {
	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Steps(1))
	require.NoError(t, (&Migrator{m: &mockMigrate{stepsErr: migrate.ErrNoChange}}).Steps(0))

	err := (&Migrator{m: &mockMigrate{stepsErr: errors.New("invalid step")}}).Steps(5)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_STEPS_FAILED")
	errutil.AssertErrorContext(t, err, "steps", 5)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("reports version and dirty flag", func(t *testing.T) {
		version, dirty, err := (&Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
		assert.True(t, dirty)
	})

	t.Run("fresh database is version zero", func(t *testing.T) {
		version, dirty, err := (&Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, dirty)
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		_, _, err := (&Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}).Version()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Force(1))

	err := (&Migrator{m: &mockMigrate{forceErr: errors.New("boom")}}).Force(1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FORCE_FAILED")

	err = (&Migrator{m: &mockMigrate{}}).Force(-1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		mock      *mockMigrate
		component string
	}{
		{"source", &mockMigrate{closeSourceErr: errors.New("source close failed")}, "source"},
		{"database", &mockMigrate{closeDbErr: errors.New("db close failed")}, "database"},
		{"both", &mockMigrate{
			closeSourceErr: errors.New("source close failed"),
			closeDbErr:     errors.New("db close failed"),
		}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.mock}).Close()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Close())
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	tests := []struct {
		name    string
		mock    *mockMigrate
		pending []uint
		applied []uint
	}{
		{"fresh", &mockMigrate{versionErr: migrate.ErrNilVersion}, []uint{1, 2}, nil},
		{"partial", &mockMigrate{versionVal: 1}, []uint{2}, []uint{1}},
		{"latest", &mockMigrate{versionVal: 2}, nil, []uint{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.mock}

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
		})
	}
}

func TestMigrator_PendingAndApplied_VersionError(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}

	_, err := m.PendingMigrations()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "get pending migrations")

	_, err = m.AppliedMigrations()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
}

func TestLatestVersion(t *testing.T) {
	latest, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version uint
		want    string
	}{
		{1, "000001_create_accounts"},
		{2, "000002_accounts_email_lowercase"},
		{999, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("version_%d", tt.version), func(t *testing.T) {
			name, err := MigrationName(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	original := first[0]
	first[0] = 99999

	second, err := migrationVersions()
	require.NoError(t, err)
	assert.Equal(t, original, second[0])
}
