// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package sqlite implements account.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // bundles the SQLite build
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/enrollkit/enroll/internal/account"
)

//go:embed schema.sql
var schemaSQL string

const accountColumns = `id, email, credential_digest, given_name, family_name,
	email_verified, failed_login_count, created_at, updated_at`

// Store implements account.Store using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	// SQLite allows one writer; serializing through one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close() //nolint:errcheck // schema error takes precedence
		return nil, oops.Code("SQLITE_SCHEMA_FAILED").With("path", path).Wrap(err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByEmail retrieves an account by normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	normalized := account.NormalizeEmail(email)
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, normalized)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "find account by email").
			With("email", normalized).
			Wrap(err)
	}
	return a, nil
}

// FindByID retrieves an account by ID.
func (s *Store) FindByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String())

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "find account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return a, nil
}

// Save inserts a new account. The UNIQUE constraint on email arbitrates concurrent saves.
func (s *Store) Save(ctx context.Context, data account.NewAccountData) (*account.Account, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	a := data.Build(s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID.String(),
		a.Email,
		a.CredentialDigest,
		a.GivenName,
		a.FamilyName,
		a.EmailVerified,
		a.FailedLoginCount,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
	)
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return nil, account.DuplicateEmail(a.Email)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_SAVE_FAILED").
			With("operation", "insert account").
			With("email", a.Email).
			Wrap(err)
	}
	return a, nil
}

// Update applies patch in a single statement and returns the stored row.
func (s *Store) Update(ctx context.Context, id ulid.ULID, patch account.Patch) (*account.Account, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET
			given_name = COALESCE(?2, given_name),
			family_name = COALESCE(?3, family_name),
			credential_digest = COALESCE(?4, credential_digest),
			email_verified = COALESCE(?5, email_verified),
			failed_login_count = COALESCE(?6, failed_login_count),
			updated_at = ?7
		WHERE id = ?1
		RETURNING `+accountColumns,
		id.String(),
		trimmed(patch.GivenName),
		trimmed(patch.FamilyName),
		patch.CredentialDigest,
		patch.EmailVerified,
		patch.FailedLoginCount,
		formatTime(s.now()),
	)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.NotFound(id)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", id.String()).
			Wrap(err)
	}
	return a, nil
}

// Delete removes an account.
func (s *Store) Delete(ctx context.Context, id ulid.ULID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id.String())
	if err != nil {
		return false, oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "rows affected").
			With("id", id.String()).
			Wrap(err)
	}
	if n == 0 {
		return false, account.NotFound(id)
	}
	return true, nil
}

func scanAccount(row *sql.Row) (*account.Account, error) {
	var (
		a                account.Account
		idStr            string
		created, updated string
	)
	if err := row.Scan(
		&idStr,
		&a.Email,
		&a.CredentialDigest,
		&a.GivenName,
		&a.FamilyName,
		&a.EmailVerified,
		&a.FailedLoginCount,
		&created,
		&updated,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	a.ID = id
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_TIMESTAMP").With("column", "created_at").Wrap(err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_TIMESTAMP").With("column", "updated_at").Wrap(err)
	}
	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

var _ account.Store = (*Store)(nil)
