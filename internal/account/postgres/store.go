// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package postgres implements account.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/enrollkit/enroll/internal/account"
)

// poolIface is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, credential_digest, given_name, family_name,
	email_verified, failed_login_count, created_at, updated_at`

// Store implements account.Store using PostgreSQL.
type Store struct {
	pool poolIface
	now  func() time.Time
}

// New creates a Store over pool. The accounts table must already exist.
func New(pool poolIface) *Store {
	return &Store{pool: pool, now: now}
}

// now matches timestamptz precision so returned accounts equal what a later read yields.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FindByEmail retrieves an account by normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	normalized := account.NormalizeEmail(email)
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, normalized)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Save inserts a new account. The unique index on email arbitrates concurrent saves.
func (s *Store) Save(ctx context.Context, data account.NewAccountData) (*account.Account, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	a := data.Build(s.now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, credential_digest, given_name, family_name,
			email_verified, failed_login_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		a.ID.String(),
		a.Email,
		a.CredentialDigest,
		a.GivenName,
		a.FamilyName,
		a.EmailVerified,
		a.FailedLoginCount,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if isUniqueViolation(err) {
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

	row := s.pool.QueryRow(ctx, `
		UPDATE accounts SET
			given_name = COALESCE($2, given_name),
			family_name = COALESCE($3, family_name),
			credential_digest = COALESCE($4, credential_digest),
			email_verified = COALESCE($5, email_verified),
			failed_login_count = COALESCE($6, failed_login_count),
			updated_at = $7
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(),
		trimmed(patch.GivenName),
		trimmed(patch.FamilyName),
		patch.CredentialDigest,
		patch.EmailVerified,
		patch.FailedLoginCount,
		s.now(),
	)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	result, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return false, oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return false, account.NotFound(id)
	}
	return true, nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		a     account.Account
		idStr string
	)
	if err := row.Scan(
		&idStr,
		&a.Email,
		&a.CredentialDigest,
		&a.GivenName,
		&a.FamilyName,
		&a.EmailVerified,
		&a.FailedLoginCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	a.ID = id
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

var _ account.Store = (*Store)(nil)
