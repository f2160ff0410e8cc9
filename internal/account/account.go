// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package account

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is a registered user account.
type Account struct {
	ID               ulid.ULID `json:"id"`
	Email            string    `json:"email"`
	CredentialDigest string    `json:"-"`
	GivenName        string    `json:"given_name"`
	FamilyName       string    `json:"family_name"`
	EmailVerified    bool      `json:"email_verified"`
	FailedLoginCount int       `json:"failed_login_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// NewAccountData is the input to Store.Save. The store assigns ID and timestamps.
type NewAccountData struct {
	Email            string
	CredentialDigest string
	GivenName        string
	FamilyName       string
	EmailVerified    bool
	FailedLoginCount int
}

// Validate checks the fields every backend relies on.
func (d NewAccountData) Validate() error {
	if NormalizeEmail(d.Email) == "" {
		return oops.Code("ACCOUNT_INVALID").With("field", "email").Errorf("email cannot be empty")
	}
	if d.CredentialDigest == "" {
		return oops.Code("ACCOUNT_INVALID").With("field", "credential_digest").Errorf("credential digest cannot be empty")
	}
	if d.FailedLoginCount < 0 {
		return oops.Code("ACCOUNT_INVALID").With("field", "failed_login_count").Errorf("failed login count cannot be negative")
	}
	return nil
}

// Build materializes the account a store is about to insert.
func (d NewAccountData) Build(now time.Time) *Account {
	return &Account{
		ID:               ulid.Make(),
		Email:            NormalizeEmail(d.Email),
		CredentialDigest: d.CredentialDigest,
		GivenName:        strings.TrimSpace(d.GivenName),
		FamilyName:       strings.TrimSpace(d.FamilyName),
		EmailVerified:    d.EmailVerified,
		FailedLoginCount: d.FailedLoginCount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Patch is a partial update. Nil fields are left unchanged.
// ID, Email and CreatedAt are immutable through Update.
type Patch struct {
	GivenName        *string
	FamilyName       *string
	CredentialDigest *string
	EmailVerified    *bool
	FailedLoginCount *int
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.GivenName == nil && p.FamilyName == nil && p.CredentialDigest == nil &&
		p.EmailVerified == nil && p.FailedLoginCount == nil
}

// Validate rejects patches that would break account invariants.
func (p Patch) Validate() error {
	if p.CredentialDigest != nil && *p.CredentialDigest == "" {
		return oops.Code("ACCOUNT_INVALID").With("field", "credential_digest").Errorf("credential digest cannot be empty")
	}
	if p.FailedLoginCount != nil && *p.FailedLoginCount < 0 {
		return oops.Code("ACCOUNT_INVALID").With("field", "failed_login_count").Errorf("failed login count cannot be negative")
	}
	return nil
}

// Apply writes the patch onto a and stamps UpdatedAt.
func (p Patch) Apply(a *Account, now time.Time) {
	if p.GivenName != nil {
		a.GivenName = strings.TrimSpace(*p.GivenName)
	}
	if p.FamilyName != nil {
		a.FamilyName = strings.TrimSpace(*p.FamilyName)
	}
	if p.CredentialDigest != nil {
		a.CredentialDigest = *p.CredentialDigest
	}
	if p.EmailVerified != nil {
		a.EmailVerified = *p.EmailVerified
	}
	if p.FailedLoginCount != nil {
		a.FailedLoginCount = *p.FailedLoginCount
	}
	a.UpdatedAt = now
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store manages account persistence.
type Store interface {
	// FindByEmail returns the account owning email, or (nil, nil) if none does.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID returns the account with id, or (nil, nil) if none exists.
	FindByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// Save inserts a new account. Fails with ErrDuplicateEmail if the email is taken.
	Save(ctx context.Context, data NewAccountData) (*Account, error)

	// Update applies patch to the account with id. Fails with ErrNotFound for unknown ids.
	Update(ctx context.Context, id ulid.ULID, patch Patch) (*Account, error)

	// Delete removes the account with id. Fails with ErrNotFound for unknown ids.
	Delete(ctx context.Context, id ulid.ULID) (bool, error)
}
