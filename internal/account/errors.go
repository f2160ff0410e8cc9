// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package account

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateEmail is returned by Save when another account already owns the email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// NotFound builds the error stores return for an unknown account ID.
func NotFound(id ulid.ULID) error {
	return oops.Code("ACCOUNT_NOT_FOUND").
		With("id", id.String()).
		Wrap(ErrNotFound)
}

// DuplicateEmail builds the error stores return when Save hits the uniqueness constraint.
func DuplicateEmail(email string) error {
	return oops.Code("ACCOUNT_DUPLICATE_EMAIL").
		With("email", email).
		Wrap(ErrDuplicateEmail)
}

// IsNotFound reports whether err represents a missing account.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateEmail reports whether err represents an email uniqueness conflict.
func IsDuplicateEmail(err error) bool { return errors.Is(err, ErrDuplicateEmail) }
