// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package registration

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/enrollkit/enroll/internal/account"
)

// Error codes returned by RegisterUser.
const (
	CodeEmailRequired      = "REGISTRATION_EMAIL_REQUIRED"
	CodeInvalidEmail       = "REGISTRATION_INVALID_EMAIL"
	CodePasswordTooShort   = "REGISTRATION_PASSWORD_TOO_SHORT"
	CodePasswordTooLong    = "REGISTRATION_PASSWORD_TOO_LONG"
	CodePasswordWeak       = "REGISTRATION_PASSWORD_WEAK"
	CodeGivenNameRequired  = "REGISTRATION_GIVEN_NAME_REQUIRED"
	CodeFamilyNameRequired = "REGISTRATION_FAMILY_NAME_REQUIRED"
	CodeDuplicateEmail     = "REGISTRATION_DUPLICATE_EMAIL"
	CodeFailed             = "REGISTRATION_FAILED"
	CodeInvalidDependency  = "REGISTRATION_INVALID_DEPENDENCY"
)

var (
	// ErrValidation is wrapped by every input validation error.
	ErrValidation = errors.New("invalid registration input")

	// ErrDuplicateEmail is wrapped when the email already has an account.
	// It is the same sentinel stores use, so errors.Is matches either layer.
	ErrDuplicateEmail = account.ErrDuplicateEmail

	// ErrRegistrationFailed is wrapped when infrastructure failed after validation.
	ErrRegistrationFailed = errors.New("registration failed")
)

func validationError(code, field, rule, msg string) error {
	return oops.Code(code).
		With("field", field).
		With("rule", rule).
		Wrapf(ErrValidation, "%s", msg)
}

func duplicateEmailError(email string, state State) error {
	return oops.Code(CodeDuplicateEmail).
		With("field", FieldEmail).
		With("email", email).
		With("state", state).
		Wrapf(ErrDuplicateEmail, "an account with this email already exists")
}

// failedError reports an infrastructure fault. The cause is kept as context
// rather than wrapped so the REGISTRATION_FAILED code stays the reported code.
func failedError(step string, state State, cause error) error {
	return oops.Code(CodeFailed).
		With("step", step).
		With("state", state).
		With("account_created", false).
		With("cause", cause.Error()).
		Wrap(fmt.Errorf("%s: %w", step, ErrRegistrationFailed))
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsDuplicateEmail reports whether err is a duplicate email rejection.
func IsDuplicateEmail(err error) bool { return errors.Is(err, ErrDuplicateEmail) }

// IsFailed reports whether err is an infrastructure failure.
func IsFailed(err error) bool { return errors.Is(err, ErrRegistrationFailed) }

// ValidationField returns the input field a validation or duplicate error
// refers to, or "" for other errors.
func ValidationField(err error) string {
	if !IsValidation(err) && !IsDuplicateEmail(err) {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	field, _ := oopsErr.Context()["field"].(string)
	return field
}
