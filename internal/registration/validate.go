// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package registration

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Input fields, as reported by ValidationField.
const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldGivenName  = "given_name"
	FieldFamilyName = "family_name"
)

// Password policy.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 256
	maxEmailLength    = 254

	// PasswordSymbols is the set a password must draw at least one symbol from.
	PasswordSymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

var emailShape = regexp.MustCompile(`^[a-zA-Z0-9._%+'-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Input is the data a caller submits to register.
type Input struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Validate checks in, stopping at the first violated rule. Rules are checked
// in order: email, password length, password complexity, given name, family name.
func Validate(in Input) error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if strings.TrimSpace(in.GivenName) == "" {
		return validationError(CodeGivenNameRequired, FieldGivenName, "required", "given name is required")
	}
	if strings.TrimSpace(in.FamilyName) == "" {
		return validationError(CodeFamilyNameRequired, FieldFamilyName, "required", "family name is required")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationError(CodeEmailRequired, FieldEmail, "required", "email is required")
	}
	if len(email) > maxEmailLength || !emailShape.MatchString(email) {
		return validationError(CodeInvalidEmail, FieldEmail, "format", "email is not a valid address")
	}
	// The pattern is loose; RFC 5322 parsing rejects the rest.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError(CodeInvalidEmail, FieldEmail, "format", "email is not a valid address")
	}
	return nil
}

func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return validationError(CodePasswordTooShort, FieldPassword, "min_length",
			"password must be at least 8 characters")
	}
	if n > MaxPasswordLength {
		return validationError(CodePasswordTooLong, FieldPassword, "max_length",
			"password must be at most 256 characters")
	}

	if missing := missingClasses(password); len(missing) > 0 {
		return oops.Code(CodePasswordWeak).
			With("field", FieldPassword).
			With("rule", "complexity").
			With("missing", missing).
			Wrapf(ErrValidation, "password must contain %s", strings.Join(missing, ", "))
	}
	return nil
}

// missingClasses lists the character classes password lacks.
func missingClasses(password string) []string {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	var missing []string
	if !upper {
		missing = append(missing, "an uppercase letter")
	}
	if !lower {
		missing = append(missing, "a lowercase letter")
	}
	if !digit {
		missing = append(missing, "a digit")
	}
	if !symbol {
		missing = append(missing, "a symbol")
	}
	return missing
}
