// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package account_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollkit/enroll/internal/account"
	"github.com/enrollkit/enroll/pkg/errutil"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "user@example.com"},
		{"  User@Example.COM \n", "user@example.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, account.NormalizeEmail(tt.in), "input %q", tt.in)
	}
}

func TestNewAccountData_Validate(t *testing.T) {
	t.Run("valid data passes", func(t *testing.T) {
		d := account.NewAccountData{Email: "a@b.co", CredentialDigest: "digest"}
		require.NoError(t, d.Validate())
	})

	t.Run("empty email rejected", func(t *testing.T) {
		d := account.NewAccountData{Email: "  ", CredentialDigest: "digest"}
		err := d.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID")
		errutil.AssertErrorContext(t, err, "field", "email")
	})

	t.Run("empty digest rejected", func(t *testing.T) {
		d := account.NewAccountData{Email: "a@b.co"}
		err := d.Validate()
		require.Error(t, err)
		errutil.AssertErrorContext(t, err, "field", "credential_digest")
	})

	t.Run("negative failed login count rejected", func(t *testing.T) {
		d := account.NewAccountData{Email: "a@b.co", CredentialDigest: "x", FailedLoginCount: -1}
		require.Error(t, d.Validate())
	})
}

func TestNewAccountData_Build(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := account.NewAccountData{
		Email:            " John@Example.com ",
		CredentialDigest: "digest",
		GivenName:        " John ",
		FamilyName:       "Doe",
	}

	a := d.Build(now)
	assert.NotZero(t, a.ID)
	assert.Equal(t, "john@example.com", a.Email)
	assert.Equal(t, "John", a.GivenName)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, now, a.UpdatedAt)
	assert.False(t, a.EmailVerified)
	assert.Zero(t, a.FailedLoginCount)

	other := d.Build(now)
	assert.NotEqual(t, a.ID, other.ID, "each build gets a fresh id")
}

func TestPatch_Apply(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	a := &account.Account{
		Email:            "a@b.co",
		CredentialDigest: "old",
		GivenName:        "Ann",
		FamilyName:       "Lee",
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	verified := true
	count := 3
	name := " Anna "
	account.Patch{GivenName: &name, EmailVerified: &verified, FailedLoginCount: &count}.Apply(a, later)

	assert.Equal(t, "Anna", a.GivenName)
	assert.Equal(t, "Lee", a.FamilyName)
	assert.Equal(t, "old", a.CredentialDigest)
	assert.True(t, a.EmailVerified)
	assert.Equal(t, 3, a.FailedLoginCount)
	assert.Equal(t, created, a.CreatedAt)
	assert.Equal(t, later, a.UpdatedAt)
}

func TestPatch_Validate(t *testing.T) {
	empty := ""
	assert.Error(t, account.Patch{CredentialDigest: &empty}.Validate())

	neg := -2
	assert.Error(t, account.Patch{FailedLoginCount: &neg}.Validate())

	assert.NoError(t, account.Patch{}.Validate())
	assert.True(t, account.Patch{}.IsEmpty())
}

func TestAccount_JSONOmitsDigest(t *testing.T) {
	a := &account.Account{Email: "a@b.co", CredentialDigest: "$argon2id$secret"}
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "argon2id")
	assert.NotContains(t, string(raw), "credential")
}

func TestAccount_CloneIsIndependent(t *testing.T) {
	a := &account.Account{Email: "a@b.co", GivenName: "A"}
	c := a.Clone()
	c.GivenName = "B"
	assert.Equal(t, "A", a.GivenName)

	var nilAccount *account.Account
	assert.Nil(t, nilAccount.Clone())
}

func TestErrorHelpers(t *testing.T) {
	err := account.DuplicateEmail("a@b.co")
	assert.True(t, account.IsDuplicateEmail(err))
	assert.False(t, account.IsNotFound(err))
	errutil.AssertErrorCode(t, err, "ACCOUNT_DUPLICATE_EMAIL")

	nf := account.NotFound(ulid.ULID{})
	assert.True(t, account.IsNotFound(nf))
	errutil.AssertErrorCode(t, nf, "ACCOUNT_NOT_FOUND")
}
