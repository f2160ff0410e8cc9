// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package accounttest provides a behavioral test suite shared by account.Store backends.
package accounttest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollkit/enroll/internal/account"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) account.Store

// NewData returns valid save input for email.
func NewData(email string) account.NewAccountData {
	return account.NewAccountData{
		Email:            email,
		CredentialDigest: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
		GivenName:        "John",
		FamilyName:       "Doe",
	}
}

// RunStoreContract exercises the account.Store contract against stores built by newStore.
func RunStoreContract(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("save assigns id and timestamps", func(t *testing.T) {
		s := newStore(t)
		before := time.Now().Add(-time.Second)

		a, err := s.Save(ctx, NewData("User@Example.com"))
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, a.ID)
		assert.Equal(t, "user@example.com", a.Email)
		assert.Equal(t, "John", a.GivenName)
		assert.Equal(t, "Doe", a.FamilyName)
		assert.False(t, a.EmailVerified)
		assert.Zero(t, a.FailedLoginCount)
		assert.True(t, a.CreatedAt.After(before))
		assert.True(t, a.CreatedAt.Equal(a.UpdatedAt))
	})

	t.Run("save rejects invalid data", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Save(ctx, account.NewAccountData{Email: "a@b.co"})
		require.Error(t, err)
	})

	t.Run("find by email is case insensitive", func(t *testing.T) {
		s := newStore(t)
		saved, err := s.Save(ctx, NewData("case@example.com"))
		require.NoError(t, err)

		found, err := s.FindByEmail(ctx, "  CASE@example.COM")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, saved.ID, found.ID)
		assert.Equal(t, saved.CredentialDigest, found.CredentialDigest)
	})

	t.Run("find returns nil without error when absent", func(t *testing.T) {
		s := newStore(t)

		byEmail, err := s.FindByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, byEmail)

		byID, err := s.FindByID(ctx, ulid.Make())
		require.NoError(t, err)
		assert.Nil(t, byID)
	})

	t.Run("find by id round trips", func(t *testing.T) {
		s := newStore(t)
		saved, err := s.Save(ctx, NewData("id@example.com"))
		require.NoError(t, err)

		found, err := s.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, saved.Email, found.Email)
		assert.True(t, saved.CreatedAt.Equal(found.CreatedAt))
	})

	t.Run("save rejects duplicate email", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Save(ctx, NewData("dup@example.com"))
		require.NoError(t, err)

		_, err = s.Save(ctx, NewData("DUP@example.com"))
		require.Error(t, err)
		assert.True(t, account.IsDuplicateEmail(err), "got %v", err)
	})

	t.Run("concurrent saves keep one account per email", func(t *testing.T) {
		s := newStore(t)
		const workers = 8

		var wg sync.WaitGroup
		var ok, dup atomic.Int32
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Save(ctx, NewData("race@example.com"))
				switch {
				case err == nil:
					ok.Add(1)
				case account.IsDuplicateEmail(err):
					dup.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(workers-1), dup.Load())
	})

	t.Run("update applies patch and refreshes updated_at", func(t *testing.T) {
		s := newStore(t)
		saved, err := s.Save(ctx, NewData("update@example.com"))
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		verified := true
		count := 2
		name := "Jane"
		updated, err := s.Update(ctx, saved.ID, account.Patch{
			GivenName:        &name,
			EmailVerified:    &verified,
			FailedLoginCount: &count,
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane", updated.GivenName)
		assert.Equal(t, "Doe", updated.FamilyName)
		assert.True(t, updated.EmailVerified)
		assert.Equal(t, 2, updated.FailedLoginCount)
		assert.Equal(t, saved.ID, updated.ID)
		assert.True(t, updated.UpdatedAt.After(saved.UpdatedAt))
		assert.True(t, updated.CreatedAt.Equal(saved.CreatedAt))

		reloaded, err := s.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jane", reloaded.GivenName)
		assert.True(t, reloaded.EmailVerified)
	})

	t.Run("update unknown id fails with not found", func(t *testing.T) {
		s := newStore(t)
		name := "X"
		_, err := s.Update(ctx, ulid.Make(), account.Patch{GivenName: &name})
		require.Error(t, err)
		assert.True(t, account.IsNotFound(err), "got %v", err)
	})

	t.Run("delete removes account and frees email", func(t *testing.T) {
		s := newStore(t)
		saved, err := s.Save(ctx, NewData("delete@example.com"))
		require.NoError(t, err)

		ok, err := s.Delete(ctx, saved.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		found, err := s.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		_, err = s.Save(ctx, NewData("delete@example.com"))
		require.NoError(t, err, "email should be reusable after delete")
	})

	t.Run("delete unknown id fails with not found", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.Delete(ctx, ulid.Make())
		require.Error(t, err)
		assert.False(t, ok)
		assert.True(t, account.IsNotFound(err), "got %v", err)
	})
}
