// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package memstore provides an in-memory account.Store for development and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/enrollkit/enroll/internal/account"
)

// Store is a thread-safe in-memory account.Store.
type Store struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*account.Account
	byEmail map[string]ulid.ULID
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[ulid.ULID]*account.Account),
		byEmail: make(map[string]ulid.ULID),
		now:     time.Now,
	}
}

// FindByEmail returns the account owning email, or nil.
func (s *Store) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return s.byID[id].Clone(), nil
}

// FindByID returns the account with id, or nil.
func (s *Store) FindByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byID[id].Clone(), nil
}

// Save inserts a new account.
func (s *Store) Save(ctx context.Context, data account.NewAccountData) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	a := data.Build(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[a.Email]; taken {
		return nil, account.DuplicateEmail(a.Email)
	}
	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a.Clone(), nil
}

// Update applies patch to the account with id.
func (s *Store) Update(ctx context.Context, id ulid.ULID, patch account.Patch) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, account.NotFound(id)
	}
	patch.Apply(a, s.now())
	return a.Clone(), nil
}

// Delete removes the account with id.
func (s *Store) Delete(ctx context.Context, id ulid.ULID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false, account.NotFound(id)
	}
	delete(s.byEmail, a.Email)
	delete(s.byID, id)
	return true, nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ account.Store = (*Store)(nil)
