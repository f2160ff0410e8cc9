// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package registration_test

import (
	"context"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/enrollkit/enroll/internal/account"
)

type mockStore struct {
	mock.Mock
}

func newMockStore(t *testing.T) *mockStore {
	m := &mockStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	a, _ := args.Get(0).(*account.Account)
	return a, args.Error(1)
}

func (m *mockStore) FindByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*account.Account)
	return a, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, data account.NewAccountData) (*account.Account, error) {
	args := m.Called(ctx, data)
	a, _ := args.Get(0).(*account.Account)
	return a, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id ulid.ULID, patch account.Patch) (*account.Account, error) {
	args := m.Called(ctx, id, patch)
	a, _ := args.Get(0).(*account.Account)
	return a, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id ulid.ULID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Verify(plaintext, digest string) bool {
	return m.Called(plaintext, digest).Bool(0)
}

func (m *mockHasher) NeedsUpgrade(digest string) bool {
	return m.Called(digest).Bool(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendVerification(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *mockSender) SendWelcome(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// recordingSender captures messages without mocks, for concurrent tests.
type recordingSender struct {
	mu            sync.Mutex
	verifications map[string]string
	welcomes      []string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{verifications: make(map[string]string)}
}

func (r *recordingSender) SendVerification(_ context.Context, email, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifications[email] = token
	return nil
}

func (r *recordingSender) SendWelcome(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomes = append(r.welcomes, email)
	return nil
}

// blockingSender never returns until released, ignoring ctx.
type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) SendVerification(context.Context, string, string) error {
	<-b.release
	return nil
}

func (b *blockingSender) SendWelcome(context.Context, string) error {
	<-b.release
	return nil
}

// ctxSender waits for ctx to end.
type ctxSender struct{}

func (ctxSender) SendVerification(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (ctxSender) SendWelcome(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

type recorder struct {
	mu            sync.Mutex
	registrations map[string]int
	notifications map[string]int
}

func newRecorder() *recorder {
	return &recorder{registrations: map[string]int{}, notifications: map[string]int{}}
}

func (r *recorder) RegistrationOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[outcome]++
}

func (r *recorder) NotificationOutcome(kind string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok"
	if !ok {
		status = "error"
	}
	r.notifications[kind+"/"+status]++
}
