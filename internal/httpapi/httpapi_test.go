// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollkit/enroll/internal/account/memstore"
	"github.com/enrollkit/enroll/internal/credential"
	"github.com/enrollkit/enroll/internal/httpapi"
	"github.com/enrollkit/enroll/internal/notify"
	"github.com/enrollkit/enroll/internal/registration"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type observed struct {
	route string
	code  int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []observed
}

func (o *fakeObserver) ObserveRequest(route string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observed{route, code})
}

type stubRegisterer struct {
	err error
}

func (s stubRegisterer) RegisterUser(context.Context, registration.Input) (*registration.Result, error) {
	return nil, s.err
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newRouter(t *testing.T) (*gin.Engine, *memstore.Store, *fakeObserver) {
	t.Helper()
	hasher, err := credential.NewArgon2idHasher(
		credential.WithWorkFactor(1),
		credential.WithMemoryKiB(64),
		credential.WithThreads(1),
	)
	require.NoError(t, err)

	store := memstore.New()
	svc, err := registration.New(store, hasher, notify.NewLogSender(discard()),
		registration.WithLogger(discard()))
	require.NoError(t, err)

	obs := &fakeObserver{}
	return httpapi.New(svc, discard(), obs).Router(), store, obs
}

func post(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, httpapi.RegistrationPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"email":"User@Example.com","password":"SecureP@ss123","given_name":"John","family_name":"Doe"}`

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpapi.ErrorDetail {
	t.Helper()
	var body httpapi.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestRegister_Created(t *testing.T) {
	router, store, obs := newRouter(t)

	rec := post(router, validBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, true, got["email_sent"])
	assert.NotContains(t, got, "email_error")

	acct, ok := got["account"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user@example.com", acct["email"])
	assert.Equal(t, false, acct["email_verified"])
	assert.NotContains(t, rec.Body.String(), "argon2id")
	assert.NotContains(t, rec.Body.String(), "SecureP@ss123")

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []observed{{httpapi.RegistrationPath, http.StatusCreated}}, obs.seen)
}

func TestRegister_ValidationError(t *testing.T) {
	router, store, _ := newRouter(t)

	rec := post(router, `{"email":"not-an-email","password":"weak","given_name":"","family_name":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, registration.CodeInvalidEmail, detail.Code)
	assert.Equal(t, registration.FieldEmail, detail.Field)
	assert.NotEmpty(t, detail.Message)
	assert.NotContains(t, detail.Message, registration.ErrValidation.Error())
	assert.Zero(t, store.Len())
}

func TestRegister_WeakPassword(t *testing.T) {
	router, _, _ := newRouter(t)

	rec := post(router, `{"email":"a@example.com","password":"password123","given_name":"A","family_name":"B"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, registration.CodePasswordWeak, detail.Code)
	assert.Equal(t, registration.FieldPassword, detail.Field)
}

func TestRegister_Duplicate(t *testing.T) {
	router, store, _ := newRouter(t)
	require.Equal(t, http.StatusCreated, post(router, validBody).Code)

	rec := post(router, strings.Replace(validBody, "User@Example.com", "user@example.com", 1))
	require.Equal(t, http.StatusConflict, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, registration.CodeDuplicateEmail, detail.Code)
	assert.Equal(t, "email", detail.Field)
	assert.Equal(t, 1, store.Len())
}

func TestRegister_MalformedBody(t *testing.T) {
	router, _, _ := newRouter(t)

	rec := post(router, `{"email":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQUEST_INVALID_BODY", decodeError(t, rec).Code)
}

func TestRegister_FailureHidesCause(t *testing.T) {
	svc := stubRegisterer{err: registrationFailure(t)}
	router := httpapi.New(svc, discard(), nil).Router()

	rec := post(router, validBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, registration.CodeFailed, detail.Code)
	assert.Equal(t, "registration could not be completed", detail.Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRegister_UncodedErrorIsInternal(t *testing.T) {
	router := httpapi.New(stubRegisterer{err: errors.New("boom")}, discard(), nil).Router()

	rec := post(router, validBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, registration.CodeFailed, decodeError(t, rec).Code)
}

func TestRouter_UnmatchedRouteIsObserved(t *testing.T) {
	obs := &fakeObserver{}
	router := httpapi.New(stubRegisterer{}, discard(), obs).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []observed{{"unmatched", http.StatusNotFound}}, obs.seen)
}

// registrationFailure produces a real REGISTRATION_FAILED error from a store
// whose lookups fail.
func registrationFailure(t *testing.T) error {
	t.Helper()
	hasher, err := credential.NewArgon2idHasher(credential.WithMemoryKiB(64), credential.WithThreads(1))
	require.NoError(t, err)
	svc, err := registration.New(failingStore{memstore.New()}, hasher, notify.NewLogSender(discard()),
		registration.WithLogger(discard()))
	require.NoError(t, err)

	_, err = svc.RegisterUser(context.Background(), registration.Input{
		Email: "a@example.com", Password: "SecureP@ss123", GivenName: "A", FamilyName: "B",
	})
	require.Error(t, err)
	require.True(t, registration.IsFailed(err))
	return err
}
