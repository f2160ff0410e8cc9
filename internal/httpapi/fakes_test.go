// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package httpapi_test

import (
	"context"
	"errors"

	"github.com/enrollkit/enroll/internal/account"
	"github.com/enrollkit/enroll/internal/account/memstore"
)

type failingStore struct {
	*memstore.Store
}

func (failingStore) FindByEmail(context.Context, string) (*account.Account, error) {
	return nil, errors.New("dial tcp: connection refused")
}
