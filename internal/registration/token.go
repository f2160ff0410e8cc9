// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package registration

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
)

const verificationTokenBytes = 32

// TokenSource produces verification tokens.
type TokenSource func() (string, error)

// NewVerificationToken returns 32 random bytes encoded as unpadded base64url.
func NewVerificationToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("REGISTRATION_TOKEN_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
