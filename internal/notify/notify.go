// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package notify delivers account emails: verification requests and welcome messages.
package notify

import "context"

// Kind identifies a message type.
type Kind string

// Message kinds.
const (
	KindVerification Kind = "verification"
	KindWelcome      Kind = "welcome"
)

// Sender delivers account emails. Implementations must honor ctx cancellation.
type Sender interface {
	// SendVerification sends a message carrying the verification token to email.
	SendVerification(ctx context.Context, email, token string) error

	// SendWelcome sends a welcome message to email.
	SendWelcome(ctx context.Context, email string) error
}

// redactToken returns enough of token to correlate log lines without exposing it.
func redactToken(token string) string {
	const keep = 6
	if len(token) <= keep {
		return "***"
	}
	return token[:keep] + "***"
}
