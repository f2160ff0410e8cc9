// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them.
// Tokens are redacted.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendVerification logs the verification message.
func (s *LogSender) SendVerification(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "verification email",
		"kind", KindVerification,
		"email", email,
		"token", redactToken(token))
	return nil
}

// SendWelcome logs the welcome message.
func (s *LogSender) SendWelcome(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "welcome email",
		"kind", KindWelcome,
		"email", email)
	return nil
}

var _ Sender = (*LogSender)(nil)
