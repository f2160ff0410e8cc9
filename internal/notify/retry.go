// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retrying retries a Sender with exponential backoff until it succeeds, the
// attempts run out or ctx is done.
type Retrying struct {
	next       Sender
	maxRetries uint64
	base       time.Duration
	logger     *slog.Logger
}

// NewRetrying wraps next. maxRetries counts retries after the first attempt.
func NewRetrying(next Sender, maxRetries uint64, base time.Duration, logger *slog.Logger) *Retrying {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, maxRetries: maxRetries, base: base, logger: logger}
}

// SendVerification retries next.SendVerification.
func (r *Retrying) SendVerification(ctx context.Context, email, token string) error {
	return r.do(ctx, KindVerification, func(ctx context.Context) error {
		return r.next.SendVerification(ctx, email, token)
	})
}

// SendWelcome retries next.SendWelcome.
func (r *Retrying) SendWelcome(ctx context.Context, email string) error {
	return r.do(ctx, KindWelcome, func(ctx context.Context) error {
		return r.next.SendWelcome(ctx, email)
	})
}

func (r *Retrying) do(ctx context.Context, kind Kind, send func(context.Context) error) error {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.WithCappedDuration(5*time.Second, retry.NewExponential(r.base)))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := send(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		r.logger.WarnContext(ctx, "email attempt failed", "kind", kind, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

var _ Sender = (*Retrying)(nil)
