// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package notify

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/knadh/smtppool"
	"github.com/samber/oops"
)

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	MaxConns  int
	Timeout   time.Duration
	VerifyURL string
	// InsecureSkipVerify disables TLS certificate checks. Local testing only.
	InsecureSkipVerify bool
}

// mailer is the part of smtppool.Pool the sender uses.
type mailer interface {
	Send(e smtppool.Email) error
	Close()
}

// SMTPSender delivers messages through a pooled SMTP connection.
type SMTPSender struct {
	pool     mailer
	from     string
	renderer *renderer
	logger   *slog.Logger
}

// NewSMTPSender connects a pool to the configured server.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, oops.Code("NOTIFY_SMTP_CONFIG_INVALID").
			With("host", cfg.Host).
			Errorf("smtp host and from address are required")
	}

	var auth smtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	pool, err := smtppool.New(smtppool.Opt{
		Host:            cfg.Host,
		Port:            cfg.Port,
		MaxConns:        maxConns,
		IdleTimeout:     timeout,
		PoolWaitTimeout: timeout,
		TLSConfig: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for local relays
		},
		Auth: auth,
	})
	if err != nil {
		return nil, oops.Code("NOTIFY_SMTP_POOL_FAILED").
			With("host", cfg.Host).
			With("port", cfg.Port).
			Wrap(err)
	}

	return newSMTPSender(pool, cfg.From, cfg.VerifyURL, logger)
}

func newSMTPSender(pool mailer, from, verifyURL string, logger *slog.Logger) (*SMTPSender, error) {
	r, err := newRenderer(verifyURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{pool: pool, from: from, renderer: r, logger: logger}, nil
}

// SendVerification emails the verification link.
func (s *SMTPSender) SendVerification(ctx context.Context, email, token string) error {
	return s.send(ctx, KindVerification, email, token)
}

// SendWelcome emails the welcome message.
func (s *SMTPSender) SendWelcome(ctx context.Context, email string) error {
	return s.send(ctx, KindWelcome, email, "")
}

// Close drains the connection pool.
func (s *SMTPSender) Close() {
	s.pool.Close()
}

func (s *SMTPSender) send(ctx context.Context, kind Kind, email, token string) error {
	subject, body, err := s.renderer.render(kind, email, token)
	if err != nil {
		return err
	}

	msg := smtppool.Email{
		From:    s.from,
		To:      []string{email},
		Subject: subject,
		Text:    []byte(body),
	}

	// smtppool has no context support; the pool's own timeouts bound the
	// goroutine once the caller stops waiting.
	done := make(chan error, 1)
	go func() {
		done <- s.pool.Send(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return oops.Code("NOTIFY_SEND_FAILED").
				With("kind", kind).
				With("email", email).
				Wrap(err)
		}
		s.logger.DebugContext(ctx, "email sent", "kind", kind, "email", email)
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_SEND_TIMEOUT").
			With("kind", kind).
			With("email", email).
			Wrap(ctx.Err())
	}
}

var _ Sender = (*SMTPSender)(nil)
