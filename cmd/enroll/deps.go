// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/enrollkit/enroll/internal/account"
	"github.com/enrollkit/enroll/internal/account/memstore"
	"github.com/enrollkit/enroll/internal/account/postgres"
	"github.com/enrollkit/enroll/internal/account/sqlite"
	"github.com/enrollkit/enroll/internal/config"
	"github.com/enrollkit/enroll/internal/credential"
	"github.com/enrollkit/enroll/internal/notify"
	"github.com/enrollkit/enroll/internal/registration"
	"github.com/enrollkit/enroll/internal/store"
	"github.com/enrollkit/enroll/internal/xdg"
)

// components holds the wired registration service and its cleanup.
type components struct {
	store   account.Store
	service *registration.Service
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// buildComponents wires store, hasher and sender into a registration service.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder registration.Recorder) (*components, error) {
	c := &components{}

	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	c.store = st
	c.closers = append(c.closers, closeStore)

	hasher, err := newHasher(cfg.Hasher)
	if err != nil {
		c.Close()
		return nil, err
	}

	sender, closeSender, err := newSender(cfg.Notify, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, closeSender)

	opts := []registration.Option{
		registration.WithLogger(logger),
		registration.WithNotifyTimeout(cfg.Notify.Timeout),
		registration.WithVerificationMail(cfg.Notify.Verification),
	}
	if recorder != nil {
		opts = append(opts, registration.WithRecorder(recorder))
	}

	svc, err := registration.New(st, hasher, sender, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.service = svc
	return c, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (account.Store, func(), error) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := store.OpenPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to postgres")
		return postgres.New(pool), pool.Close, nil

	case config.StoreSQLite:
		path := cfg.SQLitePath
		if path == "" {
			var err error
			if path, err = xdg.SQLitePath(); err != nil {
				return nil, nil, err
			}
		}
		if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, nil, err
		}
		st, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite store", "path", path)
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Warn("error closing sqlite store", "error", err)
			}
		}, nil

	case config.StoreMemory:
		logger.Warn("using in-memory account store; accounts are lost on exit")
		return memstore.New(), func() {}, nil
	}
	return nil, nil, oops.Code("CONFIG_INVALID").With("key", "store.driver").Errorf("unknown store driver %q", cfg.Driver)
}

func newHasher(cfg config.HasherConfig) (*credential.Argon2idHasher, error) {
	return credential.NewArgon2idHasher(
		credential.WithWorkFactor(cfg.WorkFactor),
		credential.WithMemoryKiB(cfg.MemoryKiB),
		credential.WithThreads(cfg.Threads),
	)
}

func newSender(cfg config.NotifyConfig, logger *slog.Logger) (notify.Sender, func(), error) {
	var (
		sender notify.Sender
		closer = func() {}
	)

	switch cfg.Driver {
	case config.NotifySMTP:
		smtpSender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			From:      cfg.From,
			MaxConns:  cfg.SMTP.MaxConns,
			Timeout:   cfg.Timeout,
			VerifyURL: cfg.VerifyURL,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		sender, closer = smtpSender, smtpSender.Close
	case config.NotifyLog:
		sender = notify.NewLogSender(logger)
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("key", "notify.driver").Errorf("unknown notify driver %q", cfg.Driver)
	}

	if cfg.Retries > 0 {
		sender = notify.NewRetrying(sender, cfg.Retries, cfg.RetryBackoff, logger)
	}
	return sender, closer, nil
}
