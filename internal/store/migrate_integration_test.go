// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/enrollkit/enroll/internal/store"
)

var _ = Describe("Migrator", func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("enroll_test"),
			postgres.WithUsername("enroll"),
			postgres.WithPassword("enroll"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(migrator.Close()).To(Succeed())
		Expect(container.Terminate(ctx)).To(Succeed())
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("migrates up to the latest version and back down", func() {
		latest, err := store.LatestVersion()
		Expect(err).NotTo(HaveOccurred())

		Expect(migrator.Up()).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest))
		Expect(dirty).To(BeFalse())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Down()).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})

	It("enforces lower-case unique emails once migrated", func() {
		Expect(migrator.Up()).To(Succeed())

		pool, err := store.OpenPool(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		insert := `INSERT INTO accounts (id, email, credential_digest) VALUES ($1, $2, 'digest')`
		_, err = pool.Exec(ctx, insert, "01J0000000000000000000000A", "a@example.com")
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, insert, "01J0000000000000000000000B", "a@example.com")
		Expect(err).To(HaveOccurred())

		_, err = pool.Exec(ctx, insert, "01J0000000000000000000000C", "Upper@example.com")
		Expect(err).To(HaveOccurred())
	})
})
