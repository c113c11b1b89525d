package sqlstore_test

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlstore"
	"github.com/papercomputeco/mnemo/pkg/storage/storagetest"
)

var _ = Describe("Store", func() {
	var (
		ctx context.Context
		db  *sql.DB
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())
		db.SetMaxOpenConns(1)
	})

	AfterEach(func() {
		db.Close()
	})

	It("requires a database handle", func() {
		_, err := sqlstore.New(ctx, nil, sqlstore.DialectSQLite, nil)
		Expect(err).To(HaveOccurred())
	})

	It("migrates idempotently", func() {
		_, err := sqlstore.New(ctx, db, sqlstore.DialectSQLite, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = sqlstore.New(ctx, db, sqlstore.DialectSQLite, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns the rest of the partition when listing without a limit", func() {
		s, err := sqlstore.New(ctx, db, sqlstore.DialectSQLite, nil)
		Expect(err).NotTo(HaveOccurred())

		for i, id := range []string{"a", "b", "c", "d"} {
			_, err := s.Add(ctx, storagetest.NewEntry(id, "x", i))
			Expect(err).NotTo(HaveOccurred())
		}

		page, err := s.List(ctx, memory.ScopeTeam, "ops", 0, memory.Cursor{Offset: 1}, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(page.HasMore).To(BeFalse())
		Expect(page.Entries).To(HaveLen(3))
		Expect(page.Entries[0].ID).To(Equal("b"))
	})

	It("restricts queries to a layer", func() {
		s, err := sqlstore.New(ctx, db, sqlstore.DialectSQLite, nil)
		Expect(err).NotTo(HaveOccurred())

		working := storagetest.NewEntry("w", "scratch", 0)
		working.Layer = memory.LayerWorking
		_, err = s.Add(ctx, working)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Add(ctx, storagetest.NewEntry("l", "durable", 1))
		Expect(err).NotTo(HaveOccurred())

		page, err := s.Query(ctx, memory.Query{
			Scope:     memory.ScopeTeam,
			Namespace: "ops",
			Layer:     memory.LayerWorking,
			Limit:     10,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Entries).To(HaveLen(1))
		Expect(page.Entries[0].ID).To(Equal("w"))
	})
})
