package sqlitevec_test

import (
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/sqlitevec"
)

func doc(id, ns string, v float32) vector.Document {
	return vector.Document{
		ID:        "team/" + ns + "/" + id,
		EntryID:   id,
		Scope:     "team",
		Namespace: ns,
		Embedding: []float32{v, v, v, v},
	}
}

var _ = Describe("Driver", func() {
	var (
		logger *slog.Logger
		driver *sqlitevec.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		logger = slog.New(slog.DiscardHandler)
		ctx = context.Background()
	})

	newDriver := func() *sqlitevec.Driver {
		d, err := sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 4,
		}, logger)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger)
			Expect(err).To(MatchError(vector.ErrDimensions))
		})

		It("should create a driver with an in-memory database", func() {
			d := newDriver()
			Expect(d.Close()).To(Succeed())
		})
	})

	Describe("Add and Get", func() {
		BeforeEach(func() {
			driver = newDriver()
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given empty docs", func() {
			Expect(driver.Add(ctx, []vector.Document{})).To(Succeed())
		})

		It("should store partition metadata and embeddings", func() {
			d := vector.Document{
				ID:        "team/ops/a",
				EntryID:   "a",
				Scope:     "team",
				Namespace: "ops",
				Embedding: []float32{0.1, 0.2, 0.3, 0.4},
			}
			Expect(driver.Add(ctx, []vector.Document{d})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"team/ops/a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].EntryID).To(Equal("a"))
			Expect(docs[0].Scope).To(Equal("team"))
			Expect(docs[0].Namespace).To(Equal("ops"))
			Expect(docs[0].Embedding).To(HaveLen(4))
			Expect(docs[0].Embedding[1]).To(BeNumerically("~", 0.2, 0.001))
		})

		It("should update an existing document", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("a", "ops", 0.1)})).To(Succeed())
			Expect(driver.Add(ctx, []vector.Document{doc("a", "ops", 0.9)})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"team/ops/a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Embedding[0]).To(BeNumerically("~", 0.9, 0.001))
		})

		It("should return nil for empty IDs and skip unknown ones", func() {
			docs, err := driver.Get(ctx, []string{})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeNil())

			Expect(driver.Add(ctx, []vector.Document{doc("a", "ops", 0.1)})).To(Succeed())
			docs, err = driver.Get(ctx, []string{"team/ops/a", "nonexistent"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			driver = newDriver()
			Expect(driver.Add(ctx, []vector.Document{
				doc("1", "ops", 0.1),
				doc("2", "ops", 0.2),
				doc("3", "ops", 0.3),
				doc("4", "dev", 0.3),
				doc("5", "ops", 0.5),
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should return the closest documents across partitions without a filter", func() {
			results, err := driver.Query(ctx, []float32{0.3, 0.3, 0.3, 0.3}, 2, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect([]string{results[0].EntryID, results[1].EntryID}).To(ConsistOf("3", "4"))
		})

		It("should restrict results to the filtered partition", func() {
			results, err := driver.Query(ctx, []float32{0.3, 0.3, 0.3, 0.3}, 10, vector.Filter{
				Scope:     "team",
				Namespace: "ops",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
			Expect(results[0].EntryID).To(Equal("3"))
			for _, r := range results {
				Expect(r.Namespace).To(Equal("ops"))
			}
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
		})

		It("should default topK to 10 when zero or negative", func() {
			results, err := driver.Query(ctx, []float32{0.3, 0.3, 0.3, 0.3}, 0, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(5))
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			driver = newDriver()
			Expect(driver.Add(ctx, []vector.Document{
				doc("1", "ops", 0.1),
				doc("2", "ops", 0.2),
				doc("3", "ops", 0.3),
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given empty IDs", func() {
			Expect(driver.Delete(ctx, []string{})).To(Succeed())
		})

		It("should not error when deleting non-existent IDs", func() {
			Expect(driver.Delete(ctx, []string{"nonexistent"})).To(Succeed())
		})

		It("should remove documents from query results after deletion", func() {
			Expect(driver.Delete(ctx, []string{"team/ops/3"})).To(Succeed())

			results, err := driver.Query(ctx, []float32{0.3, 0.3, 0.3, 0.3}, 10, vector.Filter{Scope: "team", Namespace: "ops"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.EntryID).NotTo(Equal("3"))
			}

			docs, err := driver.Get(ctx, []string{"team/ops/1", "team/ops/2", "team/ops/3"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})
	})
})
