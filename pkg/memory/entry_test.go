package memory_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

var _ = Describe("Entry", func() {
	var base memory.Entry

	BeforeEach(func() {
		base = memory.Entry{
			Scope:        memory.ScopeAgent,
			Namespace:    "a1",
			OwnerAgentID: "a1",
			Content:      "hello",
			Priority:     memory.PriorityMedium,
			Layer:        memory.LayerWorking,
			Source:       memory.SourceManual,
			Confidence:   0.9,
			CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	})

	Describe("NewEntry", func() {
		It("fills id, updated_at, version and etag", func() {
			e, err := memory.NewEntry(base)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.ID).NotTo(BeEmpty())
			Expect(e.UpdatedAt).To(Equal(base.CreatedAt))
			Expect(e.Version).To(Equal(1))
			Expect(e.ETag).NotTo(BeEmpty())
		})

		It("keeps a supplied etag", func() {
			base.ETag = "e1"
			e, err := memory.NewEntry(base)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.ETag).To(Equal("e1"))
		})

		It("rejects confidence above one", func() {
			base.Confidence = 1.01
			_, err := memory.NewEntry(base)
			Expect(err).To(MatchError(memory.ErrInvalidParams))
		})

		It("rejects negative confidence", func() {
			base.Confidence = -0.1
			_, err := memory.NewEntry(base)
			Expect(errors.Is(err, memory.ErrInvalidParams)).To(BeTrue())
		})

		It("rejects NaN confidence", func() {
			base.Confidence = math.NaN()
			_, err := memory.NewEntry(base)
			Expect(err).To(MatchError(memory.ErrInvalidParams))
		})

		It("accepts the confidence bounds", func() {
			for _, c := range []float64{0, 1} {
				base.Confidence = c
				_, err := memory.NewEntry(base)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("rejects a version below one", func() {
			base.Version = -1
			_, err := memory.NewEntry(base)
			Expect(err).To(MatchError(memory.ErrInvalidParams))
		})

		It("requires conflict_of on conflict entries", func() {
			base.Conflict = true
			_, err := memory.NewEntry(base)
			Expect(err).To(MatchError(memory.ErrInvalidParams))
		})

		It("normalizes tags", func() {
			base.Tags = []string{"a", " a ", "", "b"}
			e, err := memory.NewEntry(base)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Tags).To(Equal([]string{"a", "b"}))
		})

		It("does not alias the input", func() {
			exp := time.Now()
			base.ExpiresAt = &exp
			base.Tags = []string{"x"}
			e, err := memory.NewEntry(base)
			Expect(err).NotTo(HaveOccurred())
			e.Tags[0] = "y"
			Expect(base.Tags[0]).To(Equal("x"))
			Expect(e.ExpiresAt).NotTo(BeIdenticalTo(base.ExpiresAt))
		})
	})

	Describe("NewETag", func() {
		It("differs between calls", func() {
			e, err := memory.NewEntry(base)
			Expect(err).NotTo(HaveOccurred())
			Expect(memory.NewETag(e)).NotTo(Equal(memory.NewETag(e)))
		})
	})

	Describe("HasTags", func() {
		It("requires every tag", func() {
			e := &memory.Entry{Tags: []string{"a", "b"}}
			Expect(e.HasTags([]string{"b", "a"})).To(BeTrue())
			Expect(e.HasTags([]string{"a", "c"})).To(BeFalse())
			Expect(e.HasTags(nil)).To(BeTrue())
		})
	})

	Describe("Expired", func() {
		It("treats expiry at now as expired", func() {
			now := time.Now()
			e := &memory.Entry{ExpiresAt: &now}
			Expect(e.Expired(now)).To(BeTrue())
			Expect(e.Expired(now.Add(-time.Second))).To(BeFalse())
			Expect((&memory.Entry{}).Expired(now)).To(BeFalse())
		})
	})

	Describe("parsing enums", func() {
		It("is case-insensitive", func() {
			s, err := memory.ParseScope("AGENT")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(memory.ScopeAgent))

			p, err := memory.ParsePriority("High")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(memory.PriorityHigh))

			l, err := memory.ParseLayer("LONG_TERM")
			Expect(err).NotTo(HaveOccurred())
			Expect(l).To(Equal(memory.LayerLongTerm))

			src, err := memory.ParseSource("Reflection")
			Expect(err).NotTo(HaveOccurred())
			Expect(src).To(Equal(memory.SourceReflection))
		})

		It("rejects unknown values", func() {
			_, err := memory.ParseScope("planet")
			Expect(err).To(MatchError(memory.ErrInvalidParams))
		})
	})
})

var _ = Describe("Error", func() {
	It("maps codes", func() {
		Expect(memory.CodeOf(memory.NotFoundError("x", memory.ScopeTeam, "ns"))).To(Equal(memory.CodeNotFound))
		Expect(memory.CodeOf(errors.New("boom"))).To(Equal(memory.CodeInternal))
		Expect(memory.CodeOf(nil)).To(BeEmpty())
	})

	It("matches sentinels by code", func() {
		err := memory.ConflictError("a", "b")
		Expect(errors.Is(err, memory.ErrConflict)).To(BeTrue())
		Expect(errors.Is(err, memory.ErrNotFound)).To(BeFalse())
		Expect(err.Details).To(HaveKeyWithValue("conflict_of", "a"))
		Expect(err.Details).To(HaveKeyWithValue("conflict_entry", "b"))
	})

	It("distinguishes invalid cursors from other invalid params", func() {
		Expect(errors.Is(memory.Errorf(memory.CodeInvalidParams, "limit"), memory.ErrInvalidCursor)).To(BeFalse())
		_, err := memory.ParseCursor("page:1")
		Expect(errors.Is(err, memory.ErrInvalidCursor)).To(BeTrue())
		Expect(errors.Is(err, memory.ErrInvalidParams)).To(BeTrue())
	})
})
