// Package storagetest holds the shared behavioural tests every memory.Store
// backend must satisfy.
package storagetest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Options tunes the shared tests for a backend.
type Options struct {
	// SupportsUpdate is false for backends whose Update returns
	// NOT_IMPLEMENTED.
	SupportsUpdate bool
}

// base is the creation time of fixture entries.
var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewEntry builds a valid team/ops entry created offset minutes after base.
func NewEntry(id, content string, offset int, tags ...string) *memory.Entry {
	e, err := memory.NewEntry(memory.Entry{
		ID:           id,
		Scope:        memory.ScopeTeam,
		Namespace:    "ops",
		OwnerAgentID: "agent-1",
		Content:      content,
		Tags:         tags,
		Priority:     memory.PriorityMedium,
		Layer:        memory.LayerLongTerm,
		CreatedAt:    base.Add(time.Duration(offset) * time.Minute),
		Source:       memory.SourceManual,
		Confidence:   1,
	})
	Expect(err).NotTo(HaveOccurred())
	return e
}

// DescribeStore registers the shared store contract tests. newStore is called before
// each test and the returned store is closed after it.
func DescribeStore(name string, newStore func() memory.Store, opts Options) bool {
	return Describe(name+" store contract", func() {
		var (
			store memory.Store
			ctx   context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			store = newStore()
		})

		AfterEach(func() {
			if store != nil {
				Expect(store.Close()).To(Succeed())
			}
		})

		Describe("Add and Get", func() {
			It("round trips every field", func() {
				e := NewEntry("a", "rotate keys weekly", 0, "security", "ops")
				expires := base.Add(48 * time.Hour)
				e.ExpiresAt = &expires

				_, err := store.Add(ctx, e)
				Expect(err).NotTo(HaveOccurred())

				got, err := store.Get(ctx, "a", memory.ScopeTeam, "ops")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Content).To(Equal("rotate keys weekly"))
				Expect(got.Tags).To(Equal([]string{"security", "ops"}))
				Expect(got.OwnerAgentID).To(Equal("agent-1"))
				Expect(got.Priority).To(Equal(memory.PriorityMedium))
				Expect(got.Layer).To(Equal(memory.LayerLongTerm))
				Expect(got.Source).To(Equal(memory.SourceManual))
				Expect(got.Version).To(Equal(1))
				Expect(got.ETag).To(Equal(e.ETag))
				Expect(got.CreatedAt.Equal(e.CreatedAt)).To(BeTrue())
				Expect(got.UpdatedAt.Equal(e.UpdatedAt)).To(BeTrue())
				Expect(got.ExpiresAt).NotTo(BeNil())
				Expect(got.ExpiresAt.Equal(expires)).To(BeTrue())
				Expect(got.Conflict).To(BeFalse())
			})

			It("persists conflict markers", func() {
				e := NewEntry("fork", "alt", 0)
				e.Conflict = true
				e.ConflictOf = "a"

				_, err := store.Add(ctx, e)
				Expect(err).NotTo(HaveOccurred())

				got, err := store.Get(ctx, "fork", memory.ScopeTeam, "ops")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Conflict).To(BeTrue())
				Expect(got.ConflictOf).To(Equal("a"))
			})

			It("replaces an entry with the same id", func() {
				_, err := store.Add(ctx, NewEntry("a", "first", 0))
				Expect(err).NotTo(HaveOccurred())
				_, err = store.Add(ctx, NewEntry("a", "second", 1))
				Expect(err).NotTo(HaveOccurred())

				got, err := store.Get(ctx, "a", memory.ScopeTeam, "ops")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Content).To(Equal("second"))
			})

			It("isolates partitions", func() {
				_, err := store.Add(ctx, NewEntry("a", "team entry", 0))
				Expect(err).NotTo(HaveOccurred())

				_, err = store.Get(ctx, "a", memory.ScopeTeam, "other")
				Expect(err).To(MatchError(memory.ErrNotFound))
				_, err = store.Get(ctx, "a", memory.ScopeGlobal, "ops")
				Expect(err).To(MatchError(memory.ErrNotFound))
			})

			It("rejects invalid entries", func() {
				e := NewEntry("a", "x", 0)
				e.Confidence = 2

				_, err := store.Add(ctx, e)
				Expect(err).To(MatchError(memory.ErrInvalidParams))
			})
		})

		Describe("Update", func() {
			It("replaces an existing entry or reports NOT_IMPLEMENTED", func() {
				e := NewEntry("a", "first", 0)
				_, err := store.Add(ctx, e)
				Expect(err).NotTo(HaveOccurred())

				next := e.Clone()
				next.Content = "second"
				next.Version = 2
				next.UpdatedAt = base.Add(time.Hour)
				next.ETag = memory.NewETag(next)

				_, err = store.Update(ctx, next)
				if !opts.SupportsUpdate {
					Expect(err).To(MatchError(memory.ErrNotImplemented))
					return
				}
				Expect(err).NotTo(HaveOccurred())

				got, err := store.Get(ctx, "a", memory.ScopeTeam, "ops")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Content).To(Equal("second"))
				Expect(got.Version).To(Equal(2))
				Expect(got.ETag).To(Equal(next.ETag))
			})

			It("fails for a missing entry", func() {
				if !opts.SupportsUpdate {
					Skip("backend does not support in-place update")
				}
				_, err := store.Update(ctx, NewEntry("ghost", "x", 0))
				Expect(err).To(MatchError(memory.ErrNotFound))
			})
		})

		Describe("Delete", func() {
			It("reports whether the entry existed", func() {
				_, err := store.Add(ctx, NewEntry("a", "x", 0))
				Expect(err).NotTo(HaveOccurred())

				ok, err := store.Delete(ctx, "a", memory.ScopeTeam, "ops")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())

				ok, err = store.Delete(ctx, "a", memory.ScopeTeam, "ops")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
			})
		})

		Describe("List", func() {
			BeforeEach(func() {
				for i := range 7 {
					e := NewEntry(fmt.Sprintf("e%d", i), fmt.Sprintf("entry %d", i), 6-i)
					if i%2 == 0 {
						e.OwnerAgentID = "agent-2"
					}
					_, err := store.Add(ctx, e)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("pages through every entry in creation order exactly once", func() {
				var (
					seen   []string
					cursor memory.Cursor
				)
				for {
					page, err := store.List(ctx, memory.ScopeTeam, "ops", 3, cursor, "")
					Expect(err).NotTo(HaveOccurred())
					Expect(len(page.Entries)).To(BeNumerically("<=", 3))
					for _, e := range page.Entries {
						seen = append(seen, e.ID)
					}
					if !page.HasMore {
						Expect(page.NextCursor).To(BeNil())
						break
					}
					Expect(page.NextCursor).NotTo(BeNil())
					cursor = *page.NextCursor
				}

				Expect(seen).To(Equal([]string{"e6", "e5", "e4", "e3", "e2", "e1", "e0"}))
			})

			It("filters by owner", func() {
				page, err := store.List(ctx, memory.ScopeTeam, "ops", 10, memory.Cursor{}, "agent-2")
				Expect(err).NotTo(HaveOccurred())
				Expect(page.Entries).To(HaveLen(4))
				for _, e := range page.Entries {
					Expect(e.OwnerAgentID).To(Equal("agent-2"))
				}
				Expect(page.HasMore).To(BeFalse())
			})

			It("returns an empty page past the end", func() {
				page, err := store.List(ctx, memory.ScopeTeam, "ops", 3, memory.Cursor{Offset: 50}, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(page.Entries).To(BeEmpty())
				Expect(page.HasMore).To(BeFalse())
			})
		})

		Describe("Query", func() {
			BeforeEach(func() {
				fixtures := []*memory.Entry{
					NewEntry("k1", "rotate the api keys every week", 0, "security"),
					NewEntry("k2", "deploy window is friday", 1, "release"),
					NewEntry("k3", "keys live in the vault", 2, "security"),
				}
				for _, e := range fixtures {
					_, err := store.Add(ctx, e)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("ranks by token matches and drops non-matching entries", func() {
				page, err := store.Query(ctx, memory.Query{
					Scope:     memory.ScopeTeam,
					Namespace: "ops",
					Text:      "rotate keys",
					Limit:     10,
				})
				Expect(err).NotTo(HaveOccurred())

				ids := make([]string, 0, len(page.Entries))
				for _, e := range page.Entries {
					ids = append(ids, e.ID)
				}
				Expect(ids).To(Equal([]string{"k1", "k3"}))
			})

			It("requires every tag", func() {
				page, err := store.Query(ctx, memory.Query{
					Scope:     memory.ScopeTeam,
					Namespace: "ops",
					Tags:      []string{"security"},
					Limit:     10,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(page.Entries).To(HaveLen(2))
				Expect(page.Entries[0].ID).To(Equal("k1"))
				Expect(page.Entries[1].ID).To(Equal("k3"))
			})

			It("lists in creation order without text", func() {
				page, err := store.Query(ctx, memory.Query{
					Scope:     memory.ScopeTeam,
					Namespace: "ops",
					Limit:     2,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(page.Entries).To(HaveLen(2))
				Expect(page.Entries[0].ID).To(Equal("k1"))
				Expect(page.HasMore).To(BeTrue())
				Expect(page.NextCursor.Offset).To(Equal(2))
			})
		})
	})
}
