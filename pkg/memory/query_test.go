package memory_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

func entryAt(id, content string, created time.Time, tags ...string) *memory.Entry {
	return &memory.Entry{
		ID:           id,
		Scope:        memory.ScopeTeam,
		Namespace:    "ops",
		OwnerAgentID: "a1",
		Content:      content,
		Tags:         tags,
		Priority:     memory.PriorityMedium,
		Layer:        memory.LayerWorking,
		CreatedAt:    created,
		UpdatedAt:    created,
		Source:       memory.SourceManual,
		Confidence:   0.5,
		Version:      1,
		ETag:         "etag-" + id,
	}
}

var _ = Describe("Cursor", func() {
	It("round trips through the wire form", func() {
		c, err := memory.ParseCursor("offset:42")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Offset).To(Equal(42))
		Expect(c.String()).To(Equal("offset:42"))
	})

	It("treats an empty token as the start", func() {
		c, err := memory.ParseCursor("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(memory.Cursor{}))
	})

	DescribeTable("rejects malformed tokens",
		func(token string) {
			_, err := memory.ParseCursor(token)
			Expect(err).To(MatchError(memory.ErrInvalidCursor))
		},
		Entry("unknown prefix", "page:1"),
		Entry("negative offset", "offset:-1"),
		Entry("non numeric offset", "offset:abc"),
		Entry("bare number", "12"),
	)
})

var _ = Describe("ListResult", func() {
	It("rejects has_more without a cursor", func() {
		_, err := memory.NewListResult(nil, nil, true)
		Expect(err).To(MatchError(memory.ErrInvalidParams))
	})

	It("accepts a final page", func() {
		r, err := memory.NewListResult(nil, nil, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Entries).To(BeEmpty())
	})

	It("renders the wire form", func() {
		next := memory.Cursor{Offset: 2}
		r, err := memory.NewListResult(nil, &next, true)
		Expect(err).NotTo(HaveOccurred())
		data, err := r.MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"items":[],"next_cursor":"offset:2","has_more":true}`))
	})
})

var _ = Describe("Paginate", func() {
	var entries []*memory.Entry

	BeforeEach(func() {
		entries = nil
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range 7 {
			entries = append(entries, entryAt(fmt.Sprintf("e%d", i), "x", start.Add(time.Duration(i)*time.Minute)))
		}
	})

	It("visits every entry exactly once", func() {
		seen := map[string]int{}
		cursor := memory.Cursor{}
		for {
			page := memory.Paginate(entries, cursor, 3)
			for _, e := range page.Entries {
				seen[e.ID]++
			}
			if !page.HasMore {
				Expect(page.NextCursor).To(BeNil())
				break
			}
			Expect(page.NextCursor).NotTo(BeNil())
			cursor = *page.NextCursor
		}
		Expect(seen).To(HaveLen(7))
		for _, n := range seen {
			Expect(n).To(Equal(1))
		}
	})

	It("returns an empty page past the end", func() {
		page := memory.Paginate(entries, memory.Cursor{Offset: 100}, 3)
		Expect(page.Entries).To(BeEmpty())
		Expect(page.HasMore).To(BeFalse())
	})
})

var _ = Describe("Rank", func() {
	var (
		start time.Time
		q     memory.Query
	)

	BeforeEach(func() {
		start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		q = memory.Query{Scope: memory.ScopeTeam, Namespace: "ops"}
	})

	It("orders plain listings by creation time", func() {
		ranked := memory.Rank([]*memory.Entry{
			entryAt("b", "two", start.Add(time.Hour)),
			entryAt("a", "one", start),
		}, q)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].ID).To(Equal("a"))
		Expect(ranked[1].ID).To(Equal("b"))
	})

	It("applies tag subset filters", func() {
		ranked := memory.Rank([]*memory.Entry{
			entryAt("a", "one", start, "x", "y"),
			entryAt("b", "two", start, "x"),
		}, memory.Query{Scope: memory.ScopeTeam, Namespace: "ops", Tags: []string{"y", "x"}})
		Expect(ranked).To(HaveLen(1))
		Expect(ranked[0].ID).To(Equal("a"))
	})

	It("applies layer and owner filters", func() {
		other := entryAt("b", "two", start)
		other.Layer = memory.LayerMeta
		other.OwnerAgentID = "a2"
		q.Layer = memory.LayerMeta
		q.Owner = "a2"
		ranked := memory.Rank([]*memory.Entry{entryAt("a", "one", start), other}, q)
		Expect(ranked).To(ConsistOf(other))
	})

	It("scores token hits and breaks ties by recency", func() {
		older := entryAt("old", "deploy the api service", start)
		newer := entryAt("new", "deploy the web service", start.Add(time.Hour))
		newer.UpdatedAt = start.Add(2 * time.Hour)
		miss := entryAt("miss", "unrelated", start)

		q.Text = "deploy service"
		ranked := memory.Rank([]*memory.Entry{older, miss, newer}, q)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].ID).To(Equal("new"))
		Expect(ranked[1].ID).To(Equal("old"))
	})

	It("matches tokens in tags case-insensitively", func() {
		q.Text = "KUBERNETES"
		ranked := memory.Rank([]*memory.Entry{entryAt("a", "cluster notes", start, "kubernetes")}, q)
		Expect(ranked).To(HaveLen(1))
	})

	It("rewards near-identical content", func() {
		exact := entryAt("exact", "rotate keys", start)
		partial := entryAt("partial", "rotate the signing keys on friday afternoon", start.Add(time.Hour))
		q.Text = "rotate keys"
		ranked := memory.Rank([]*memory.Entry{partial, exact}, q)
		Expect(ranked[0].ID).To(Equal("exact"))
		Expect(memory.Score([]string{"rotate", "keys"}, "rotate keys", exact)).To(Equal(4))
	})
})
