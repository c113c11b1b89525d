package prune_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/prune"
	"github.com/papercomputeco/mnemo/pkg/registry"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("Pruner", func() {
	var (
		ctx   context.Context
		store *sqlite.Store
		reg   *registry.Registry
		sink  *testutils.RecordingSink
		now   time.Time
		owner permission.Actor
	)

	add := func(id string, prio memory.Priority, created time.Time, expires *time.Time) {
		e := testutils.NewTestEntry(memory.ScopeAgent, "agent-1", id, "content "+id)
		e.Priority = prio
		e.CreatedAt = created
		e.UpdatedAt = created
		e.ExpiresAt = expires
		_, err := store.Add(ctx, e)
		Expect(err).NotTo(HaveOccurred())
	}

	newPruner := func(max int) *prune.Pruner {
		p, err := prune.New(prune.Config{
			Registry:   reg,
			MaxEntries: max,
			Audit:      sink,
			Now:        func() time.Time { return now },
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	remainingIDs := func() []string {
		entries, err := memory.CollectList(ctx, store, memory.ScopeAgent, "agent-1", 0, "")
		Expect(err).NotTo(HaveOccurred())
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		return ids
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		owner = permission.Actor{AgentID: "agent-1", TeamID: "t", Role: permission.RoleWorker}

		var err error
		store, err = sqlite.NewStore(ctx, ":memory:", nil)
		Expect(err).NotTo(HaveOccurred())

		reg, err = registry.New(map[memory.Scope]memory.Store{
			memory.ScopeAgent: store,
			memory.ScopeTeam:  store,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(reg.Close()).To(Succeed()) })

		sink = testutils.NewRecordingSink()
	})

	It("deletes expired entries", func() {
		past := now.Add(-time.Minute)
		future := now.Add(time.Hour)
		add("expired", memory.PriorityHigh, now.Add(-time.Hour), &past)
		add("at-now", memory.PriorityHigh, now.Add(-time.Hour), &now)
		add("fresh", memory.PriorityLow, now.Add(-time.Hour), &future)
		add("forever", memory.PriorityLow, now.Add(-time.Hour), nil)

		deleted, err := newPruner(10).Prune(ctx, owner, memory.ScopeAgent, "agent-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(ConsistOf("expired", "at-now"))
		Expect(remainingIDs()).To(ConsistOf("fresh", "forever"))
	})

	It("evicts low priority, then oldest, entries beyond the bound", func() {
		base := now.Add(-24 * time.Hour)
		add("high-old", memory.PriorityHigh, base, nil)
		add("low-new", memory.PriorityLow, base.Add(3*time.Hour), nil)
		add("low-old", memory.PriorityLow, base.Add(time.Hour), nil)
		add("medium", memory.PriorityMedium, base, nil)

		deleted, err := newPruner(2).Prune(ctx, owner, memory.ScopeAgent, "agent-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(Equal([]string{"low-old", "low-new"}))
		Expect(remainingIDs()).To(ConsistOf("high-old", "medium"))
	})

	It("leaves no expired entries and at most the bound", func() {
		for i := range 30 {
			var exp *time.Time
			if i%4 == 0 {
				t := now.Add(-time.Duration(i) * time.Second)
				exp = &t
			}
			prio := []memory.Priority{memory.PriorityLow, memory.PriorityMedium, memory.PriorityHigh}[i%3]
			add(fmt.Sprintf("e-%02d", i), prio, now.Add(-time.Duration(i)*time.Minute), exp)
		}

		_, err := newPruner(12).Prune(ctx, owner, memory.ScopeAgent, "agent-1")
		Expect(err).NotTo(HaveOccurred())

		entries, err := memory.CollectList(ctx, store, memory.ScopeAgent, "agent-1", 0, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(len(entries)).To(BeNumerically("<=", 12))
		for _, e := range entries {
			Expect(e.Expired(now)).To(BeFalse())
		}
	})

	It("only touches the actor's own agent entries", func() {
		past := now.Add(-time.Minute)
		add("mine", memory.PriorityLow, now, &past)

		other := permission.Actor{AgentID: "agent-2", TeamID: "t", Role: permission.RoleWorker}
		deleted, err := newPruner(10).Prune(ctx, other, memory.ScopeAgent, "agent-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeEmpty())
		Expect(remainingIDs()).To(ConsistOf("mine"))
	})

	It("requires write permission", func() {
		_, err := newPruner(10).Prune(ctx, owner, memory.ScopeTeam, "t")
		Expect(memory.CodeOf(err)).To(Equal(memory.CodeForbidden))
	})

	It("emits a prune audit event", func() {
		past := now.Add(-time.Minute)
		add("gone", memory.PriorityLow, now, &past)

		_, err := newPruner(10).Prune(ctx, owner, "", "")
		Expect(err).NotTo(HaveOccurred())

		events := sink.Events()
		Expect(events).To(HaveLen(1))
		Expect(events[0].Action).To(Equal(audit.ActionPrune))
		Expect(events[0].Details).To(HaveKeyWithValue("deleted", 1))
	})
})

var _ = Describe("SortForEviction", func() {
	It("orders by priority, then age", func() {
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		mk := func(id string, p memory.Priority, created time.Time) *memory.Entry {
			e := testutils.NewTestEntry(memory.ScopeAgent, "a", id, id)
			e.Priority = p
			e.CreatedAt = created
			return e
		}

		entries := []*memory.Entry{
			mk("h", memory.PriorityHigh, t0),
			mk("m", memory.PriorityMedium, t0),
			mk("l2", memory.PriorityLow, t0.Add(time.Hour)),
			mk("l1", memory.PriorityLow, t0),
		}
		prune.SortForEviction(entries)

		ids := []string{}
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		Expect(ids).To(Equal([]string{"l1", "l2", "m", "h"}))
	})
})
