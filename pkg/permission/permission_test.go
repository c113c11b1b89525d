package permission_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
)

var _ = Describe("Allowed", func() {
	type row struct {
		scope  memory.Scope
		action permission.Action
		role   permission.Role
		want   bool
	}

	var matrix []TableEntry
	for _, r := range []row{
		{memory.ScopeGlobal, permission.ActionRead, permission.RoleControl, true},
		{memory.ScopeGlobal, permission.ActionRead, permission.RoleIntelligence, true},
		{memory.ScopeGlobal, permission.ActionRead, permission.RolePolicy, true},
		{memory.ScopeGlobal, permission.ActionRead, permission.RoleWorker, true},
		{memory.ScopeGlobal, permission.ActionWrite, permission.RoleControl, false},
		{memory.ScopeGlobal, permission.ActionWrite, permission.RoleIntelligence, true},
		{memory.ScopeGlobal, permission.ActionWrite, permission.RolePolicy, false},
		{memory.ScopeGlobal, permission.ActionWrite, permission.RoleWorker, false},
		{memory.ScopeTeam, permission.ActionRead, permission.RoleControl, true},
		{memory.ScopeTeam, permission.ActionRead, permission.RoleIntelligence, true},
		{memory.ScopeTeam, permission.ActionRead, permission.RolePolicy, true},
		{memory.ScopeTeam, permission.ActionRead, permission.RoleWorker, true},
		{memory.ScopeTeam, permission.ActionWrite, permission.RoleControl, true},
		{memory.ScopeTeam, permission.ActionWrite, permission.RoleIntelligence, true},
		{memory.ScopeTeam, permission.ActionWrite, permission.RolePolicy, true},
		{memory.ScopeTeam, permission.ActionWrite, permission.RoleWorker, false},
		{memory.ScopeAgent, permission.ActionRead, permission.RoleControl, true},
		{memory.ScopeAgent, permission.ActionRead, permission.RoleWorker, true},
		{memory.ScopeAgent, permission.ActionWrite, permission.RoleIntelligence, true},
		{memory.ScopeAgent, permission.ActionWrite, permission.RoleWorker, true},
	} {
		matrix = append(matrix, Entry(
			string(r.scope)+" "+string(r.action)+" as "+string(r.role),
			r.scope, r.action, r.role, r.want,
		))
	}

	DescribeTable("same-team matrix",
		func(scope memory.Scope, action permission.Action, role permission.Role, want bool) {
			target := "1"
			if scope == memory.ScopeGlobal {
				target = ""
			}
			Expect(permission.Allowed("1", target, role, scope, action)).To(Equal(want))
		},
		matrix,
	)

	It("denies cross-team team and agent access for every role and action", func() {
		for _, role := range permission.Roles {
			for _, action := range []permission.Action{permission.ActionRead, permission.ActionWrite} {
				Expect(permission.Allowed("1", "2", role, memory.ScopeTeam, action)).To(BeFalse())
				Expect(permission.Allowed("1", "2", role, memory.ScopeAgent, action)).To(BeFalse())
			}
		}
	})

	It("fails closed for unknown scopes and actions", func() {
		Expect(permission.Allowed("1", "1", permission.RoleIntelligence, memory.Scope("system"), permission.ActionRead)).To(BeFalse())
		Expect(permission.Allowed("1", "1", permission.RoleIntelligence, memory.ScopeTeam, permission.Action("admin"))).To(BeFalse())
	})
})

var _ = Describe("Authorize", func() {
	It("returns FORBIDDEN when denied", func() {
		actor := permission.Actor{AgentID: "a1", TeamID: "1", Role: permission.RoleWorker}
		Expect(permission.Authorize(actor, memory.ScopeTeam, permission.ActionRead)).To(Succeed())
		Expect(permission.Authorize(actor, memory.ScopeTeam, permission.ActionWrite)).To(MatchError(memory.ErrForbidden))
		Expect(permission.Authorize(actor, memory.ScopeGlobal, permission.ActionWrite)).To(MatchError(memory.ErrForbidden))
	})
})

var _ = Describe("CheckOwner", func() {
	It("enforces ownership on agent scope only", func() {
		actor := permission.Actor{AgentID: "a2", TeamID: "1", Role: permission.RoleControl}

		agentEntry := &memory.Entry{ID: "x", Scope: memory.ScopeAgent, OwnerAgentID: "a1"}
		Expect(permission.CheckOwner(actor, agentEntry)).To(MatchError(memory.ErrForbidden))

		teamEntry := &memory.Entry{ID: "y", Scope: memory.ScopeTeam, OwnerAgentID: "a1"}
		Expect(permission.CheckOwner(actor, teamEntry)).To(Succeed())
	})
})

var _ = Describe("Actor", func() {
	It("requires an agent id", func() {
		Expect(permission.Actor{}.Validate()).To(MatchError(memory.ErrInvalidParams))
		Expect(permission.Actor{AgentID: "a1"}.Validate()).To(Succeed())
	})

	It("parses roles case-insensitively", func() {
		Expect(permission.ParseRole(" Intelligence ")).To(Equal(permission.RoleIntelligence))
	})
})
