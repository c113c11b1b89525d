// Package permission implements the scope, role and action authorization
// matrix for memory operations.
package permission

import (
	"strconv"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Role is an actor's function within its team.
type Role string

const (
	// RoleControl coordinates a team and may write team memory.
	RoleControl Role = "control"

	// RoleIntelligence curates knowledge and is the only role that may write
	// global memory.
	RoleIntelligence Role = "intelligence"

	// RolePolicy governs team rules and may write team memory.
	RolePolicy Role = "policy"

	// RoleWorker executes tasks and may only write its own agent memory.
	RoleWorker Role = "worker"
)

// Roles lists the known roles.
var Roles = []Role{RoleControl, RoleIntelligence, RolePolicy, RoleWorker}

// ParseRole normalizes a role name. Unknown roles are kept, lower cased, and
// carry no write privileges beyond agent scope.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Action is the kind of access requested.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Actor identifies the caller of a memory operation.
type Actor struct {
	AgentID  string `json:"agent_id"`
	SystemID int    `json:"system_id"`
	TeamID   string `json:"team_id"`
	Role     Role   `json:"role"`
}

// Validate checks that the actor carries an identity.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.AgentID) == "" {
		return memory.Errorf(memory.CodeInvalidParams, "actor agent id is required")
	}
	return nil
}

// String renders the actor for logs.
func (a Actor) String() string {
	return a.AgentID + "@" + a.TeamID + "/" + string(a.Role) + "#" + strconv.Itoa(a.SystemID)
}

// TargetTeam is the team an actor addresses in scope: its own team for
// agent and team scope, none for global scope.
func TargetTeam(actor Actor, scope memory.Scope) string {
	if scope == memory.ScopeGlobal {
		return ""
	}
	return actor.TeamID
}

// Allowed reports whether an actor of actorTeam with role may perform action
// on scope within targetTeam. Unknown scopes and actions are denied.
func Allowed(actorTeam, targetTeam string, role Role, scope memory.Scope, action Action) bool {
	if action != ActionRead && action != ActionWrite {
		return false
	}

	switch scope {
	case memory.ScopeGlobal:
		if action == ActionRead {
			return true
		}
		return role == RoleIntelligence
	case memory.ScopeTeam:
		if targetTeam != actorTeam {
			return false
		}
		if action == ActionRead {
			return true
		}
		return role == RoleControl || role == RoleIntelligence || role == RolePolicy
	case memory.ScopeAgent:
		return targetTeam == actorTeam
	default:
		return false
	}
}

// Authorize returns a FORBIDDEN error unless actor may perform action on
// scope within its target team.
func Authorize(actor Actor, scope memory.Scope, action Action) error {
	if !Allowed(actor.TeamID, TargetTeam(actor, scope), actor.Role, scope, action) {
		return memory.Errorf(memory.CodeForbidden, "role %q may not %s %s memory", actor.Role, action, scope)
	}
	return nil
}

// CheckOwner enforces owner equality for agent-scope entries. Entries in
// other scopes pass.
func CheckOwner(actor Actor, e *memory.Entry) error {
	if e.Scope == memory.ScopeAgent && e.OwnerAgentID != actor.AgentID {
		return memory.Errorf(memory.CodeForbidden, "agent %q does not own entry %s", actor.AgentID, e.ID)
	}
	return nil
}
