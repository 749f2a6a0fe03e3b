// Package policy is the single permission gate consulted by every mutating
// RPC entry point. It returns allow/deny plus a reason instead of scattering
// role lookups across handlers.
package policy

import "strings"

// Roles
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RolePilotTech  = "pilot_tech"
)

// Actions evaluated by the gate.
type Action string

const (
	ActionAssignDirect Action = "assign.direct" // add/remove/remove_multiple/close_all
	ActionClaim        Action = "claim"
	ActionHandoff      Action = "handoff"
	ActionIngest       Action = "ingest"
	ActionSeed         Action = "seed"
)

// Actor is the authenticated caller.
type Actor struct {
	Email string
	Role  string
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allow   bool
	Reason  string
	Message string
}

// Adminish reports whether the actor holds an elevated role. Adminish actors
// bypass the pilot restriction and may hand off any ticket, which is the
// anti-lockout safety valve.
func (a Actor) Adminish() bool {
	switch strings.ToLower(strings.TrimSpace(a.Role)) {
	case RoleAdmin, RoleSupervisor:
		return true
	}
	return false
}

// IsPilotTech reports whether the actor is under the pilot restriction.
// Kept narrowly scoped: only the pilot tech role is blocked.
func (a Actor) IsPilotTech() bool {
	return strings.ToLower(strings.TrimSpace(a.Role)) == RolePilotTech
}

// Evaluate decides whether the actor may perform the action. Ownership rules
// (e.g. "only the current owner may hand off") stay with the data layer;
// this gate covers role policy only.
func Evaluate(a Actor, action Action) Decision {
	if a.Adminish() {
		return Decision{Allow: true}
	}

	switch action {
	case ActionAssignDirect:
		if a.IsPilotTech() {
			return Decision{
				Allow:   false,
				Reason:  "pilot_restricted",
				Message: "Pilot: direct Assign/Unassign is disabled. Use Claim / Handoff.",
			}
		}
		return Decision{Allow: true}
	case ActionClaim, ActionHandoff, ActionIngest:
		return Decision{Allow: true}
	case ActionSeed:
		return Decision{
			Allow:   false,
			Reason:  "admin_only",
			Message: "Seeding requires an admin role.",
		}
	}
	return Decision{Allow: false, Reason: "unknown_action", Message: "Unknown action."}
}
