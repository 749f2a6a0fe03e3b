package policy

import "testing"

func TestAdminish(t *testing.T) {
	cases := []struct {
		role string
		want bool
	}{
		{RoleAdmin, true},
		{RoleSupervisor, true},
		{"Admin", true},
		{" SUPERVISOR ", true},
		{RoleAgent, false},
		{RolePilotTech, false},
		{"", false},
	}
	for _, c := range cases {
		a := Actor{Email: "x@y.test", Role: c.role}
		if got := a.Adminish(); got != c.want {
			t.Errorf("Adminish(%q) = %v, want %v", c.role, got, c.want)
		}
	}
}

func TestPilotTechDeniedDirectAssign(t *testing.T) {
	d := Evaluate(Actor{Email: "pilot@x.test", Role: RolePilotTech}, ActionAssignDirect)
	if d.Allow {
		t.Fatal("pilot tech must not use direct assignment")
	}
	if d.Reason != "pilot_restricted" {
		t.Errorf("reason = %q, want pilot_restricted", d.Reason)
	}
	if d.Message == "" {
		t.Error("denial must carry an operator-facing message")
	}
}

func TestPilotTechAllowedClaimAndHandoff(t *testing.T) {
	pilot := Actor{Email: "pilot@x.test", Role: RolePilotTech}
	for _, action := range []Action{ActionClaim, ActionHandoff, ActionIngest} {
		if d := Evaluate(pilot, action); !d.Allow {
			t.Errorf("Evaluate(pilot, %s) denied: %+v", action, d)
		}
	}
}

func TestAdminishBypassesPilotRestriction(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleSupervisor} {
		d := Evaluate(Actor{Email: "boss@x.test", Role: role}, ActionAssignDirect)
		if !d.Allow {
			t.Errorf("Evaluate(%s, assign.direct) denied: %+v", role, d)
		}
	}
}

func TestAgentAllowedDirectAssign(t *testing.T) {
	d := Evaluate(Actor{Email: "agent@x.test", Role: RoleAgent}, ActionAssignDirect)
	if !d.Allow {
		t.Errorf("agent direct assign denied: %+v", d)
	}
}

func TestSeedIsAdminOnly(t *testing.T) {
	if d := Evaluate(Actor{Role: RoleAgent}, ActionSeed); d.Allow {
		t.Error("agent allowed to seed")
	}
	if d := Evaluate(Actor{Role: RoleAdmin}, ActionSeed); !d.Allow {
		t.Error("admin denied seeding")
	}
}

func TestUnknownActionDenied(t *testing.T) {
	if d := Evaluate(Actor{Role: RoleAgent}, Action("reboot")); d.Allow {
		t.Error("unknown action allowed")
	}
}
