package intake

import (
	"encoding/json"
	"testing"
)

func TestValidateIngestPayload(t *testing.T) {
	cases := []struct {
		name      string
		payload   string
		wantIssue bool
	}{
		{"valid minimal", `{"sender":"jdoe@acme.test"}`, false},
		{"valid full", `{"account":"support@acme.test","sender":"jdoe@acme.test","subject":"Help","body":"text","ticket_id":"tkt_1"}`, false},
		{"missing sender", `{"subject":"Help"}`, true},
		{"sender without at-sign", `{"sender":"not-an-email"}`, true},
		{"sender too short", `{"sender":"a@"}`, true},
		{"unknown field", `{"sender":"jdoe@acme.test","priority":"high"}`, true},
		{"wrong type", `{"sender":42}`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			issues, err := ValidateIngestPayload(json.RawMessage(c.payload))
			if err != nil {
				t.Fatalf("ValidateIngestPayload: %v", err)
			}
			if c.wantIssue && len(issues) == 0 {
				t.Error("expected validation issues, got none")
			}
			if !c.wantIssue && len(issues) > 0 {
				t.Errorf("unexpected issues: %v", issues)
			}
		})
	}
}
