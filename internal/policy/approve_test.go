package policy

import (
	"strings"
	"testing"
)

func TestDecideActionIntentSet(t *testing.T) {
	got := DecideAction("maintenance.create", "createMaintenanceRequest", nil)
	if !got.RequiresApproval {
		t.Fatalf("RequiresApproval = false, want true")
	}
}

func TestDecideActionModifyingTokens(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{"createMaintenanceRequest", true},
		{"updateCapacityParameters", true},
		{"allocateStand", true},
		{"setAutoRefresh", true},
		{"closeStand", true},
		{"calculateStandCapacity", false},
		{"getStandAvailability", false},
		{"getScheduledMaintenance", false},
		{"checkStandCompatibility", false},
		{"get_maintenance_for_stand", false},
		{"update_maintenance_request", true},
	}
	for _, tt := range tests {
		got := DecideAction("capacity.query", tt.method, nil)
		if got.RequiresApproval != tt.want {
			t.Errorf("DecideAction(%q) = %v, want %v (%s)", tt.method, got.RequiresApproval, tt.want, got.Reason)
		}
	}
}

func TestDecideActionOverrideWins(t *testing.T) {
	overrides := map[string]bool{"updateCapacityParameters": false}
	got := DecideAction("capacity.query", "updateCapacityParameters", overrides)
	if got.RequiresApproval {
		t.Fatalf("RequiresApproval = true, want override to exempt")
	}

	overrides = map[string]bool{"calculateCapacity": true}
	got = DecideAction("capacity.query", "calculateCapacity", overrides)
	if !got.RequiresApproval {
		t.Fatalf("RequiresApproval = false, want override to require")
	}
}

func TestSplitMethodName(t *testing.T) {
	got := splitMethodName("getMaintenanceForStand")
	want := []string{"get", "maintenance", "for", "stand"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRedactPII(t *testing.T) {
	input := "Contact ops@example.com or +1 (555) 123-9876, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	out, changed = RedactPII("terminal 1 capacity looks fine")
	if changed {
		t.Fatalf("unexpected redaction: %q", out)
	}
}
