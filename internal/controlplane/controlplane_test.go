package controlplane

import "testing"

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Status
	}{
		{"ACTIVE", StatusActive},
		{"active", StatusActive},
		{" idle ", StatusIdle},
		{"BLOCKED", StatusBlocked},
		{"RECOVERY", StatusRecovery},
		{"STARTING", StatusStarting},
		{"WAITING", StatusWaiting},
		{"ENDING", StatusEnding},
		{"", StatusUnknown},
		{"SOMETHING_ELSE", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	if StatusActive.String() != "ACTIVE" {
		t.Errorf("StatusActive = %q", StatusActive.String())
	}
	if Status(99).String() != "UNKNOWN" {
		t.Errorf("out of range status = %q", Status(99).String())
	}
}
