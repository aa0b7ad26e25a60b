package workitem

import "testing"

func TestNewWorkItem(t *testing.T) {
	item, err := NewWorkItem("add-retry-budget", "Add retry budget", "core")
	if err != nil {
		t.Fatalf("NewWorkItem failed: %v", err)
	}

	if item.ID != "add-retry-budget" {
		t.Errorf("Expected ID 'add-retry-budget', got '%s'", item.ID)
	}
	if item.Status != StatusDraft {
		t.Errorf("Expected status Draft, got %v", item.Status)
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
}

func TestNewWorkItem_RequiresID(t *testing.T) {
	if _, err := NewWorkItem("", "Nameless", ""); err == nil {
		t.Error("Expected error for empty change id")
	}
}

func TestWorkItem_UpdateStatus(t *testing.T) {
	item, _ := NewWorkItem("change-a", "Change A", "")

	if err := item.UpdateStatus(StatusReady); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if item.Status != StatusReady {
		t.Errorf("Expected status Ready, got %v", item.Status)
	}

	if err := item.UpdateStatus(Status("bogus")); err == nil {
		t.Error("Expected error for invalid status")
	}
	if item.Status != StatusReady {
		t.Error("Status should not change on invalid update")
	}
}

func TestStatus_IsEligible(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusDraft, false},
		{StatusReady, true},
		{StatusInProgress, true},
		{StatusPaused, false},
		{StatusComplete, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.IsEligible(); got != tt.want {
				t.Errorf("IsEligible(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"draft", StatusDraft, false},
		{"ready", StatusReady, false},
		{"in-progress", StatusInProgress, false},
		{"paused", StatusPaused, false},
		{"complete", StatusComplete, false},
		{"done", "", true},
		{"", "", true},
		{"READY", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
