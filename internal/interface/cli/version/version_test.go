package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agentloop/ralph/internal/buildinfo"
)

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()

	if cmd == nil {
		t.Fatal("NewCommand() returned nil")
	}

	if cmd.Use != "version" {
		t.Errorf("Expected Use='version', got '%s'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long description should not be empty")
	}

	if cmd.Run == nil {
		t.Error("Run function should not be nil")
	}
}

func TestVersionCommand_Output(t *testing.T) {
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ralph version "+buildinfo.GetVersion()) {
		t.Errorf("Output missing version banner, got:\n%s", out)
	}
	for _, field := range []string{"Go version:", "OS/Arch:", "Compiler:"} {
		if !strings.Contains(out, field) {
			t.Errorf("Output missing %q, got:\n%s", field, out)
		}
	}
}
