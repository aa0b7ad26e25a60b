// Package harness adapts external AI coding agent CLIs behind a single
// run contract. Each adapter supplies only its binary name and argument
// rule; process spawning, output streaming, and the inactivity watchdog
// are shared.
package harness

import (
	"context"
	"fmt"
	"time"
)

// Name identifies a harness implementation.
type Name string

const (
	// NameOpencode is the OpenCode CLI harness.
	NameOpencode Name = "opencode"
	// NameClaude is the Claude Code CLI harness.
	NameClaude Name = "claude"
	// NameCodex is the OpenAI Codex CLI harness.
	NameCodex Name = "codex"
	// NameCopilot is the GitHub Copilot CLI harness.
	NameCopilot Name = "copilot"
	// NameStub is the scripted harness for tests and offline runs.
	NameStub Name = "stub"
)

// String returns the canonical user-facing identifier.
func (n Name) String() string {
	return string(n)
}

// ParseName parses a harness identifier. Matching is case-sensitive;
// the alias "github-copilot" maps to the canonical "copilot".
func ParseName(s string) (Name, error) {
	switch s {
	case "opencode":
		return NameOpencode, nil
	case "claude":
		return NameClaude, nil
	case "codex":
		return NameCodex, nil
	case "copilot", "github-copilot":
		return NameCopilot, nil
	case "stub":
		return NameStub, nil
	default:
		return "", fmt.Errorf("unknown harness name: %s", s)
	}
}

// UserFacingNames lists the harness identifiers exposed to users.
// The stub harness is excluded.
func UserFacingNames() []Name {
	return []Name{NameOpencode, NameClaude, NameCodex, NameCopilot}
}

// RunConfig carries the inputs for one harness invocation.
type RunConfig struct {
	Prompt            string
	Model             string            // Optional model identifier
	Dir               string            // Working directory for the harness process
	Env               map[string]string // Extra environment variables
	AllowAll          bool              // Bypass tool approval and permission prompts
	InactivityTimeout time.Duration     // Zero means DefaultInactivityTimeout
}

// RunResult holds the outcome of one harness invocation.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool // True when the inactivity watchdog killed the process
}

// Success reports whether the harness exited cleanly.
func (r *RunResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Harness is a runnable agent CLI adapter.
type Harness interface {
	// Name returns the harness identifier.
	Name() Name

	// Run executes one harness invocation. Spawn failures (missing
	// binary) surface as errors; everything after a successful spawn
	// is reported through RunResult, including inactivity-timeout
	// kills.
	Run(ctx context.Context, cfg RunConfig) (*RunResult, error)

	// Stop kills any in-flight execution (best-effort).
	Stop()

	// StreamsOutput reports whether Run delivers stdout/stderr in real
	// time. Callers should not re-print captured output when true.
	StreamsOutput() bool
}
