package harness

// NewClaude runs the claude CLI in non-interactive print mode
// (`claude -p`). Requires the Claude Code CLI on PATH.
func NewClaude() Harness {
	return &streamingHarness{name: NameClaude, binary: "claude", args: claudeArgs}
}

func claudeArgs(cfg RunConfig) []string {
	var args []string
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if cfg.AllowAll {
		args = append(args, "--dangerously-skip-permissions")
	}
	return append(args, "-p", cfg.Prompt)
}
