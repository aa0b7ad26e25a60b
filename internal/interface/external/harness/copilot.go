package harness

// NewCopilot runs the copilot CLI in non-interactive print mode
// (`copilot -p`). Requires the Copilot CLI on PATH.
func NewCopilot() Harness {
	return &streamingHarness{name: NameCopilot, binary: "copilot", args: copilotArgs}
}

func copilotArgs(cfg RunConfig) []string {
	var args []string
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if cfg.AllowAll {
		args = append(args, "--yolo")
	}
	return append(args, "-p", cfg.Prompt)
}
