package harness

// NewOpencode runs the opencode CLI in non-interactive run mode
// (`opencode run`). Requires the OpenCode CLI on PATH.
func NewOpencode() Harness {
	return &streamingHarness{name: NameOpencode, binary: "opencode", args: opencodeArgs}
}

func opencodeArgs(cfg RunConfig) []string {
	args := []string{"run"}
	if cfg.Model != "" {
		args = append(args, "-m", cfg.Model)
	}
	return append(args, cfg.Prompt)
}
