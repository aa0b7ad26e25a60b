package harness

// NewCodex runs the codex CLI in non-interactive exec mode
// (`codex exec`). Requires the Codex CLI on PATH.
func NewCodex() Harness {
	return &streamingHarness{name: NameCodex, binary: "codex", args: codexArgs}
}

func codexArgs(cfg RunConfig) []string {
	args := []string{"exec"}
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if cfg.AllowAll {
		args = append(args, "--yolo")
	}
	return append(args, cfg.Prompt)
}
