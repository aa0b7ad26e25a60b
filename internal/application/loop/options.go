package loop

import (
	"errors"
	"time"
)

// Options configures one loop invocation. The CLI fills this from
// flags merged over setting.json defaults.
type Options struct {
	// Prompt is the base task prompt, appended after any change and
	// module context sections.
	Prompt string

	// ChangeID targets one specific change.
	ChangeID string

	// Module scopes the run to one module. Without ContinueModule the
	// lowest eligible change in the module is resolved once and driven
	// to completion.
	Module string

	// ContinueModule drains eligible changes within Module until the
	// module is complete or blocked.
	ContinueModule bool

	// ContinueReady drains eligible changes across the whole project.
	ContinueReady bool

	// Model is an optional model override passed through to the harness.
	Model string

	// CompletionPromise is the token accepted inside <promise> tags.
	CompletionPromise string

	// MinIterations is the iteration count required before a completion
	// promise is honored.
	MinIterations int

	// MaxIterations caps the total number of iteration cycles across
	// the run. Zero means unlimited.
	MaxIterations int

	// InactivityTimeout restarts an iteration when the harness produces
	// no output for this long. Zero uses the harness default.
	InactivityTimeout time.Duration

	// ErrorThreshold is the number of non-retriable harness failures
	// tolerated before aborting.
	ErrorThreshold int

	// ExitOnError aborts on the first non-retriable harness failure.
	// Retriable crashes are still retried.
	ExitOnError bool

	// AllowAll auto-approves harness tool use and permission prompts.
	AllowAll bool

	// NoCommit skips the per-iteration git commit.
	NoCommit bool

	// SkipValidation trusts a detected completion promise without
	// running the validation gate.
	SkipValidation bool

	// ValidationCommand is an extra shell command required to pass
	// before a completion promise is accepted.
	ValidationCommand string

	// Verbose echoes the full prompt sent to the harness.
	Verbose bool
}

// Validate rejects contradictory or out-of-range option combinations.
// The three targeting modes are mutually exclusive.
func (o *Options) Validate() error {
	if o.ContinueReady {
		if o.ContinueModule {
			return errors.New("--continue-ready cannot be used with --continue-module")
		}
		if o.ChangeID != "" || o.Module != "" {
			return errors.New("--continue-ready cannot be used with --change or --module")
		}
	}
	if o.ContinueModule {
		if o.ChangeID != "" {
			return errors.New("--continue-module cannot be used with --change; use --module only")
		}
		if o.Module == "" {
			return errors.New("--continue-module requires --module")
		}
	}
	if o.ChangeID != "" && o.Module != "" {
		return errors.New("--change cannot be used with --module")
	}
	if o.MaxIterations < 0 {
		return errors.New("--max-iterations must be >= 0 (0 means unlimited)")
	}
	if o.MinIterations < 1 {
		return errors.New("--min-iterations must be >= 1")
	}
	if o.ErrorThreshold < 1 {
		return errors.New("--error-threshold must be >= 1")
	}
	return nil
}
