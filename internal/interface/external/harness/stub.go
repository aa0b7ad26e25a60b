package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StubScriptEnv names the environment variable holding a stub script
// path when none is passed explicitly.
const StubScriptEnv = "RALPH_STUB_SCRIPT"

// StubStep is one scripted execution step for the stub harness.
type StubStep struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// StubHarness returns pre-recorded outputs. It backs tests and offline
// development runs and is not listed among user-facing harnesses.
// Steps are consumed in order; once exhausted, the last step repeats.
type StubHarness struct {
	steps []StubStep
	idx   int
}

// NewStubHarness creates a stub harness with an explicit list of steps.
func NewStubHarness(steps []StubStep) *StubHarness {
	return &StubHarness{steps: steps}
}

// LoadStubScript loads stub steps from a JSON file containing an array
// of steps.
func LoadStubScript(path string) (*StubHarness, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stub script %s: %w", path, err)
	}
	var steps []StubStep
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("invalid stub script JSON in %s: %w", path, err)
	}
	return NewStubHarness(steps), nil
}

// NewStubFromScript resolves the stub script from the explicit path or
// the RALPH_STUB_SCRIPT environment variable. With neither set it
// returns a single default step that yields <promise>COMPLETE</promise>.
func NewStubFromScript(path string) (*StubHarness, error) {
	if path == "" {
		path = os.Getenv(StubScriptEnv)
	}
	if path != "" {
		return LoadStubScript(path)
	}
	return NewStubHarness([]StubStep{{
		Stdout:   "<promise>COMPLETE</promise>\n",
		ExitCode: 0,
	}}), nil
}

func (s *StubHarness) Name() Name {
	return NameStub
}

func (s *StubHarness) StreamsOutput() bool {
	return false
}

func (s *StubHarness) Stop() {}

// Run replays the next scripted step.
func (s *StubHarness) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := time.Now()
	step, ok := s.nextStep()
	if !ok {
		return nil, fmt.Errorf("stub harness has no steps")
	}

	duration := time.Since(start)
	if duration < time.Millisecond {
		duration = time.Millisecond
	}
	return &RunResult{
		Stdout:   step.Stdout,
		Stderr:   step.Stderr,
		ExitCode: step.ExitCode,
		Duration: duration,
	}, nil
}

func (s *StubHarness) nextStep() (StubStep, bool) {
	if len(s.steps) == 0 {
		return StubStep{}, false
	}
	step := s.steps[len(s.steps)-1]
	if s.idx < len(s.steps) {
		step = s.steps[s.idx]
	}
	s.idx++
	return step, true
}
