package harness

import "fmt"

// New creates the harness registered under name. The stubScript path is
// only consulted by the stub harness; it falls back to RALPH_STUB_SCRIPT
// and then to a built-in single-step completion script.
func New(name string, stubScript string) (Harness, error) {
	parsed, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	switch parsed {
	case NameOpencode:
		return NewOpencode(), nil
	case NameClaude:
		return NewClaude(), nil
	case NameCodex:
		return NewCodex(), nil
	case NameCopilot:
		return NewCopilot(), nil
	case NameStub:
		return NewStubFromScript(stubScript)
	}
	return nil, fmt.Errorf("unknown harness name: %s", name)
}
