package loop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/agentloop/ralph/internal/infra/persistence/file"
)

// UnscopedTarget is the state key used when no change is targeted.
// Status and context commands address the unscoped loop through it.
const UnscopedTarget = "unscoped"

// HistoryEntry records one completed iteration.
type HistoryEntry struct {
	// Timestamp is wall clock time (ms since epoch) at completion.
	Timestamp int64 `json:"timestamp"`
	// DurationMs is how long the harness run took.
	DurationMs int64 `json:"durationMs"`
	// PromiseFound reports whether a completion promise was observed
	// in the iteration's stdout.
	PromiseFound bool `json:"promiseFound"`
	// FileChanges is the changed-file count after the iteration.
	FileChanges int `json:"fileChanges"`
}

// State is the persisted loop state for one change. Created on the
// first iteration, mutated after every completed iteration, never
// deleted automatically.
//
// ConsecutiveRetriableRetries and ErrorCount are independent: a
// retriable crash never touches ErrorCount, and a non-retriable
// failure never increments the retry counter.
type State struct {
	ChangeID                    string         `json:"changeId"`
	IterationCount              int            `json:"iterationCount"`
	ConsecutiveRetriableRetries int            `json:"consecutiveRetriableRetries"`
	ErrorCount                  int            `json:"errorCount"`
	PendingContext              []string       `json:"pendingContext"`
	History                     []HistoryEntry `json:"history"`
}

// StateStore reads and writes per-change loop state under
// <home>/state/<change-id>/state.json.
type StateStore struct {
	fs   afero.Fs
	home string
}

// NewStateStore creates a store rooted at home.
func NewStateStore(fs afero.Fs, home string) *StateStore {
	return &StateStore{fs: fs, home: home}
}

// WithHome returns a copy of the store rooted at a different home.
// The loop uses this to re-root state into a resolved worktree.
func (s *StateStore) WithHome(home string) *StateStore {
	if home == s.home {
		return s
	}
	return &StateStore{fs: s.fs, home: home}
}

// Home returns the store's root directory.
func (s *StateStore) Home() string {
	return s.home
}

// Dir returns the state directory for a change.
func (s *StateStore) Dir(changeID string) string {
	return filepath.Join(s.home, "state", safeChangeSegment(changeID))
}

func (s *StateStore) statePath(changeID string) string {
	return filepath.Join(s.Dir(changeID), "state.json")
}

// Load reads the state for a change. A missing file returns nil
// without error.
func (s *StateStore) Load(changeID string) (*State, error) {
	path := s.statePath(changeID)
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return &state, nil
}

// LoadOrNew reads the state for a change, creating a zeroed record
// when none exists yet.
func (s *StateStore) LoadOrNew(changeID string) (*State, error) {
	state, err := s.Load(changeID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &State{ChangeID: changeID}
	}
	return state, nil
}

// Save persists state atomically.
func (s *StateStore) Save(state *State) error {
	dir := s.Dir(state.ChangeID)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	path := s.statePath(state.ChangeID)
	if err := file.WriteFileAtomic(s.fs, path, raw); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}

// AppendContext adds one pending-context entry for the next prompt.
// Whitespace-only text is ignored.
func (s *StateStore) AppendContext(changeID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	state, err := s.LoadOrNew(changeID)
	if err != nil {
		return err
	}
	state.PendingContext = append(state.PendingContext, text)
	return s.Save(state)
}

// ClearContext removes all pending-context entries for a change.
func (s *StateStore) ClearContext(changeID string) error {
	state, err := s.LoadOrNew(changeID)
	if err != nil {
		return err
	}
	state.PendingContext = nil
	return s.Save(state)
}

// safeChangeSegment returns the path segment used for a change ID.
// IDs are NFC-normalized so visually identical IDs share one state
// directory; anything unusable as a single path segment maps to a
// fixed fallback rather than escaping the state root.
func safeChangeSegment(changeID string) string {
	id := norm.NFC.String(strings.TrimSpace(changeID))
	if id == "" || len(id) > 256 {
		return "invalid-change-id"
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "invalid-change-id"
	}
	return id
}
