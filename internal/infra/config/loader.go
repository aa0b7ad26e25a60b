package config

import "os"

// DefaultHomeDir is the directory Ralph keeps its state under when
// RALPH_HOME is not set.
const DefaultHomeDir = ".ralph"

// ResolveHome returns the Ralph home directory.
// Priority: RALPH_HOME environment variable > DefaultHomeDir.
func ResolveHome() string {
	if v := os.Getenv("RALPH_HOME"); v != "" {
		return v
	}
	return DefaultHomeDir
}
