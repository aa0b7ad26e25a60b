package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoot_RegistersSubcommands(t *testing.T) {
	root := NewRoot()

	want := []string{"init", "run", "status", "context", "change", "task", "version"}
	got := map[string]bool{}
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing subcommand %s", name)
	}

	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
}

func TestNewRoot_LoadsConfigBeforeSubcommand(t *testing.T) {
	t.Setenv("RALPH_HOME", t.TempDir())

	root := NewRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "ralph version")
}

func TestNewRoot_RunsInitEndToEnd(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RALPH_HOME", home)

	root := NewRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"init"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Initialized ralph home in "+home)
}

func TestNewRoot_HelpWithoutArgs(t *testing.T) {
	t.Setenv("RALPH_HOME", t.TempDir())

	root := NewRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Agent loop orchestrator")
	assert.Contains(t, buf.String(), "Available Commands:")
}
