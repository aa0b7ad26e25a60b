package contextcmd

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/ralph/internal/application/loop"
	infraConfig "github.com/agentloop/ralph/internal/infra/config"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	cfg, err := infraConfig.LoadSettings(home)
	require.NoError(t, err)
	common.SetGlobalConfig(cfg)
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewContextCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func pendingContext(t *testing.T, home, key string) []string {
	t.Helper()
	state, err := loop.NewStateStore(afero.NewOsFs(), home).LoadOrNew(key)
	require.NoError(t, err)
	return state.PendingContext
}

func TestAdd_QueuesForUnscopedLoop(t *testing.T) {
	home := setupHome(t)

	out, err := execute(t, "add", "Focus", "on", "the", "parser")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued context for unscoped (1 pending).")

	entries := pendingContext(t, home, loop.UnscopedTarget)
	require.Len(t, entries, 1)
	assert.Equal(t, "Focus on the parser", entries[0])
}

func TestAdd_QueuesPerChange(t *testing.T) {
	home := setupHome(t)

	_, err := execute(t, "add", "--change", "add-auth", "Check the session expiry")
	require.NoError(t, err)
	out, err := execute(t, "add", "--change", "add-auth", "Skip the legacy endpoint")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued context for add-auth (2 pending).")

	assert.Len(t, pendingContext(t, home, "add-auth"), 2)
	assert.Empty(t, pendingContext(t, home, loop.UnscopedTarget))
}

func TestAdd_RejectsWhitespaceOnlyText(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "add", "  ", "\t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context text is empty")
}

func TestClear_DropsPendingEntries(t *testing.T) {
	home := setupHome(t)

	_, err := execute(t, "add", "--change", "add-auth", "One")
	require.NoError(t, err)
	_, err = execute(t, "add", "--change", "add-auth", "Two")
	require.NoError(t, err)

	out, err := execute(t, "clear", "--change", "add-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared pending context for add-auth.")
	assert.Empty(t, pendingContext(t, home, "add-auth"))
}

func TestClear_UnscopedByDefault(t *testing.T) {
	home := setupHome(t)

	_, err := execute(t, "add", "Steer left")
	require.NoError(t, err)

	out, err := execute(t, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared pending context for unscoped.")
	assert.Empty(t, pendingContext(t, home, loop.UnscopedTarget))
}
