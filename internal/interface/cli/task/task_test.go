package task

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
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
	cmd := NewTaskCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func registerChange(t *testing.T, changeID string, status workitem.Status) {
	t.Helper()
	container, err := common.InitializeContainer(common.GetGlobalConfig())
	require.NoError(t, err)
	defer container.Close()

	item, err := workitem.NewWorkItem(changeID, "", "")
	require.NoError(t, err)
	if status != workitem.StatusDraft {
		require.NoError(t, item.UpdateStatus(status))
	}
	require.NoError(t, container.GetWorkItemRepository().Register(context.Background(), item))
}

func changeStatus(t *testing.T, changeID string) workitem.Status {
	t.Helper()
	container, err := common.InitializeContainer(common.GetGlobalConfig())
	require.NoError(t, err)
	defer container.Close()

	status, err := container.GetWorkItemRepository().GetStatus(context.Background(), changeID)
	require.NoError(t, err)
	return status
}

func TestAdd_RequiresChangeFlag(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "add", "Do a thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--change is required")
}

func TestAdd_UnknownChange(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "add", "--change", "ghost", "Do a thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change ghost is not registered")
}

func TestAdd_AssignsOrdinalIDs(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusReady)

	out, err := execute(t, "add", "--change", "add-auth", "Design the schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Added task 1 to add-auth.")

	out, err = execute(t, "add", "--change", "add-auth", "Write tests")
	require.NoError(t, err)
	assert.Contains(t, out, "Added task 2 to add-auth.")
}

func TestAdd_ExplicitID(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusReady)

	out, err := execute(t, "add", "--change", "add-auth", "--id", "2.1", "Wire the endpoint")
	require.NoError(t, err)
	assert.Contains(t, out, "Added task 2.1 to add-auth.")
}

func TestAdd_ReopensCompletedChange(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusComplete)

	out, err := execute(t, "add", "--change", "add-auth", "Handle the edge case")
	require.NoError(t, err)
	assert.Contains(t, out, "Change add-auth is now in-progress.")
	assert.Equal(t, workitem.StatusInProgress, changeStatus(t, "add-auth"))
}

func TestComplete_ResolvingLastTaskCompletesChange(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusReady)

	_, err := execute(t, "add", "--change", "add-auth", "Design the schema")
	require.NoError(t, err)
	_, err = execute(t, "add", "--change", "add-auth", "Write tests")
	require.NoError(t, err)

	// First resolution starts work on a ready change.
	out, err := execute(t, "complete", "1", "--change", "add-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Task 1 marked complete (1 of 2 resolved).")
	assert.Contains(t, out, "Change add-auth is now in-progress.")

	// Shelving counts toward completion just like completing.
	out, err = execute(t, "shelve", "2", "--change", "add-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Task 2 marked shelved (2 of 2 resolved).")
	assert.Contains(t, out, "Change add-auth is now complete.")
	assert.Equal(t, workitem.StatusComplete, changeStatus(t, "add-auth"))
}

func TestComplete_UnknownTask(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusReady)

	_, err := execute(t, "complete", "9", "--change", "add-auth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task not found: 9")
}

func TestList_TextOutput(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusReady)

	_, err := execute(t, "add", "--change", "add-auth", "Design the schema")
	require.NoError(t, err)
	_, err = execute(t, "add", "--change", "add-auth", "Write tests")
	require.NoError(t, err)
	_, err = execute(t, "complete", "1", "--change", "add-auth")
	require.NoError(t, err)

	out, err := execute(t, "list", "--change", "add-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Tasks for add-auth (1 of 2 resolved):")
	assert.Contains(t, out, "- 1 (complete) Design the schema")
	assert.Contains(t, out, "- 2 (pending) Write tests")
}

func TestList_JSONOutput(t *testing.T) {
	setupHome(t)
	registerChange(t, "add-auth", workitem.StatusReady)

	_, err := execute(t, "add", "--change", "add-auth", "Design the schema")
	require.NoError(t, err)

	out, err := execute(t, "list", "--change", "add-auth", "--json")
	require.NoError(t, err)

	var entries []taskOutput
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "pending", entries[0].Status)
	assert.Equal(t, "Design the schema", entries[0].Name)
}

func TestList_Empty(t *testing.T) {
	setupHome(t)

	out, err := execute(t, "list", "--change", "add-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks recorded for add-auth.")
}
