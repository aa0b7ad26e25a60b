package sqlite

import (
	"context"
	"testing"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
)

func registerItem(t *testing.T, repo repository.WorkItemRepository, id, module string, status workitem.Status) {
	t.Helper()

	item, err := workitem.NewWorkItem(id, "Change "+id, module)
	if err != nil {
		t.Fatalf("NewWorkItem failed: %v", err)
	}
	item.Status = status
	if err := repo.Register(context.Background(), item); err != nil {
		t.Fatalf("Register(%s) failed: %v", id, err)
	}
}

func TestWorkItemRepository_RegisterAndFind(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))
	ctx := context.Background()

	registerItem(t, repo, "add-auth", "core", workitem.StatusDraft)

	found, err := repo.Find(ctx, "add-auth")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found == nil {
		t.Fatal("Expected work item, got nil")
	}
	if found.ID != "add-auth" {
		t.Errorf("Expected ID 'add-auth', got '%s'", found.ID)
	}
	if found.Module != "core" {
		t.Errorf("Expected module 'core', got '%s'", found.Module)
	}
	if found.Status != workitem.StatusDraft {
		t.Errorf("Expected status draft, got %v", found.Status)
	}
	if found.CreatedAt.IsZero() {
		t.Error("CreatedAt should survive the round trip")
	}
}

func TestWorkItemRepository_FindUnknown(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))

	found, err := repo.Find(context.Background(), "no-such-change")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found != nil {
		t.Errorf("Expected nil for unknown change, got %+v", found)
	}
}

func TestWorkItemRepository_RegisterDuplicate(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))

	registerItem(t, repo, "add-auth", "", workitem.StatusDraft)

	dup, _ := workitem.NewWorkItem("add-auth", "Duplicate", "")
	if err := repo.Register(context.Background(), dup); err == nil {
		t.Error("Expected error when registering a duplicate change id")
	}
}

func TestWorkItemRepository_ListEligible(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))
	ctx := context.Background()

	registerItem(t, repo, "c-draft", "core", workitem.StatusDraft)
	registerItem(t, repo, "b-ready", "core", workitem.StatusReady)
	registerItem(t, repo, "a-wip", "core", workitem.StatusInProgress)
	registerItem(t, repo, "d-paused", "core", workitem.StatusPaused)
	registerItem(t, repo, "e-done", "core", workitem.StatusComplete)
	registerItem(t, repo, "f-other", "web", workitem.StatusReady)

	eligible, err := repo.ListEligible(ctx, repository.Scope{})
	if err != nil {
		t.Fatalf("ListEligible failed: %v", err)
	}

	wantIDs := []string{"a-wip", "b-ready", "f-other"}
	if len(eligible) != len(wantIDs) {
		t.Fatalf("Expected %d eligible items, got %d", len(wantIDs), len(eligible))
	}
	for i, want := range wantIDs {
		if eligible[i].ID != want {
			t.Errorf("eligible[%d].ID = %s, want %s (order must be lexicographic)", i, eligible[i].ID, want)
		}
	}
}

func TestWorkItemRepository_ListEligibleScopedToModule(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))
	ctx := context.Background()

	registerItem(t, repo, "core-1", "core", workitem.StatusReady)
	registerItem(t, repo, "web-1", "web", workitem.StatusReady)
	registerItem(t, repo, "core-2", "core", workitem.StatusInProgress)

	eligible, err := repo.ListEligible(ctx, repository.Scope{Module: "core"})
	if err != nil {
		t.Fatalf("ListEligible failed: %v", err)
	}

	if len(eligible) != 2 {
		t.Fatalf("Expected 2 eligible items in module core, got %d", len(eligible))
	}
	if eligible[0].ID != "core-1" || eligible[1].ID != "core-2" {
		t.Errorf("Unexpected scoped result: %s, %s", eligible[0].ID, eligible[1].ID)
	}
}

func TestWorkItemRepository_ListAll(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))
	ctx := context.Background()

	registerItem(t, repo, "b", "", workitem.StatusComplete)
	registerItem(t, repo, "a", "", workitem.StatusDraft)

	all, err := repo.List(ctx, repository.Scope{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("List must order by id: got %s, %s", all[0].ID, all[1].ID)
	}
}

func TestWorkItemRepository_UpdateStatus(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))
	ctx := context.Background()

	registerItem(t, repo, "add-auth", "", workitem.StatusDraft)

	if err := repo.UpdateStatus(ctx, "add-auth", workitem.StatusReady); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	status, err := repo.GetStatus(ctx, "add-auth")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != workitem.StatusReady {
		t.Errorf("Expected status ready, got %v", status)
	}
}

func TestWorkItemRepository_UpdateStatusUnknownChange(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))

	err := repo.UpdateStatus(context.Background(), "no-such-change", workitem.StatusReady)
	if err == nil {
		t.Error("Expected error for unknown change")
	}
}

func TestWorkItemRepository_GetStatusUnknownChange(t *testing.T) {
	repo := NewWorkItemRepository(openTestDB(t))

	if _, err := repo.GetStatus(context.Background(), "no-such-change"); err == nil {
		t.Error("Expected error for unknown change")
	}
}
