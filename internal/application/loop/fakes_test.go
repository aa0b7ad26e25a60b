package loop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentloop/ralph/internal/application/port/output"
	"github.com/agentloop/ralph/internal/domain/model/task"
	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/interface/external/harness"
)

// fakeHarness returns scripted results and records every run config so
// tests can inspect prompts and working directories. The last result
// repeats once the script is exhausted.
type fakeHarness struct {
	results []*harness.RunResult
	calls   int
	prompts []string
	dirs    []string

	// onRun fires before each scripted result is returned; call is
	// 1-based. Tests use it to mutate repositories mid-run.
	onRun func(call int, cfg harness.RunConfig)
}

func (f *fakeHarness) Name() harness.Name { return harness.NameStub }

func (f *fakeHarness) Run(_ context.Context, cfg harness.RunConfig) (*harness.RunResult, error) {
	f.calls++
	f.prompts = append(f.prompts, cfg.Prompt)
	f.dirs = append(f.dirs, cfg.Dir)
	if f.onRun != nil {
		f.onRun(f.calls, cfg)
	}

	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	if idx < 0 {
		return nil, errors.New("fake harness has no scripted results")
	}
	res := *f.results[idx]
	if res.Duration == 0 {
		res.Duration = time.Millisecond
	}
	return &res, nil
}

func (f *fakeHarness) Stop() {}

func (f *fakeHarness) StreamsOutput() bool { return false }

// fakeWorkItemRepo is an in-memory WorkItemRepository ordered by ID.
type fakeWorkItemRepo struct {
	mu    sync.Mutex
	items map[string]*workitem.WorkItem
}

func newFakeWorkItemRepo() *fakeWorkItemRepo {
	return &fakeWorkItemRepo{items: map[string]*workitem.WorkItem{}}
}

func (r *fakeWorkItemRepo) add(id, module string, status workitem.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.items[id] = &workitem.WorkItem{
		ID: id, Name: "Change " + id, Module: module, Status: status,
		CreatedAt: now, UpdatedAt: now,
	}
}

func (r *fakeWorkItemRepo) Register(_ context.Context, item *workitem.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.ID]; exists {
		return fmt.Errorf("change %s already registered", item.ID)
	}
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeWorkItemRepo) Find(_ context.Context, changeID string) (*workitem.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[changeID]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (r *fakeWorkItemRepo) List(_ context.Context, scope repository.Scope) ([]*workitem.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*workitem.WorkItem
	for _, item := range r.items {
		if scope.Module != "" && item.Module != scope.Module {
			continue
		}
		copied := *item
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeWorkItemRepo) ListEligible(ctx context.Context, scope repository.Scope) ([]*workitem.WorkItem, error) {
	all, err := r.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []*workitem.WorkItem
	for _, item := range all {
		if item.IsEligible() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeWorkItemRepo) GetStatus(_ context.Context, changeID string) (workitem.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[changeID]
	if !ok {
		return "", fmt.Errorf("change %s not found", changeID)
	}
	return item.Status, nil
}

func (r *fakeWorkItemRepo) UpdateStatus(_ context.Context, changeID string, status workitem.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[changeID]
	if !ok {
		return fmt.Errorf("change %s not found", changeID)
	}
	item.Status = status
	item.UpdatedAt = time.Now()
	return nil
}

// fakeTaskRepo is an in-memory TaskRepository ordered by task ID.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string][]*task.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string][]*task.Task{}}
}

func (r *fakeTaskRepo) add(changeID, id, name string, status task.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.tasks[changeID] = append(r.tasks[changeID], &task.Task{
		ID: id, ChangeID: changeID, Name: name, Status: status,
		CreatedAt: now, UpdatedAt: now,
	})
}

func (r *fakeTaskRepo) Add(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tasks[t.ChangeID] {
		if existing.ID == t.ID {
			return fmt.Errorf("task %s already exists", t.ID)
		}
	}
	copied := *t
	r.tasks[t.ChangeID] = append(r.tasks[t.ChangeID], &copied)
	return nil
}

func (r *fakeTaskRepo) ListByChange(_ context.Context, changeID string) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks[changeID] {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTaskRepo) ListIncomplete(ctx context.Context, changeID string) ([]*task.Task, error) {
	all, err := r.ListByChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	var out []*task.Task
	for _, t := range all {
		if !t.IsResolved() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Summarize(_ context.Context, changeID string) (task.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var summary task.Summary
	for _, t := range r.tasks[changeID] {
		summary.Total++
		switch t.Status {
		case task.StatusComplete:
			summary.Complete++
		case task.StatusShelved:
			summary.Shelved++
		case task.StatusInProgress:
			summary.InProgress++
		case task.StatusPending:
			summary.Pending++
		}
	}
	return summary, nil
}

func (r *fakeTaskRepo) UpdateStatus(_ context.Context, changeID, taskID string, status task.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks[changeID] {
		if t.ID == taskID {
			t.Status = status
			t.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("task %s not found in change %s", taskID, changeID)
}

// fakeAuditSink records emitted events in order.
type fakeAuditSink struct {
	mu     sync.Mutex
	events []repository.AuditEvent

	// onEmit fires for each event; tests use it to simulate a
	// concurrent collaborator reacting to loop milestones.
	onEmit func(event *repository.AuditEvent)
}

func (s *fakeAuditSink) Emit(_ context.Context, event *repository.AuditEvent) error {
	s.mu.Lock()
	s.events = append(s.events, *event)
	s.mu.Unlock()
	if s.onEmit != nil {
		s.onEmit(event)
	}
	return nil
}

func (s *fakeAuditSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

// fakeArchive records archive requests.
type fakeArchive struct {
	mu       sync.Mutex
	requests []output.ArchiveTranscriptRequest
}

func (a *fakeArchive) ArchiveTranscript(_ context.Context, req output.ArchiveTranscriptRequest) (*output.TranscriptRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return &output.TranscriptRecord{
		RunID:     req.RunID,
		ChangeID:  req.ChangeID,
		Iteration: req.Iteration,
		SizeBytes: int64(len(req.Transcript)),
	}, nil
}

func (a *fakeArchive) ListTranscripts(_ context.Context, _ string) ([]*output.TranscriptRecord, error) {
	return nil, nil
}
