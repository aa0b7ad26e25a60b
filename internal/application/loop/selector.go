package loop

import (
	"context"

	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
)

// Selection is one continuation-engine query result: the eligible
// changes in scope plus everything still short of complete.
type Selection struct {
	// Eligible holds Ready and InProgress change IDs in ascending
	// byte-lexicographic order.
	Eligible []string
	// Incomplete holds every non-complete work item in scope, for
	// blocked reporting.
	Incomplete []*workitem.WorkItem
	// Total counts all work items in scope.
	Total int
}

// Done reports that every item in scope is complete.
func (s *Selection) Done() bool {
	return len(s.Eligible) == 0 && len(s.Incomplete) == 0
}

// Blocked reports that nothing is eligible while non-complete items
// remain.
func (s *Selection) Blocked() bool {
	return len(s.Eligible) == 0 && len(s.Incomplete) > 0
}

// Selector queries the work-status collaborator for continuation
// decisions. It never mutates work items.
type Selector struct {
	items repository.WorkItemRepository
}

// NewSelector creates a selector over the work item store.
func NewSelector(items repository.WorkItemRepository) *Selector {
	return &Selector{items: items}
}

// Select queries eligibility within scope. The repository returns
// items ordered by ID, so Eligible[0] is always the lowest eligible
// identifier.
func (s *Selector) Select(ctx context.Context, scope repository.Scope) (*Selection, error) {
	eligible, err := s.items.ListEligible(ctx, scope)
	if err != nil {
		return nil, err
	}
	all, err := s.items.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	selection := &Selection{Total: len(all)}
	for _, item := range eligible {
		selection.Eligible = append(selection.Eligible, item.ID)
	}
	for _, item := range all {
		if !item.IsComplete() {
			selection.Incomplete = append(selection.Incomplete, item)
		}
	}
	return selection, nil
}
