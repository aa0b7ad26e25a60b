package loop

import (
	"context"
	"path/filepath"

	"github.com/agentloop/ralph/internal/app"
	"github.com/agentloop/ralph/internal/interface/external/gitcli"
)

// EffectiveDir is the working directory resolved for one iteration.
// It applies to the harness run, the per-iteration commit, and the
// validation commands of that iteration.
type EffectiveDir struct {
	// Path is the directory the iteration runs in.
	Path string
	// Home is the ralph home for state access, re-rooted under Path
	// when a worktree matched.
	Home string
}

// WorktreeLookup finds the path of the worktree whose branch exactly
// equals the change ID. The second result is false on a miss.
type WorktreeLookup func(ctx context.Context, changeID string) (string, bool)

// ResolveEffectiveDir picks the working directory for an iteration.
// Resolution only happens when worktree support is enabled and a
// change is targeted; otherwise, and on any lookup miss, the process
// working directory is used unchanged. The result is recomputed every
// iteration so worktrees created or removed mid-run are picked up.
func ResolveEffectiveDir(ctx context.Context, changeID string, enabled bool, fallback, home string, lookup WorktreeLookup) EffectiveDir {
	if !enabled || changeID == "" || lookup == nil {
		return EffectiveDir{Path: fallback, Home: home}
	}
	path, ok := lookup(ctx, changeID)
	if !ok {
		return EffectiveDir{Path: fallback, Home: home}
	}
	return EffectiveDir{Path: path, Home: filepath.Join(path, filepath.Base(home))}
}

// GitWorktreeLookup adapts the git client into a WorktreeLookup over
// the repository containing dir. Bare entries are never candidates.
// Listing failures resolve as a miss so the loop falls back to the
// process working directory.
func GitWorktreeLookup(client *gitcli.Client, dir string) WorktreeLookup {
	return func(ctx context.Context, changeID string) (string, bool) {
		worktrees, err := client.ListWorktrees(ctx, dir)
		if err != nil {
			app.GetLogger().Debug("worktree listing failed: %v", err)
			return "", false
		}
		return gitcli.FindWorktreeForBranch(worktrees, changeID)
	}
}
