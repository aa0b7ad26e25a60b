// Package gitcli wraps the git binary for the read-only and commit
// operations the loop needs. Worktrees are only discovered here, never
// created or repaired.
package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Worktree is one entry from `git worktree list --porcelain`.
type Worktree struct {
	Path   string
	Branch string // Short branch name; empty for detached HEAD
	Bare   bool
}

// Client executes git commands in a caller-supplied directory.
type Client struct {
	// Failure output destination. Nil means os.Stderr; tests inject a
	// buffer.
	errW io.Writer
}

// New creates a git client.
func New() *Client {
	return &Client{}
}

// ListWorktrees enumerates the worktrees of the repository containing
// dir. Bare entries are included so callers can exclude them from
// candidacy.
func (c *Client) ListWorktrees(ctx context.Context, dir string) ([]Worktree, error) {
	stdout, stderr, err := runGit(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, commandError("git worktree list failed", stdout, stderr)
	}
	return ParseWorktrees(stdout), nil
}

// CountChangedFiles counts the non-empty lines of `git status
// --porcelain` in dir. Command failures are reported on stderr and
// counted as zero changes.
func (c *Client) CountChangedFiles(ctx context.Context, dir string) int {
	stdout, stderr, err := runGit(ctx, dir, "status", "--porcelain")
	if err != nil {
		if stderr != "" {
			fmt.Fprint(c.stderr(), stderr)
		}
		return 0
	}

	count := 0
	for _, line := range strings.Split(stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// CommitAll stages all changes in dir and commits them with message.
// An iteration that changed nothing is not an error.
func (c *Client) CommitAll(ctx context.Context, dir string, message string) error {
	stdout, stderr, err := runGit(ctx, dir, "add", "-A")
	if err != nil {
		return commandError("git add failed", stdout, stderr)
	}

	stdout, stderr, err = runGit(ctx, dir, "commit", "-m", message)
	if err != nil {
		if strings.Contains(stdout, "nothing to commit") || strings.Contains(stderr, "nothing to commit") {
			return nil
		}
		return commandError("git commit failed", stdout, stderr)
	}
	return nil
}

func (c *Client) stderr() io.Writer {
	if c.errW != nil {
		return c.errW
	}
	return os.Stderr
}

// ParseWorktrees parses `git worktree list --porcelain` output.
// Entries are blocks separated by blank lines; each block holds a
// "worktree <path>" line, optionally "branch refs/heads/<name>", and
// flag lines such as "bare".
func ParseWorktrees(out string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				ref := strings.TrimPrefix(line, "branch ")
				current.Branch = strings.TrimPrefix(ref, "refs/heads/")
			}
		case line == "bare":
			if current != nil {
				current.Bare = true
			}
		case strings.TrimSpace(line) == "":
			flush()
		}
	}
	flush()

	return worktrees
}

// FindWorktreeForBranch returns the path of the non-bare worktree whose
// branch exactly equals branch, or false when no such worktree exists.
func FindWorktreeForBranch(worktrees []Worktree, branch string) (string, bool) {
	for _, wt := range worktrees {
		if wt.Bare {
			continue
		}
		if wt.Branch == branch {
			return wt.Path, true
		}
	}
	return "", false
}

func runGit(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func commandError(msg, stdout, stderr string) error {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	if stdout != "" {
		msg += "\nstdout:\n" + stdout
	}
	if stderr != "" {
		msg += "\nstderr:\n" + stderr
	}
	return errors.New(msg)
}
