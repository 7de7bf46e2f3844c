// Package git resolves repository identity for pane grouping. A pane's
// group is the root path of the repository its working directory sits in.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// runGit executes one git command against dir and returns trimmed stdout.
// Swappable for tests.
var runGit = func(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RepoRoot returns the absolute root of the repository containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	root, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return root, nil
}

// Branch returns the current branch name, or the literal "HEAD" when
// detached.
func Branch(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// DisplayName is the short label shown for a repository group.
func DisplayName(root string) string {
	if root == "" {
		return ""
	}
	return filepath.Base(root)
}

// Cache memoizes directory-to-root and root-to-branch lookups for the
// duration of one poll cycle. Misses are cached too: a session full of
// panes in the same non-repo directory costs one git invocation, not one
// per pane.
type Cache struct {
	mu       sync.Mutex
	roots    map[string]string
	branches map[string]string
}

func NewCache() *Cache {
	return &Cache{
		roots:    make(map[string]string),
		branches: make(map[string]string),
	}
}

// Root returns the repository root for dir, or "" when dir is outside any
// repository.
func (c *Cache) Root(ctx context.Context, dir string) string {
	if dir == "" {
		return ""
	}
	c.mu.Lock()
	root, ok := c.roots[dir]
	c.mu.Unlock()
	if ok {
		return root
	}

	root, err := RepoRoot(ctx, dir)
	if err != nil {
		root = ""
	}
	c.mu.Lock()
	c.roots[dir] = root
	c.mu.Unlock()
	return root
}

// BranchOf returns the checked-out branch for a repository root, or "" when
// it cannot be determined.
func (c *Cache) BranchOf(ctx context.Context, root string) string {
	if root == "" {
		return ""
	}
	c.mu.Lock()
	branch, ok := c.branches[root]
	c.mu.Unlock()
	if ok {
		return branch
	}

	branch, err := Branch(ctx, root)
	if err != nil {
		branch = ""
	}
	c.mu.Lock()
	c.branches[root] = branch
	c.mu.Unlock()
	return branch
}
