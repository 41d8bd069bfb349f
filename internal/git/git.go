// Package git reads the few repository facts bd uses: the committer name for
// the audit trail and the repository root for naming new workspaces.
package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// gitContext holds cached repository information for the current process.
type gitContext struct {
	repoRoot string
	userName string
	err      error
}

var (
	gitCtxOnce sync.Once
	gitCtx     gitContext
)

func initGitContext() {
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		gitCtx.userName = strings.TrimSpace(string(out))
	}

	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		gitCtx.err = fmt.Errorf("not a git repository: %w", err)
		return
	}
	root := strings.TrimSpace(string(out))
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	gitCtx.repoRoot = root
}

func getGitContext() *gitContext {
	gitCtxOnce.Do(initGitContext)
	return &gitCtx
}

// UserName returns git's user.name, or "" when git is unavailable or unset.
func UserName() string {
	return getGitContext().userName
}

// RepoRoot returns the top-level directory of the repository containing the
// working directory.
func RepoRoot() (string, error) {
	ctx := getGitContext()
	if ctx.err != nil {
		return "", ctx.err
	}
	return ctx.repoRoot, nil
}

// ResetCaches forgets cached repository state. Tests that change directory
// call it before querying again.
func ResetCaches() {
	gitCtxOnce = sync.Once{}
	gitCtx = gitContext{}
}
