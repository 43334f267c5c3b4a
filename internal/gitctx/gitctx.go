// Package gitctx captures version-control state at post time by
// shelling out to git. Capture is a pure observation: it never mutates
// the repository.
package gitctx

import (
	"os/exec"
	"strings"

	"github.com/femtomc/jwz/internal/types"
)

// DetachedHead is recorded in place of a branch name when HEAD is
// detached.
const DetachedHead = "(detached)"

// Capture returns the version-control context of dir, or (nil, nil)
// when dir is not inside a git repository. Errors from git itself are
// treated as "no repository": posting a message must not fail because
// the working directory lacks version control.
func Capture(dir string) (*types.GitContext, error) {
	oid, ok := gitOutput(dir, "rev-parse", "HEAD")
	if !ok {
		return nil, nil
	}

	head, ok := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if !ok || head == "HEAD" {
		head = DetachedHead
	}

	status, ok := gitOutput(dir, "status", "--porcelain")
	dirty := ok && status != ""

	prefix, _ := gitOutput(dir, "rev-parse", "--show-prefix")

	return &types.GitContext{
		OID:    oid,
		Head:   head,
		Dirty:  dirty,
		Prefix: prefix,
	}, nil
}

// gitOutput runs one git subcommand in dir and returns its trimmed
// stdout. ok is false when git is missing, dir is not a repository, or
// the command fails.
func gitOutput(dir string, args ...string) (string, bool) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}
