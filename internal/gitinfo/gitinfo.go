// Package gitinfo stamps publish runs with the revision of the documented
// source tree. Lookup is best-effort: a source tree outside version control
// is not an error for the pipeline.
package gitinfo

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
)

// Revision identifies the source tree state at build time.
type Revision struct {
	Commit string
	Branch string
}

// Short returns the abbreviated commit hash.
func (r Revision) Short() string {
	if len(r.Commit) >= 8 {
		return r.Commit[:8]
	}
	return r.Commit
}

// Stamp resolves HEAD of the repository containing path. The enclosing
// repository is detected upward from path, matching git's own behavior.
func Stamp(path string) (*Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := &Revision{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}
	return rev, nil
}
