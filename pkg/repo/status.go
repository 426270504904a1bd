package repo

import (
	"fmt"
)

// StatusReport summarizes the index against HEAD. Working-tree scanning
// is intentionally coarse: staged lists every index path, and
// modified/untracked detection is not implemented.
type StatusReport struct {
	Branch    string
	Detached  bool
	Staged    []string
	Modified  []string
	Untracked []string
}

// Status reports the current branch and staged paths.
func (r *Repo) Status() (*StatusReport, error) {
	report := &StatusReport{}

	branch, onBranch, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if onBranch {
		report.Branch = branch
	} else {
		report.Detached = true
	}

	ix, err := r.Index()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	for _, e := range ix.Entries() {
		report.Staged = append(report.Staged, e.Path)
	}
	return report, nil
}
