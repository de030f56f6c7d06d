package git

import (
	"sort"

	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/object"
	"golang.org/x/xerrors"
)

// Log walks the parent DAG starting at start, collecting every
// reachable commit exactly once and returning them ordered by
// descending author timestamp (most recent first)
func (r *Repository) Log(start ginternals.Oid) ([]*object.Commit, error) {
	seen := map[ginternals.Oid]bool{}
	commits := []*object.Commit{}

	var walk func(oid ginternals.Oid) error
	walk = func(oid ginternals.Oid) error {
		if seen[oid] {
			return nil
		}
		seen[oid] = true

		c, err := r.GetCommit(oid)
		if err != nil {
			return xerrors.Errorf("could not get commit %s: %w", oid.String(), err)
		}
		for _, parentID := range c.ParentIDs() {
			if err := walk(parentID); err != nil {
				return err
			}
		}
		commits = append(commits, c)
		return nil
	}

	if err := walk(start); err != nil {
		return nil, err
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Author().Time.After(commits[j].Author().Time)
	})
	return commits, nil
}
