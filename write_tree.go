package git

import (
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/internal/gitpath"
	"github.com/spf13/afero"
)

// ignoredPaths lists the basenames skipped while walking the working
// directory to build a tree. This is policy, not an on-disk invariant
var ignoredPaths = map[string]bool{
	gitpath.DotGitPath: true,
	".vscode":          true,
	".idea":            true,
}

// WriteTree builds a tree object from the current state of the
// working directory and persists it, along with every blob and
// subtree it contains
func (r *Repository) WriteTree() (*object.Tree, error) {
	if r.workTree == nil {
		return nil, fmt.Errorf("cannot write-tree: repository has no working directory")
	}
	return r.writeTreeAt("")
}

func (r *Repository) writeTreeAt(dir string) (*object.Tree, error) {
	infos, err := afero.ReadDir(r.workTree, dir)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %q: %w", dir, err)
	}

	names := make([]string, 0, len(infos))
	byName := map[string]os.FileInfo{}
	for _, info := range infos {
		if ignoredPaths[info.Name()] {
			continue
		}
		names = append(names, info.Name())
		byName[info.Name()] = info
	}
	sort.Strings(names)

	tb := r.NewTreeBuilder()
	for _, name := range names {
		info := byName[name]
		rel := path.Join(dir, name)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := afero.ReadlinkIfPossible(r.workTree, rel)
			if err != nil {
				return nil, fmt.Errorf("could not read symlink %q: %w", rel, err)
			}
			blob, err := r.NewBlob([]byte(target))
			if err != nil {
				return nil, fmt.Errorf("could not persist symlink %q: %w", rel, err)
			}
			if err := tb.Insert(name, blob.ID(), object.ModeSymLink); err != nil {
				return nil, err
			}
		case info.IsDir():
			sub, err := r.writeTreeAt(rel)
			if err != nil {
				return nil, err
			}
			if err := tb.Insert(name, sub.ID(), object.ModeDirectory); err != nil {
				return nil, err
			}
		default:
			data, err := afero.ReadFile(r.workTree, rel)
			if err != nil {
				return nil, fmt.Errorf("could not read file %q: %w", rel, err)
			}
			blob, err := r.NewBlob(data)
			if err != nil {
				return nil, fmt.Errorf("could not persist blob %q: %w", rel, err)
			}
			mode := object.ModeFile
			if info.Mode()&0o111 != 0 {
				mode = object.ModeExecutable
			}
			if err := tb.Insert(name, blob.ID(), mode); err != nil {
				return nil, err
			}
		}
	}

	return tb.Write()
}
