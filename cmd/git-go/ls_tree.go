package main

import (
	"fmt"
	"io"

	git "github.com/corvidhq/gitkit"
	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/internal/errutil"
	"github.com/spf13/cobra"
)

// lsTreeCmdFlags represents the flags accepted by the ls-tree command
//
// Reference: https://git-scm.com/docs/git-ls-tree#_options
type lsTreeCmdFlags struct {
	recurse  bool
	dirsOnly bool
	nameOnly bool
	abbrev   int
}

func newLsTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-tree TREE",
		Short: "List the contents of a tree object",
		Args:  cobra.ExactArgs(1),
	}

	flags := lsTreeCmdFlags{}
	cmd.Flags().BoolVarP(&flags.recurse, "r", "r", false, "Recurse into sub-trees.")
	cmd.Flags().BoolVarP(&flags.dirsOnly, "d", "d", false, "Show only the named tree entry itself, not its children.")
	cmd.Flags().BoolVar(&flags.nameOnly, "name-only", false, "List only filenames.")
	cmd.Flags().IntVar(&flags.abbrev, "abbrev", 40, "Use <n> digits to display object names instead of the full 40-digit hexadecimal.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return lsTreeCmd(cmd.OutOrStdout(), cfg, flags, args[0])
	}

	return cmd
}

func lsTreeCmd(out io.Writer, cfg *globalFlags, flags lsTreeCmdFlags, query string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	oid, err := resolveOid(r, query)
	if err != nil {
		return err
	}

	tree, err := r.GetTree(oid)
	if err != nil {
		return err
	}

	abbrev := flags.abbrev
	if abbrev <= 0 || abbrev > 40 {
		abbrev = 40
	}

	return lsTreeWalk(out, r, tree, flags, abbrev, "")
}

func lsTreeWalk(out io.Writer, r *git.Repository, tree *object.Tree, flags lsTreeCmdFlags, abbrev int, prefix string) error {
	for _, e := range tree.Entries() {
		isDir := e.Mode == object.ModeDirectory
		path := e.Path
		if prefix != "" {
			path = prefix + "/" + path
		}

		if !flags.dirsOnly || isDir {
			if flags.nameOnly {
				fmt.Fprintln(out, path)
			} else {
				fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, e.Mode.ObjectType().String(), e.ID.String()[:abbrev], path)
			}
		}

		if isDir && flags.recurse {
			sub, err := r.GetTree(e.ID)
			if err != nil {
				return err
			}
			if err := lsTreeWalk(out, r, sub, flags, abbrev, path); err != nil {
				return err
			}
		}
	}
	return nil
}
