package main

import (
	"fmt"
	"io"

	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/internal/errutil"
	"github.com/spf13/cobra"
)

// commitTreeCmdFlags represents the flags accepted by the commit-tree command
//
// Reference: https://git-scm.com/docs/git-commit-tree#_options
type commitTreeCmdFlags struct {
	parents []string
	message string
}

func newCommitTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-tree [-p parent]... -m msg TREE",
		Short: "Create a new commit object",
		Args:  cobra.ExactArgs(1),
	}

	flags := commitTreeCmdFlags{}
	cmd.Flags().StringArrayVarP(&flags.parents, "p", "p", nil, "Each -p indicates the id of a parent commit object.")
	cmd.Flags().StringVarP(&flags.message, "m", "m", "", "A paragraph in the commit log message.")
	_ = cmd.MarkFlagRequired("m")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitTreeCmd(cmd.OutOrStdout(), cfg, flags, args[0])
	}

	return cmd
}

func commitTreeCmd(out io.Writer, cfg *globalFlags, flags commitTreeCmdFlags, treeQuery string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	treeOid, err := resolveOid(r, treeQuery)
	if err != nil {
		return err
	}
	tree, err := r.GetTree(treeOid)
	if err != nil {
		return err
	}

	parentIDs := make([]ginternals.Oid, 0, len(flags.parents))
	for _, p := range flags.parents {
		parentOid, err := resolveOid(r, p)
		if err != nil {
			return fmt.Errorf("invalid parent %q: %w", p, err)
		}
		parentIDs = append(parentIDs, parentOid)
	}

	author, err := authorFromConfig(cfg)
	if err != nil {
		return err
	}

	c, err := r.NewDetachedCommit(tree, author, &object.CommitOptions{
		Message:   flags.message,
		ParentsID: parentIDs,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, c.ID().String())
	return nil
}
