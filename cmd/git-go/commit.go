package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/internal/errutil"
	"github.com/spf13/cobra"
)

// commitCmdFlags represents the flags accepted by the commit command
//
// Reference: https://git-scm.com/docs/git-commit#_options
type commitCmdFlags struct {
	message string
}

func newCommitCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit -m msg",
		Short: "Record changes to the repository",
		Args:  cobra.NoArgs,
	}

	flags := commitCmdFlags{}
	cmd.Flags().StringVarP(&flags.message, "m", "m", "", "Use the given <msg> as the commit message.")
	_ = cmd.MarkFlagRequired("m")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitCmd(cmd.OutOrStdout(), cfg, flags)
	}

	return cmd
}

func commitCmd(out io.Writer, cfg *globalFlags, flags commitCmdFlags) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	tree, err := r.WriteTree()
	if err != nil {
		return fmt.Errorf("could not build tree: %w", err)
	}

	branchRef, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("could not resolve current branch: %w", err)
	}

	var parentIDs []ginternals.Oid
	head, err := r.GetReference(ginternals.Head)
	switch {
	case err == nil:
		parentIDs = append(parentIDs, head.Target())
	case !errors.Is(err, ginternals.ErrRefNotFound):
		return fmt.Errorf("could not read HEAD: %w", err)
	}

	author, err := authorFromConfig(cfg)
	if err != nil {
		return err
	}

	c, err := r.NewCommit(branchRef, tree, author, &object.CommitOptions{
		Message:   flags.message,
		ParentsID: parentIDs,
	})
	if err != nil {
		return fmt.Errorf("could not create commit: %w", err)
	}

	fmt.Fprintf(out, "New commit saved with message:\n%s\n", c.Message())
	return nil
}
