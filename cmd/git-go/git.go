package main

import (
	"github.com/corvidhq/gitkit/env"
	"github.com/corvidhq/gitkit/internal/pathutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalFlags represents the flags shared by every subcommand
type globalFlags struct {
	// C is a simpler version of git's -C: https://git-scm.com/docs/git#Documentation/git.txt--Cltpathgt
	C pflag.Value

	// GitDir maps to git's --git-dir / $GIT_DIR
	GitDir string
	// WorkTree maps to git's --work-tree / $GIT_WORK_TREE
	WorkTree string
	// Bare maps to git's --bare
	Bare bool

	env *env.Env
}

func newRootCmd(cwd string, e *env.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "git-go",
		Short:         "git implementation in pure Go",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &globalFlags{
		env: e,
	}
	cfg.C = pathutil.NewDirPathFlagWithDefault(cwd)
	cmd.PersistentFlags().VarS(cfg.C, "C", "C", "Run as if git was started in the provided path instead of the current working directory.")
	cmd.PersistentFlags().StringVar(&cfg.GitDir, "git-dir", "", "Set the path to the repository.")
	cmd.PersistentFlags().StringVar(&cfg.WorkTree, "work-tree", "", "Set the path to the working tree.")
	cmd.PersistentFlags().BoolVar(&cfg.Bare, "bare", false, "Treat the repository as a bare repository.")

	// porcelain
	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newSwitchCmd(cfg))
	cmd.AddCommand(newCommitCmd(cfg))
	cmd.AddCommand(newLogCmd(cfg))
	cmd.AddCommand(newConfigCmd(cfg))
	cmd.AddCommand(newCloneCmd(cfg))

	// plumbing
	cmd.AddCommand(newCatFileCmd(cfg))
	cmd.AddCommand(newHashObjectCmd())
	cmd.AddCommand(newLsTreeCmd(cfg))
	cmd.AddCommand(newWriteTreeCmd(cfg))
	cmd.AddCommand(newCommitTreeCmd(cfg))

	return cmd
}
