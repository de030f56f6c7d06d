package main

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	git "github.com/corvidhq/gitkit"
	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/config"
	"github.com/corvidhq/gitkit/internal/errutil"
	"github.com/corvidhq/gitkit/internal/pathutil"
	"github.com/spf13/cobra"
)

func newCloneCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone <remote> [path]",
		Short: "Clone a repository into a new directory",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		remote := args[0]
		dir := defaultCloneDir(remote)
		if len(args) > 1 {
			dir = args[1]
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.C.String(), dir)
		}
		c := &globalFlags{
			env:      cfg.env,
			GitDir:   cfg.GitDir,
			WorkTree: cfg.WorkTree,
			Bare:     cfg.Bare,
			C:        pathutil.NewDirPathFlagWithDefault(dir),
		}
		return cloneCmd(cmd.OutOrStdout(), c, remote)
	}

	return cmd
}

// defaultCloneDir derives the destination directory from the remote
// URL the same way git does: the last path segment, with a trailing
// ".git" stripped
func defaultCloneDir(remote string) string {
	name := strings.TrimSuffix(strings.TrimSuffix(remote, "/"), ".git")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

func cloneCmd(out io.Writer, cfg *globalFlags, remote string) (err error) {
	p, err := config.LoadConfig(cfg.env, config.LoadConfigOptions{
		WorkingDirectory: cfg.C.String(),
		GitDirPath:       cfg.GitDir,
		WorkTreePath:     cfg.WorkTree,
		IsBare:           cfg.Bare,
		SkipGitDirLookUp: true,
	})
	if err != nil {
		return fmt.Errorf("could not create param: %w", err)
	}

	r, err := git.InitRepositoryWithParams(p, git.InitOptions{IsBare: cfg.Bare})
	if err != nil {
		return fmt.Errorf("could not init %s: %w", cfg.C.String(), err)
	}
	defer errutil.Close(r, &err)

	fmt.Fprintf(out, "Cloning into '%s'...\n", cfg.C.String())

	result, err := r.Fetch(http.DefaultClient, remote)
	if err != nil {
		return fmt.Errorf("could not fetch %s: %w", remote, err)
	}

	if len(result.Refs) == 0 {
		fmt.Fprintln(out, "warning: remote advertised no refs, created an empty repository")
		return nil
	}

	headTarget, err := mirrorRemoteRefs(r, result.Refs)
	if err != nil {
		return err
	}

	if headTarget != "" {
		if _, err := r.NewSymbolicReference(ginternals.Head, headTarget); err != nil {
			return fmt.Errorf("could not update HEAD: %w", err)
		}
	}

	fmt.Fprintf(out, "Received %d objects.\n", result.ObjectsInserted)
	return nil
}

// mirrorRemoteRefs creates a local branch for every advertised
// refs/heads/* ref and returns the branch HEAD should point at, mirroring
// whatever the remote's own HEAD resolved to
func mirrorRemoteRefs(r *git.Repository, refs map[string]ginternals.Oid) (string, error) {
	var headTarget string
	if remoteHead, ok := refs[ginternals.Head]; ok {
		for name, oid := range refs {
			if name != ginternals.Head && oid == remoteHead && strings.HasPrefix(name, "refs/heads/") {
				headTarget = name
				break
			}
		}
	}

	for name, oid := range refs {
		if name == ginternals.Head || !strings.HasPrefix(name, "refs/heads/") {
			continue
		}
		if _, err := r.NewReference(name, oid); err != nil {
			return "", fmt.Errorf("could not create ref %s: %w", name, err)
		}
		if headTarget == "" {
			headTarget = name
		}
	}

	return headTarget, nil
}
