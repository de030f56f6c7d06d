package main

import (
	"errors"
	"fmt"
	"io"

	git "github.com/corvidhq/gitkit"
	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/config"
	"github.com/corvidhq/gitkit/ginternals/object"
	"golang.org/x/xerrors"
)

func loadRepository(cfg *globalFlags) (*git.Repository, error) {
	p, err := config.LoadConfig(cfg.env, config.LoadConfigOptions{
		WorkingDirectory: cfg.C.String(),
		GitDirPath:       cfg.GitDir,
		WorkTreePath:     cfg.WorkTree,
		IsBare:           cfg.Bare,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create param: %w", err)
	}

	// run the command
	return git.OpenRepositoryWithParams(p, git.OpenOptions{
		IsBare: cfg.Bare,
	})
}

// authorFromConfig builds a commit signature out of the user.name and
// user.email config keys, falling back to the anonymous literals
// git-go uses when neither is set
func authorFromConfig(cfg *globalFlags) (object.Signature, error) {
	p, err := config.LoadConfig(cfg.env, config.LoadConfigOptions{
		WorkingDirectory: cfg.C.String(),
		GitDirPath:       cfg.GitDir,
		WorkTreePath:     cfg.WorkTree,
		IsBare:           cfg.Bare,
	})
	if err != nil {
		return object.Signature{}, fmt.Errorf("could not create param: %w", err)
	}

	aggregate, err := config.NewFileAggregate(cfg.env, p)
	if err != nil {
		return object.Signature{}, fmt.Errorf("could not load config: %w", err)
	}

	name, email := aggregate.User()
	return object.NewSignature(name, email), nil
}

// resolveOid turns a user-provided object name into an Oid, trying it
// as an abbreviated digest first and falling back to the usual set of
// ref names (HEAD, refs/<name>, refs/heads/<name>, refs/tags/<name>)
func resolveOid(r *git.Repository, name string) (ginternals.Oid, error) {
	oid, err := r.FindObjectByPrefix(name)
	if err == nil {
		return oid, nil
	}
	if !errors.Is(err, ginternals.ErrObjectNotFound) {
		return ginternals.NullOid, err
	}

	toTry := []string{
		name,
		ginternals.RefFullName(name),
		ginternals.LocalBranchFullName(name),
		ginternals.LocalTagFullName(name),
	}
	for _, refName := range toTry {
		ref, err := r.GetReference(refName)
		if err == nil {
			return ref.Target(), nil
		}
		if !errors.Is(err, ginternals.ErrRefNotFound) {
			return ginternals.NullOid, xerrors.Errorf("could not check if ref %s exists: %w", refName, err)
		}
	}

	return ginternals.NullOid, xerrors.Errorf("not a valid object name %s", name)
}

func fprintln(quiet bool, out io.Writer, msg ...interface{}) {
	if !quiet {
		fmt.Fprintln(out, msg...)
	}
}

func fprintf(quiet bool, out io.Writer, format string, a ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, format, a...)
	}
}
