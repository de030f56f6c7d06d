// Package git exposes a high level API to create, open, and manipulate
// git repositories
package git

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvidhq/gitkit/backend/fsbackend"
	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/config"
	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/ginternals/packfile"
	"github.com/corvidhq/gitkit/internal/gitpath"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

var (
	// ErrRepositoryNotExist is returned when trying to open a repository
	// that doesn't exist
	ErrRepositoryNotExist = xerrors.New("repository does not exist")
	// ErrRepositoryExists is returned when trying to create a repository
	// that already exists
	ErrRepositoryExists = xerrors.New("repository already exists")
	// ErrTagNotFound is returned when a tag could not be found
	ErrTagNotFound = xerrors.New("tag not found")
	// ErrTagExists is returned when trying to create a tag that
	// already exists
	ErrTagExists = xerrors.New("tag already exists")
	// ErrHeadDetached is returned by operations that require HEAD to
	// be a symbolic reference when HEAD points directly at a commit
	ErrHeadDetached = xerrors.New("HEAD is detached")
)

// Repository represents a git repository
type Repository struct {
	// Config contains the configuration used to create/open the repo
	Config *config.Config

	dotGit   *fsbackend.Backend
	workTree afero.Fs
}

// InitOptions contains the optional data used to create a new repository
type InitOptions struct {
	// IsBare represents whether the repository should have a working
	// directory or not
	IsBare bool

	// InitialBranchName is the name used for the initial branch HEAD
	// points to. Defaults to ginternals.Master
	InitialBranchName string

	// Symlink, when set along a non-bare repository, moves the actual
	// git directory to cfg.GitDirPath and replaces
	// cfg.WorkTreePath/.git with a text file redirecting to it (see
	// git's --separate-git-dir)
	Symlink bool
}

// OpenOptions contains the optional data used to open a repository
type OpenOptions struct {
	// IsBare represents whether the repository should have a working
	// directory or not
	IsBare bool
}

// InitRepository creates a new repository at the given path
func InitRepository(path string) (*Repository, error) {
	return InitRepositoryWithOptions(path, InitOptions{})
}

// InitRepositoryWithOptions creates a new repository at the given path,
// using the provided options
func InitRepositoryWithOptions(path string, opts InitOptions) (*Repository, error) {
	loadOpts := config.LoadConfigOptions{
		WorkingDirectory: path,
		IsBare:           opts.IsBare,
		SkipGitDirLookUp: true,
	}
	if opts.IsBare {
		loadOpts.GitDirPath = path
	} else {
		loadOpts.WorkTreePath = path
	}

	cfg, err := config.LoadConfigSkipEnv(loadOpts)
	if err != nil {
		return nil, xerrors.Errorf("could not load config: %w", err)
	}
	return InitRepositoryWithParams(cfg, opts)
}

// InitRepositoryWithParams creates a new repository using the given
// config. This is the method to use if you need full control over
// where the repository and its working tree live
func InitRepositoryWithParams(cfg *config.Config, opts InitOptions) (*Repository, error) {
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if _, err := fs.Stat(filepath.Join(cfg.GitDirPath, gitpath.HEADPath)); err == nil {
		return nil, ErrRepositoryExists
	}

	b := fsbackend.New(cfg.GitDirPath)
	if err := b.Init(); err != nil {
		return nil, xerrors.Errorf("could not create repository: %w", err)
	}

	initialBranch := opts.InitialBranchName
	if initialBranch == "" {
		initialBranch = ginternals.Master
	}
	head := ginternals.NewSymbolicReference(ginternals.Head, ginternals.LocalBranchFullName(initialBranch))
	if err := b.WriteReference(head); err != nil {
		return nil, xerrors.Errorf("could not set HEAD: %w", err)
	}

	var workTree afero.Fs
	if !opts.IsBare && cfg.WorkTreePath != "" {
		if err := fs.MkdirAll(cfg.WorkTreePath, 0o750); err != nil {
			return nil, xerrors.Errorf("could not create working directory: %w", err)
		}
		workTree = afero.NewBasePathFs(fs, cfg.WorkTreePath)

		if opts.Symlink {
			link := fmt.Sprintf("gitdir: %s\n", cfg.GitDirPath)
			if err := afero.WriteFile(fs, filepath.Join(cfg.WorkTreePath, gitpath.DotGitPath), []byte(link), 0o644); err != nil {
				return nil, xerrors.Errorf("could not create %s redirect: %w", gitpath.DotGitPath, err)
			}
		}
	}

	return &Repository{
		Config:   cfg,
		dotGit:   b,
		workTree: workTree,
	}, nil
}

// OpenRepository opens an existing repository at the given path
func OpenRepository(path string) (*Repository, error) {
	return OpenRepositoryWithOptions(path, OpenOptions{})
}

// OpenRepositoryWithOptions opens an existing repository at the given
// path, using the provided options
func OpenRepositoryWithOptions(path string, opts OpenOptions) (*Repository, error) {
	loadOpts := config.LoadConfigOptions{
		WorkingDirectory: path,
		IsBare:           opts.IsBare,
		SkipGitDirLookUp: true,
	}
	if opts.IsBare {
		loadOpts.GitDirPath = path
	} else {
		loadOpts.WorkTreePath = path
	}

	cfg, err := config.LoadConfigSkipEnv(loadOpts)
	if err != nil {
		return nil, xerrors.Errorf("could not load config: %w", err)
	}
	return OpenRepositoryWithParams(cfg, opts)
}

// OpenRepositoryWithParams opens an existing repository using the given
// config
func OpenRepositoryWithParams(cfg *config.Config, opts OpenOptions) (*Repository, error) {
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if _, err := fs.Stat(filepath.Join(cfg.GitDirPath, gitpath.HEADPath)); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRepositoryNotExist
		}
		return nil, xerrors.Errorf("could not open repository: %w", err)
	}

	b := fsbackend.New(cfg.GitDirPath)

	var workTree afero.Fs
	if !opts.IsBare && cfg.WorkTreePath != "" {
		workTree = afero.NewBasePathFs(fs, cfg.WorkTreePath)
	}

	return &Repository{
		Config:   cfg,
		dotGit:   b,
		workTree: workTree,
	}, nil
}

// IsBare returns whether the repository has no working directory
func (r *Repository) IsBare() bool {
	return r.workTree == nil
}

// WorkTree returns the filesystem rooted at the repository's working
// directory, or nil for a bare repository
func (r *Repository) WorkTree() afero.Fs {
	return r.workTree
}

// Close frees the resources held by the repository
func (r *Repository) Close() error {
	return r.dotGit.Close()
}

// GetObject returns the object matching the given Oid
func (r *Repository) GetObject(oid ginternals.Oid) (*object.Object, error) {
	o, err := r.dotGit.Object(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
	}
	return o, nil
}

// FindObjectByPrefix resolves a hex digest of 4 to 40 characters to the
// full Oid it's a prefix of. A full 40-char digest is parsed directly;
// anything shorter is resolved by scanning loose objects then packed
// objects, and the first match found wins. ginternals.ErrObjectNotFound
// is returned if query isn't a valid hex prefix or matches nothing
func (r *Repository) FindObjectByPrefix(query string) (ginternals.Oid, error) {
	if !isHexDigest(query) {
		return ginternals.NullOid, ginternals.ErrObjectNotFound
	}
	if len(query) == ginternals.OidSize*2 {
		return ginternals.NewOidFromStr(query)
	}

	var found ginternals.Oid
	matchPrefix := func(oid ginternals.Oid) error {
		if strings.HasPrefix(oid.String(), query) {
			found = oid
			return packfile.OidWalkStop
		}
		return nil
	}

	if err := r.dotGit.WalkLooseObjectIDs(matchPrefix); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not scan loose objects: %w", err)
	}
	if found.IsZero() {
		if err := r.dotGit.WalkPackedObjectIDs(matchPrefix); err != nil {
			return ginternals.NullOid, xerrors.Errorf("could not scan packed objects: %w", err)
		}
	}
	if found.IsZero() {
		return ginternals.NullOid, ginternals.ErrObjectNotFound
	}
	return found, nil
}

// isHexDigest reports whether query is a 4-to-40 character hex string,
// the shape of an abbreviated (or full) object digest
func isHexDigest(query string) bool {
	if len(query) < 4 || len(query) > ginternals.OidSize*2 {
		return false
	}
	for _, c := range query {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NewBlob creates and persists a new blob from the given data
func (r *Repository) NewBlob(data []byte) (*object.Blob, error) {
	o := object.New(object.TypeBlob, data)
	if _, err := r.dotGit.WriteObject(o); err != nil {
		return nil, xerrors.Errorf("could not persist blob: %w", err)
	}
	return object.NewBlob(o), nil
}

// GetCommit returns the commit matching the given Oid
func (r *Repository) GetCommit(oid ginternals.Oid) (*object.Commit, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	c, err := o.AsCommit()
	if err != nil {
		return nil, xerrors.Errorf("%s is not a commit: %w", oid.String(), err)
	}
	return c, nil
}

// GetTree returns the tree matching the given Oid
func (r *Repository) GetTree(oid ginternals.Oid) (*object.Tree, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	t, err := o.AsTree()
	if err != nil {
		return nil, xerrors.Errorf("%s is not a tree: %w", oid.String(), err)
	}
	return t, nil
}

// GetReference returns the reference matching the given name.
// ErrRefNotFound is returned if the reference doesn't exist
func (r *Repository) GetReference(name string) (*ginternals.Reference, error) {
	ref, err := r.dotGit.Reference(name)
	if err != nil {
		return nil, xerrors.Errorf("could not get reference %s: %w", name, err)
	}
	return ref, nil
}

// NewReference creates or overwrites the reference called name so
// that it points directly at target
func (r *Repository) NewReference(name string, target ginternals.Oid) (*ginternals.Reference, error) {
	ref := ginternals.NewReference(name, target)
	if err := r.dotGit.WriteReference(ref); err != nil {
		return nil, xerrors.Errorf("could not update reference %s: %w", name, err)
	}
	return ref, nil
}

// NewSymbolicReference creates or overwrites the reference called
// name so that it points at another reference, target
func (r *Repository) NewSymbolicReference(name, target string) (*ginternals.Reference, error) {
	ref := ginternals.NewSymbolicReference(name, target)
	if err := r.dotGit.WriteReference(ref); err != nil {
		return nil, xerrors.Errorf("could not update reference %s: %w", name, err)
	}
	return ref, nil
}

// IngestPack reads a pack stream and persists every base object it
// contains. It returns the number of objects inserted
func (r *Repository) IngestPack(src io.Reader) (int, error) {
	return packfile.Ingest(src, func(o *object.Object) error {
		_, err := r.dotGit.WriteObject(o)
		return err
	})
}

// CurrentBranch returns the full name of the branch HEAD points to
// (e.g. refs/heads/master), without requiring that branch to have any
// commits yet. ErrHeadDetached is returned if HEAD isn't symbolic
func (r *Repository) CurrentBranch() (string, error) {
	data, err := afero.ReadFile(r.Config.FS, filepath.Join(r.Config.GitDirPath, gitpath.HEADPath))
	if err != nil {
		return "", xerrors.Errorf("could not read %s: %w", ginternals.Head, err)
	}

	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte("ref: ")) {
		return "", ErrHeadDetached
	}
	return string(bytes.TrimSpace(data[len("ref: "):])), nil
}

// NewCommit creates a new commit and makes the given reference point
// to it
func (r *Repository) NewCommit(refName string, tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	c, err := r.newCommit(tree, author, opts)
	if err != nil {
		return nil, err
	}

	ref := ginternals.NewReference(refName, c.ID())
	if err := r.dotGit.WriteReference(ref); err != nil {
		return nil, xerrors.Errorf("could not update reference %s: %w", refName, err)
	}

	return c, nil
}

// NewDetachedCommit creates a new commit without updating any reference
func (r *Repository) NewDetachedCommit(tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	return r.newCommit(tree, author, opts)
}

func (r *Repository) newCommit(tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	for _, parentID := range opts.ParentsID {
		if _, err := r.GetCommit(parentID); err != nil {
			return nil, xerrors.Errorf("invalid type for parent %s: %w", parentID.String(), err)
		}
	}

	c := object.NewCommit(tree.ID(), author, opts)
	if _, err := r.dotGit.WriteObject(c.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist commit: %w", err)
	}
	return c, nil
}

// GetTag returns the reference of the tag with the given name.
// ErrTagNotFound is returned if the tag doesn't exist
func (r *Repository) GetTag(name string) (*ginternals.Reference, error) {
	ref, err := r.dotGit.Reference(ginternals.LocalTagFullName(name))
	if err != nil {
		if xerrors.Is(err, ginternals.ErrRefNotFound) {
			return nil, xerrors.Errorf("tag %s: %w", name, ErrTagNotFound)
		}
		return nil, xerrors.Errorf("could not get tag %s: %w", name, err)
	}
	return ref, nil
}

// NewTag creates a new annotated tag.
// ErrTagExists is returned if a tag with the same name already exists
func (r *Repository) NewTag(params *object.TagParams) (*object.Tag, error) {
	t, err := object.NewTag(params)
	if err != nil {
		return nil, xerrors.Errorf("could not create tag: %w", err)
	}

	if _, err := r.dotGit.WriteObject(t.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist tag: %w", err)
	}

	ref := ginternals.NewReference(ginternals.LocalTagFullName(params.Name), t.ID())
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if xerrors.Is(err, ginternals.ErrRefExists) {
			return nil, xerrors.Errorf("tag %s: %w", params.Name, ErrTagExists)
		}
		return nil, xerrors.Errorf("could not create tag reference: %w", err)
	}

	return t, nil
}

// NewLightweightTag creates a new lightweight tag pointing directly at
// an existing object.
// ErrTagExists is returned if a tag with the same name already exists
func (r *Repository) NewLightweightTag(name string, target ginternals.Oid) (*ginternals.Reference, error) {
	found, err := r.dotGit.HasObject(target)
	if err != nil {
		return nil, xerrors.Errorf("could not check target %s: %w", target.String(), err)
	}
	if !found {
		return nil, xerrors.Errorf("target %s has not been persisted: %w", target.String(), object.ErrObjectInvalid)
	}

	ref := ginternals.NewReference(ginternals.LocalTagFullName(name), target)
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if xerrors.Is(err, ginternals.ErrRefExists) {
			return nil, xerrors.Errorf("tag %s: %w", name, ErrTagExists)
		}
		return nil, xerrors.Errorf("could not create tag reference: %w", err)
	}

	return ref, nil
}
