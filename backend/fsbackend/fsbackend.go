// Package fsbackend contains an implementation of the backend.Backend
// interface for the filesystem
package fsbackend

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/corvidhq/gitkit/backend"
	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/packfile"
	"github.com/corvidhq/gitkit/internal/cache"
	"github.com/corvidhq/gitkit/internal/gitpath"
	"github.com/corvidhq/gitkit/internal/syncutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// we make sure the struct implements the interface
var _ backend.Backend = (*Backend)(nil)

const (
	// objectCacheSize is the amount of objects kept in memory to
	// avoid re-reading and re-inflating them from disk
	objectCacheSize = 1000
	// objectMutexShards is the amount of locks used to guard
	// concurrent access to the odb. Using more than one lock allows
	// unrelated objects to be read/written concurrently
	objectMutexShards = 128
)

// Backend is a Backend implementation that uses the filesystem to store data
type Backend struct {
	root string
	fs   afero.Fs

	objectMu     *syncutil.NamedMutex
	cache        *cache.LRU
	looseObjects sync.Map
	packfiles    map[ginternals.Oid]*packfile.Pack
}

// New returns a new Backend object
func New(dotGitPath string) *Backend {
	b := &Backend{
		root:      dotGitPath,
		fs:        afero.NewOsFs(),
		objectMu:  syncutil.NewNamedMutex(objectMutexShards),
		cache:     cache.NewLRU(objectCacheSize),
		packfiles: map[ginternals.Oid]*packfile.Pack{},
	}
	// Loading loose objects and packfiles is best effort: a repo that
	// doesn't exist yet (Init() not called) or that's empty simply
	// won't have anything to load
	_ = b.loadLooseObject()
	_ = b.loadPacks()
	return b
}

// Path returns the absolute path of the .git directory managed by
// this backend
func (b *Backend) Path() string {
	return b.root
}

// Close frees the resources held by the backend
func (b *Backend) Close() error {
	for _, pack := range b.packfiles {
		if err := pack.Close(); err != nil {
			return xerrors.Errorf("could not close packfile: %w", err)
		}
	}
	return nil
}

// Init initializes a repository
func (b *Backend) Init() error {
	// Create the directories
	dirs := []string{
		gitpath.ObjectsPath,
		gitpath.RefsTagsPath,
		gitpath.RefsHeadsPath,
		gitpath.ObjectsInfoPath,
		gitpath.ObjectsPackPath,
	}
	for _, d := range dirs {
		fullPath := filepath.Join(b.root, d)
		if err := os.MkdirAll(fullPath, 0o750); err != nil {
			return xerrors.Errorf("could not create directory %s: %w", d, err)
		}
	}

	// Create the files with the default content
	// (taken from a repo created on github)
	files := []struct {
		path    string
		content []byte
	}{
		{
			path:    gitpath.DescriptionPath,
			content: []byte("Unnamed repository; edit this file 'description' to name the repository.\n"),
		},
	}
	for _, f := range files {
		fullPath := filepath.Join(b.root, f.path)
		if err := ioutil.WriteFile(fullPath, f.content, 0o644); err != nil {
			return xerrors.Errorf("could not create file %s: %w", f, err)
		}
	}

	err := b.setDefaultCfg()
	if err != nil {
		return xerrors.Errorf("could not set the default config: %w", err)
	}

	return nil
}
