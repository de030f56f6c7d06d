package main

import (
	"bytes"
	"testing"

	"github.com/corvidhq/gitkit/env"
	"github.com/corvidhq/gitkit/internal/testhelper"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLsTreeCmd(t *testing.T) {
	t.Parallel()

	dir, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cfg := &globalFlags{
		env: env.NewFromKVList([]string{}),
		C:   &testhelper.StringValue{Value: dir},
	}
	require.NoError(t, initCmd(bytes.NewBuffer(nil), cfg, initCmdFlags{}))

	r, err := loadRepository(cfg)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(r.WorkTree(), "a.txt", []byte("a"), 0o644))
	require.NoError(t, r.WorkTree().MkdirAll("dir", 0o755))
	require.NoError(t, afero.WriteFile(r.WorkTree(), "dir/b.txt", []byte("b"), 0o644))
	require.NoError(t, r.Close())

	treeOut := bytes.NewBuffer(nil)
	require.NoError(t, writeTreeCmd(treeOut, cfg))
	treeID := bytes.TrimSpace(treeOut.Bytes())

	t.Run("non-recursive", func(t *testing.T) {
		out := bytes.NewBuffer(nil)
		require.NoError(t, lsTreeCmd(out, cfg, lsTreeCmdFlags{abbrev: 40}, string(treeID)))
		assert.Contains(t, out.String(), "a.txt")
		assert.Contains(t, out.String(), "dir")
		assert.NotContains(t, out.String(), "b.txt")
	})

	t.Run("recursive", func(t *testing.T) {
		out := bytes.NewBuffer(nil)
		require.NoError(t, lsTreeCmd(out, cfg, lsTreeCmdFlags{recurse: true, abbrev: 40}, string(treeID)))
		assert.Contains(t, out.String(), "dir/b.txt")
	})

	t.Run("name-only", func(t *testing.T) {
		out := bytes.NewBuffer(nil)
		require.NoError(t, lsTreeCmd(out, cfg, lsTreeCmdFlags{nameOnly: true, abbrev: 40}, string(treeID)))
		assert.Equal(t, "a.txt\ndir\n", out.String())
	})

	t.Run("abbreviated query", func(t *testing.T) {
		out := bytes.NewBuffer(nil)
		require.NoError(t, lsTreeCmd(out, cfg, lsTreeCmdFlags{nameOnly: true, abbrev: 40}, string(treeID[:8])))
		assert.Equal(t, "a.txt\ndir\n", out.String())
	})
}
