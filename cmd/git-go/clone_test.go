package main

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	git "github.com/corvidhq/gitkit"
	"github.com/corvidhq/gitkit/env"
	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/internal/pktline"
	"github.com/corvidhq/gitkit/internal/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCloneDir(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		remote   string
		expected string
	}{
		{remote: "https://example.tld/user/repo.git", expected: "repo"},
		{remote: "https://example.tld/user/repo", expected: "repo"},
		{remote: "https://example.tld/user/repo/", expected: "repo"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, defaultCloneDir(tc.remote))
	}
}

func newFakeUploadPackServer(t *testing.T, headCommit ginternals.Oid) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/info/refs", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")

		buf := &bytes.Buffer{}
		require.NoError(t, pktline.Encode(buf, []byte("# service=git-upload-pack\n")))
		require.NoError(t, pktline.EncodeFlush(buf))
		require.NoError(t, pktline.Encode(buf, []byte(fmt.Sprintf("%s HEAD\x00\n", headCommit.String()))))
		require.NoError(t, pktline.Encode(buf, []byte(fmt.Sprintf("%s refs/heads/master\n", headCommit.String()))))
		require.NoError(t, pktline.EncodeFlush(buf))
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/git-upload-pack", func(w http.ResponseWriter, req *http.Request) {
		_, err := pktline.DecodeAll(req.Body)
		require.NoError(t, err)

		buf := &bytes.Buffer{}
		require.NoError(t, pktline.Encode(buf, []byte("NAK\n")))
		buf.Write([]byte{'P', 'A', 'C', 'K'})
		buf.Write([]byte{0, 0, 0, 2})
		buf.Write([]byte{0, 0, 0, 1})
		buf.WriteByte(byte(object.TypeBlob)<<4 | 5)
		zw := zlib.NewWriter(buf)
		_, _ = zw.Write([]byte("hello"))
		_ = zw.Close()
		buf.Write(make([]byte, 20))
		_, _ = w.Write(buf.Bytes())
	})

	return httptest.NewServer(mux)
}

func TestCloneCmd(t *testing.T) {
	t.Parallel()

	srv := newFakeUploadPackServer(t, ginternals.NullOid)
	defer srv.Close()

	dir, cleanupDst := testhelper.TempDir(t)
	t.Cleanup(cleanupDst)

	out := bytes.NewBufferString("")
	err := cloneCmd(out, &globalFlags{
		env: env.NewFromKVList([]string{}),
		C:   &testhelper.StringValue{Value: dir},
	}, srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Cloning into")

	r, err := git.OpenRepository(dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})

	ref, err := r.GetReference(ginternals.LocalBranchFullName("master"))
	require.NoError(t, err)
	assert.Equal(t, ginternals.NullOid, ref.Target())

	head, err := r.GetReference(ginternals.Head)
	require.NoError(t, err)
	assert.Equal(t, ginternals.NullOid, head.Target())
}
