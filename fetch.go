package git

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/internal/pktline"
	"golang.org/x/xerrors"
)

// ErrProtocolStatus is returned when the remote answers a smart-HTTP
// request with an unexpected status code or content type
var ErrProtocolStatus = xerrors.New("unexpected protocol response")

const uploadPackService = "git-upload-pack"

// FetchResult describes the refs advertised by a remote during a fetch
type FetchResult struct {
	// Refs maps every advertised ref name to the commit it points to
	Refs map[string]ginternals.Oid
	// ObjectsInserted is the number of base objects ingested from the
	// pack stream
	ObjectsInserted int
}

// Fetch retrieves every ref advertised by remote over smart-HTTP and
// ingests the resulting pack stream into the repository's object
// store. It implements the single want/done exchange described by
// the smart-HTTP upload-pack protocol, with no shallow or thin-pack
// negotiation
func (r *Repository) Fetch(ctx httpDoer, remote string) (*FetchResult, error) {
	refs, err := advertiseRefs(ctx, remote)
	if err != nil {
		return nil, err
	}

	if len(refs) == 0 {
		return &FetchResult{Refs: refs}, nil
	}

	body, err := uploadPackRequestBody(refs)
	if err != nil {
		return nil, err
	}

	resp, err := doPost(ctx, remote, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	packReader, err := stripUploadPackNAK(resp.Body)
	if err != nil {
		return nil, err
	}

	n, err := r.IngestPack(packReader)
	if err != nil {
		return nil, xerrors.Errorf("could not ingest pack stream: %w", err)
	}

	return &FetchResult{Refs: refs, ObjectsInserted: n}, nil
}

// httpDoer is implemented by *http.Client. It exists so the fetch
// path can be driven by a fake client in tests
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func advertiseRefs(client httpDoer, remote string) (map[string]ginternals.Oid, error) {
	url := fmt.Sprintf("%s/info/refs?service=%s", strings.TrimSuffix(remote, "/"), uploadPackService)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("could not build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", remote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		return nil, xerrors.Errorf("%s returned status %d: %w", remote, resp.StatusCode, ErrProtocolStatus)
	}

	wantContentType := fmt.Sprintf("application/x-%s-advertisement", uploadPackService)
	if ct := resp.Header.Get("Content-Type"); ct != wantContentType {
		return nil, xerrors.Errorf("%s returned content-type %q, want %q: %w", remote, ct, wantContentType, ErrProtocolStatus)
	}

	br := bufio.NewReader(resp.Body)

	// the advertisement starts with a "# service=..." banner line of
	// its own, terminated by a flush-pkt, before the ref list begins
	banner, ok, err := pktline.Decode(br)
	if err != nil {
		return nil, xerrors.Errorf("could not parse refs advertisement: %w", err)
	}

	var lines [][]byte
	if ok && bytes.HasPrefix(bytes.TrimSuffix(banner, []byte("\n")), []byte("# service=")) {
		if _, _, err := pktline.Decode(br); err != nil {
			return nil, xerrors.Errorf("could not parse refs advertisement: %w", err)
		}
	} else if ok {
		// no banner: the line we just read is already the first ref
		lines = append(lines, banner)
	}

	rest, err := pktline.DecodeAll(br)
	if err != nil {
		return nil, xerrors.Errorf("could not parse refs advertisement: %w", err)
	}
	lines = append(lines, rest...)

	refs := map[string]ginternals.Oid{}
	for _, line := range lines {
		line = bytes.TrimSuffix(line, []byte("\n"))

		// the first ref line carries the server's capabilities after
		// a NUL byte; we don't act on any of them
		if idx := bytes.IndexByte(line, 0); idx >= 0 {
			line = line[:idx]
		}

		parts := strings.SplitN(string(line), " ", 2)
		if len(parts) != 2 {
			continue
		}

		oid, err := ginternals.NewOidFromStr(parts[0])
		if err != nil {
			continue
		}
		refs[parts[1]] = oid
	}

	return refs, nil
}

// uploadPackRequestBody builds the body of the upload-pack POST: one
// "want <hex40>" pkt-line per advertised ref, followed by "done"
func uploadPackRequestBody(refs map[string]ginternals.Oid) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, oid := range refs {
		if err := pktline.Encode(buf, []byte("want "+oid.String()+"\n")); err != nil {
			return nil, err
		}
	}
	if err := pktline.EncodeFlush(buf); err != nil {
		return nil, err
	}
	if err := pktline.Encode(buf, []byte("done\n")); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func doPost(client httpDoer, remote string, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(remote, "/"), uploadPackService)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", uploadPackService))
	req.Header.Set("Accept", fmt.Sprintf("application/x-%s-result", uploadPackService))

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("could not reach %s: %w", remote, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, xerrors.Errorf("%s returned status %d: %w", remote, resp.StatusCode, ErrProtocolStatus)
	}
	return resp, nil
}

// stripUploadPackNAK consumes the "0008NAK\n" pkt-line that precedes
// the pack bytes in an upload-pack response and returns a reader
// positioned at the start of the pack stream
func stripUploadPackNAK(body io.Reader) (io.Reader, error) {
	br := bufio.NewReader(body)
	payload, ok, err := pktline.Decode(br)
	if err != nil {
		return nil, xerrors.Errorf("could not read upload-pack preamble: %w", err)
	}
	if !ok || string(payload) != "NAK\n" {
		return nil, xerrors.Errorf("expected NAK preamble, got %q: %w", payload, ErrProtocolStatus)
	}
	return br, nil
}
