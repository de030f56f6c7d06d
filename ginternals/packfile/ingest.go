package packfile

import (
	"bufio"
	"compress/zlib"
	"io"

	"github.com/corvidhq/gitkit/ginternals/object"
	"golang.org/x/xerrors"
)

// ErrMalformedPack is returned when the bytes of a pack stream don't
// honor the format described in pack-format.txt
var ErrMalformedPack = xerrors.New("malformed pack")

// InsertFunc persists a base object (commit/tree/blob/tag) parsed out
// of a pack stream. It's implemented by the object store
type InsertFunc func(o *object.Object) error

// Ingest reads a pack stream sequentially (12-byte header followed by
// the declared number of entries) and hands every base-typed entry
// (commit, tree, blob, tag) to insert. Deltified entries (OFS_DELTA,
// REF_DELTA) are recognized, their frames fully consumed so the
// cursor stays in sync, but they are not reconstructed against their
// base and are dropped
func Ingest(r io.Reader, insert InsertFunc) (inserted int, err error) {
	br := bufio.NewReader(r)

	var header [packfileHeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return 0, xerrors.Errorf("could not read pack header: %w", err)
	}
	if !bytesEqual(header[0:4], packfileMagic()) {
		return 0, xerrors.Errorf("invalid header: %w", ErrInvalidMagic)
	}
	if !bytesEqual(header[4:8], packfileVersion()) {
		return 0, xerrors.Errorf("invalid header: %w", ErrInvalidVersion)
	}
	count := be32(header[8:12])

	for i := uint32(0); i < count; i++ {
		typ, size, err := readEntryTypeAndSize(br)
		if err != nil {
			return inserted, xerrors.Errorf("entry %d: could not read type/size: %w", i, err)
		}

		switch typ {
		case object.ObjectDeltaOFS:
			if _, err := readOfsDeltaOffset(br); err != nil {
				return inserted, xerrors.Errorf("entry %d: could not read delta offset: %w", i, err)
			}
		case object.ObjectDeltaRef:
			base := make([]byte, 20)
			if _, err := io.ReadFull(br, base); err != nil {
				return inserted, xerrors.Errorf("entry %d: could not read delta base: %w", i, err)
			}
		}

		body, err := inflateEntry(br, size)
		if err != nil {
			return inserted, xerrors.Errorf("entry %d: %w", i, err)
		}

		switch typ {
		case object.TypeCommit, object.TypeTree, object.TypeBlob, object.TypeTag:
			o := object.New(typ, body)
			if err := insert(o); err != nil {
				return inserted, xerrors.Errorf("entry %d: could not insert object: %w", i, err)
			}
			inserted++
		default:
			// deltified entry: frame consumed, intentionally dropped
		}
	}

	return inserted, nil
}

// inflateEntry attaches a zlib reader to r and inflates exactly one
// entry's body, verifying its size matches what the header declared
func inflateEntry(r io.Reader, wantSize uint64) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, xerrors.Errorf("could not open zlib stream: %w", err)
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, xerrors.Errorf("could not inflate object: %w", err)
	}
	if uint64(len(body)) != wantSize {
		return nil, xerrors.Errorf("declared size %d, got %d: %w", wantSize, len(body), ErrMalformedPack)
	}
	return body, nil
}

// readEntryTypeAndSize reads the variable-length type/size prefix of
// a pack entry. The first byte packs a 3-bit type in bits 4..6 and
// the low 4 bits of the size; subsequent bytes each carry 7 more bits
// of size, little-endian, as long as their MSB is set
func readEntryTypeAndSize(r io.ByteReader) (object.Type, uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	typ := object.Type((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)

	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
	}

	return typ, size, nil
}

// readOfsDeltaOffset reads the variable-length negative offset used
// by OFS_DELTA entries. Each byte carries 7 bits, MSB-terminated,
// with the git-specific "offset encoding" bias applied between bytes
func readOfsDeltaOffset(r io.ByteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	offset := uint64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		offset = ((offset + 1) << 7) | uint64(b&0x7f)
	}
	return offset, nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
