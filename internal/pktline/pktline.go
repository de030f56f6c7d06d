// Package pktline implements the pkt-line framing used by git's smart
// HTTP protocol: every record is prefixed by 4 hex digits giving the
// total length of the record including the prefix itself, or "0000"
// for a flush marker.
package pktline

import (
	"fmt"
	"io"

	"golang.org/x/xerrors"
)

// MaxPayloadSize is the largest payload (excluding the 4-byte length
// prefix) a single pkt-line may carry
const MaxPayloadSize = 65516

// Flush is the literal bytes of a flush-pkt
var Flush = []byte("0000")

// ErrInvalidLength is returned when the 4-char length prefix isn't
// valid hexadecimal, or declares a line shorter than the prefix itself
var ErrInvalidLength = xerrors.New("invalid pkt-line length")

// Encode writes payload as a single pkt-line to w
func Encode(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return xerrors.Errorf("payload of %d bytes exceeds max pkt-line size: %w", len(payload), ErrInvalidLength)
	}
	if _, err := fmt.Fprintf(w, "%04x", len(payload)+4); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// EncodeFlush writes a flush-pkt ("0000") to w
func EncodeFlush(w io.Writer) error {
	_, err := w.Write(Flush)
	return err
}

// Decode reads a single pkt-line from r and returns its payload. A
// flush-pkt decodes to a nil, empty slice with ok set to false
func Decode(r io.Reader) (payload []byte, ok bool, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, false, err
	}

	var length int
	if _, err := fmt.Sscanf(string(lenBuf[:]), "%04x", &length); err != nil {
		return nil, false, xerrors.Errorf("%q: %w", string(lenBuf[:]), ErrInvalidLength)
	}
	if length == 0 {
		return nil, false, nil
	}
	if length < 4 {
		return nil, false, xerrors.Errorf("length %d: %w", length, ErrInvalidLength)
	}

	payload = make([]byte, length-4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// DecodeAll reads pkt-lines from r until a flush-pkt or EOF, returning
// every non-flush payload in order
func DecodeAll(r io.Reader) ([][]byte, error) {
	var lines [][]byte
	for {
		payload, ok, err := Decode(r)
		if err != nil {
			if xerrors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}
		if !ok {
			return lines, nil
		}
		lines = append(lines, payload)
	}
}
