package metadata

import (
	"errors"
	"io"

	"github.com/dbsmedya/gosymbol/internal/failure"
)

// Source is a random-access view of a staged payload. *bytes.Reader and
// *io.SectionReader satisfy it.
type Source interface {
	io.ReaderAt
	Size() int64
}

// readAt reads exactly n bytes at off. Ranges outside the source are
// structural failures of the given kind; any other read error is an
// I/O failure.
func readAt(src Source, off int64, n int, kind error, op string) ([]byte, error) {
	if off < 0 || n < 0 || off > src.Size() || int64(n) > src.Size()-off {
		return nil, failure.Newf(kind, op, "range %d+%d outside %d-byte stream", off, n, src.Size())
	}
	buf := make([]byte, n)
	read, err := src.ReadAt(buf, off)
	if read == n {
		return buf, nil
	}
	return nil, classifyRead(err, kind, op)
}

func classifyRead(err error, kind error, op string) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return failure.New(kind, op, err)
	}
	return failure.New(failure.ErrIOFailure, op, err)
}

func corruptf(op, format string, args ...interface{}) error {
	return failure.Newf(failure.ErrImageCorrupt, op, format, args...)
}

func mismatchf(op, format string, args ...interface{}) error {
	return failure.Newf(failure.ErrSymbolsMismatched, op, format, args...)
}
