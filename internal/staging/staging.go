// Package staging buffers uploaded payloads for random-access parsing and
// cleans them up afterwards.
package staging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/failure"
)

// Payload is a staged byte stream.
type Payload interface {
	io.ReaderAt
	Size() int64
	Name() string
}

// Area holds the payloads staged for one extraction call. It is not meant
// to outlive that call; Close releases everything it staged.
type Area struct {
	mode     string
	dir      string
	maxBytes int64

	mu    sync.Mutex
	files []*os.File
}

// New opens an Area for cfg.
func New(cfg config.ExtractionConfig) *Area {
	maxBytes := cfg.MaxPayloadBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxPayloadBytes
	}
	dir := cfg.StageDir
	if dir == "" {
		dir = os.TempDir()
	}
	mode := cfg.Staging
	if mode == "" {
		mode = config.StagingMemory
	}
	return &Area{mode: mode, dir: dir, maxBytes: maxBytes}
}

// Stage reads r to the end and returns it as a random-access payload.
// Read errors and payloads over the size limit fail with
// failure.ErrIOFailure.
func (a *Area) Stage(name string, r io.Reader) (Payload, error) {
	op := fmt.Sprintf("stage %s", name)
	if r == nil {
		return nil, failure.Newf(failure.ErrIOFailure, op, "payload has no data stream")
	}
	limited := &io.LimitedReader{R: r, N: a.maxBytes + 1}

	if a.mode == config.StagingDisk {
		return a.stageFile(name, limited, op)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, failure.New(failure.ErrIOFailure, op, err)
	}
	if int64(buf.Len()) > a.maxBytes {
		return nil, a.tooLarge(op)
	}
	return &memoryPayload{Reader: bytes.NewReader(buf.Bytes()), name: name}, nil
}

func (a *Area) stageFile(name string, r io.Reader, op string) (Payload, error) {
	path := filepath.Join(a.dir, fmt.Sprintf("%s-%s", name, uuid.NewString()))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, failure.New(failure.ErrIOFailure, op, err)
	}
	a.track(f)

	n, err := io.Copy(f, r)
	if err != nil {
		return nil, failure.New(failure.ErrIOFailure, op, err)
	}
	if n > a.maxBytes {
		return nil, a.tooLarge(op)
	}
	return &filePayload{File: f, size: n, name: name}, nil
}

func (a *Area) tooLarge(op string) error {
	return failure.Newf(failure.ErrIOFailure, op, "payload exceeds %d bytes", a.maxBytes)
}

func (a *Area) track(f *os.File) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = append(a.files, f)
}

// Files lists the paths currently staged on disk.
func (a *Area) Files() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	paths := make([]string, len(a.files))
	for i, f := range a.files {
		paths[i] = f.Name()
	}
	return paths
}

// Close removes every staged file. It is safe to call more than once.
func (a *Area) Close() error {
	a.mu.Lock()
	files := a.files
	a.files = nil
	a.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type memoryPayload struct {
	*bytes.Reader
	name string
}

func (p *memoryPayload) Name() string { return p.name }

type filePayload struct {
	*os.File
	size int64
	name string
}

func (p *filePayload) Size() int64  { return p.size }
func (p *filePayload) Name() string { return p.name }
