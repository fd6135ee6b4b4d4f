// Package extract is the single entry point of an extraction: named payloads
// in, method records or a typed failure out.
package extract

import (
	"bytes"
	"context"
	"io"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/logger"
	"github.com/dbsmedya/gosymbol/internal/metadata"
	"github.com/dbsmedya/gosymbol/internal/projector"
	"github.com/dbsmedya/gosymbol/internal/staging"
)

// Payload names the service looks up.
const (
	Assembly = "Assembly"
	Symbols  = "Symbols"
)

// Payload is one named input stream.
type Payload struct {
	Name string
	Data io.Reader
}

// Service runs extractions. It keeps no state between calls and may be
// shared by concurrent callers.
type Service struct {
	cfg config.ExtractionConfig
	log *logger.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(cfg config.ExtractionConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{cfg: cfg, log: log}
}

// Extract loads the Assembly payload, checks it against the Symbols payload
// and returns one record per method in type then declaration order. On
// failure the records are nil and the error matches one of the failure
// kinds, or the context error if ctx was cancelled.
func (s *Service) Extract(ctx context.Context, payloads []Payload) ([]projector.MethodRecord, error) {
	module, err := s.Load(ctx, payloads)
	if err != nil {
		return nil, err
	}

	log := s.log.WithModule(module.Name)
	for _, t := range module.Types {
		log.WithType(t.FullName).Debugw("projecting type", "methods", len(t.Methods))
	}
	records := projector.Project(module)
	log.Infow("extraction complete", "types", len(module.Types), "methods", len(records))
	return records, nil
}

// ExtractBytes is Extract over in-memory image and symbol bytes.
func (s *Service) ExtractBytes(ctx context.Context, image, symbols []byte) ([]projector.MethodRecord, error) {
	return s.Extract(ctx, []Payload{
		{Name: Assembly, Data: bytes.NewReader(image)},
		{Name: Symbols, Data: bytes.NewReader(symbols)},
	})
}

// Load stages both payloads and parses them without projecting.
func (s *Service) Load(ctx context.Context, payloads []Payload) (*metadata.ModuleImage, error) {
	module, err := s.load(ctx, payloads)
	if err != nil {
		s.log.Warnw("extraction failed", "kind", failure.KindName(err), "error", err)
		return nil, err
	}
	return module, nil
}

func (s *Service) load(ctx context.Context, payloads []Payload) (*metadata.ModuleImage, error) {
	image, err := find(payloads, Assembly)
	if err != nil {
		return nil, err
	}
	symbols, err := find(payloads, Symbols)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	area := staging.New(s.cfg)
	defer func() {
		if err := area.Close(); err != nil {
			s.log.Warnw("failed to remove staged payloads", "error", err)
		}
	}()

	imageSrc, err := s.stage(area, image)
	if err != nil {
		return nil, err
	}
	symbolSrc, err := s.stage(area, symbols)
	if err != nil {
		return nil, err
	}
	if files := area.Files(); len(files) > 0 {
		s.log.Debugw("payloads staged on disk", "files", files)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return metadata.Load(imageSrc, symbolSrc)
}

func (s *Service) stage(area *staging.Area, p Payload) (staging.Payload, error) {
	staged, err := area.Stage(p.Name, p.Data)
	if err != nil {
		return nil, err
	}
	s.log.WithPayload(p.Name, staged.Size()).Debug("staged payload")
	return staged, nil
}

// find returns the first payload called name.
func find(payloads []Payload, name string) (Payload, error) {
	for _, p := range payloads {
		if p.Name != name {
			continue
		}
		if p.Data == nil {
			return Payload{}, failure.Newf(failure.ErrMissingInput, "resolve payloads", "payload %q has no data", name)
		}
		return p, nil
	}
	return Payload{}, failure.Newf(failure.ErrMissingInput, "resolve payloads", "no payload named %q", name)
}
