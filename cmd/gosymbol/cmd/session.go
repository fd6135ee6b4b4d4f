package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/extract"
	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/logger"
)

// session holds what every extraction command needs: the effective
// configuration, a logger, a service and the opened input files.
type session struct {
	cfg      *config.Config
	log      *logger.Logger
	service  *extract.Service
	payloads []extract.Payload
	files    []*os.File
}

func newSession() (*session, error) {
	cfg, err := config.LoadOrDefault(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(GetCLIOverrides())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	s := &session{
		cfg:     cfg,
		log:     log,
		service: extract.NewService(cfg.Extraction, log),
	}
	if err := s.open(extract.Assembly, assemblyPath); err != nil {
		s.close()
		return nil, err
	}
	if err := s.open(extract.Symbols, symbolsPath); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// open adds a payload for path. An empty path adds nothing so the service
// reports the payload as missing.
func (s *session) open(name, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return failure.New(failure.ErrMissingInput, "open "+name, err)
	}
	if err != nil {
		return failure.New(failure.ErrIOFailure, "open "+name, err)
	}
	s.files = append(s.files, f)
	s.payloads = append(s.payloads, extract.Payload{Name: name, Data: f})
	s.log.Debugw("opened payload", "payload", name, "path", path)
	return nil
}

func (s *session) colorize() bool {
	return s.cfg.Output.Color && !noColor
}

func (s *session) close() {
	for _, f := range s.files {
		_ = f.Close()
	}
	_ = s.log.Close()
}
