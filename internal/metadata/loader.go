package metadata

import (
	"bytes"

	"github.com/dbsmedya/gosymbol/internal/failure"
)

// LoadBytes is Load over in-memory payloads.
func LoadBytes(image, symbols []byte) (*ModuleImage, error) {
	return Load(bytes.NewReader(image), bytes.NewReader(symbols))
}

// Load parses the managed image and verifies that symbols belongs to it.
// Failures match failure.ErrImageCorrupt, failure.ErrSymbolsMismatched or
// failure.ErrIOFailure.
func Load(image, symbols Source) (*ModuleImage, error) {
	img, err := openPE(image)
	if err != nil {
		return nil, err
	}
	root, err := img.metadataRoot()
	if err != nil {
		return nil, err
	}
	ts, err := clrTables(&img.file.CLR, root)
	if err != nil {
		return nil, failure.New(failure.ErrImageCorrupt, "read table stream", err)
	}

	r := &moduleReader{
		img:          img,
		ts:           ts,
		typeRefNames: make(map[uint32]string),
		typeParams:   make(map[uint32]map[uint32]string),
		methodParams: make(map[uint32]map[uint32]string),
	}
	module, err := r.read()
	if err != nil {
		return nil, err
	}
	module.RuntimeVersion = root.Version

	id, err := img.debugIdentity()
	if err != nil {
		return nil, err
	}
	module.Symbols, err = matchSymbols(id, symbols)
	if err != nil {
		return nil, err
	}
	return module, nil
}
