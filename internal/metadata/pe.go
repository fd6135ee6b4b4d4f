package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	peparser "github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"

	"github.com/dbsmedya/gosymbol/internal/failure"
)

const (
	debugTypeCodeView  = 2
	portablePDBVersion = 0x504D // "PM" in the debug entry minor version
	codeViewRSDS       = 0x53445352
)

// debugIdentity is what the image says about its symbol file.
type debugIdentity struct {
	GUID     [16]byte
	Age      uint32
	Stamp    uint32
	Path     string
	Portable bool
}

// peImage is a fully read PE file parsed by saferwall/pe.
type peImage struct {
	data []byte
	file *peparser.File
}

// openPE reads src into memory and parses the PE container together with
// its CLR header, metadata streams and tables.
func openPE(src Source) (*peImage, error) {
	const op = "read pe headers"
	data, err := readAt(src, 0, int(src.Size()), failure.ErrImageCorrupt, op)
	if err != nil {
		return nil, err
	}

	f, err := peparser.NewBytes(data, &peparser.Options{
		// The parser reports anomalies through its own logger; the loader
		// turns what matters into typed failures instead.
		Logger: pelog.NewStdLogger(io.Discard),
	})
	if err != nil {
		return nil, failure.New(failure.ErrImageCorrupt, op, err)
	}
	if err := f.Parse(); err != nil {
		return nil, failure.New(failure.ErrImageCorrupt, op, err)
	}
	return &peImage{data: data, file: f}, nil
}

// rvaOffset maps an RVA range onto a file offset through the section table.
func (p *peImage) rvaOffset(rva, size uint32) (int64, error) {
	for _, s := range p.file.Sections {
		h := s.Header
		extent := max(h.VirtualSize, h.SizeOfRawData)
		if rva < h.VirtualAddress || rva-h.VirtualAddress >= extent {
			continue
		}
		delta := rva - h.VirtualAddress
		if uint64(delta)+uint64(size) > uint64(h.SizeOfRawData) {
			name := strings.TrimRight(string(h.Name[:]), "\x00")
			return 0, fmt.Errorf("rva %#x+%d runs past raw data of section %s", rva, size, name)
		}
		return int64(h.PointerToRawData) + int64(delta), nil
	}
	return 0, fmt.Errorf("rva %#x not in any section", rva)
}

func (p *peImage) readOffset(off int64, size uint32, op string) ([]byte, error) {
	if off < 0 || uint64(off)+uint64(size) > uint64(len(p.data)) {
		return nil, corruptf(op, "range %d+%d outside %d-byte image", off, size, len(p.data))
	}
	return p.data[off : off+int64(size)], nil
}

func (p *peImage) readRVA(rva, size uint32, op string) ([]byte, error) {
	off, err := p.rvaOffset(rva, size)
	if err != nil {
		return nil, failure.New(failure.ErrImageCorrupt, op, err)
	}
	return p.readOffset(off, size, op)
}

// metadataRoot returns the CLR metadata root the parser decoded. Images
// without a readable CLI header are not managed modules.
func (p *peImage) metadataRoot() (*metadataRoot, error) {
	const op = "read cli header"
	if !p.file.HasCLR {
		return nil, corruptf(op, "image has no readable CLI header (not a managed module)")
	}
	clr := &p.file.CLR
	if clr.CLRHeader.MetaData.VirtualAddress == 0 || clr.CLRHeader.MetaData.Size == 0 {
		return nil, corruptf(op, "CLI header has no metadata directory")
	}
	if clr.MetadataHeader.Signature != metadataSignature {
		return nil, corruptf("read metadata root", "bad metadata signature %#08x", clr.MetadataHeader.Signature)
	}
	return &metadataRoot{
		Version: strings.TrimRight(clr.MetadataHeader.Version, "\x00"),
		streams: clr.MetadataStreams,
	}, nil
}

// debugIdentity returns the first CodeView entry of the debug directory, or
// nil if the image has none.
func (p *peImage) debugIdentity() (*debugIdentity, error) {
	for _, d := range p.file.Debugs {
		if d.Struct.Type != debugTypeCodeView {
			continue
		}
		return p.readCodeView(d.Struct)
	}
	return nil, nil
}

func (p *peImage) readCodeView(entry peparser.ImageDebugDirectory) (*debugIdentity, error) {
	const op = "read codeview entry"
	var data []byte
	var err error
	if entry.AddressOfRawData != 0 {
		data, err = p.readRVA(entry.AddressOfRawData, entry.SizeOfData, op)
	} else {
		data, err = p.readOffset(int64(entry.PointerToRawData), entry.SizeOfData, op)
	}
	if err != nil {
		return nil, err
	}
	if len(data) < 24 || binary.LittleEndian.Uint32(data) != codeViewRSDS {
		return nil, corruptf(op, "codeview entry is not an RSDS record")
	}

	id := &debugIdentity{
		Age:      binary.LittleEndian.Uint32(data[20:24]),
		Stamp:    entry.TimeDateStamp,
		Portable: entry.MinorVersion == portablePDBVersion,
	}
	copy(id.GUID[:], data[4:20])
	path := data[24:]
	if n := bytes.IndexByte(path, 0); n >= 0 {
		path = path[:n]
	}
	id.Path = string(path)
	return id, nil
}
