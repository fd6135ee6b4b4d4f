package metadata

import (
	"bytes"
	"encoding/binary"

	"github.com/dbsmedya/gosymbol/internal/failure"
)

const (
	msfMagic          = "Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00"
	msfSuperBlockSize = 56
	pdbInfoStream     = 1
	pdbInfoSize       = 28
	pdbIDSize         = 20
	nilStreamSize     = 0xFFFFFFFF
)

// matchSymbols checks that the symbol stream was produced for the image
// whose CodeView entry is id.
func matchSymbols(id *debugIdentity, symbols Source) (SymbolIdentity, error) {
	const op = "match symbols"
	if symbols.Size() == 0 {
		return SymbolIdentity{}, mismatchf(op, "symbol stream is empty")
	}
	if id == nil {
		return SymbolIdentity{}, mismatchf(op, "image has no CodeView debug entry")
	}

	head, err := readAt(symbols, 0, int(min(symbols.Size(), int64(len(msfMagic)))), failure.ErrSymbolsMismatched, op)
	if err != nil {
		return SymbolIdentity{}, err
	}

	switch {
	case len(head) >= 4 && binary.LittleEndian.Uint32(head) == metadataSignature:
		return matchPortablePDB(id, symbols)
	case bytes.Equal(head, []byte(msfMagic)):
		return matchWindowsPDB(id, symbols)
	}
	return SymbolIdentity{}, mismatchf(op, "unrecognized symbol file format")
}

// matchPortablePDB compares the #Pdb stream id with the CodeView GUID and the
// debug entry timestamp.
func matchPortablePDB(id *debugIdentity, symbols Source) (SymbolIdentity, error) {
	const op = "match portable pdb"
	data, err := readAt(symbols, 0, int(symbols.Size()), failure.ErrSymbolsMismatched, op)
	if err != nil {
		return SymbolIdentity{}, err
	}
	root, err := parseRoot(data)
	if err != nil {
		return SymbolIdentity{}, failure.New(failure.ErrSymbolsMismatched, op, err)
	}
	pdb, ok := root.stream("#Pdb")
	if !ok || len(pdb) < pdbIDSize {
		return SymbolIdentity{}, mismatchf(op, "metadata has no #Pdb stream")
	}

	var guid [16]byte
	copy(guid[:], pdb[:16])
	stamp := binary.LittleEndian.Uint32(pdb[16:20])
	if guid != id.GUID || stamp != id.Stamp {
		return SymbolIdentity{}, mismatchf(op, "pdb id %s/%08x does not match image %s/%08x",
			FormatGUID(guid), stamp, FormatGUID(id.GUID), id.Stamp)
	}
	return SymbolIdentity{Format: FormatPortablePDB, GUID: guid, Age: id.Age, Stamp: stamp, Path: id.Path}, nil
}

type msfSuperBlock struct {
	BlockSize         uint32
	FreeBlockMapBlock uint32
	NumBlocks         uint32
	NumDirectoryBytes uint32
	Unknown           uint32
	BlockMapAddr      uint32
}

// msfFile reads streams out of an MSF 7.00 container.
type msfFile struct {
	src Source
	sb  msfSuperBlock
}

func (f *msfFile) block(n uint32, op string) ([]byte, error) {
	if n >= f.sb.NumBlocks {
		return nil, mismatchf(op, "block %d outside %d-block file", n, f.sb.NumBlocks)
	}
	return readAt(f.src, int64(n)*int64(f.sb.BlockSize), int(f.sb.BlockSize), failure.ErrSymbolsMismatched, op)
}

// directory reassembles the stream directory from the blocks listed in the
// block map.
func (f *msfFile) directory() ([]byte, error) {
	const op = "read msf directory"
	bs := f.sb.BlockSize
	blocks := (f.sb.NumDirectoryBytes + bs - 1) / bs
	if blocks == 0 || blocks*4 > bs {
		return nil, mismatchf(op, "directory of %d bytes not supported", f.sb.NumDirectoryBytes)
	}
	blockMap, err := f.block(f.sb.BlockMapAddr, op)
	if err != nil {
		return nil, err
	}

	dir := make([]byte, 0, blocks*bs)
	for i := uint32(0); i < blocks; i++ {
		b, err := f.block(binary.LittleEndian.Uint32(blockMap[i*4:]), op)
		if err != nil {
			return nil, err
		}
		dir = append(dir, b...)
	}
	return dir[:f.sb.NumDirectoryBytes], nil
}

// streamFirstBlock returns the first block of stream n and the stream size.
func (f *msfFile) streamFirstBlock(dir []byte, n uint32) (uint32, uint32, error) {
	const op = "read msf directory"
	if len(dir) < 4 {
		return 0, 0, mismatchf(op, "directory truncated")
	}
	count := binary.LittleEndian.Uint32(dir)
	if n >= count || uint64(4+4*uint64(count)) > uint64(len(dir)) {
		return 0, 0, mismatchf(op, "stream %d not present in directory of %d streams", n, count)
	}

	blocksBefore := uint64(0)
	for i := uint32(0); i < n; i++ {
		size := binary.LittleEndian.Uint32(dir[4+4*i:])
		if size == nilStreamSize {
			continue
		}
		blocksBefore += (uint64(size) + uint64(f.sb.BlockSize) - 1) / uint64(f.sb.BlockSize)
	}
	size := binary.LittleEndian.Uint32(dir[4+4*n:])
	if size == nilStreamSize || size == 0 {
		return 0, 0, mismatchf(op, "stream %d is empty", n)
	}
	at := 4 + 4*uint64(count) + 4*blocksBefore
	if at+4 > uint64(len(dir)) {
		return 0, 0, mismatchf(op, "block list of stream %d truncated", n)
	}
	return binary.LittleEndian.Uint32(dir[at:]), size, nil
}

// matchWindowsPDB compares the PDB info stream GUID with the CodeView GUID.
func matchWindowsPDB(id *debugIdentity, symbols Source) (SymbolIdentity, error) {
	const op = "match windows pdb"
	raw, err := readAt(symbols, 0, msfSuperBlockSize, failure.ErrSymbolsMismatched, op)
	if err != nil {
		return SymbolIdentity{}, err
	}
	f := &msfFile{src: symbols}
	if err := binary.Read(bytes.NewReader(raw[len(msfMagic):]), binary.LittleEndian, &f.sb); err != nil {
		return SymbolIdentity{}, failure.New(failure.ErrSymbolsMismatched, op, err)
	}
	switch f.sb.BlockSize {
	case 512, 1024, 2048, 4096:
	default:
		return SymbolIdentity{}, mismatchf(op, "unsupported block size %d", f.sb.BlockSize)
	}

	dir, err := f.directory()
	if err != nil {
		return SymbolIdentity{}, err
	}
	first, size, err := f.streamFirstBlock(dir, pdbInfoStream)
	if err != nil {
		return SymbolIdentity{}, err
	}
	if size < pdbInfoSize {
		return SymbolIdentity{}, mismatchf(op, "pdb info stream is %d bytes", size)
	}
	info, err := f.block(first, op)
	if err != nil {
		return SymbolIdentity{}, err
	}

	age := binary.LittleEndian.Uint32(info[8:12])
	var guid [16]byte
	copy(guid[:], info[12:28])
	if guid != id.GUID {
		return SymbolIdentity{}, mismatchf(op, "pdb guid %s does not match image %s",
			FormatGUID(guid), FormatGUID(id.GUID))
	}
	return SymbolIdentity{Format: FormatWindowsPDB, GUID: guid, Age: age, Stamp: id.Stamp, Path: id.Path}, nil
}
