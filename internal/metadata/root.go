package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const metadataSignature = 0x424A5342 // "BSJB"

// metadataRoot is the version string and named streams of a metadata root,
// either decoded by the PE parser or read from a portable PDB.
type metadataRoot struct {
	Version string
	streams map[string][]byte
}

func (r *metadataRoot) stream(name string) ([]byte, bool) {
	data, ok := r.streams[name]
	return data, ok
}

// parseRoot reads the metadata root and slices out every stream. The first
// stream with a given name wins.
func parseRoot(data []byte) (*metadataRoot, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("metadata root truncated (%d bytes)", len(data))
	}
	if sig := binary.LittleEndian.Uint32(data); sig != metadataSignature {
		return nil, fmt.Errorf("bad metadata signature %#08x", sig)
	}

	versionLen := int(binary.LittleEndian.Uint32(data[12:16]))
	pos := 16
	if versionLen < 0 || versionLen > len(data)-pos-4 {
		return nil, fmt.Errorf("metadata version string length %d out of range", versionLen)
	}
	version := data[pos : pos+versionLen]
	if n := bytes.IndexByte(version, 0); n >= 0 {
		version = version[:n]
	}
	pos += versionLen

	// Flags (2 bytes) then stream count (2 bytes).
	count := int(binary.LittleEndian.Uint16(data[pos+2:]))
	pos += 4

	root := &metadataRoot{Version: string(version), streams: make(map[string][]byte, count)}
	for i := 0; i < count; i++ {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("stream header %d truncated", i)
		}
		offset := binary.LittleEndian.Uint32(data[pos:])
		size := binary.LittleEndian.Uint32(data[pos+4:])
		pos += 8

		nameLen := bytes.IndexByte(data[pos:min(pos+32, len(data))], 0)
		if nameLen < 0 {
			return nil, fmt.Errorf("stream header %d has an unterminated name", i)
		}
		name := string(data[pos : pos+nameLen])
		pos += (nameLen + 4) &^ 3

		if uint64(offset)+uint64(size) > uint64(len(data)) {
			return nil, fmt.Errorf("stream %q (%d+%d) runs past metadata end", name, offset, size)
		}
		if _, dup := root.streams[name]; !dup {
			root.streams[name] = data[offset : offset+size]
		}
	}
	return root, nil
}
