package metadata

import (
	"bytes"
	"errors"
	"fmt"
)

var errBadCompressed = errors.New("invalid compressed integer")

// decodeCompressed reads an ECMA-335 II.23.2 compressed unsigned integer and
// returns the value and its encoded width.
func decodeCompressed(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, errBadCompressed
	}
	switch {
	case b[0]&0x80 == 0:
		return uint32(b[0]), 1, nil
	case b[0]&0xC0 == 0x80:
		if len(b) < 2 {
			return 0, 0, errBadCompressed
		}
		return uint32(b[0]&0x3F)<<8 | uint32(b[1]), 2, nil
	case b[0]&0xE0 == 0xC0:
		if len(b) < 4 {
			return 0, 0, errBadCompressed
		}
		return uint32(b[0]&0x1F)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), 4, nil
	}
	return 0, 0, errBadCompressed
}

// decodeCompressedSigned reads a compressed signed integer (sign bit rotated
// into the least significant position).
func decodeCompressedSigned(b []byte) (int32, int, error) {
	raw, n, err := decodeCompressed(b)
	if err != nil {
		return 0, 0, err
	}
	value := int32(raw >> 1)
	if raw&1 != 0 {
		switch n {
		case 1:
			value -= 0x40
		case 2:
			value -= 0x2000
		default:
			value -= 0x10000000
		}
	}
	return value, n, nil
}

type stringHeap []byte

func (h stringHeap) at(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	if int64(idx) >= int64(len(h)) {
		return "", fmt.Errorf("string index %#x outside %d-byte heap", idx, len(h))
	}
	rest := h[idx:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", fmt.Errorf("string at %#x is not terminated", idx)
	}
	return string(rest[:end]), nil
}

type blobHeap []byte

func (h blobHeap) at(idx uint32) ([]byte, error) {
	if idx == 0 {
		return nil, nil
	}
	if int64(idx) >= int64(len(h)) {
		return nil, fmt.Errorf("blob index %#x outside %d-byte heap", idx, len(h))
	}
	size, n, err := decodeCompressed(h[idx:])
	if err != nil {
		return nil, fmt.Errorf("blob at %#x: %w", idx, err)
	}
	start := int64(idx) + int64(n)
	if start+int64(size) > int64(len(h)) {
		return nil, fmt.Errorf("blob at %#x (%d bytes) runs past heap end", idx, size)
	}
	return h[start : start+int64(size)], nil
}

type guidHeap []byte

// at resolves a 1-based GUID index.
func (h guidHeap) at(idx uint32) ([16]byte, error) {
	var g [16]byte
	if idx == 0 {
		return g, nil
	}
	off := (int64(idx) - 1) * 16
	if off+16 > int64(len(h)) {
		return g, fmt.Errorf("guid index %d outside %d-byte heap", idx, len(h))
	}
	copy(g[:], h[off:off+16])
	return g, nil
}
