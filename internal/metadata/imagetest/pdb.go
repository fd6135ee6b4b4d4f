package imagetest

import (
	"bytes"
	"encoding/binary"
)

const msfBlockSize = 512

// PortablePDB returns a minimal portable PDB whose id is guid followed by
// stamp.
func PortablePDB(guid [16]byte, stamp uint32) []byte {
	var pdb bytes.Buffer
	pdb.Write(guid[:])
	le(&pdb, stamp, uint32(0), uint64(0))
	return metadataRoot("PDB v1.0", []stream{
		{"#Pdb", pdb.Bytes()},
		{"#Strings", []byte{0, 0, 0, 0}},
	})
}

// WindowsPDB returns a six-block MSF 7.00 file whose PDB info stream carries
// guid and age.
func WindowsPDB(guid [16]byte, age uint32) []byte {
	const (
		blockMapBlock  = 3
		directoryBlock = 4
		infoBlock      = 5
		numBlocks      = 6
	)
	file := make([]byte, numBlocks*msfBlockSize)
	put := func(block int, data []byte) { copy(file[block*msfBlockSize:], data) }

	var dir bytes.Buffer
	le(&dir, uint32(2), uint32(0), uint32(28), uint32(infoBlock))

	var sb bytes.Buffer
	sb.WriteString("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")
	le(&sb, uint32(msfBlockSize), uint32(1), uint32(numBlocks), uint32(dir.Len()), uint32(0), uint32(blockMapBlock))
	put(0, sb.Bytes())

	blockMap := make([]byte, 4)
	binary.LittleEndian.PutUint32(blockMap, directoryBlock)
	put(blockMapBlock, blockMap)
	put(directoryBlock, dir.Bytes())

	var info bytes.Buffer
	le(&info, uint32(20000404), uint32(0x5F3A1C00), age)
	info.Write(guid[:])
	put(infoBlock, info.Bytes())
	return file
}
