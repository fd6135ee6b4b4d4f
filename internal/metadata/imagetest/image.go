// Package imagetest assembles managed PE images and their symbol files in
// memory for tests.
package imagetest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

// Method attribute and implementation flags used by fixtures.
const (
	MethodPrivate     uint16 = 0x0001
	MethodFamily      uint16 = 0x0004
	MethodPublic      uint16 = 0x0006
	MethodStatic      uint16 = 0x0010
	MethodFinal       uint16 = 0x0020
	MethodVirtual     uint16 = 0x0040
	MethodHideBySig   uint16 = 0x0080
	MethodAbstract    uint16 = 0x0400
	MethodPInvokeImpl uint16 = 0x2000

	ImplRuntime      uint16 = 0x0003
	ImplSynchronized uint16 = 0x0020
	ImplInternalCall uint16 = 0x1000
)

const (
	textRVA        = 0x2000
	textOffset     = 0x200
	fileAlignment  = 0x200
	sectionAlign   = 0x2000
	peHeaderOffset = 0x80
	cliHeaderSize  = 72

	portablePDBMinor = 0x504D
)

// Image describes the module to assemble.
type Image struct {
	Module         string // Module table name
	RuntimeVersion string // metadata root version, defaults to v4.0.30319
	Types          []Type
	TypeRefs       []TypeRef
	TypeSpecs      [][]byte

	// MethodPtr stores MethodDef rows in reverse and emits a MethodPtr
	// table in an uncompressed "#-" stream.
	MethodPtr bool

	// Debug adds a CodeView debug directory entry when non-nil.
	Debug *Debug
}

// Type is one TypeDef row and the methods it declares.
type Type struct {
	Namespace     string
	Name          string
	Flags         uint32
	Enclosing     int // 1-based TypeDef row of the enclosing type, 0 if none
	GenericParams []string
	Methods       []Method
}

// TypeRef is one TypeRef row. A non-zero Scope nests it in that 1-based
// TypeRef row; otherwise it resolves to the module.
type TypeRef struct {
	Namespace string
	Name      string
	Scope     int
}

// Method is one MethodDef row. Code is the raw IL; nil leaves RVA zero.
type Method struct {
	Name          string
	Flags         uint16
	ImplFlags     uint16
	Signature     []byte
	Code          []byte
	Fat           bool // force a fat header
	RVA           uint32
	GenericParams []string
}

// Debug is the CodeView identity recorded in the image.
type Debug struct {
	GUID     [16]byte
	Age      uint32
	Stamp    uint32
	Path     string
	Portable bool
}

// Build returns the PE image bytes.
func (img *Image) Build() []byte {
	var text bytes.Buffer
	text.Write(make([]byte, cliHeaderSize))

	rvas := make([][]uint32, len(img.Types))
	for i, t := range img.Types {
		rvas[i] = make([]uint32, len(t.Methods))
		for j, m := range t.Methods {
			switch {
			case m.RVA != 0:
				rvas[i][j] = m.RVA
			case m.Code != nil:
				align(&text, 4)
				rvas[i][j] = textRVA + uint32(text.Len())
				text.Write(methodBody(m.Code, m.Fat))
			}
		}
	}

	align(&text, 4)
	metaRVA := textRVA + uint32(text.Len())
	meta := img.metadata(rvas)
	text.Write(meta)

	var debugRVA, debugSize uint32
	if img.Debug != nil {
		align(&text, 4)
		debugRVA = textRVA + uint32(text.Len())
		debugSize = 28
		rsds := codeViewRecord(img.Debug)
		rsdsRVA := debugRVA + debugSize
		var major, minor uint16
		if img.Debug.Portable {
			major, minor = 0x0100, portablePDBMinor
		}
		le(&text,
			uint32(0), img.Debug.Stamp, major, minor, uint32(2), uint32(len(rsds)),
			rsdsRVA, textOffset+rsdsRVA-textRVA)
		text.Write(rsds)
	}

	cli := text.Bytes()[:cliHeaderSize]
	binary.LittleEndian.PutUint32(cli[0:], cliHeaderSize)
	binary.LittleEndian.PutUint16(cli[4:], 2)
	binary.LittleEndian.PutUint16(cli[6:], 5)
	binary.LittleEndian.PutUint32(cli[8:], metaRVA)
	binary.LittleEndian.PutUint32(cli[12:], uint32(len(meta)))
	binary.LittleEndian.PutUint32(cli[16:], 1) // ILONLY

	var dirs [16]pe.DataDirectory
	dirs[14] = pe.DataDirectory{VirtualAddress: textRVA, Size: cliHeaderSize}
	if img.Debug != nil {
		dirs[6] = pe.DataDirectory{VirtualAddress: debugRVA, Size: debugSize}
	}
	return peFile(text.Bytes(), dirs)
}

// peFile wraps a .text section in a PE32 container.
func peFile(text []byte, dirs [16]pe.DataDirectory) []byte {
	rawSize := roundUp(uint32(len(text)), fileAlignment)

	var out bytes.Buffer
	dos := make([]byte, peHeaderOffset)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3C:], peHeaderOffset)
	out.Write(dos)
	out.WriteString("PE\x00\x00")

	le(&out, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: 224,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE | pe.IMAGE_FILE_DLL,
	})
	le(&out, pe.OptionalHeader32{
		Magic:               0x10B,
		SizeOfCode:          rawSize,
		BaseOfCode:          textRVA,
		ImageBase:           0x400000,
		SectionAlignment:    sectionAlign,
		FileAlignment:       fileAlignment,
		SizeOfImage:         textRVA + roundUp(uint32(len(text)), sectionAlign),
		SizeOfHeaders:       textOffset,
		Subsystem:           3,
		NumberOfRvaAndSizes: 16,
		DataDirectory:       dirs,
	})
	le(&out, pe.SectionHeader32{
		Name:             [8]uint8{'.', 't', 'e', 'x', 't'},
		VirtualSize:      uint32(len(text)),
		VirtualAddress:   textRVA,
		SizeOfRawData:    rawSize,
		PointerToRawData: textOffset,
		Characteristics:  0x60000020,
	})

	out.Write(make([]byte, textOffset-out.Len()))
	out.Write(text)
	out.Write(make([]byte, int(rawSize)-len(text)))
	return out.Bytes()
}

func methodBody(code []byte, fat bool) []byte {
	if !fat && len(code) < 64 {
		return append([]byte{byte(len(code))<<2 | 0x2}, code...)
	}
	var b bytes.Buffer
	le(&b, uint16(0x3003), uint16(8), uint32(len(code)), uint32(0))
	b.Write(code)
	return b.Bytes()
}

func codeViewRecord(d *Debug) []byte {
	var b bytes.Buffer
	b.WriteString("RSDS")
	b.Write(d.GUID[:])
	le(&b, d.Age)
	b.WriteString(d.Path)
	b.WriteByte(0)
	return b.Bytes()
}

// metadata assembles the metadata root and its streams.
func (img *Image) metadata(rvas [][]uint32) []byte {
	h := newHeaps()
	tables := img.tables(h, rvas)

	version := img.RuntimeVersion
	if version == "" {
		version = "v4.0.30319"
	}
	tableStream := "#~"
	if img.MethodPtr {
		tableStream = "#-"
	}
	return metadataRoot(version, []stream{
		{tableStream, tables},
		{"#Strings", h.strings.Bytes()},
		{"#US", []byte{0, 0, 0, 0}},
		{"#GUID", h.guids.Bytes()},
		{"#Blob", h.blobs.Bytes()},
	})
}

type stream struct {
	name string
	data []byte
}

// metadataRoot lays out a BSJB header followed by its streams.
func metadataRoot(version string, streams []stream) []byte {
	ver := []byte(version)
	ver = append(ver, make([]byte, 4-len(ver)%4)...)

	headerSize := 16 + len(ver) + 4
	for _, s := range streams {
		headerSize += 8 + int(roundUp(uint32(len(s.name)+1), 4))
	}

	var b bytes.Buffer
	le(&b, uint32(0x424A5342), uint16(1), uint16(1), uint32(0), uint32(len(ver)))
	b.Write(ver)
	le(&b, uint16(0), uint16(len(streams)))

	offset := uint32(headerSize)
	for _, s := range streams {
		size := roundUp(uint32(len(s.data)), 4)
		le(&b, offset, size)
		name := append([]byte(s.name), 0)
		b.Write(name)
		b.Write(make([]byte, int(roundUp(uint32(len(name)), 4))-len(name)))
		offset += size
	}
	for _, s := range streams {
		b.Write(s.data)
		align(&b, 4)
	}
	return b.Bytes()
}

type heaps struct {
	strings bytes.Buffer
	blobs   bytes.Buffer
	guids   bytes.Buffer
	seen    map[string]uint16
}

func newHeaps() *heaps {
	h := &heaps{seen: make(map[string]uint16)}
	h.strings.WriteByte(0)
	h.blobs.WriteByte(0)
	return h
}

func (h *heaps) str(s string) uint16 {
	if s == "" {
		return 0
	}
	if idx, ok := h.seen[s]; ok {
		return idx
	}
	idx := uint16(h.strings.Len())
	h.strings.WriteString(s)
	h.strings.WriteByte(0)
	h.seen[s] = idx
	return idx
}

func (h *heaps) blob(b []byte) uint16 {
	if len(b) == 0 {
		return 0
	}
	idx := uint16(h.blobs.Len())
	h.blobs.Write(Compressed(uint32(len(b))))
	h.blobs.Write(b)
	return idx
}

func (h *heaps) guid(g [16]byte) uint16 {
	h.guids.Write(g[:])
	return uint16(h.guids.Len() / 16)
}

type tableID int

const (
	tabModule       tableID = 0x00
	tabTypeRef      tableID = 0x01
	tabTypeDef      tableID = 0x02
	tabMethodPtr    tableID = 0x05
	tabMethodDef    tableID = 0x06
	tabTypeSpec     tableID = 0x1B
	tabNestedClass  tableID = 0x29
	tabGenericParam tableID = 0x2A
)

type genericParam struct {
	number uint16
	owner  uint16 // TypeOrMethodDef coded index
	name   string
}

// tables builds a table stream with two-byte heap and row indexes. Fixtures
// stay well under the 64K limits that would widen them.
func (img *Image) tables(h *heaps, rvas [][]uint32) []byte {
	rows := map[tableID][]byte{}
	add := func(id tableID, fields ...interface{}) {
		var b bytes.Buffer
		le(&b, fields...)
		rows[id] = append(rows[id], b.Bytes()...)
	}
	counts := map[tableID]uint32{}

	add(tabModule, uint16(0), h.str(img.Module), h.guid([16]byte{0x4d, 0x76, 0x69, 0x64}), uint16(0), uint16(0))
	counts[tabModule] = 1

	for _, r := range img.TypeRefs {
		scope := uint16(1 << 2) // Module row 1
		if r.Scope != 0 {
			scope = uint16(r.Scope)<<2 | 3
		}
		add(tabTypeRef, scope, h.str(r.Name), h.str(r.Namespace))
		counts[tabTypeRef]++
	}

	type methodRow struct {
		m   Method
		rva uint32
	}
	var methods []methodRow
	var params []genericParam
	var nested [][2]uint16
	for i, t := range img.Types {
		row := uint16(i + 1)
		add(tabTypeDef, t.Flags, h.str(t.Name), h.str(t.Namespace), uint16(0), uint16(1), uint16(len(methods)+1))
		counts[tabTypeDef]++
		for n, name := range t.GenericParams {
			params = append(params, genericParam{uint16(n), row << 1, name})
		}
		if t.Enclosing != 0 {
			nested = append(nested, [2]uint16{row, uint16(t.Enclosing)})
		}
		for j, m := range t.Methods {
			methods = append(methods, methodRow{m, rvas[i][j]})
			for n, name := range m.GenericParams {
				params = append(params, genericParam{uint16(n), uint16(len(methods))<<1 | 1, name})
			}
		}
	}

	// With MethodPtr, logical method i lives in physical row len-i+1.
	physical := func(logical int) int { return logical }
	if img.MethodPtr {
		physical = func(logical int) int { return len(methods) - logical + 1 }
	}
	ordered := make([]methodRow, len(methods))
	for i, m := range methods {
		ordered[physical(i+1)-1] = m
	}
	for _, m := range ordered {
		add(tabMethodDef, m.rva, m.m.ImplFlags, m.m.Flags, h.str(m.m.Name), h.blob(m.m.Signature), uint16(1))
		counts[tabMethodDef]++
	}
	if img.MethodPtr {
		for i := range methods {
			add(tabMethodPtr, uint16(physical(i+1)))
			counts[tabMethodPtr]++
		}
		for k := range params {
			if params[k].owner&1 == 1 {
				params[k].owner = uint16(physical(int(params[k].owner>>1)))<<1 | 1
			}
		}
	}

	for _, spec := range img.TypeSpecs {
		add(tabTypeSpec, h.blob(spec))
		counts[tabTypeSpec]++
	}
	for _, n := range nested {
		add(tabNestedClass, n[0], n[1])
		counts[tabNestedClass]++
	}
	for _, p := range params {
		add(tabGenericParam, p.number, uint16(0), p.owner, h.str(p.name))
		counts[tabGenericParam]++
	}

	var valid uint64
	for id, n := range counts {
		if n > 0 {
			valid |= 1 << uint(id)
		}
	}

	var b bytes.Buffer
	le(&b, uint32(0), uint8(2), uint8(0), uint8(0), uint8(1), valid, uint64(0))
	for id := tableID(0); id < 64; id++ {
		if valid&(1<<uint(id)) != 0 {
			le(&b, counts[id])
		}
	}
	for id := tableID(0); id < 64; id++ {
		if valid&(1<<uint(id)) != 0 {
			b.Write(rows[id])
		}
	}
	return b.Bytes()
}

func le(b *bytes.Buffer, fields ...interface{}) {
	for _, f := range fields {
		if err := binary.Write(b, binary.LittleEndian, f); err != nil {
			panic(fmt.Sprintf("imagetest: encode %T: %v", f, err))
		}
	}
}

func align(b *bytes.Buffer, n int) {
	for b.Len()%n != 0 {
		b.WriteByte(0)
	}
}

func roundUp(v, n uint32) uint32 {
	return (v + n - 1) / n * n
}

// NativeImage returns a PE image with no CLI header.
func NativeImage() []byte {
	text := []byte{0xC3} // ret
	return peFile(text, [16]pe.DataDirectory{})
}
