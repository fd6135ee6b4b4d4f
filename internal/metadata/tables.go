package metadata

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

type tableID int

// Type-system tables, ECMA-335 II.22.
const (
	tabModule                 tableID = 0x00
	tabTypeRef                tableID = 0x01
	tabTypeDef                tableID = 0x02
	tabFieldPtr               tableID = 0x03
	tabField                  tableID = 0x04
	tabMethodPtr              tableID = 0x05
	tabMethodDef              tableID = 0x06
	tabParamPtr               tableID = 0x07
	tabParam                  tableID = 0x08
	tabInterfaceImpl          tableID = 0x09
	tabMemberRef              tableID = 0x0A
	tabConstant               tableID = 0x0B
	tabCustomAttribute        tableID = 0x0C
	tabFieldMarshal           tableID = 0x0D
	tabDeclSecurity           tableID = 0x0E
	tabClassLayout            tableID = 0x0F
	tabFieldLayout            tableID = 0x10
	tabStandAloneSig          tableID = 0x11
	tabEventMap               tableID = 0x12
	tabEventPtr               tableID = 0x13
	tabEvent                  tableID = 0x14
	tabPropertyMap            tableID = 0x15
	tabPropertyPtr            tableID = 0x16
	tabProperty               tableID = 0x17
	tabMethodSemantics        tableID = 0x18
	tabMethodImpl             tableID = 0x19
	tabModuleRef              tableID = 0x1A
	tabTypeSpec               tableID = 0x1B
	tabImplMap                tableID = 0x1C
	tabFieldRVA               tableID = 0x1D
	tabEncLog                 tableID = 0x1E
	tabEncMap                 tableID = 0x1F
	tabAssembly               tableID = 0x20
	tabAssemblyProcessor      tableID = 0x21
	tabAssemblyOS             tableID = 0x22
	tabAssemblyRef            tableID = 0x23
	tabAssemblyRefProcessor   tableID = 0x24
	tabAssemblyRefOS          tableID = 0x25
	tabFile                   tableID = 0x26
	tabExportedType           tableID = 0x27
	tabManifestResource       tableID = 0x28
	tabNestedClass            tableID = 0x29
	tabGenericParam           tableID = 0x2A
	tabMethodSpec             tableID = 0x2B
	tabGenericParamConstraint tableID = 0x2C

	tabNone   tableID = -1
	numTables         = 64
)

// Heap size flags of the table stream header.
const (
	heapStringsWide = 0x01
	heapGUIDWide    = 0x02
	heapBlobWide    = 0x04
	heapExtraData   = 0x40
)

type codedIndex struct {
	bits   uint
	tables []tableID
}

var (
	ciTypeDefOrRef        = codedIndex{2, []tableID{tabTypeDef, tabTypeRef, tabTypeSpec}}
	ciHasConstant         = codedIndex{2, []tableID{tabField, tabParam, tabProperty}}
	ciHasCustomAttribute  = codedIndex{5, []tableID{tabMethodDef, tabField, tabTypeRef, tabTypeDef, tabParam, tabInterfaceImpl, tabMemberRef, tabModule, tabDeclSecurity, tabProperty, tabEvent, tabStandAloneSig, tabModuleRef, tabTypeSpec, tabAssembly, tabAssemblyRef, tabFile, tabExportedType, tabManifestResource, tabGenericParam, tabGenericParamConstraint, tabMethodSpec}}
	ciHasFieldMarshal     = codedIndex{1, []tableID{tabField, tabParam}}
	ciHasDeclSecurity     = codedIndex{2, []tableID{tabTypeDef, tabMethodDef, tabAssembly}}
	ciMemberRefParent     = codedIndex{3, []tableID{tabTypeDef, tabTypeRef, tabModuleRef, tabMethodDef, tabTypeSpec}}
	ciHasSemantics        = codedIndex{1, []tableID{tabEvent, tabProperty}}
	ciMethodDefOrRef      = codedIndex{1, []tableID{tabMethodDef, tabMemberRef}}
	ciMemberForwarded     = codedIndex{1, []tableID{tabField, tabMethodDef}}
	ciImplementation      = codedIndex{2, []tableID{tabFile, tabAssemblyRef, tabExportedType}}
	ciCustomAttributeType = codedIndex{3, []tableID{tabNone, tabNone, tabMethodDef, tabMemberRef, tabNone}}
	ciResolutionScope     = codedIndex{2, []tableID{tabModule, tabModuleRef, tabAssemblyRef, tabTypeRef}}
	ciTypeOrMethodDef     = codedIndex{1, []tableID{tabTypeDef, tabMethodDef}}
)

// decode splits a coded index value into its target table and row.
func (c codedIndex) decode(v uint32) (tableID, uint32, error) {
	tag := v & (1<<c.bits - 1)
	if int(tag) >= len(c.tables) || c.tables[tag] == tabNone {
		return tabNone, 0, fmt.Errorf("coded index tag %d out of range", tag)
	}
	return c.tables[tag], v >> c.bits, nil
}

type colKind int

const (
	colFixed colKind = iota
	colString
	colGUID
	colBlob
	colTable
	colCoded
)

type column struct {
	kind  colKind
	width int        // colFixed only
	table tableID    // colTable only
	coded codedIndex // colCoded only
}

func fixed(width int) column    { return column{kind: colFixed, width: width} }
func strCol() column            { return column{kind: colString} }
func guidCol() column           { return column{kind: colGUID} }
func blobCol() column           { return column{kind: colBlob} }
func index(t tableID) column    { return column{kind: colTable, table: t} }
func coded(c codedIndex) column { return column{kind: colCoded, coded: c} }

// schema lists the columns of each type-system table in physical order.
var schema = map[tableID][]column{
	tabModule:                 {fixed(2), strCol(), guidCol(), guidCol(), guidCol()},
	tabTypeRef:                {coded(ciResolutionScope), strCol(), strCol()},
	tabTypeDef:                {fixed(4), strCol(), strCol(), coded(ciTypeDefOrRef), index(tabField), index(tabMethodDef)},
	tabFieldPtr:               {index(tabField)},
	tabField:                  {fixed(2), strCol(), blobCol()},
	tabMethodPtr:              {index(tabMethodDef)},
	tabMethodDef:              {fixed(4), fixed(2), fixed(2), strCol(), blobCol(), index(tabParam)},
	tabParamPtr:               {index(tabParam)},
	tabParam:                  {fixed(2), fixed(2), strCol()},
	tabInterfaceImpl:          {index(tabTypeDef), coded(ciTypeDefOrRef)},
	tabMemberRef:              {coded(ciMemberRefParent), strCol(), blobCol()},
	tabConstant:               {fixed(2), coded(ciHasConstant), blobCol()},
	tabCustomAttribute:        {coded(ciHasCustomAttribute), coded(ciCustomAttributeType), blobCol()},
	tabFieldMarshal:           {coded(ciHasFieldMarshal), blobCol()},
	tabDeclSecurity:           {fixed(2), coded(ciHasDeclSecurity), blobCol()},
	tabClassLayout:            {fixed(2), fixed(4), index(tabTypeDef)},
	tabFieldLayout:            {fixed(4), index(tabField)},
	tabStandAloneSig:          {blobCol()},
	tabEventMap:               {index(tabTypeDef), index(tabEvent)},
	tabEventPtr:               {index(tabEvent)},
	tabEvent:                  {fixed(2), strCol(), coded(ciTypeDefOrRef)},
	tabPropertyMap:            {index(tabTypeDef), index(tabProperty)},
	tabPropertyPtr:            {index(tabProperty)},
	tabProperty:               {fixed(2), strCol(), blobCol()},
	tabMethodSemantics:        {fixed(2), index(tabMethodDef), coded(ciHasSemantics)},
	tabMethodImpl:             {index(tabTypeDef), coded(ciMethodDefOrRef), coded(ciMethodDefOrRef)},
	tabModuleRef:              {strCol()},
	tabTypeSpec:               {blobCol()},
	tabImplMap:                {fixed(2), coded(ciMemberForwarded), strCol(), index(tabModuleRef)},
	tabFieldRVA:               {fixed(4), index(tabField)},
	tabEncLog:                 {fixed(4), fixed(4)},
	tabEncMap:                 {fixed(4)},
	tabAssembly:               {fixed(4), fixed(2), fixed(2), fixed(2), fixed(2), fixed(4), blobCol(), strCol(), strCol()},
	tabAssemblyProcessor:      {fixed(4)},
	tabAssemblyOS:             {fixed(4), fixed(4), fixed(4)},
	tabAssemblyRef:            {fixed(2), fixed(2), fixed(2), fixed(2), fixed(4), blobCol(), strCol(), strCol(), blobCol()},
	tabAssemblyRefProcessor:   {fixed(4), index(tabAssemblyRef)},
	tabAssemblyRefOS:          {fixed(4), fixed(4), fixed(4), index(tabAssemblyRef)},
	tabFile:                   {fixed(4), strCol(), blobCol()},
	tabExportedType:           {fixed(4), fixed(4), strCol(), strCol(), coded(ciImplementation)},
	tabManifestResource:       {fixed(4), fixed(4), strCol(), coded(ciImplementation)},
	tabNestedClass:            {index(tabTypeDef), index(tabTypeDef)},
	tabGenericParam:           {fixed(2), fixed(2), coded(ciTypeOrMethodDef), strCol()},
	tabMethodSpec:             {coded(ciMethodDefOrRef), blobCol()},
	tabGenericParamConstraint: {index(tabGenericParam), coded(ciTypeDefOrRef)},
}

// rowReader reads 1-based rows of one table column by column.
type rowReader interface {
	get(row uint32, col int) (uint32, error)
}

// table is one physical metadata table decoded from raw stream bytes.
type table struct {
	rows    uint32
	rowSize int
	offsets []int
	widths  []int
	data    []byte
}

// get reads column col of a 1-based row.
func (t *table) get(row uint32, col int) (uint32, error) {
	if row == 0 || row > t.rows {
		return 0, fmt.Errorf("row %d outside table of %d rows", row, t.rows)
	}
	off := int(row-1)*t.rowSize + t.offsets[col]
	if t.widths[col] == 2 {
		return uint32(binary.LittleEndian.Uint16(t.data[off:])), nil
	}
	return binary.LittleEndian.Uint32(t.data[off:]), nil
}

// tableStream is the decoded "#~" (or uncompressed "#-") stream together
// with the heaps its columns point into.
type tableStream struct {
	heapSizes byte
	rows      [numTables]uint32
	tables    [numTables]rowReader

	strings stringHeap
	blobs   blobHeap
	guids   guidHeap
}

func parseTableStream(root *metadataRoot) (*tableStream, error) {
	data, ok := root.stream("#~")
	if !ok {
		if data, ok = root.stream("#-"); !ok {
			return nil, fmt.Errorf("metadata has no table stream")
		}
	}
	if len(data) < 24 {
		return nil, fmt.Errorf("table stream header truncated (%d bytes)", len(data))
	}

	ts := newTableStream(root)
	ts.heapSizes = data[6]

	valid := binary.LittleEndian.Uint64(data[8:])
	pos := 24
	if need := pos + 4*bits.OnesCount64(valid); need > len(data) {
		return nil, fmt.Errorf("table row counts truncated")
	}
	for id := 0; id < numTables; id++ {
		if valid&(1<<uint(id)) == 0 {
			continue
		}
		ts.rows[id] = binary.LittleEndian.Uint32(data[pos:])
		pos += 4
	}
	if ts.heapSizes&heapExtraData != 0 {
		pos += 4
	}

	for id := 0; id < numTables; id++ {
		if valid&(1<<uint(id)) == 0 {
			continue
		}
		cols, known := schema[tableID(id)]
		if !known {
			// Only tables we cannot size follow this point; none of them
			// are read.
			break
		}
		t := &table{rows: ts.rows[id], offsets: make([]int, len(cols)), widths: make([]int, len(cols))}
		for i, c := range cols {
			t.offsets[i] = t.rowSize
			t.widths[i] = ts.columnWidth(c)
			t.rowSize += t.widths[i]
		}
		size := int64(t.rowSize) * int64(t.rows)
		if size > int64(len(data)-pos) {
			return nil, fmt.Errorf("table %#02x (%d rows of %d bytes) runs past stream end", id, t.rows, t.rowSize)
		}
		t.data = data[pos : pos+int(size)]
		pos += int(size)
		ts.tables[id] = t
	}
	return ts, nil
}

// newTableStream attaches the heaps of root to an empty table stream.
func newTableStream(root *metadataRoot) *tableStream {
	strs, _ := root.stream("#Strings")
	blobs, _ := root.stream("#Blob")
	guids, _ := root.stream("#GUID")
	return &tableStream{strings: strs, blobs: blobs, guids: guids}
}

func (ts *tableStream) columnWidth(c column) int {
	switch c.kind {
	case colFixed:
		return c.width
	case colString:
		return ts.heapWidth(heapStringsWide)
	case colGUID:
		return ts.heapWidth(heapGUIDWide)
	case colBlob:
		return ts.heapWidth(heapBlobWide)
	case colTable:
		if ts.rows[c.table] < 1<<16 {
			return 2
		}
		return 4
	case colCoded:
		var most uint32
		for _, t := range c.coded.tables {
			if t != tabNone {
				most = max(most, ts.rows[t])
			}
		}
		if most < 1<<(16-c.coded.bits) {
			return 2
		}
		return 4
	}
	return 4
}

func (ts *tableStream) heapWidth(flag byte) int {
	if ts.heapSizes&flag != 0 {
		return 4
	}
	return 2
}

// count returns the row count of a table, zero if absent.
func (ts *tableStream) count(id tableID) uint32 {
	return ts.rows[id]
}

// get reads a column from a table that must be present.
func (ts *tableStream) get(id tableID, row uint32, col int) (uint32, error) {
	t := ts.tables[id]
	if t == nil {
		return 0, fmt.Errorf("table %#02x is absent", int(id))
	}
	v, err := t.get(row, col)
	if err != nil {
		return 0, fmt.Errorf("table %#02x: %w", int(id), err)
	}
	return v, nil
}

func (ts *tableStream) str(id tableID, row uint32, col int) (string, error) {
	idx, err := ts.get(id, row, col)
	if err != nil {
		return "", err
	}
	return ts.strings.at(idx)
}

func (ts *tableStream) blob(id tableID, row uint32, col int) ([]byte, error) {
	idx, err := ts.get(id, row, col)
	if err != nil {
		return nil, err
	}
	return ts.blobs.at(idx)
}

// resolve maps a logical row through an indirection table (MethodPtr and
// friends) when the uncompressed stream carries one.
func (ts *tableStream) resolve(ptr tableID, row uint32) (uint32, error) {
	if ts.count(ptr) == 0 {
		return row, nil
	}
	return ts.get(ptr, row, 0)
}

// listLength is the number of logical rows a list column ranges over.
func (ts *tableStream) listLength(ptr, target tableID) uint32 {
	if ts.count(ptr) > 0 {
		return ts.count(ptr)
	}
	return ts.count(target)
}
