package metadata

import (
	"fmt"

	peparser "github.com/saferwall/pe"
)

// cells is a table whose rows were already split into columns.
type cells [][]uint32

func (c cells) get(row uint32, col int) (uint32, error) {
	if row == 0 || row > uint32(len(c)) {
		return 0, fmt.Errorf("row %d outside table of %d rows", row, len(c))
	}
	r := c[row-1]
	if col >= len(r) {
		return 0, fmt.Errorf("column %d outside row of %d columns", col, len(r))
	}
	return r[col], nil
}

// loaderTables are the tables the module reader consumes.
var loaderTables = []tableID{
	tabModule, tabTypeRef, tabTypeDef, tabMethodDef, tabTypeSpec, tabNestedClass, tabGenericParam,
}

// clrTables builds the table stream from the rows saferwall/pe decoded. The
// uncompressed "#-" layout carries pointer tables the parser has no rows
// for, and any table it left undecoded falls back to the raw stream.
func clrTables(clr *peparser.CLRData, root *metadataRoot) (*tableStream, error) {
	if _, ok := root.stream("#~"); !ok {
		return parseTableStream(root)
	}

	ts := newTableStream(root)
	for _, id := range loaderTables {
		t, ok := clr.MetadataTables[int(id)]
		if !ok || t == nil {
			continue
		}
		rows, ok := rowCells(t.Content)
		if !ok {
			return parseTableStream(root)
		}
		ts.rows[id] = uint32(len(rows))
		ts.tables[id] = rows
	}
	if ts.rows[tabModule] == 0 {
		return parseTableStream(root)
	}
	return ts, nil
}

// rowCells flattens saferwall's typed rows into columns in ECMA-335 order.
func rowCells(content interface{}) (cells, bool) {
	switch rows := content.(type) {
	case []peparser.ModuleTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.Generation), uint32(r.Name), uint32(r.Mvid), uint32(r.EncID), uint32(r.EncBaseID)}
		}
		return out, true
	case []peparser.TypeRefTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.ResolutionScope), uint32(r.TypeName), uint32(r.TypeNamespace)}
		}
		return out, true
	case []peparser.TypeDefTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.Flags), uint32(r.TypeName), uint32(r.TypeNamespace), uint32(r.Extends), uint32(r.FieldList), uint32(r.MethodList)}
		}
		return out, true
	case []peparser.MethodDefTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.RVA), uint32(r.ImplFlags), uint32(r.Flags), uint32(r.Name), uint32(r.Signature), uint32(r.ParamList)}
		}
		return out, true
	case []peparser.TypeSpecTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.Signature)}
		}
		return out, true
	case []peparser.NestedClassTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.NestedClass), uint32(r.EnclosingClass)}
		}
		return out, true
	case []peparser.GenericParamTableRow:
		out := make(cells, len(rows))
		for i, r := range rows {
			out[i] = []uint32{uint32(r.Number), uint32(r.Flags), uint32(r.Owner), uint32(r.Name)}
		}
		return out, true
	}
	return nil, false
}
