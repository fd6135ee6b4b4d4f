package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// Element types, ECMA-335 II.23.1.16.
const (
	elemVoid        = 0x01
	elemBoolean     = 0x02
	elemChar        = 0x03
	elemI1          = 0x04
	elemU1          = 0x05
	elemI2          = 0x06
	elemU2          = 0x07
	elemI4          = 0x08
	elemU4          = 0x09
	elemI8          = 0x0A
	elemU8          = 0x0B
	elemR4          = 0x0C
	elemR8          = 0x0D
	elemString      = 0x0E
	elemPtr         = 0x0F
	elemByRef       = 0x10
	elemValueType   = 0x11
	elemClass       = 0x12
	elemVar         = 0x13
	elemArray       = 0x14
	elemGenericInst = 0x15
	elemTypedByRef  = 0x16
	elemI           = 0x18
	elemU           = 0x19
	elemFnPtr       = 0x1B
	elemObject      = 0x1C
	elemSzArray     = 0x1D
	elemMVar        = 0x1E
	elemCModReqd    = 0x1F
	elemCModOpt     = 0x20
	elemSentinel    = 0x41
	elemPinned      = 0x45
)

// Calling convention flags of a method signature.
const (
	sigGeneric = 0x10
)

// maxSigDepth bounds nested type decoding; TypeSpecs can refer to
// themselves in hostile images.
const maxSigDepth = 64

var primitiveNames = map[byte]string{
	elemVoid:       "System.Void",
	elemBoolean:    "System.Boolean",
	elemChar:       "System.Char",
	elemI1:         "System.SByte",
	elemU1:         "System.Byte",
	elemI2:         "System.Int16",
	elemU2:         "System.UInt16",
	elemI4:         "System.Int32",
	elemU4:         "System.UInt32",
	elemI8:         "System.Int64",
	elemU8:         "System.UInt64",
	elemR4:         "System.Single",
	elemR8:         "System.Double",
	elemString:     "System.String",
	elemTypedByRef: "System.TypedReference",
	elemI:          "System.IntPtr",
	elemU:          "System.UIntPtr",
	elemObject:     "System.Object",
}

var wrapperSuffix = map[byte]string{
	elemPtr:     "*",
	elemByRef:   "&",
	elemSzArray: "[]",
	elemPinned:  " pinned",
}

// sigReader walks a signature blob.
type sigReader struct {
	b   []byte
	pos int
}

func (r *sigReader) next() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("signature truncated at byte %d", r.pos)
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

func (r *sigReader) compressed() (uint32, error) {
	v, n, err := decodeCompressed(r.b[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("signature byte %d: %w", r.pos, err)
	}
	r.pos += n
	return v, nil
}

func (r *sigReader) compressedSigned() (int32, error) {
	v, n, err := decodeCompressedSigned(r.b[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("signature byte %d: %w", r.pos, err)
	}
	r.pos += n
	return v, nil
}

// genericContext names the type and method whose generic parameters VAR
// and MVAR refer to.
type genericContext struct {
	typeRow   uint32
	methodRow uint32
}

// methodSignature decodes a MethodDefSig into return and parameter type names.
func (m *moduleReader) methodSignature(blob []byte, ctx genericContext) (string, []string, error) {
	r := &sigReader{b: blob}
	return m.readMethodSig(r, ctx, 0)
}

func (m *moduleReader) readMethodSig(r *sigReader, ctx genericContext, depth int) (string, []string, error) {
	conv, err := r.next()
	if err != nil {
		return "", nil, err
	}
	if conv&sigGeneric != 0 {
		if _, err := r.compressed(); err != nil {
			return "", nil, err
		}
	}
	count, err := r.compressed()
	if err != nil {
		return "", nil, err
	}
	ret, err := m.readType(r, ctx, depth)
	if err != nil {
		return "", nil, fmt.Errorf("return type: %w", err)
	}

	params := make([]string, 0, min(count, 64))
	for i := uint32(0); i < count; i++ {
		p, err := m.readType(r, ctx, depth)
		if err != nil {
			return "", nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		params = append(params, p)
	}
	return ret, params, nil
}

// readType decodes one Type production and renders its full name.
func (m *moduleReader) readType(r *sigReader, ctx genericContext, depth int) (string, error) {
	if depth > maxSigDepth {
		return "", fmt.Errorf("signature nests deeper than %d levels", maxSigDepth)
	}
	depth++

	elem, err := r.next()
	if err != nil {
		return "", err
	}
	if name, ok := primitiveNames[elem]; ok {
		return name, nil
	}

	switch elem {
	case elemPtr, elemByRef, elemSzArray, elemPinned:
		inner, err := m.readType(r, ctx, depth)
		if err != nil {
			return "", err
		}
		return inner + wrapperSuffix[elem], nil

	case elemValueType, elemClass:
		token, err := r.compressed()
		if err != nil {
			return "", err
		}
		return m.typeDefOrRefName(token, ctx, depth)

	case elemVar:
		n, err := r.compressed()
		if err != nil {
			return "", err
		}
		return m.genericParamName(m.typeParams[ctx.typeRow], n, "!"), nil

	case elemMVar:
		n, err := r.compressed()
		if err != nil {
			return "", err
		}
		return m.genericParamName(m.methodParams[ctx.methodRow], n, "!!"), nil

	case elemArray:
		return m.readArray(r, ctx, depth)

	case elemGenericInst:
		if _, err := r.next(); err != nil { // CLASS or VALUETYPE
			return "", err
		}
		token, err := r.compressed()
		if err != nil {
			return "", err
		}
		base, err := m.typeDefOrRefName(token, ctx, depth)
		if err != nil {
			return "", err
		}
		count, err := r.compressed()
		if err != nil {
			return "", err
		}
		args := make([]string, 0, min(count, 16))
		for i := uint32(0); i < count; i++ {
			arg, err := m.readType(r, ctx, depth)
			if err != nil {
				return "", err
			}
			args = append(args, arg)
		}
		return base + "<" + strings.Join(args, ",") + ">", nil

	case elemFnPtr:
		ret, params, err := m.readMethodSig(r, ctx, depth)
		if err != nil {
			return "", err
		}
		return "method " + ret + " *(" + strings.Join(params, ",") + ")", nil

	case elemCModReqd, elemCModOpt:
		token, err := r.compressed()
		if err != nil {
			return "", err
		}
		modifier, err := m.typeDefOrRefName(token, ctx, depth)
		if err != nil {
			return "", err
		}
		inner, err := m.readType(r, ctx, depth)
		if err != nil {
			return "", err
		}
		kind := "modopt"
		if elem == elemCModReqd {
			kind = "modreq"
		}
		return inner + " " + kind + "(" + modifier + ")", nil

	case elemSentinel:
		return m.readType(r, ctx, depth)
	}
	return "", fmt.Errorf("unknown element type %#02x", elem)
}

// readArray decodes a general ARRAY: element type, rank, sizes, lower bounds.
func (m *moduleReader) readArray(r *sigReader, ctx genericContext, depth int) (string, error) {
	elem, err := m.readType(r, ctx, depth)
	if err != nil {
		return "", err
	}
	rank, err := r.compressed()
	if err != nil {
		return "", err
	}
	numSizes, err := r.compressed()
	if err != nil {
		return "", err
	}
	sizes := make([]uint32, 0, min(numSizes, 32))
	for i := uint32(0); i < numSizes; i++ {
		s, err := r.compressed()
		if err != nil {
			return "", err
		}
		sizes = append(sizes, s)
	}
	numLo, err := r.compressed()
	if err != nil {
		return "", err
	}
	lows := make([]int32, 0, min(numLo, 32))
	for i := uint32(0); i < numLo; i++ {
		lo, err := r.compressedSigned()
		if err != nil {
			return "", err
		}
		lows = append(lows, lo)
	}
	if rank == 0 || rank > 32 {
		return "", fmt.Errorf("array rank %d out of range", rank)
	}

	dims := make([]string, rank)
	for i := range dims {
		// A dimension prints only when it has a lower bound; the upper
		// bound needs both.
		if i >= len(lows) {
			continue
		}
		lower := int64(lows[i])
		dims[i] = strconv.FormatInt(lower, 10) + "..."
		if i < len(sizes) {
			dims[i] += strconv.FormatInt(lower+int64(sizes[i])-1, 10)
		}
	}
	return elem + "[" + strings.Join(dims, ",") + "]", nil
}

func (m *moduleReader) genericParamName(names map[uint32]string, n uint32, prefix string) string {
	if name, ok := names[n]; ok && name != "" {
		return name
	}
	return prefix + strconv.FormatUint(uint64(n), 10)
}

// typeDefOrRefName resolves a TypeDefOrRefOrSpecEncoded token.
func (m *moduleReader) typeDefOrRefName(token uint32, ctx genericContext, depth int) (string, error) {
	table, row, err := ciTypeDefOrRef.decode(token)
	if err != nil {
		return "", err
	}
	switch table {
	case tabTypeDef:
		if row == 0 || int(row) > len(m.typeNames) {
			return "", fmt.Errorf("TypeDef row %d out of range", row)
		}
		return m.typeNames[row-1], nil
	case tabTypeRef:
		return m.typeRefName(row, 0)
	default:
		blob, err := m.ts.blob(tabTypeSpec, row, 0)
		if err != nil {
			return "", fmt.Errorf("TypeSpec %d: %w", row, err)
		}
		return m.readType(&sigReader{b: blob}, ctx, depth)
	}
}

// typeRefName renders a TypeRef, prefixing enclosing TypeRefs for nested
// references.
func (m *moduleReader) typeRefName(row uint32, depth int) (string, error) {
	if name, ok := m.typeRefNames[row]; ok {
		return name, nil
	}
	if depth > maxSigDepth {
		return "", fmt.Errorf("TypeRef %d resolution scope chain too deep", row)
	}

	scope, err := m.ts.get(tabTypeRef, row, 0)
	if err != nil {
		return "", err
	}
	name, err := m.ts.str(tabTypeRef, row, 1)
	if err != nil {
		return "", err
	}
	ns, err := m.ts.str(tabTypeRef, row, 2)
	if err != nil {
		return "", err
	}

	full := qualify(ns, name)
	if scopeTable, scopeRow, err := ciResolutionScope.decode(scope); err == nil && scopeTable == tabTypeRef && scopeRow != 0 {
		outer, err := m.typeRefName(scopeRow, depth+1)
		if err != nil {
			return "", err
		}
		full = outer + "/" + full
	}
	m.typeRefNames[row] = full
	return full, nil
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}
