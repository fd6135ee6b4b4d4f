// Package metadata reads the ECMA-335 metadata of a managed PE image and
// checks it against its paired symbol file.
package metadata

import (
	"encoding/binary"
	"fmt"
)

// ModuleImage is the parsed type and method table of one image.
type ModuleImage struct {
	Name           string // Module table name, e.g. "Sample.dll"
	RuntimeVersion string // metadata root version string, e.g. "v4.0.30319"
	Types          []*TypeDefinition
	Symbols        SymbolIdentity
}

// MethodCount returns the number of methods across all types.
func (m *ModuleImage) MethodCount() int {
	n := 0
	for _, t := range m.Types {
		n += len(t.Methods)
	}
	return n
}

// TypeDefinition is one row of the TypeDef table.
type TypeDefinition struct {
	Namespace     string
	Name          string
	FullName      string // "Ns.Outer/Inner" for nested types
	Attributes    uint32
	DeclaringType *TypeDefinition // enclosing type, nil unless nested
	Methods       []*MethodDefinition
}

// IsNested reports whether the type is declared inside another type.
func (t *TypeDefinition) IsNested() bool {
	return t.DeclaringType != nil
}

// MethodAttributes are the MethodDef flags (ECMA-335 II.23.1.10).
type MethodAttributes uint16

const (
	MethodMemberAccessMask MethodAttributes = 0x0007
	MethodPrivate          MethodAttributes = 0x0001
	MethodFamANDAssem      MethodAttributes = 0x0002
	MethodAssembly         MethodAttributes = 0x0003
	MethodFamily           MethodAttributes = 0x0004
	MethodFamORAssem       MethodAttributes = 0x0005
	MethodPublic           MethodAttributes = 0x0006
	MethodStatic           MethodAttributes = 0x0010
	MethodFinal            MethodAttributes = 0x0020
	MethodVirtual          MethodAttributes = 0x0040
	MethodHideBySig        MethodAttributes = 0x0080
	MethodAbstract         MethodAttributes = 0x0400
	MethodSpecialName      MethodAttributes = 0x0800
	MethodPInvokeImpl      MethodAttributes = 0x2000
)

// MethodImplAttributes are the MethodDef implementation flags
// (ECMA-335 II.23.1.11).
type MethodImplAttributes uint16

const (
	ImplCodeTypeMask MethodImplAttributes = 0x0003
	ImplIL           MethodImplAttributes = 0x0000
	ImplNative       MethodImplAttributes = 0x0001
	ImplOPTIL        MethodImplAttributes = 0x0002
	ImplRuntime      MethodImplAttributes = 0x0003
	ImplUnmanaged    MethodImplAttributes = 0x0004
	ImplNoInlining   MethodImplAttributes = 0x0008
	ImplSynchronized MethodImplAttributes = 0x0020
	ImplInternalCall MethodImplAttributes = 0x1000
)

// MethodDefinition is one row of the MethodDef table with its decoded
// signature and body size.
type MethodDefinition struct {
	Name           string
	DeclaringType  *TypeDefinition
	ReturnType     string
	Parameters     []string
	Attributes     MethodAttributes
	ImplAttributes MethodImplAttributes
	RVA            uint32
	Instructions   int
}

func (m *MethodDefinition) access() MethodAttributes {
	return m.Attributes & MethodMemberAccessMask
}

func (m *MethodDefinition) IsPublic() bool       { return m.access() == MethodPublic }
func (m *MethodDefinition) IsPrivate() bool      { return m.access() == MethodPrivate }
func (m *MethodDefinition) IsFamily() bool       { return m.access() == MethodFamily }
func (m *MethodDefinition) IsStatic() bool       { return m.Attributes&MethodStatic != 0 }
func (m *MethodDefinition) IsAbstract() bool     { return m.Attributes&MethodAbstract != 0 }
func (m *MethodDefinition) IsFinal() bool        { return m.Attributes&MethodFinal != 0 }
func (m *MethodDefinition) IsVirtual() bool      { return m.Attributes&MethodVirtual != 0 }
func (m *MethodDefinition) IsPInvokeImpl() bool  { return m.Attributes&MethodPInvokeImpl != 0 }
func (m *MethodDefinition) IsSynchronized() bool { return m.ImplAttributes&ImplSynchronized != 0 }
func (m *MethodDefinition) IsInternalCall() bool { return m.ImplAttributes&ImplInternalCall != 0 }

// HasBody reports whether the method carries managed IL: it has an RVA, is
// neither abstract nor a P/Invoke or internal call, and is managed IL code.
func (m *MethodDefinition) HasBody() bool {
	return m.RVA != 0 &&
		!m.IsAbstract() &&
		!m.IsPInvokeImpl() &&
		!m.IsInternalCall() &&
		m.ImplAttributes&ImplCodeTypeMask == ImplIL &&
		m.ImplAttributes&ImplUnmanaged == 0
}

// SymbolFormat identifies the symbol file container.
type SymbolFormat string

const (
	FormatPortablePDB SymbolFormat = "portable-pdb"
	FormatWindowsPDB  SymbolFormat = "windows-pdb"
)

// SymbolIdentity is the debug identity shared by an image and the symbol
// file that was matched against it.
type SymbolIdentity struct {
	Format SymbolFormat
	GUID   [16]byte
	Age    uint32
	Stamp  uint32
	Path   string // PDB path recorded in the image
}

// String formats the identity the way symbol servers key it.
func (s SymbolIdentity) String() string {
	return fmt.Sprintf("%s %s", s.Format, FormatGUID(s.GUID))
}

// FormatGUID renders a raw GUID in registry form with the mixed-endian
// field layout Windows uses.
func FormatGUID(g [16]byte) string {
	return fmt.Sprintf("%08x-%04x-%04x-%x-%x",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8:10], g[10:16])
}
