package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosymbol/internal/metadata"
	it "github.com/dbsmedya/gosymbol/internal/metadata/imagetest"
)

// signatureImage declares Lib.Box`1<T> with methods covering every
// signature shape the reader renders.
func signatureImage(methodPtr bool) *it.Image {
	listOfInt := it.GenericInst(false, it.TypeRefToken(1), it.Int32)
	return &it.Image{
		Module: "Lib.dll",
		TypeRefs: []it.TypeRef{
			{Namespace: "System.Collections.Generic", Name: "List`1"},
			{Namespace: "System.Collections.Generic", Name: "Dictionary`2"},
			{Namespace: "System.Runtime.CompilerServices", Name: "IsVolatile"},
			{Namespace: "Lib", Name: "Outer"},
			{Name: "Inner", Scope: 4},
		},
		TypeSpecs: [][]byte{listOfInt},
		Types: []it.Type{
			{Name: "<Module>"},
			{
				Namespace: "Lib", Name: "Box`1", GenericParams: []string{"T"},
				Methods: []it.Method{
					{Name: "Get", Flags: it.MethodPublic, Signature: it.MethodSig(true, it.Var(0))},
					{
						Name: "Map", Flags: it.MethodPublic, GenericParams: []string{"U"},
						Signature: it.GenericMethodSig(true, 1, it.MVar(0), it.Var(0)),
					},
					{
						Name: "Unnamed", Flags: it.MethodPublic,
						Signature: it.GenericMethodSig(true, 2, it.MVar(1), it.Var(3)),
					},
					{
						Name: "Shapes", Flags: it.MethodPublic | it.MethodStatic,
						Signature: it.MethodSig(false, it.Void,
							it.SzArray(it.Int32),
							it.Array(it.Int32, 2, nil, nil),
							it.Array(it.Int32, 2, nil, []int32{0, 0}),
							it.Array(it.String, 1, []uint32{5}, []int32{1}),
							it.ByRef(it.Int32),
							it.Ptr(it.Char),
							it.SzArray(it.SzArray(it.Object)),
						),
					},
					{
						Name: "References", Flags: it.MethodPublic | it.MethodStatic,
						Signature: it.MethodSig(false, it.ValueType(it.TypeDefToken(2)),
							it.GenericInst(false, it.TypeRefToken(2), it.String, it.Class(it.TypeSpecToken(1))),
							it.Class(it.TypeSpecToken(1)),
							it.ModReq(it.TypeRefToken(3), it.Int32),
							it.ModOpt(it.TypeRefToken(3), it.Int64),
							it.Class(it.TypeRefToken(5)),
							it.FnPtr(it.MethodSig(false, it.Void, it.Int32, it.Object)),
							it.GenericInst(true, it.TypeDefToken(2), it.Var(0)),
						),
					},
				},
			},
		},
		MethodPtr: methodPtr,
		Debug:     &it.Debug{GUID: it.SampleGUID, Stamp: it.SampleStamp, Portable: true},
	}
}

func TestSignatureRendering(t *testing.T) {
	for _, methodPtr := range []bool{false, true} {
		module, err := metadata.LoadBytes(signatureImage(methodPtr).Build(), it.SamplePortablePDB())
		require.NoError(t, err)

		box := module.Types[1]
		require.Len(t, box.Methods, 5)
		byName := map[string]*metadata.MethodDefinition{}
		for _, m := range box.Methods {
			byName[m.Name] = m
		}

		assert.Equal(t, "T", byName["Get"].ReturnType)

		assert.Equal(t, "U", byName["Map"].ReturnType, "method generic parameter")
		assert.Equal(t, []string{"T"}, byName["Map"].Parameters)

		assert.Equal(t, "!!1", byName["Unnamed"].ReturnType)
		assert.Equal(t, []string{"!3"}, byName["Unnamed"].Parameters)

		assert.Equal(t, "System.Void", byName["Shapes"].ReturnType)
		assert.Equal(t, []string{
			"System.Int32[]",
			"System.Int32[,]",
			"System.Int32[0...,0...]",
			"System.String[1...5]",
			"System.Int32&",
			"System.Char*",
			"System.Object[][]",
		}, byName["Shapes"].Parameters)

		assert.Equal(t, "Lib.Box`1", byName["References"].ReturnType)
		assert.Equal(t, []string{
			"System.Collections.Generic.Dictionary`2<System.String,System.Collections.Generic.List`1<System.Int32>>",
			"System.Collections.Generic.List`1<System.Int32>",
			"System.Int32 modreq(System.Runtime.CompilerServices.IsVolatile)",
			"System.Int64 modopt(System.Runtime.CompilerServices.IsVolatile)",
			"Lib.Outer/Inner",
			"method System.Void *(System.Int32,System.Object)",
			"Lib.Box`1<T>",
		}, byName["References"].Parameters, "methodPtr=%v", methodPtr)
	}
}
