package projector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosymbol/internal/metadata"
	"github.com/dbsmedya/gosymbol/internal/metadata/imagetest"
)

func loadSample(t *testing.T) *metadata.ModuleImage {
	t.Helper()
	module, err := metadata.LoadBytes(imagetest.SampleImage(), imagetest.SamplePortablePDB())
	require.NoError(t, err)
	return module
}

func TestProject_Sample(t *testing.T) {
	records := Project(loadSample(t))
	require.Len(t, records, 6)

	var names []string
	for _, r := range records {
		names = append(names, r.FullyQualifiedName)
	}
	assert.Equal(t, []string{"Compute", ".ctor", "Describe", "Area", "Lock", "Build"}, names)

	compute := records[0]
	require.NotNil(t, compute.ContainingClass)
	assert.Equal(t, "Sample.Calculator", *compute.ContainingClass)
	assert.Equal(t, int(Public|Static), compute.AccessModifiers)
	assert.Equal(t, []string{"System.Int32", "System.Int32"}, compute.Parameters)
	assert.Equal(t, "System.Int32", compute.ReturnType)
	assert.Equal(t, 5, compute.Instructions)

	area := records[3]
	assert.Equal(t, int(Public|Abstract), area.AccessModifiers)
	assert.Zero(t, area.Instructions)
	assert.Equal(t, "System.Double", area.ReturnType)

	lock := records[4]
	assert.Equal(t, int(Synchronized|Protected), lock.AccessModifiers)
	assert.Equal(t, VoidType, lock.ReturnType)
	assert.NotNil(t, lock.Parameters)

	build := records[5]
	assert.Equal(t, "Sample.Shape/Builder", *build.ContainingClass)
}

func TestProject_EmptyModule(t *testing.T) {
	records := Project(&metadata.ModuleImage{Types: []*metadata.TypeDefinition{{Name: "<Module>"}}})
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestRecord_IndependentFlags(t *testing.T) {
	tests := []struct {
		name  string
		attrs metadata.MethodAttributes
		impl  metadata.MethodImplAttributes
		want  int
	}{
		{"private", metadata.MethodPrivate, 0, int(Private)},
		{"assembly", metadata.MethodAssembly, 0, 0},
		{"protected final", metadata.MethodFamily | metadata.MethodFinal | metadata.MethodVirtual, 0, int(Final | Protected)},
		{"public static synchronized", metadata.MethodPublic | metadata.MethodStatic, metadata.ImplSynchronized, int(Public | Static | Synchronized)},
		{"abstract static", metadata.MethodPublic | metadata.MethodAbstract | metadata.MethodStatic, 0, int(Public | Abstract | Static)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record(&metadata.MethodDefinition{Name: "M", Attributes: tt.attrs, ImplAttributes: tt.impl})
			assert.Equal(t, tt.want, rec.AccessModifiers)
		})
	}
}

func TestRecord_Edges(t *testing.T) {
	rec := Record(&metadata.MethodDefinition{Name: "Orphan"})
	assert.Nil(t, rec.ContainingClass)
	assert.Equal(t, VoidType, rec.ReturnType)
	assert.NotNil(t, rec.Parameters)
	assert.Empty(t, rec.Parameters)

	abstract := Record(&metadata.MethodDefinition{
		Name:         "Stale",
		Attributes:   metadata.MethodAbstract,
		RVA:          0x2050,
		Instructions: 9,
	})
	assert.Zero(t, abstract.Instructions, "no body means zero instructions")

	params := []string{"System.Int32", "System.String"}
	ordered := Record(&metadata.MethodDefinition{Name: "Pair", Parameters: params})
	assert.Equal(t, params, ordered.Parameters)
	ordered.Parameters[0] = "changed"
	assert.Equal(t, "System.Int32", params[0], "records do not alias the module")
}

func TestMethodRecord_JSON(t *testing.T) {
	class := "Sample.Calculator"
	out, err := json.Marshal([]MethodRecord{
		{FullyQualifiedName: "Compute", ContainingClass: &class, AccessModifiers: 9,
			Parameters: []string{"System.Int32", "System.Int32"}, ReturnType: "System.Int32", Instructions: 5},
		{FullyQualifiedName: "Orphan", Parameters: []string{}, ReturnType: VoidType},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"fullyQualifiedName":"Compute","containingClass":"Sample.Calculator","accessModifiers":9,
		 "parameters":["System.Int32","System.Int32"],"returnType":"System.Int32","instructions":5},
		{"fullyQualifiedName":"Orphan","containingClass":null,"accessModifiers":0,
		 "parameters":[],"returnType":"System.Void","instructions":0}
	]`, string(out))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, []Modifier{Public, Static}, Decode(9))
	assert.Equal(t, []Modifier{Public, Private, Abstract, Static, Synchronized, Final, Protected}, Decode(127))
	assert.Empty(t, Decode(0))
	assert.Equal(t, []Modifier{Private}, Decode(2|128), "unknown bits ignored")

	assert.Equal(t, "public static", FormatMask(9))
	assert.Equal(t, "protected", Protected.String())
	assert.Equal(t, "unknown", Modifier(3).String())
}
