package metadata_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/metadata"
	"github.com/dbsmedya/gosymbol/internal/metadata/imagetest"
	"github.com/dbsmedya/gosymbol/internal/projector"
)

// testdata/Fixture.dll and Fixture.pdb are a Release build of
// testdata/fixture/Fixture.cs by the .NET 8 SDK. Fixture.records.json was
// produced from the same build with System.Reflection.Metadata.
func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestLoadCompiledAssembly(t *testing.T) {
	module, err := metadata.LoadBytes(readFixture(t, "Fixture.dll"), readFixture(t, "Fixture.pdb"))
	require.NoError(t, err)

	assert.Equal(t, "Fixture.dll", module.Name)
	assert.Equal(t, "v4.0.30319", module.RuntimeVersion)
	assert.Equal(t, []string{"<Module>", "Fixture.Calculator", "Fixture.Shape", "Fixture.Calculator/Inner"}, typeNames(module))
	assert.Equal(t, 10, module.MethodCount())

	assert.Equal(t, metadata.FormatPortablePDB, module.Symbols.Format)
	assert.Equal(t, "9d5abe08-542f-4aed-9553-a3e63696605f", metadata.FormatGUID(module.Symbols.GUID))
	assert.Equal(t, uint32(1), module.Symbols.Age)
	assert.Equal(t, uint32(0xb6fc8e44), module.Symbols.Stamp)
	assert.Equal(t, "/tmp/fixture/obj/Release/net8.0/Fixture.pdb", module.Symbols.Path)
}

func TestProjectCompiledAssembly(t *testing.T) {
	module, err := metadata.LoadBytes(readFixture(t, "Fixture.dll"), readFixture(t, "Fixture.pdb"))
	require.NoError(t, err)

	got, err := json.Marshal(projector.Project(module))
	require.NoError(t, err)
	assert.JSONEq(t, string(readFixture(t, "Fixture.records.json")), string(got))
}

func TestLoadCompiledAssembly_ForeignSymbols(t *testing.T) {
	_, err := metadata.LoadBytes(readFixture(t, "Fixture.dll"), imagetest.SamplePortablePDB())
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrSymbolsMismatched), "got %v", err)
}
