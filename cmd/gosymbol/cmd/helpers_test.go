package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/metadata/imagetest"
)

// resetFlags restores every package-level flag variable to its default so
// commands executed by one test do not leak into the next.
func resetFlags() {
	cfgFile = config.DefaultPath
	logLevel = ""
	logFormat = ""
	staging = ""
	stageDir = ""
	output = ""
	noColor = false
	assemblyPath = ""
	symbolsPath = ""
}

// run executes the root command with args and returns what it wrote to
// stdout. It runs from an empty directory so no gosymbol.yaml is picked up.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Equivalent of t.Chdir (Go 1.24+) for the Go 1.21 toolchain.
	if wd, err := os.Getwd(); err != nil {
		t.Fatal(err)
	} else if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	} else {
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// writeFile writes data under dir and returns its path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// sampleFiles writes the sample assembly and its portable PDB.
func sampleFiles(t *testing.T) (assembly, symbols string) {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "Sample.dll", imagetest.SampleImage()),
		writeFile(t, dir, "Sample.pdb", imagetest.SamplePortablePDB())
}
