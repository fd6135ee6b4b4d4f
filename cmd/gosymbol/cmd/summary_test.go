package cmd

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/report"
)

func TestSummaryCommandStructure(t *testing.T) {
	assert.Equal(t, "summary", summaryCmd.Use)
	assert.NotEmpty(t, summaryCmd.Short)
	assert.Contains(t, summaryCmd.Long, "gosymbol summary")
	assert.NotNil(t, summaryCmd.RunE)
}

func TestSummaryJSON(t *testing.T) {
	asm, pdb := sampleFiles(t)
	out, err := run(t, "summary", "-a", asm, "-s", pdb)
	require.NoError(t, err)

	var sum report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	require.Len(t, sum.Types, 3)

	assert.Equal(t, report.TypeSummary{Type: "Sample.Calculator", Methods: 3, Instructions: 12, Public: 2}, *sum.Types[0])
	assert.Equal(t, report.TypeSummary{Type: "Sample.Shape", Methods: 2, Instructions: 1, Bodiless: 1, Public: 1}, *sum.Types[1])
	assert.Equal(t, report.TypeSummary{Type: "Sample.Shape/Builder", Methods: 1, Instructions: 2, Public: 1}, *sum.Types[2])

	assert.Equal(t, 6, sum.Total.Methods)
	assert.Equal(t, 15, sum.Total.Instructions)
	assert.Equal(t, 1, sum.Total.Bodiless)
	assert.Equal(t, 4, sum.Total.Public)
}

func TestSummaryTable(t *testing.T) {
	asm, pdb := sampleFiles(t)
	out, err := run(t, "summary", "-a", asm, "-s", pdb, "-o", "table", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "Sample.Calculator")
	assert.Contains(t, out, "Sample.Shape/Builder")
}

func TestSummaryMissingSymbols(t *testing.T) {
	asm, _ := sampleFiles(t)
	_, err := run(t, "summary", "-a", asm)

	assert.True(t, errors.Is(err, failure.ErrMissingInput))
	assert.Equal(t, ExitMissingInput, ExitCode(err))
}
