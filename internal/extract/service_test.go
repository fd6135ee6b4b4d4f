package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/gosymbol/internal/config"
	"github.com/dbsmedya/gosymbol/internal/failure"
	"github.com/dbsmedya/gosymbol/internal/logger"
	"github.com/dbsmedya/gosymbol/internal/metadata/imagetest"
	"github.com/dbsmedya/gosymbol/internal/projector"
)

func memoryService() *Service {
	return NewService(config.DefaultConfig().Extraction, nil)
}

func diskService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig().Extraction
	cfg.Staging = config.StagingDisk
	cfg.StageDir = dir
	return NewService(cfg, nil), dir
}

func samplePayloads() []Payload {
	return []Payload{
		{Name: Assembly, Data: bytes.NewReader(imagetest.SampleImage())},
		{Name: Symbols, Data: bytes.NewReader(imagetest.SamplePortablePDB())},
	}
}

func TestExtract_Sample(t *testing.T) {
	records, err := memoryService().Extract(context.Background(), samplePayloads())
	require.NoError(t, err)
	require.Len(t, records, 6)

	compute := records[0]
	assert.Equal(t, "Compute", compute.FullyQualifiedName)
	assert.Equal(t, "Sample.Calculator", *compute.ContainingClass)
	assert.Equal(t, int(projector.Public|projector.Static), compute.AccessModifiers)
	assert.Equal(t, []string{"System.Int32", "System.Int32"}, compute.Parameters)
	assert.Equal(t, "System.Int32", compute.ReturnType)
	assert.Equal(t, 5, compute.Instructions)
}

func TestExtract_DiskStagingWithWindowsPDB(t *testing.T) {
	svc, dir := diskService(t)

	records, err := svc.ExtractBytes(context.Background(), imagetest.Sample(false).Build(), imagetest.SampleWindowsPDB())
	require.NoError(t, err)
	assert.Len(t, records, 6)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged files removed after success")
}

func TestExtract_DiskStagingLogsFiles(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dir := t.TempDir()
	cfg := config.DefaultConfig().Extraction
	cfg.Staging = config.StagingDisk
	cfg.StageDir = dir
	svc := NewService(cfg, logger.FromZap(zap.New(core)))

	_, err := svc.Extract(context.Background(), samplePayloads())
	require.NoError(t, err)

	staged := logs.FilterMessage("payloads staged on disk").AllUntimed()
	require.Len(t, staged, 1)
	assert.Len(t, staged[0].ContextMap()["files"], 2)
}

func TestExtract_EmptyModule(t *testing.T) {
	img := &imagetest.Image{
		Module: "Empty.dll",
		Types:  []imagetest.Type{{Name: "<Module>"}},
		Debug:  &imagetest.Debug{GUID: imagetest.SampleGUID, Stamp: imagetest.SampleStamp, Portable: true},
	}

	records, err := memoryService().ExtractBytes(context.Background(), img.Build(), imagetest.SamplePortablePDB())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestExtract_MissingInput(t *testing.T) {
	image := imagetest.SampleImage()
	pdb := imagetest.SamplePortablePDB()

	tests := []struct {
		name     string
		payloads []Payload
	}{
		{"no payloads", nil},
		{"no assembly", []Payload{{Name: Symbols, Data: bytes.NewReader(pdb)}}},
		{"no symbols", []Payload{{Name: Assembly, Data: bytes.NewReader(image)}}},
		{"names are case sensitive", []Payload{
			{Name: "assembly", Data: bytes.NewReader(image)},
			{Name: Symbols, Data: bytes.NewReader(pdb)},
		}},
		{"payload without data", []Payload{
			{Name: Assembly},
			{Name: Symbols, Data: bytes.NewReader(pdb)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := memoryService().Extract(context.Background(), tt.payloads)
			assert.Nil(t, records)
			assert.ErrorIs(t, err, failure.ErrMissingInput)
		})
	}
}

func TestExtract_FirstMatchWins(t *testing.T) {
	garbage := []byte("definitely not an image")

	records, err := memoryService().Extract(context.Background(), append(samplePayloads(),
		Payload{Name: Assembly, Data: bytes.NewReader(garbage)}))
	require.NoError(t, err)
	assert.Len(t, records, 6)

	_, err = memoryService().Extract(context.Background(), append([]Payload{
		{Name: Assembly, Data: bytes.NewReader(garbage)}}, samplePayloads()...))
	assert.ErrorIs(t, err, failure.ErrImageCorrupt)
}

func TestExtract_TypedFailures(t *testing.T) {
	otherGUID := imagetest.SampleGUID
	otherGUID[15]++

	tests := []struct {
		name    string
		image   []byte
		symbols []byte
		kind    error
	}{
		{"corrupt image", []byte("MZ but nothing else"), imagetest.SamplePortablePDB(), failure.ErrImageCorrupt},
		{"native image", imagetest.NativeImage(), imagetest.SamplePortablePDB(), failure.ErrImageCorrupt},
		{"wrong pdb", imagetest.SampleImage(), imagetest.PortablePDB(otherGUID, imagetest.SampleStamp), failure.ErrSymbolsMismatched},
		{"empty pdb", imagetest.SampleImage(), []byte{}, failure.ErrSymbolsMismatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir := diskService(t)
			records, err := svc.ExtractBytes(context.Background(), tt.image, tt.symbols)
			assert.Nil(t, records, "failures never look like empty results")
			assert.ErrorIs(t, err, tt.kind)

			entries, readErr := os.ReadDir(dir)
			require.NoError(t, readErr)
			assert.Empty(t, entries, "staged files removed after failure")
		})
	}
}

type failingReader struct{}

var errReset = errors.New("connection reset by peer")

func (failingReader) Read([]byte) (int, error) { return 0, errReset }

func TestExtract_IOFailure(t *testing.T) {
	_, err := memoryService().Extract(context.Background(), []Payload{
		{Name: Assembly, Data: bytes.NewReader(imagetest.SampleImage())},
		{Name: Symbols, Data: failingReader{}},
	})
	assert.ErrorIs(t, err, failure.ErrIOFailure)
	assert.ErrorIs(t, err, errReset)

	cfg := config.DefaultConfig().Extraction
	cfg.MaxPayloadBytes = 128
	_, err = NewService(cfg, nil).Extract(context.Background(), samplePayloads())
	assert.ErrorIs(t, err, failure.ErrIOFailure)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := memoryService().Extract(ctx, samplePayloads())
	assert.Nil(t, records)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, failure.KindName(err))
}

func TestExtract_Concurrent(t *testing.T) {
	svc, _ := diskService(t)
	image := imagetest.SampleImage()
	pdb := imagetest.SamplePortablePDB()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	counts := make([]int, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records, err := svc.ExtractBytes(context.Background(), image, pdb)
			errs[i], counts[i] = err, len(records)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		assert.NoError(t, errs[i])
		assert.Equal(t, 6, counts[i])
	}
}

func TestExtract_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewService(config.DefaultConfig().Extraction, logger.FromZap(zap.New(core)))

	_, err := svc.Extract(context.Background(), samplePayloads())
	require.NoError(t, err)

	done := logs.FilterMessage("extraction complete").AllUntimed()
	require.Len(t, done, 1)
	assert.Equal(t, "Sample.dll", done[0].ContextMap()["module"])
	assert.Equal(t, int64(6), done[0].ContextMap()["methods"])
	assert.Equal(t, 2, logs.FilterMessage("staged payload").Len())
	assert.Equal(t, 4, logs.FilterMessage("projecting type").Len())
	assert.Zero(t, logs.FilterMessage("payloads staged on disk").Len(), "memory staging writes no files")

	_, err = svc.ExtractBytes(context.Background(), []byte("junk"), nil)
	require.Error(t, err)
	failed := logs.FilterMessage("extraction failed").AllUntimed()
	require.Len(t, failed, 1)
	assert.Equal(t, "ImageCorrupt", failed[0].ContextMap()["kind"])
}
