package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
	"github.com/jinford/dream-rag/internal/core/ingestion/chunk"
)

type stubEmbedder struct {
	maxBatch   int
	failBatch  int // このインデックスのバッチ呼び出しを失敗させる（-1で無効）
	batchSizes []int
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	call := len(e.batchSizes)
	e.batchSizes = append(e.batchSizes, len(texts))
	if call == e.failBatch {
		return nil, errors.New("embedding backend down")
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (e *stubEmbedder) MaxBatchSize() int { return e.maxBatch }

type recordingIndex struct {
	entries []index.Entry
	cleared bool
}

func (r *recordingIndex) Open(ctx context.Context) error { return nil }

func (r *recordingIndex) Insert(ctx context.Context, entries []index.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *recordingIndex) Query(ctx context.Context, vector []float32, topK int) ([]index.Match, error) {
	return nil, nil
}

func (r *recordingIndex) Count(ctx context.Context) (int64, error) {
	return int64(len(r.entries)), nil
}

func (r *recordingIndex) Clear(ctx context.Context) error {
	r.cleared = true
	r.entries = nil
	return nil
}

func (r *recordingIndex) Close() error { return nil }

var _ index.Index = (*recordingIndex)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChunker(t *testing.T) *chunk.Chunker {
	t.Helper()
	chunker, err := chunk.NewChunker(200, 50)
	require.NoError(t, err)
	return chunker
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validMetadata(source string) document.Metadata {
	return document.Metadata{
		Source:     source,
		Category:   document.CategoryNeuroscience,
		Validation: document.ValidationPeerReviewed,
	}
}

func TestRun_IngestsDocuments(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "solms.txt", strings.Repeat("dream research text ", 30))

	idx := &recordingIndex{}
	embedder := &stubEmbedder{maxBatch: 100, failBatch: -1}
	svc := NewService(idx, embedder, newTestChunker(t), WithIngestionLogger(testLogger()))

	stats, err := svc.Run(context.Background(), []ManifestItem{
		{Path: path, Metadata: validMetadata("The Neuropsychology of Dreams")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, stats.Chunks, len(idx.entries))
	assert.Zero(t, stats.SkippedDocuments)
	require.NotEmpty(t, idx.entries)

	seen := map[string]bool{}
	for _, e := range idx.entries {
		assert.NotEmpty(t, e.ID)
		assert.False(t, seen[e.ID], "entry IDs must be unique")
		seen[e.ID] = true
		assert.Equal(t, "The Neuropsychology of Dreams", e.Metadata.Source)
		assert.Len(t, e.Vector, 3)
	}
}

func TestRun_SkipsMissingAndInvalidDocuments(t *testing.T) {
	dir := t.TempDir()
	good := writeDoc(t, dir, "good.txt", strings.Repeat("valid content ", 20))
	bad := writeDoc(t, dir, "bad.txt", "content with invalid metadata")

	idx := &recordingIndex{}
	svc := NewService(idx, &stubEmbedder{maxBatch: 100, failBatch: -1}, newTestChunker(t), WithIngestionLogger(testLogger()))

	stats, err := svc.Run(context.Background(), []ManifestItem{
		{Path: good, Metadata: validMetadata("Good Source")},
		{Path: filepath.Join(dir, "missing.txt"), Metadata: validMetadata("Missing")},
		{Path: bad, Metadata: document.Metadata{Source: "Bad", Category: "astrology", Validation: document.ValidationUnknown}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 2, stats.SkippedDocuments)
}

func TestRun_BatchSizeClippedToEmbedderLimit(t *testing.T) {
	dir := t.TempDir()
	// 200/50 のチャンカーで複数チャンクになる長さ
	path := writeDoc(t, dir, "long.txt", strings.Repeat("abcdefghij", 70))

	idx := &recordingIndex{}
	embedder := &stubEmbedder{maxBatch: 2, failBatch: -1}
	svc := NewService(idx, embedder, newTestChunker(t), WithIngestionLogger(testLogger()))

	stats, err := svc.Run(context.Background(), []ManifestItem{
		{Path: path, Metadata: validMetadata("Long Source")},
	})
	require.NoError(t, err)
	require.Greater(t, stats.Chunks, 2)
	for _, size := range embedder.batchSizes {
		assert.LessOrEqual(t, size, 2)
	}
}

func TestRun_FailedBatchDoesNotStopIngestion(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "long.txt", strings.Repeat("abcdefghij", 70))

	idx := &recordingIndex{}
	embedder := &stubEmbedder{maxBatch: 2, failBatch: 0}
	svc := NewService(idx, embedder, newTestChunker(t), WithIngestionLogger(testLogger()))

	stats, err := svc.Run(context.Background(), []ManifestItem{
		{Path: path, Metadata: validMetadata("Long Source")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedBatches)
	// 失敗バッチ以外は登録される
	assert.Equal(t, stats.Chunks, len(idx.entries))
	assert.NotEmpty(t, idx.entries)
}

func TestRebuild_ClearsIndexFirst(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.txt", strings.Repeat("dream content ", 20))

	idx := &recordingIndex{entries: []index.Entry{{ID: "stale"}}}
	svc := NewService(idx, &stubEmbedder{maxBatch: 100, failBatch: -1}, newTestChunker(t), WithIngestionLogger(testLogger()))

	stats, err := svc.Rebuild(context.Background(), []ManifestItem{
		{Path: path, Metadata: validMetadata("Doc")},
	})
	require.NoError(t, err)
	assert.True(t, idx.cleared)
	assert.Equal(t, stats.Chunks, len(idx.entries))
	for _, e := range idx.entries {
		assert.NotEqual(t, "stale", e.ID)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeDoc(t, dir, "manifest.json", `[
		{"path": "corpus/solms.txt", "metadata": {"source": "The Neuropsychology of Dreams", "category": "neuroscience", "validation": "peer_reviewed", "author": "Solms, M.", "year": 1997}},
		{"path": "corpus/notes.txt", "metadata": {"source": "Research notes"}}
	]`)

	items, err := LoadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, document.CategoryNeuroscience, items[0].Metadata.Category)
	// 未指定項目はデフォルトで補完される
	assert.Equal(t, document.CategoryGeneral, items[1].Metadata.Category)
	assert.Equal(t, document.ValidationUnknown, items[1].Metadata.Validation)

	_, err = LoadManifest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
