package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
)

type stubEmbedder struct {
	err    error
	called bool
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.called = true
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubIndex struct {
	matches    []index.Match
	err        error
	queryCalls []int // 呼び出しごとの topK を記録
}

func (s *stubIndex) Open(ctx context.Context) error { return nil }

func (s *stubIndex) Insert(ctx context.Context, entries []index.Entry) error { return nil }

func (s *stubIndex) Query(ctx context.Context, vector []float32, topK int) ([]index.Match, error) {
	s.queryCalls = append(s.queryCalls, topK)
	if s.err != nil {
		return nil, s.err
	}
	if topK > len(s.matches) {
		topK = len(s.matches)
	}
	return s.matches[:topK], nil
}

func (s *stubIndex) Count(ctx context.Context) (int64, error) { return int64(len(s.matches)), nil }

func (s *stubIndex) Clear(ctx context.Context) error { return nil }

func (s *stubIndex) Close() error { return nil }

var _ index.Index = (*stubIndex)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func matchWithCategory(score float64, category document.Category) index.Match {
	return index.Match{
		Entry: index.Entry{
			Content: "chunk content",
			Metadata: document.Metadata{
				Source:     "Solms, The Neuropsychology of Dreams",
				Category:   category,
				Validation: document.ValidationPeerReviewed,
			},
		},
		Score: score,
	}
}

func TestSearch_ReturnsAtMostNSortedResults(t *testing.T) {
	idx := &stubIndex{}
	for i := 0; i < 10; i++ {
		idx.matches = append(idx.matches, matchWithCategory(1.0-float64(i)*0.1, document.CategoryNeuroscience))
	}
	svc := NewService(idx, &stubEmbedder{}, WithRetrievalLogger(testLogger()))

	results := svc.Search(context.Background(), "teeth falling out", 3, "")
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Relevance, results[i].Relevance)
	}
	// 過剰取得は 2n
	require.Len(t, idx.queryCalls, 1)
	assert.Equal(t, 6, idx.queryCalls[0])
}

func TestSearch_CategoryFilter(t *testing.T) {
	idx := &stubIndex{matches: []index.Match{
		matchWithCategory(0.9, document.CategoryNeuroscience),
		matchWithCategory(0.8, document.CategoryPsychology),
		matchWithCategory(0.7, document.CategoryNeuroscience),
		matchWithCategory(0.6, document.CategoryGeneral),
	}}
	svc := NewService(idx, &stubEmbedder{}, WithRetrievalLogger(testLogger()))

	results := svc.Search(context.Background(), "flying dreams", 5, "neuroscience")
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, document.CategoryNeuroscience, r.Metadata.Category)
	}
}

func TestSearch_WidensWhenCategoryStarved(t *testing.T) {
	// 先頭 2n 件にカテゴリ該当が少なく、インデックスに候補が残っているケース
	idx := &stubIndex{}
	for i := 0; i < 4; i++ {
		idx.matches = append(idx.matches, matchWithCategory(0.9, document.CategoryGeneral))
	}
	for i := 0; i < 4; i++ {
		idx.matches = append(idx.matches, matchWithCategory(0.5, document.CategoryPsychology))
	}
	svc := NewService(idx, &stubEmbedder{}, WithRetrievalLogger(testLogger()))

	results := svc.Search(context.Background(), "water", 2, "psychology")
	require.Len(t, idx.queryCalls, 2)
	assert.Equal(t, 4, idx.queryCalls[0])
	assert.Equal(t, 8, idx.queryCalls[1])
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, document.CategoryPsychology, r.Metadata.Category)
	}
}

func TestSearch_DegradesOnEmbedderFailure(t *testing.T) {
	idx := &stubIndex{matches: []index.Match{matchWithCategory(0.9, document.CategoryGeneral)}}
	embedder := &stubEmbedder{err: errors.New("embedding backend down")}
	svc := NewService(idx, embedder, WithRetrievalLogger(testLogger()))

	results := svc.Search(context.Background(), "falling", 5, "")
	assert.Empty(t, results)
	assert.Empty(t, idx.queryCalls, "index must not be queried when embedding fails")
}

func TestSearch_DegradesOnIndexFailure(t *testing.T) {
	idx := &stubIndex{err: errors.New("index unavailable")}
	svc := NewService(idx, &stubEmbedder{}, WithRetrievalLogger(testLogger()))

	results := svc.Search(context.Background(), "falling", 5, "")
	assert.Empty(t, results)
}

func TestSearch_EmptyQueryReturnsNothing(t *testing.T) {
	idx := &stubIndex{}
	embedder := &stubEmbedder{}
	svc := NewService(idx, embedder, WithRetrievalLogger(testLogger()))

	assert.Empty(t, svc.Search(context.Background(), "", 5, ""))
	assert.False(t, embedder.called)
}

func TestFormatCitation(t *testing.T) {
	tests := []struct {
		name string
		meta document.Metadata
		want string
	}{
		{
			name: "author and year",
			meta: document.Metadata{Author: "Hall, C.S.", Year: 1966, Source: "The Content Analysis of Dreams"},
			want: "Hall, C.S. (1966). The Content Analysis of Dreams",
		},
		{
			name: "year only",
			meta: document.Metadata{Year: 1997, Source: "The Neuropsychology of Dreams"},
			want: "(1997). The Neuropsychology of Dreams",
		},
		{
			name: "bare source",
			meta: document.Metadata{Source: "Dream research overview"},
			want: "Dream research overview",
		},
		{
			name: "with doi",
			meta: document.Metadata{Author: "Cartwright, R.", Year: 1992, Source: "Crisis Dreaming", DOI: "10.1000/xyz123"},
			want: "Cartwright, R. (1992). Crisis Dreaming https://doi.org/10.1000/xyz123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCitation(tt.meta))
		})
	}
}
