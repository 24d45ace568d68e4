package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
	"github.com/jinford/dream-rag/internal/core/ingestion/chunk"
)

const (
	// DefaultBatchSize はEmbedding APIのデフォルトバッチサイズ
	DefaultBatchSize = 100
	// minBatchSize は最小バッチサイズ（MaxBatchSize()が0以下を返した場合のフォールバック）
	minBatchSize = 1
)

// BatchEmbedder はチャンク群のEmbedding一括生成インターフェース
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	MaxBatchSize() int
}

// Service は文献コーパスの取り込みを実行する。
// 1文献の失敗は全体を止めず、統計に記録して続行する。
type Service struct {
	idx       index.Index
	embedder  BatchEmbedder
	chunker   *chunk.Chunker
	batchSize int
	logger    *slog.Logger
}

// ServiceOption は Service 構築時のオプション
type ServiceOption func(*Service)

// WithIngestionLogger は Service にロガーを設定する
func WithIngestionLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBatchSize はEmbeddingバッチサイズを設定する（Embedderの最大値でクリップされる）
func WithBatchSize(size int) ServiceOption {
	return func(s *Service) {
		s.batchSize = size
	}
}

// NewService は新しい Service を作成する
func NewService(idx index.Index, embedder BatchEmbedder, chunker *chunk.Chunker, opts ...ServiceOption) *Service {
	svc := &Service{
		idx:       idx,
		embedder:  embedder,
		chunker:   chunker,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	// バッチサイズをEmbedderの最大値でクリップ
	maxBatch := embedder.MaxBatchSize()
	if maxBatch <= 0 {
		maxBatch = minBatchSize
	}
	if svc.batchSize > maxBatch {
		svc.batchSize = maxBatch
	}
	if svc.batchSize <= 0 {
		svc.batchSize = minBatchSize
	}
	return svc
}

// Run はマニフェストの文献をチャンク化し、Embeddingを生成してインデックスに登録する。
// 読み込めない文献やメタデータ不正の文献はスキップして続行する。
func (s *Service) Run(ctx context.Context, items []ManifestItem) (*Stats, error) {
	if err := s.idx.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	stats := &Stats{}
	var pending []document.Chunk

	for _, item := range items {
		data, err := os.ReadFile(item.Path)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "path", item.Path, "error", err)
			stats.SkippedDocuments++
			continue
		}
		if err := item.Metadata.Validate(); err != nil {
			s.logger.Warn("skipping document with invalid metadata", "path", item.Path, "error", err)
			stats.SkippedDocuments++
			continue
		}

		segments := s.chunker.Split(chunk.Normalize(string(data)))
		if len(segments) == 0 {
			s.logger.Warn("skipping empty document", "path", item.Path)
			stats.SkippedDocuments++
			continue
		}

		for _, segment := range segments {
			pending = append(pending, document.Chunk{
				Content:  segment,
				Metadata: item.Metadata,
			})
		}
		stats.Documents++

		s.logger.Debug("document chunked", "path", item.Path, "chunks", len(segments))
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := min(start+s.batchSize, len(pending))
		if err := s.indexBatch(ctx, pending[start:end], stats); err != nil {
			s.logger.Warn("failed to index batch", "batch_size", end-start, "error", err)
			stats.FailedBatches++
		}
	}

	s.logger.Info("ingestion completed",
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"skipped", stats.SkippedDocuments,
		"failed_batches", stats.FailedBatches,
	)
	return stats, nil
}

// Rebuild はインデックスを空にしてから取り込みをやり直す
func (s *Service) Rebuild(ctx context.Context, items []ManifestItem) (*Stats, error) {
	if err := s.idx.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := s.idx.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear index: %w", err)
	}
	return s.Run(ctx, items)
}

// indexBatch はバッチのEmbeddingを生成してインデックスに登録する
func (s *Service) indexBatch(ctx context.Context, batch []document.Chunk, stats *Stats) error {
	texts := make([]string, 0, len(batch))
	for _, c := range batch {
		texts = append(texts, c.Content)
	}

	vectors, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
	}

	entries := make([]index.Entry, 0, len(batch))
	for i, c := range batch {
		entries = append(entries, index.Entry{
			ID:       uuid.NewString(),
			Vector:   vectors[i],
			Content:  c.Content,
			Metadata: c.Metadata,
		})
	}

	if err := s.idx.Insert(ctx, entries); err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}
	stats.Chunks += len(entries)
	return nil
}
