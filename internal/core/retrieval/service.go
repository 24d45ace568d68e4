package retrieval

import (
	"context"
	"log/slog"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
)

const (
	// DefaultSourceLimit は取得件数未指定時のデフォルト
	DefaultSourceLimit = 5
	// overqueryFactor はカテゴリフィルタ後の件数不足に備えた過剰取得係数
	overqueryFactor = 2
	// widenFactor はフィルタで件数が枯渇した場合の再検索係数
	widenFactor = 4
)

// Embedder はクエリ文字列のEmbedding生成インターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service は意味検索のビジネスロジックを提供する。
// 検索の失敗は生成処理をブロックしてはならないため、
// Search はエラーを返さず空の結果に縮退する。
type Service struct {
	idx      index.Index
	embedder Embedder
	logger   *slog.Logger
}

// ServiceOption は Service 構築時のオプション
type ServiceOption func(*Service)

// WithRetrievalLogger は Service にロガーを設定する
func WithRetrievalLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(idx index.Index, embedder Embedder, opts ...ServiceOption) *Service {
	svc := &Service{
		idx:      idx,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Search はクエリに類似する最大 n 件を Relevance 降順で返す。
// category が空でない場合、そのカテゴリのエントリのみを返す。
// Embedder やインデックスが利用できない場合は警告ログを出して空を返す
// （出典は生成の前提条件ではなく付加情報のため）。
func (s *Service) Search(ctx context.Context, query string, n int, category string) []Result {
	if query == "" {
		return nil
	}
	if n <= 0 {
		n = DefaultSourceLimit
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("failed to embed query, returning no citations", "error", err)
		return nil
	}

	// フィルタで間引かれる分の余裕を持たせて過剰に取得する
	matches, err := s.idx.Query(ctx, queryVector, n*overqueryFactor)
	if err != nil {
		s.logger.Warn("vector index query failed, returning no citations", "error", err)
		return nil
	}

	filtered := filterByCategory(matches, category)

	// カテゴリが希少でフィルタ後に件数が不足し、かつインデックスに
	// まだ候補が残っている可能性がある場合のみ一度だけ広げて再検索する
	if category != "" && len(filtered) < n && len(matches) == n*overqueryFactor {
		wider, err := s.idx.Query(ctx, queryVector, n*widenFactor)
		if err == nil {
			filtered = filterByCategory(wider, category)
		} else {
			s.logger.Warn("widened index query failed, using narrow results", "error", err)
		}
	}

	if len(filtered) > n {
		filtered = filtered[:n]
	}

	results := make([]Result, 0, len(filtered))
	for _, m := range filtered {
		results = append(results, Result{
			Content:   m.Entry.Content,
			Metadata:  m.Entry.Metadata,
			Relevance: m.Score,
			Citation:  FormatCitation(m.Entry.Metadata),
		})
	}

	s.logger.Debug("retrieval completed",
		"query_length", len(query),
		"results", len(results),
		"category", category,
	)
	return results
}

func filterByCategory(matches []index.Match, category string) []index.Match {
	if category == "" {
		return matches
	}
	filtered := make([]index.Match, 0, len(matches))
	for _, m := range matches {
		if m.Entry.Metadata.Category == document.Category(category) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
