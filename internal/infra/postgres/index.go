package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
)

// Index は pgvector を使用した index.Index 実装。
// 初期化（拡張・テーブル・インデックスの作成）は最初の操作まで遅延される。
type Index struct {
	pool      *pgxpool.Pool
	dimension int

	openOnce sync.Once
	openErr  error
}

// NewIndex は新しい Index を作成する。dimension は格納するベクトルの次元数。
func NewIndex(pool *pgxpool.Pool, dimension int) *Index {
	return &Index{
		pool:      pool,
		dimension: dimension,
	}
}

// Open はスキーマを初期化する。冪等で、並行呼び出しでも一度だけ実行される。
func (x *Index) Open(ctx context.Context) error {
	x.openOnce.Do(func() {
		x.openErr = x.initSchema(ctx)
	})
	return x.openErr
}

func (x *Index) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS research_chunks (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL,
			category TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, x.dimension),
		`CREATE INDEX IF NOT EXISTS research_chunks_embedding_idx
			ON research_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS research_chunks_category_idx ON research_chunks (category)`,
	}

	for _, stmt := range statements {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize vector store schema: %w", err)
		}
	}
	return nil
}

// Insert はエントリをバッチ挿入する
func (x *Index) Insert(ctx context.Context, entries []index.Entry) error {
	if err := x.Open(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		if len(e.Vector) != x.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", x.dimension, len(e.Vector))
		}

		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}

		batch.Queue(
			`INSERT INTO research_chunks (id, content, metadata, category, embedding) VALUES ($1, $2, $3, $4, $5)`,
			id, e.Content, metadata, string(e.Metadata.Category), pgvector.NewVector(e.Vector),
		)
	}

	results := x.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// Query はコサイン類似度の高い順に最大 topK 件を返す。
// <=> はコサイン距離（1 - 類似度）のため、距離の昇順で並べて 1-d をスコアとする。
func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]index.Match, error) {
	if err := x.Open(ctx); err != nil {
		return nil, err
	}
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", x.dimension, len(vector))
	}
	if topK <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM research_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := x.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	defer rows.Close()

	var matches []index.Match
	for rows.Next() {
		var (
			id       string
			content  string
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&id, &content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var meta document.Metadata
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
		}

		matches = append(matches, index.Match{
			Entry: index.Entry{
				ID:       id,
				Content:  content,
				Metadata: meta,
			},
			Score: clampScore(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return matches, nil
}

// Count は格納済みエントリ数を返す
func (x *Index) Count(ctx context.Context) (int64, error) {
	if err := x.Open(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM research_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// CountByCategory はカテゴリ別のエントリ数を返す
func (x *Index) CountByCategory(ctx context.Context) (map[document.Category]int64, error) {
	if err := x.Open(ctx); err != nil {
		return nil, err
	}

	rows, err := x.pool.Query(ctx, `SELECT category, COUNT(*) FROM research_chunks GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[document.Category]int64)
	for rows.Next() {
		var (
			category string
			count    int64
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[document.Category(category)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return counts, nil
}

// Clear は全エントリを破棄する
func (x *Index) Clear(ctx context.Context) error {
	if err := x.Open(ctx); err != nil {
		return err
	}
	if _, err := x.pool.Exec(ctx, `TRUNCATE research_chunks`); err != nil {
		return fmt.Errorf("failed to clear vector store: %w", err)
	}
	return nil
}

// Close は接続プールを解放する
func (x *Index) Close() error {
	x.pool.Close()
	return nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	return score
}

// コンパイル時の型チェック
var (
	_ index.Index           = (*Index)(nil)
	_ index.CategoryCounter = (*Index)(nil)
)
