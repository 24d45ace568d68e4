package localindex

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
)

// Index はファイル永続の組み込み index.Index 実装。
// 全エントリをメモリに保持し、検索は総当たりのコサイン類似度で行う。
// 小規模コーパス（数千チャンク程度）向けで、外部サービスを必要としない。
type Index struct {
	path      string
	dimension int

	mu      sync.RWMutex
	entries []index.Entry

	openOnce sync.Once
	openErr  error
}

// NewIndex は新しい Index を作成する。path は永続化先ファイル。
func NewIndex(path string, dimension int) *Index {
	return &Index{
		path:      path,
		dimension: dimension,
	}
}

// Open は永続化ファイルを読み込む。冪等で、並行呼び出しでも一度だけ実行される。
// ファイルが存在しない場合は空のインデックスとして開始する。
func (x *Index) Open(ctx context.Context) error {
	x.openOnce.Do(func() {
		x.openErr = x.load()
	})
	return x.openErr
}

func (x *Index) load() error {
	f, err := os.Open(x.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	var entries []index.Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode index file: %w", err)
	}

	x.mu.Lock()
	x.entries = entries
	x.mu.Unlock()
	return nil
}

// Insert はエントリを追加してファイルに永続化する
func (x *Index) Insert(ctx context.Context, entries []index.Entry) error {
	if err := x.Open(ctx); err != nil {
		return err
	}

	for i := range entries {
		if len(entries[i].Vector) != x.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", x.dimension, len(entries[i].Vector))
		}
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = append(x.entries, entries...)
	return x.persistLocked()
}

// Query はコサイン類似度の高い順に最大 topK 件を返す
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

	x.mu.RLock()
	defer x.mu.RUnlock()

	matches := make([]index.Match, 0, len(x.entries))
	for _, e := range x.entries {
		matches = append(matches, index.Match{
			Entry: e,
			Score: clampScore(cosineSimilarity(vector, e.Vector)),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count は格納済みエントリ数を返す
func (x *Index) Count(ctx context.Context) (int64, error) {
	if err := x.Open(ctx); err != nil {
		return 0, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	return int64(len(x.entries)), nil
}

// CountByCategory はカテゴリ別のエントリ数を返す
func (x *Index) CountByCategory(ctx context.Context) (map[document.Category]int64, error) {
	if err := x.Open(ctx); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	counts := make(map[document.Category]int64)
	for _, e := range x.entries {
		counts[e.Metadata.Category]++
	}
	return counts, nil
}

// Clear は全エントリを破棄してファイルに反映する
func (x *Index) Clear(ctx context.Context) error {
	if err := x.Open(ctx); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	return x.persistLocked()
}

// Close は何もしない（開いたままのリソースを持たない）
func (x *Index) Close() error {
	return nil
}

// persistLocked は全エントリを一時ファイルに書き出してからリネームする。
// 書き込み途中のクラッシュで既存ファイルを壊さないため。
func (x *Index) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(x.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(x.path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(x.entries); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), x.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// cosineSimilarity は2ベクトルのコサイン類似度を返す。
// ゼロベクトルとの類似度は0とする。
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
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
