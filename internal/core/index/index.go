package index

import (
	"context"

	"github.com/jinford/dream-rag/internal/core/document"
)

// Entry はインデックスに格納される1レコードを表す。
// 取り込み時に作成され、以後変更されない。削除は Clear による全再構築のみ。
type Entry struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata document.Metadata
}

// Match は近傍検索の1件の結果。Score は [0,1] に正規化された類似度
// （コサイン距離 d に対して 1-d、0 でクランプ）で、大きいほど類似。
type Match struct {
	Entry Entry
	Score float64
}

// Index は永続的な近傍検索ストアのインターフェース。
// サーバ型（pgvector）と組み込み型（ファイル永続）の2実装が存在する。
//
// Open は遅延初期化される。プロセス起動をブロックしないよう最初の操作まで
// 延期され、複数ゴルーチンから同時に呼ばれても一度しか実行されない。
// Open の失敗は致命的（検索対象が存在しないため縮退運転できない）。
type Index interface {
	// Open はストアを初期化する。冪等であり並行呼び出しに対して安全。
	Open(ctx context.Context) error

	// Insert はエントリを追加する。ID が空の場合は実装が一意なIDを割り当てる。
	// 内容の重複に一意性制約はない。
	Insert(ctx context.Context, entries []Entry) error

	// Query はベクトルに類似する最大 topK 件を Score 降順で返す。
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Count は格納済みエントリ数を返す。
	Count(ctx context.Context) (int64, error)

	// Clear は全エントリを破棄する。破壊的で元に戻せない。
	Clear(ctx context.Context) error

	// Close は内部リソースを解放する。
	Close() error
}

// CategoryCounter はカテゴリ別の件数内訳を提供する任意インターフェース。
// 統計表示用で、両バックエンドが実装する。
type CategoryCounter interface {
	CountByCategory(ctx context.Context) (map[document.Category]int64, error)
}
