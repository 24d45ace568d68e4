package retrieval

import "github.com/jinford/dream-rag/internal/core/document"

// Result は検索1件の結果。クエリごとに計算される一時データで永続化しない。
type Result struct {
	Content   string
	Metadata  document.Metadata
	Relevance float64 // [0,1] 正規化済み類似度。大きいほど類似
	Citation  string  // 整形済みの出典文字列
}
