package ingestion

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jinford/dream-rag/internal/core/document"
)

// ManifestItem は取り込み対象の文献1件分の定義
type ManifestItem struct {
	Path     string            `json:"path"`
	Metadata document.Metadata `json:"metadata"`
}

// Stats は取り込み処理の統計情報
type Stats struct {
	Documents        int // 正常に処理された文献数
	Chunks           int // インデックスに登録されたチャンク数
	SkippedDocuments int // 読み込み不可・メタデータ不正でスキップした文献数
	FailedBatches    int // Embedding生成または登録に失敗したバッチ数
}

// LoadManifest はJSONマニフェストファイルから取り込み対象を読み込む。
// category / validation が未指定の項目はデフォルト値で補完する。
func LoadManifest(path string) ([]ManifestItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var items []ManifestItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for i := range items {
		if items[i].Metadata.Category == "" {
			items[i].Metadata.Category = document.CategoryGeneral
		}
		if items[i].Metadata.Validation == "" {
			items[i].Metadata.Validation = document.ValidationUnknown
		}
	}
	return items, nil
}
