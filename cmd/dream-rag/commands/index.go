package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/dream-rag/internal/core/document"
	"github.com/jinford/dream-rag/internal/core/index"
)

// IndexStatsAction はインデックスの統計情報を表示するコマンドのアクション
func IndexStatsAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	count, err := appCtx.Container.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("インデックスの統計取得に失敗: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("項目", "値")
	table.Append("バックエンド", appCtx.Config.Index.Backend)
	table.Append("登録チャンク数", fmt.Sprintf("%d", count))
	table.Append("Embeddingモデル", appCtx.Config.OpenAI.EmbeddingModel)
	table.Append("ベクトル次元数", fmt.Sprintf("%d", appCtx.Config.OpenAI.EmbeddingDimension))

	if counter, ok := appCtx.Container.Index.(index.CategoryCounter); ok {
		counts, err := counter.CountByCategory(ctx)
		if err != nil {
			return fmt.Errorf("カテゴリ別統計の取得に失敗: %w", err)
		}

		categories := make([]string, 0, len(counts))
		for category := range counts {
			categories = append(categories, string(category))
		}
		sort.Strings(categories)

		for _, category := range categories {
			table.Append(fmt.Sprintf("カテゴリ: %s", category), fmt.Sprintf("%d", counts[document.Category(category)]))
		}
	}

	table.Render()

	return nil
}
