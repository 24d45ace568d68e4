package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/dream-rag/internal/core/metrics"
)

// MetricsShowAction は計測記録の集計を表示するコマンドのアクション
func MetricsShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	rows, err := appCtx.Container.Recorder.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("計測記録の読み込みに失敗: %w", err)
	}

	summary := metrics.Aggregate(rows)

	if path := cmd.String("export"); path != "" {
		if err := exportSummary(path, summary); err != nil {
			return err
		}
		fmt.Printf("集計結果を書き出しました: %s\n", path)
		return nil
	}

	if cmd.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}

	if summary.TotalCount == 0 {
		fmt.Println("計測記録はありません")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("メトリクス", "値")
	table.Append("総呼び出し数", fmt.Sprintf("%d", summary.TotalCount))
	table.Append("成功数", fmt.Sprintf("%d", summary.SuccessCount))
	table.Append("失敗数", fmt.Sprintf("%d", summary.ErrorCount))
	table.Append("成功率", fmt.Sprintf("%.2f%%", summary.SuccessRate))
	table.Append("平均レイテンシ", fmt.Sprintf("%dms", summary.MeanLatencyMs))
	table.Append("総コスト", fmt.Sprintf("$%.4f", summary.TotalCostUSD))
	table.Append("平均コスト", fmt.Sprintf("$%.4f", summary.MeanCostUSD))
	table.Append("総トークン数", fmt.Sprintf("%d", summary.TotalTokens))
	table.Render()

	return nil
}

func exportSummary(path string, summary metrics.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("書き出しファイルの作成に失敗: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("集計結果の書き出しに失敗: %w", err)
	}
	return nil
}
