package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/dream-rag/internal/core/ingestion"
)

// IngestRunAction はマニフェストの文献をインデックスに追加するコマンドのアクション
func IngestRunAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	items, err := ingestion.LoadManifest(cmd.String("manifest"))
	if err != nil {
		return fmt.Errorf("マニフェストの読み込みに失敗: %w", err)
	}

	stats, err := appCtx.Container.IngestionService.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("取り込みに失敗: %w", err)
	}

	printIngestStats(stats)
	return nil
}

// IngestRebuildAction はインデックスを破棄して全文献を再取り込みするコマンドのアクション
func IngestRebuildAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		ok, err := confirm("インデックスの全エントリを破棄して再構築します。よろしいですか？ [y/N]: ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("中止しました")
			return nil
		}
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	items, err := ingestion.LoadManifest(cmd.String("manifest"))
	if err != nil {
		return fmt.Errorf("マニフェストの読み込みに失敗: %w", err)
	}

	stats, err := appCtx.Container.IngestionService.Rebuild(ctx, items)
	if err != nil {
		return fmt.Errorf("再構築に失敗: %w", err)
	}

	printIngestStats(stats)
	return nil
}

func printIngestStats(stats *ingestion.Stats) {
	fmt.Println("=== 取り込み結果 ===")
	fmt.Printf("処理した文献数: %d\n", stats.Documents)
	fmt.Printf("登録したチャンク数: %d\n", stats.Chunks)
	if stats.SkippedDocuments > 0 {
		fmt.Printf("スキップした文献数: %d\n", stats.SkippedDocuments)
	}
	if stats.FailedBatches > 0 {
		fmt.Printf("失敗したバッチ数: %d\n", stats.FailedBatches)
	}
}

func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("入力の読み込みに失敗: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
