package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/dream-rag/cmd/dream-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "dream-rag",
		Usage: "夢日記アプリ向け 研究文献RAGによる夢解釈システム",
		Commands: []*cli.Command{
			{
				Name:  "interpret",
				Usage: "夢テキストを解釈",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:  "text",
						Usage: "夢テキスト",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "夢テキストを読み込むファイルパス（--text の代わりに指定）",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "分析モード (concise/comprehensive)",
						Value: "concise",
					},
					&cli.StringFlag{
						Name:  "stress",
						Usage: "ストレスレベル（任意の文脈情報）",
					},
					&cli.StringFlag{
						Name:  "emotion",
						Usage: "感情状態（任意の文脈情報）",
					},
					&cli.IntFlag{
						Name:  "sources",
						Usage: "参照する出典数",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "JSON形式で出力",
					},
				},
				Action: commands.InterpretAction,
				Commands: []*cli.Command{
					{
						Name:  "followup",
						Usage: "解釈済みの夢への追加質問",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "text",
								Usage:    "夢テキスト",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "question",
								Usage:    "追加質問",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "previous",
								Usage: "前回の解釈テキスト",
							},
							&cli.StringFlag{
								Name:  "stress",
								Usage: "ストレスレベル（任意の文脈情報）",
							},
							&cli.StringFlag{
								Name:  "emotion",
								Usage: "感情状態（任意の文脈情報）",
							},
						},
						Action: commands.InterpretFollowUpAction,
					},
				},
			},
			{
				Name:  "ingest",
				Usage: "研究文献コーパスの取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "マニフェストの文献をインデックスに追加",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "manifest",
								Usage:    "取り込みマニフェスト（JSON）のパス",
								Required: true,
							},
						},
						Action: commands.IngestRunAction,
					},
					{
						Name:  "rebuild",
						Usage: "インデックスを破棄して全文献を再取り込み",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "manifest",
								Usage:    "取り込みマニフェスト（JSON）のパス",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "確認プロンプトをスキップ",
							},
						},
						Action: commands.IngestRebuildAction,
					},
				},
			},
			{
				Name:  "index",
				Usage: "インデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "stats",
						Usage: "インデックスの統計情報を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.IndexStatsAction,
					},
				},
			},
			{
				Name:  "metrics",
				Usage: "生成呼び出しの計測管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "計測記録の集計を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.BoolFlag{
								Name:  "json",
								Usage: "JSON形式で出力",
							},
							&cli.StringFlag{
								Name:  "export",
								Usage: "集計結果をJSONファイルに書き出すパス",
							},
						},
						Action: commands.MetricsShowAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
