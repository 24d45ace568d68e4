package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/dream-rag/internal/core/interpret"
	"github.com/jinford/dream-rag/internal/core/retrieval"
)

// InterpretAction は夢テキストを解釈するコマンドのアクション
func InterpretAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	text, err := dreamText(cmd)
	if err != nil {
		return err
	}

	result, err := appCtx.Container.InterpretService.Interpret(ctx, interpret.Params{
		DreamText: text,
		Context: interpret.Context{
			Stress:  cmd.String("stress"),
			Emotion: cmd.String("emotion"),
		},
		Mode:        interpret.AnalysisType(cmd.String("mode")),
		SourceLimit: cmd.Int("sources"),
	})
	if err != nil {
		return fmt.Errorf("解釈に失敗: %w", err)
	}

	if cmd.Bool("json") {
		return printInterpretJSON(result)
	}

	printInterpretResult(result)
	return nil
}

// InterpretFollowUpAction は解釈済みの夢への追加質問コマンドのアクション
func InterpretFollowUpAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.InterpretService.FollowUp(ctx, interpret.FollowUpParams{
		DreamText:              cmd.String("text"),
		Question:               cmd.String("question"),
		PreviousInterpretation: cmd.String("previous"),
		Context: interpret.Context{
			Stress:  cmd.String("stress"),
			Emotion: cmd.String("emotion"),
		},
	})
	if err != nil {
		return fmt.Errorf("追加質問への回答に失敗: %w", err)
	}

	fmt.Println(result.Answer)
	printCitations(result.Citations)
	return nil
}

// dreamText は --text または --file から夢テキストを取得する
func dreamText(cmd *cli.Command) (string, error) {
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("夢テキストファイルの読み込みに失敗: %w", err)
		}
		return string(data), nil
	}
	if text := cmd.String("text"); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("--text または --file で夢テキストを指定してください")
}

func printInterpretResult(result *interpret.Result) {
	fmt.Println("=== 解釈 ===")
	fmt.Println(result.Interpretation)
	fmt.Println()

	if len(result.Symbols) > 0 {
		fmt.Printf("シンボル: %s\n", strings.Join(result.Symbols, ", "))
	}
	if len(result.Emotions) > 0 {
		fmt.Printf("感情: %s\n", strings.Join(result.Emotions, ", "))
	}
	if len(result.Themes) > 0 {
		fmt.Printf("テーマ: %s\n", strings.Join(result.Themes, ", "))
	}
	fmt.Printf("確信度: %d%%\n", result.Confidence)
	fmt.Printf("分析モード: %s\n", result.AnalysisType)

	printCitations(result.Citations)
}

func printCitations(citations []retrieval.Result) {
	if len(citations) == 0 {
		fmt.Println("\n（該当する研究文献は見つかりませんでした）")
		return
	}

	fmt.Println("\n=== 出典 ===")
	for i, c := range citations {
		fmt.Printf("[%d] %s (関連度: %.3f)\n", i+1, c.Citation, c.Relevance)
	}
}

func printInterpretJSON(result *interpret.Result) error {
	out := struct {
		Interpretation string   `json:"interpretation"`
		Symbols        []string `json:"symbols"`
		Emotions       []string `json:"emotions"`
		Themes         []string `json:"themes"`
		Confidence     int      `json:"confidence"`
		AnalysisType   string   `json:"analysis_type"`
		Citations      []string `json:"citations"`
	}{
		Interpretation: result.Interpretation,
		Symbols:        result.Symbols,
		Emotions:       result.Emotions,
		Themes:         result.Themes,
		Confidence:     result.Confidence,
		AnalysisType:   string(result.AnalysisType),
		Citations:      make([]string, 0, len(result.Citations)),
	}
	for _, c := range result.Citations {
		out.Citations = append(out.Citations, c.Citation)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
