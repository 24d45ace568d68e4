package interpret

import (
	"context"
	"errors"

	"github.com/jinford/dream-rag/internal/core/metrics"
	"github.com/jinford/dream-rag/internal/core/retrieval"
)

// AnalysisType は解釈の分析モードを表す
type AnalysisType string

const (
	// AnalysisConcise は簡潔モード（短い指示・小さい出力バジェット）
	AnalysisConcise AnalysisType = "concise"
	// AnalysisComprehensive は包括モード（多視点の指示・大きい出力バジェット）
	AnalysisComprehensive AnalysisType = "comprehensive"
)

// ValidAnalysisType は分析モードが定義済みのものかを判定する
func ValidAnalysisType(t AnalysisType) bool {
	return t == AnalysisConcise || t == AnalysisComprehensive
}

// Context は夢テキストに付随する任意のユーザー文脈
type Context struct {
	Stress  string
	Emotion string
}

// Empty は全フィールドが未指定かを返す
func (c Context) Empty() bool {
	return c.Stress == "" && c.Emotion == ""
}

// Params は解釈リクエストのパラメータ
type Params struct {
	DreamText   string
	Context     Context
	Mode        AnalysisType
	SourceLimit int // 取得する出典数（デフォルト: retrieval.DefaultSourceLimit）
}

// Result は構造化された解釈結果。リクエストごとの一時データで永続化しない。
type Result struct {
	Interpretation string
	Symbols        []string
	Emotions       []string
	Themes         []string
	Confidence     int // [0,100]
	AnalysisType   AnalysisType
	Citations      []retrieval.Result
	Metrics        metrics.Invocation
}

// FollowUpParams は解釈済みの夢に対する追加質問のパラメータ
type FollowUpParams struct {
	DreamText              string
	Question               string
	PreviousInterpretation string
	Context                Context
}

// FollowUpResult は追加質問への回答。
// 自由記述の回答には構造化された確信度がないため、Confidence は固定値。
type FollowUpResult struct {
	Answer     string
	Confidence int
	Citations  []retrieval.Result
	Metrics    metrics.Invocation
}

// CompletionRequest は生成モデルへの単発リクエスト。
// 会話履歴は保持しない（ステートレス）。
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse は生成モデルからの応答
type CompletionResponse struct {
	Content    string
	TokensUsed int
	Model      string
}

// LLMClient は生成モデル通信インターフェース。
// 実装はこの層でリトライしない。失敗は型付きエラーとして呼び出し元に伝播する。
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// TokenCounter はプロンプトの文脈バジェット制御に使うトークン数カウンタ
type TokenCounter interface {
	CountTokens(text string) int
}

// charEstimateCounter はトークナイザ不在時の概算カウンタ（約4文字=1トークン）
type charEstimateCounter struct{}

func (charEstimateCounter) CountTokens(text string) int {
	return len(text) / 4
}

var (
	// ErrEmptyDreamText は夢テキスト未指定のエラー
	ErrEmptyDreamText = errors.New("dream text is required")
	// ErrEmptyQuestion は追加質問未指定のエラー
	ErrEmptyQuestion = errors.New("follow-up question is required")
)
