package interpret

import (
	"fmt"
	"strings"

	"github.com/jinford/dream-rag/internal/core/retrieval"
)

const (
	// maxContextTokens は研究コンテキストに割り当てるトークンバジェット
	maxContextTokens = 3000

	// conciseMaxTokens / comprehensiveMaxTokens はモード別の生成トークン上限
	conciseMaxTokens       = 1024
	comprehensiveMaxTokens = 4096
	// followUpMaxTokens は追加質問応答の生成トークン上限
	followUpMaxTokens = 1500
)

// responseSchema は応答フォーマットの指示。モデルがこの形のJSONのみを
// 返すよう要求する。
const responseSchema = `Respond with ONLY a single JSON object, no other text, in exactly this shape:
{
  "interpretation": "your full interpretation as a single string",
  "symbols": ["symbol 1", "symbol 2"],
  "emotions": ["emotion 1", "emotion 2"],
  "themes": ["theme 1", "theme 2"],
  "confidence": 75
}
"confidence" is an integer from 0 to 100 reflecting how well the research context supports the interpretation.`

// BuildInterpretPrompt は夢解釈用のプロンプトを構築する。
// 研究コンテキストは counter で計測しながらバジェット内に収まる分だけ含める。
func BuildInterpretPrompt(
	dreamText string,
	userCtx Context,
	mode AnalysisType,
	citations []retrieval.Result,
	counter TokenCounter,
) string {
	var sb strings.Builder

	// 役割と分析方針
	sb.WriteString("You are a dream interpretation assistant grounded in published dream research.\n")
	sb.WriteString("Base your interpretation on the research context below. ")
	sb.WriteString("When you draw on a source, refer to it by its number, e.g. [Source 1].\n\n")

	switch mode {
	case AnalysisComprehensive:
		sb.WriteString("Provide a comprehensive, multi-perspective interpretation covering:\n")
		sb.WriteString("- The neuroscience of why this dream content may arise (memory consolidation, emotional processing)\n")
		sb.WriteString("- How the dream's elements compare to documented dream content patterns\n")
		sb.WriteString("- What established psychological frameworks suggest about its meaning\n")
		sb.WriteString("- How the dreamer's current circumstances may connect to the dream\n\n")
	default:
		sb.WriteString("Provide a focused, concise interpretation: ")
		sb.WriteString("identify the most significant elements and what the research suggests they mean for the dreamer.\n\n")
	}

	// 研究コンテキスト
	sb.WriteString("## Research context\n")
	writeResearchContext(&sb, citations, counter)

	// ユーザー文脈（指定がある場合のみ）
	if !userCtx.Empty() {
		sb.WriteString("## Dreamer's current state\n")
		if userCtx.Stress != "" {
			sb.WriteString(fmt.Sprintf("- Stress level: %s\n", userCtx.Stress))
		}
		if userCtx.Emotion != "" {
			sb.WriteString(fmt.Sprintf("- Emotional state: %s\n", userCtx.Emotion))
		}
		sb.WriteString("\n")
	}

	// 夢テキスト
	sb.WriteString("## Dream\n")
	sb.WriteString(dreamText)
	sb.WriteString("\n\n")

	// 応答フォーマット
	sb.WriteString(responseSchema)
	sb.WriteString("\n")

	return sb.String()
}

// BuildFollowUpPrompt は解釈済みの夢に対する追加質問用のプロンプトを構築する。
// 応答は構造化せず平文で受ける。
func BuildFollowUpPrompt(params FollowUpParams, citations []retrieval.Result, counter TokenCounter) string {
	var sb strings.Builder

	sb.WriteString("You are a dream interpretation assistant grounded in published dream research.\n")
	sb.WriteString("The dreamer has a follow-up question about a dream you already interpreted. ")
	sb.WriteString("Answer the question directly in plain prose, citing sources by number where relevant.\n\n")

	sb.WriteString("## Research context\n")
	writeResearchContext(&sb, citations, counter)

	if !params.Context.Empty() {
		sb.WriteString("## Dreamer's current state\n")
		if params.Context.Stress != "" {
			sb.WriteString(fmt.Sprintf("- Stress level: %s\n", params.Context.Stress))
		}
		if params.Context.Emotion != "" {
			sb.WriteString(fmt.Sprintf("- Emotional state: %s\n", params.Context.Emotion))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Dream\n")
	sb.WriteString(params.DreamText)
	sb.WriteString("\n\n")

	if params.PreviousInterpretation != "" {
		sb.WriteString("## Previous interpretation\n")
		sb.WriteString(params.PreviousInterpretation)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(params.Question)
	sb.WriteString("\n")

	return sb.String()
}

// writeResearchContext は出典ブロックをトークンバジェット内で書き出す。
// バジェットを超える出典はそこで打ち切り、以降は含めない。
func writeResearchContext(sb *strings.Builder, citations []retrieval.Result, counter TokenCounter) {
	if counter == nil {
		counter = charEstimateCounter{}
	}
	if len(citations) == 0 {
		sb.WriteString("(no relevant research found; interpret from general knowledge and say so)\n\n")
		return
	}

	used := 0
	for i, c := range citations {
		block := fmt.Sprintf("[Source %d: %s]\n%s\n\n", i+1, c.Citation, c.Content)
		cost := counter.CountTokens(block)
		if used+cost > maxContextTokens {
			break
		}
		sb.WriteString(block)
		used += cost
	}
}

// maxTokensFor はモード別の生成トークン上限を返す
func maxTokensFor(mode AnalysisType) int {
	if mode == AnalysisComprehensive {
		return comprehensiveMaxTokens
	}
	return conciseMaxTokens
}
