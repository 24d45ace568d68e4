package interpret

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

// defaultConfidence は confidence 欠落・不正時のデフォルト値
const defaultConfidence = 75

// rawEnvelope は生成応答のJSONを型を確定させずに受けるための中間表現。
// 各フィールドの型は後段の coerce で個別に検証する。
type rawEnvelope struct {
	Interpretation json.RawMessage `json:"interpretation"`
	Symbols        json.RawMessage `json:"symbols"`
	Emotions       json.RawMessage `json:"emotions"`
	Themes         json.RawMessage `json:"themes"`
	Confidence     json.RawMessage `json:"confidence"`
}

// ParseResponse は生成モデルの応答テキストから構造化結果を組み立てる。
// 応答の前後にJSON以外のテキストが混ざるケースと、文字列リテラル内に
// 生の制御文字が混入するケースを修復してから解析する。
// 修復後も解析できない場合は *ParseError を返す。
func ParseResponse(raw string, mode AnalysisType) (*Result, error) {
	candidate, ok := extractObject(raw)
	if !ok {
		return nil, &ParseError{
			OriginalErr: errors.New("no JSON object found in response"),
			RawPreview:  preview(raw),
		}
	}

	var envelope rawEnvelope
	firstErr := json.Unmarshal([]byte(candidate), &envelope)
	if firstErr != nil {
		if !isStringLiteralError(firstErr) {
			return nil, &ParseError{
				OriginalErr: firstErr,
				RawPreview:  preview(candidate),
			}
		}

		sanitized := SanitizeControlChars(candidate)
		if secondErr := json.Unmarshal([]byte(sanitized), &envelope); secondErr != nil {
			return nil, &ParseError{
				OriginalErr:      firstErr,
				SanitizedErr:     secondErr,
				RawPreview:       preview(candidate),
				SanitizedPreview: preview(sanitized),
			}
		}
	}

	return coerce(envelope, raw, mode), nil
}

// extractObject は応答テキストから最初の `{` と最後の `}` の間を切り出す。
// モデルが JSON の前後に説明文を付けるケースへの対処。
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// isStringLiteralError は文字列リテラル内の不正文字による構文エラーかを判定する。
// このエラー種別のみ制御文字の修復対象とし、構造自体の破損は修復しない。
func isStringLiteralError(err error) bool {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return false
	}
	return strings.Contains(syntaxErr.Error(), "in string literal")
}

// SanitizeControlChars は文字列リテラル内の生の制御文字をエスケープ表現に
// 置き換える。文字列の内外は引用符の開閉で追跡し、引用符がエスケープ済みか
// どうかは直前のバックスラッシュ連続数の偶奇で判定する（偶数個なら開閉、
// 奇数個ならエスケープされた引用符）。文字列の外にある文字は変更しない。
func SanitizeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	backslashes := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]

		if ch == '\\' {
			backslashes++
			b.WriteByte(ch)
			continue
		}
		if ch == '"' {
			if backslashes%2 == 0 {
				inString = !inString
			}
			backslashes = 0
			b.WriteByte(ch)
			continue
		}
		backslashes = 0

		if !inString {
			b.WriteByte(ch)
			continue
		}
		switch ch {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if ch < 0x20 {
				// エスケープ表現を持たない制御文字は破棄する
				continue
			}
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// coerce は中間表現から Result を組み立てる。各フィールドは型を検証し、
// 期待と異なる場合はエラーにせずデフォルト値に落とす。
func coerce(envelope rawEnvelope, raw string, mode AnalysisType) *Result {
	result := &Result{
		Interpretation: strings.TrimSpace(raw),
		Symbols:        []string{},
		Emotions:       []string{},
		Themes:         []string{},
		Confidence:     defaultConfidence,
		AnalysisType:   mode,
	}

	var interpretation string
	if err := json.Unmarshal(envelope.Interpretation, &interpretation); err == nil && interpretation != "" {
		result.Interpretation = interpretation
	}

	result.Symbols = coerceStringList(envelope.Symbols)
	result.Emotions = coerceStringList(envelope.Emotions)
	result.Themes = coerceStringList(envelope.Themes)

	var confidence float64
	if err := json.Unmarshal(envelope.Confidence, &confidence); err == nil {
		result.Confidence = clampConfidence(int(math.Round(confidence)))
	}
	return result
}

// coerceStringList は配列として解釈できる値から文字列要素のみを集める。
// 配列でない値（文字列・数値・オブジェクト）は空のリストに落とす。
func coerceStringList(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
