package interpret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_ValidJSON(t *testing.T) {
	raw := `{
		"interpretation": "Falling dreams often reflect a loss of control.",
		"symbols": ["falling", "height"],
		"emotions": ["fear"],
		"themes": ["control"],
		"confidence": 82
	}`

	result, err := ParseResponse(raw, AnalysisConcise)
	require.NoError(t, err)
	assert.Equal(t, "Falling dreams often reflect a loss of control.", result.Interpretation)
	assert.Equal(t, []string{"falling", "height"}, result.Symbols)
	assert.Equal(t, []string{"fear"}, result.Emotions)
	assert.Equal(t, []string{"control"}, result.Themes)
	assert.Equal(t, 82, result.Confidence)
	assert.Equal(t, AnalysisConcise, result.AnalysisType)
}

func TestParseResponse_SurroundingProseAndRawNewlines(t *testing.T) {
	// JSONの前後に説明文が付き、文字列リテラル内に生の改行と
	// エスケープ済み引用符が混在するケース
	raw := "Here is my answer: { \"interpretation\": \"Line1\nLine2 \\\"quoted\\\"\", \"confidence\": 90 } Hope this helps!"

	result, err := ParseResponse(raw, AnalysisComprehensive)
	require.NoError(t, err)
	assert.Equal(t, "Line1\nLine2 \"quoted\"", result.Interpretation)
	assert.Equal(t, 90, result.Confidence)
	assert.Empty(t, result.Symbols)
	assert.Equal(t, AnalysisComprehensive, result.AnalysisType)
}

func TestParseResponse_MissingFieldsFallBackToDefaults(t *testing.T) {
	raw := `{"symbols": "not an array", "confidence": "high"}`

	result, err := ParseResponse(raw, AnalysisConcise)
	require.NoError(t, err)
	// interpretation 欠落時は応答全文をそのまま使う
	assert.Equal(t, raw, result.Interpretation)
	assert.Equal(t, []string{}, result.Symbols)
	assert.Equal(t, []string{}, result.Emotions)
	assert.Equal(t, []string{}, result.Themes)
	assert.Equal(t, defaultConfidence, result.Confidence)
}

func TestParseResponse_ConfidenceClamped(t *testing.T) {
	result, err := ParseResponse(`{"interpretation": "x", "confidence": 150}`, AnalysisConcise)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Confidence)

	result, err = ParseResponse(`{"interpretation": "x", "confidence": -5}`, AnalysisConcise)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Confidence)
}

func TestParseResponse_ListsKeepOnlyStrings(t *testing.T) {
	result, err := ParseResponse(`{"interpretation": "x", "themes": ["water", 42, {"a": 1}, "loss"]}`, AnalysisConcise)
	require.NoError(t, err)
	assert.Equal(t, []string{"water", "loss"}, result.Themes)
}

func TestParseResponse_NoObjectFound(t *testing.T) {
	_, err := ParseResponse("I cannot interpret this dream.", AnalysisConcise)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.RawPreview, "I cannot interpret")
}

func TestParseResponse_StructuralErrorNotSanitized(t *testing.T) {
	// 構造の破損は制御文字修復の対象外
	_, err := ParseResponse(`{"interpretation": }`, AnalysisConcise)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Nil(t, parseErr.SanitizedErr)

	// 修復を試みていないのでメッセージに修復後の情報は現れない
	assert.NotContains(t, parseErr.Error(), "after sanitization")
	assert.NotContains(t, parseErr.Error(), "sanitized=")
}

func TestParseResponse_UnrepairableAfterSanitization(t *testing.T) {
	// 制御文字修復では直らない破損: 文字列リテラル内の不正文字と
	// 閉じられない文字列の組み合わせ
	raw := "{\"interpretation\": \"line\nbroken, \"symbols\": }"
	_, err := ParseResponse(raw, AnalysisConcise)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Error(t, parseErr.SanitizedErr)
	assert.NotEmpty(t, parseErr.SanitizedPreview)
	assert.Contains(t, parseErr.Error(), "after sanitization")
}

func TestSanitizeControlChars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "newline inside string",
			in:   "{\"a\": \"x\ny\"}",
			want: `{"a": "x\ny"}`,
		},
		{
			name: "tab and carriage return inside string",
			in:   "{\"a\": \"x\t\ry\"}",
			want: `{"a": "x\t\ry"}`,
		},
		{
			name: "newline outside string untouched",
			in:   "{\n\"a\": \"x\"\n}",
			want: "{\n\"a\": \"x\"\n}",
		},
		{
			name: "escaped quote does not close string",
			in:   "{\"a\": \"he said \\\"run\\\"\nnow\"}",
			want: `{"a": "he said \"run\"\nnow"}`,
		},
		{
			name: "even backslash run before quote closes string",
			in:   "{\"a\": \"x\\\\\", \"b\": \"y\nz\"}",
			want: "{\"a\": \"x\\\\\", \"b\": \"y\\nz\"}",
		},
		{
			name: "other control chars dropped inside string",
			in:   "{\"a\": \"x\x01y\"}",
			want: `{"a": "xy"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeControlChars(tt.in))
		})
	}
}

func TestPreview_Truncates(t *testing.T) {
	long := strings.Repeat("a", previewLimit*2)
	got := preview(long)
	assert.Len(t, []rune(got), previewLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
