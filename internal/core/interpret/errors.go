package interpret

import "fmt"

// previewLimit はエラーメッセージに含める応答プレビューの最大文字数
const previewLimit = 160

// ParseError は生成応答のJSON解析が修復後も失敗したことを表す。
// 1回目（修復前）と2回目（修復後）の両方のエラーと、
// 診断用に切り詰めた応答プレビューを保持する。
type ParseError struct {
	OriginalErr      error
	SanitizedErr     error
	RawPreview       string
	SanitizedPreview string
}

func (e *ParseError) Error() string {
	// 修復を試みていないパスでは修復後の情報を含めない
	if e.SanitizedErr == nil {
		return fmt.Sprintf(
			"failed to parse model response as JSON: %v raw=%q",
			e.OriginalErr, e.RawPreview,
		)
	}
	return fmt.Sprintf(
		"failed to parse model response as JSON: %v (after sanitization: %v) raw=%q sanitized=%q",
		e.OriginalErr, e.SanitizedErr, e.RawPreview, e.SanitizedPreview,
	)
}

func (e *ParseError) Unwrap() error {
	return e.OriginalErr
}

// preview は診断ログ用に文字列を切り詰める
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "..."
}
