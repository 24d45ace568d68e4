package retrieval

import (
	"fmt"

	"github.com/jinford/dream-rag/internal/core/document"
)

// FormatCitation はメタデータから人間可読の出典文字列を整形する。
// 形式は "{author} ({year}). {source}"。著者や年が無い場合は
// "({year}). {source}" または素の source にフォールバックし、
// DOI があれば " https://doi.org/{doi}" を付加する。
func FormatCitation(m document.Metadata) string {
	var citation string
	switch {
	case m.Author != "" && m.Year != 0:
		citation = fmt.Sprintf("%s (%d). %s", m.Author, m.Year, m.Source)
	case m.Year != 0:
		citation = fmt.Sprintf("(%d). %s", m.Year, m.Source)
	default:
		citation = m.Source
	}

	if m.DOI != "" {
		citation += " https://doi.org/" + m.DOI
	}
	return citation
}
