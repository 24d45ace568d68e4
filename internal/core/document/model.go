package document

import "fmt"

// Category は参照文献のカテゴリを表す
type Category string

const (
	CategoryNeuroscience    Category = "neuroscience"
	CategoryPsychology      Category = "psychology"
	CategoryContentAnalysis Category = "content_analysis"
	CategoryGeneral         Category = "general"
)

// ValidCategory はカテゴリが定義済みのものかを判定する
func ValidCategory(c Category) bool {
	switch c {
	case CategoryNeuroscience, CategoryPsychology, CategoryContentAnalysis, CategoryGeneral:
		return true
	}
	return false
}

// Validation は文献の検証レベルを表す
type Validation string

const (
	ValidationPeerReviewed Validation = "peer_reviewed"
	ValidationPreprint     Validation = "preprint"
	ValidationBook         Validation = "book"
	ValidationUnknown      Validation = "unknown"
)

// ValidValidation は検証レベルが定義済みのものかを判定する
func ValidValidation(v Validation) bool {
	switch v {
	case ValidationPeerReviewed, ValidationPreprint, ValidationBook, ValidationUnknown:
		return true
	}
	return false
}

// Metadata はチャンクに付与される文献メタデータ
type Metadata struct {
	Source     string     `json:"source"`
	Category   Category   `json:"category"`
	Validation Validation `json:"validation"`
	Page       int        `json:"page,omitempty"`
	Author     string     `json:"author,omitempty"`
	Year       int        `json:"year,omitempty"`
	DOI        string     `json:"doi,omitempty"`
}

// Validate はメタデータの必須項目と列挙値を検証する
func (m Metadata) Validate() error {
	if m.Source == "" {
		return fmt.Errorf("source is required")
	}
	if !ValidCategory(m.Category) {
		return fmt.Errorf("invalid category: %q", m.Category)
	}
	if !ValidValidation(m.Validation) {
		return fmt.Errorf("invalid validation: %q", m.Validation)
	}
	return nil
}

// Chunk は埋め込み対象となる文書の断片を表す。
// チャンカーが生成した後は不変で、インデックス挿入まで取り込みパイプラインが所有する。
type Chunk struct {
	Content  string
	Metadata Metadata
}
