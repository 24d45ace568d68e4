package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize はデフォルトのチャンクサイズ（文字数）
	DefaultChunkSize = 1000
	// DefaultOverlap はデフォルトのオーバーラップ（文字数）
	DefaultOverlap = 200
	// boundaryLookback は段落境界を探す際の遡り幅（文字数）
	boundaryLookback = 100
)

// Chunker は正規化済みテキストを固定長のオーバーラップ付きチャンクに分割する
type Chunker struct {
	size    int
	overlap int
}

// NewChunker は新しい Chunker を作成する。
// overlap >= size は前進しないウィンドウになるため設定エラーとして拒否する。
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split はテキストをチャンクに分割する。
// 各チャンクは size 文字以下で、隣接チャンクはおおよそ overlap 文字重なる。
// チャンク末尾は可能なら段落境界（空行）に合わせる。
// 空白のみのチャンクは破棄する。
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	length := len(runes)
	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < length; start += step {
		end := start + c.size
		reachedEnd := end >= length
		if reachedEnd {
			end = length
		} else {
			end = c.adjustToBoundary(runes, start, end)
		}

		segment := string(runes[start:end])
		if strings.TrimSpace(segment) != "" {
			chunks = append(chunks, segment)
		}
		// ウィンドウが末尾に到達したら残りは既に含まれている
		if reachedEnd {
			break
		}
	}
	return chunks
}

// adjustToBoundary は提案された終端位置から boundaryLookback 文字以内に
// 空行があればそこで切る。境界がオーバーラップ領域より手前にある場合は
// テキストの欠落を招くため採用しない。
func (c *Chunker) adjustToBoundary(runes []rune, start, end int) int {
	lookFrom := end - boundaryLookback
	if lookFrom < start {
		lookFrom = start
	}
	// 次のウィンドウの開始位置より手前で切ると隙間ができる
	minCut := start + (c.size - c.overlap)
	if lookFrom < minCut {
		lookFrom = minCut
	}

	for i := end - 1; i > lookFrom; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i
		}
	}
	return end
}

var (
	crlfPattern       = regexp.MustCompile(`\r\n?`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
	trailingWSPattern = regexp.MustCompile(`[ \t]+\n`)
)

// Normalize は取り込み前のテキスト正規化を行う。
// 改行コードを LF に統一し、行末の空白を除去し、3行以上の連続空行を圧縮する。
func Normalize(text string) string {
	text = crlfPattern.ReplaceAllString(text, "\n")
	text = trailingWSPattern.ReplaceAllString(text, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
