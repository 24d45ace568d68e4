package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_RejectsInvalidConfig(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.Error(t, err)

	_, err = NewChunker(100, 100)
	assert.Error(t, err, "overlap equal to size must be rejected")

	_, err = NewChunker(100, 200)
	assert.Error(t, err, "overlap larger than size must be rejected")

	_, err = NewChunker(100, -1)
	assert.Error(t, err)

	_, err = NewChunker(100, 20)
	assert.NoError(t, err)
}

func TestSplit_ShortInputYieldsSingleChunk(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := c.Split("short dream research note")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short dream research note", chunks[0])
}

func TestSplit_EmptyAndWhitespaceInput(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t\n  "))
}

func TestSplit_2500CharsProducesThreeChunks(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("a", 2500)
	chunks := c.Split(text)
	require.Len(t, chunks, 3)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 1000)
	}

	// 隣接チャンクはおおよそ200文字重なる
	assert.Equal(t, 1000, len(chunks[0]))
	assert.Equal(t, 1000, len(chunks[1]))
	assert.Equal(t, 900, len(chunks[2]))
	assert.Equal(t, chunks[0][800:], chunks[1][:200])
	assert.Equal(t, chunks[1][800:], chunks[2][:200])
}

func TestSplit_IsDeterministic(t *testing.T) {
	c, err := NewChunker(300, 60)
	require.NoError(t, err)

	text := strings.Repeat("dreams about water and flight. ", 80)
	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}

func TestSplit_DeoverlappedConcatenationReconstructsText(t *testing.T) {
	c, err := NewChunker(400, 100)
	require.NoError(t, err)

	text := strings.Repeat("the neuroscience of rapid eye movement sleep ", 50)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	// 各チャンクの先頭は直前チャンク内に現れる位置から続くため、
	// オーバーラップを除去して連結すると元テキストに戻る
	step := 400 - 100
	var sb strings.Builder
	sb.WriteString(chunks[0])
	offset := len(chunks[0])
	for i := 1; i < len(chunks); i++ {
		start := i * step
		if start < offset {
			sb.WriteString(chunks[i][offset-start:])
			offset = start + len(chunks[i])
		}
	}
	assert.Equal(t, text, sb.String())
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	c, err := NewChunker(200, 50)
	require.NoError(t, err)

	// 170文字目付近に段落境界を置く
	para1 := strings.Repeat("x", 170)
	para2 := strings.Repeat("y", 300)
	text := para1 + "\n\n" + para2

	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	// 最初のチャンクは200文字ちょうどではなく空行で切られる
	assert.Less(t, len(chunks[0]), 200)
	assert.True(t, strings.HasSuffix(chunks[0], "\n"))
}

func TestSplit_BoundaryTooFarBackIsIgnored(t *testing.T) {
	// オーバーラップ領域より手前の空行で切るとテキストが欠落するため無視される
	c, err := NewChunker(200, 20)
	require.NoError(t, err)

	para1 := strings.Repeat("x", 110)
	para2 := strings.Repeat("y", 400)
	text := para1 + "\n\n" + para2

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 200, len(chunks[0]))
}

func TestNormalize(t *testing.T) {
	in := "line one  \r\nline two\r\n\r\n\r\n\r\nline three\t\n"
	out := Normalize(in)
	assert.Equal(t, "line one\nline two\n\nline three", out)
}
