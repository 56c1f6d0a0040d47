package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksEmpty(t *testing.T) {
	assert.Nil(t, splitChunks("", 1000, 100))
}

func TestSplitChunksShortText(t *testing.T) {
	chunks := splitChunks("[Page 1]\n短文本", 1000, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, 1, chunks[0].Page)
}

func TestSplitChunksOverlap(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := splitChunks(text, 100, 20)
	// 步长 80：0-100, 80-180, 160-250
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, len(chunks[0].Text))
	assert.Equal(t, chunks[0].Text[80:], chunks[1].Text[:20])
	assert.Equal(t, 90, len(chunks[2].Text))
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
	}
}

func TestSplitChunksPageAttribution(t *testing.T) {
	var sb strings.Builder
	for page := 1; page <= 3; page++ {
		fmt.Fprintf(&sb, "[Page %d]\n%s\n\n", page, strings.Repeat("内", 150))
	}
	chunks := splitChunks(sb.String(), 200, 0)
	require.NotEmpty(t, chunks)
	// 首个分块必然起始于第1页
	assert.Equal(t, 1, chunks[0].Page)
	// 末尾分块起始位置落在第3页的内容中
	assert.Equal(t, 3, chunks[len(chunks)-1].Page)
	// 页码单调不减
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].Page, chunks[i-1].Page)
	}
}

func TestSplitChunksNoMarkerDefaultsToPageOne(t *testing.T) {
	chunks := splitChunks(strings.Repeat("b", 50), 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Page)
}
