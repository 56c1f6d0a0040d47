package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "", truncateError(nil))

	short := errors.New("文本提取失败")
	assert.Equal(t, "文本提取失败", truncateError(short))

	long := errors.New(strings.Repeat("错", 600))
	got := truncateError(long)
	assert.Equal(t, maxErrorLen, len([]rune(got)))
	assert.True(t, strings.HasPrefix(strings.Repeat("错", 600), got))
}

func TestDuplicateErrorMessage(t *testing.T) {
	err := &DuplicateError{DocumentID: 42, FileName: "report.pdf", Title: "年度报告"}
	assert.Contains(t, err.Error(), "42")
	assert.Contains(t, err.Error(), "report.pdf")
}

func TestIndexingRejectedErrorMessage(t *testing.T) {
	err := &IndexingRejectedError{FileID: "f-1", Reason: "unsupported encoding"}
	assert.Contains(t, err.Error(), "f-1")
	assert.Contains(t, err.Error(), "unsupported encoding")
}
