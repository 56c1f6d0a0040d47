// Package extract 实现了处理管道的三个可插拔抽取阶段：
// 正文、缩略图与结构化元数据。各阶段以结果形式上报成败，
// 是否致命由 Orchestrator 决定。
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docflow-go/pkg/log"
	"docflow-go/pkg/tika"
)

// ErrEmptyText 表示解析成功但没有得到任何正文内容。
var ErrEmptyText = errors.New("提取的文本内容为空")

// TextResult 是正文抽取的输出。
type TextResult struct {
	// Text 是带 [Page N] 页码标记的全文，页码标记供后续引用定位使用。
	Text string
	// PageCount 是解析出的页数。
	PageCount int
}

// TextExtractor 通过 Tika 将 PDF 字节解析为带页码标记的纯文本。
type TextExtractor struct {
	tikaClient *tika.Client
}

// NewTextExtractor 创建一个新的 TextExtractor 实例。
func NewTextExtractor(tikaClient *tika.Client) *TextExtractor {
	return &TextExtractor{tikaClient: tikaClient}
}

// Extract 解析 PDF 并标注页码。正文为空视为失败。
func (e *TextExtractor) Extract(ctx context.Context, data []byte) (*TextResult, error) {
	pages, err := e.tikaClient.ExtractPages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}

	var sb strings.Builder
	nonEmpty := 0
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		nonEmpty++
		fmt.Fprintf(&sb, "[Page %d]\n%s\n\n", i+1, page)
	}
	if nonEmpty == 0 {
		return nil, ErrEmptyText
	}

	log.Infof("[TextExtractor] 文本提取成功, 总页数: %d, 非空页数: %d", len(pages), nonEmpty)
	return &TextResult{Text: strings.TrimRight(sb.String(), "\n"), PageCount: len(pages)}, nil
}
