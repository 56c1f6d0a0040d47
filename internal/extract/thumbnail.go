package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"docflow-go/pkg/log"
)

// ThumbnailResult 是缩略图抽取的输出。
type ThumbnailResult struct {
	// Thumbnail 是只含首页的单页 PDF 字节，作为列表页的预览图源。
	Thumbnail []byte
	// PageCount 是原始文档的页数。
	PageCount int
}

// ThumbnailExtractor 使用 pdfcpu 裁出文档首页作为预览。
// 此阶段失败不影响管道继续，只是没有缩略图。
type ThumbnailExtractor struct{}

// NewThumbnailExtractor 创建一个新的 ThumbnailExtractor 实例。
func NewThumbnailExtractor() *ThumbnailExtractor {
	return &ThumbnailExtractor{}
}

// Extract 将首页裁剪为单页 PDF 并统计页数。
// pdfcpu 以文件为工作单位，这里使用临时文件中转，所有退出路径都会清理。
func (e *ThumbnailExtractor) Extract(ctx context.Context, data []byte) (*ThumbnailResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := os.CreateTemp("", "docflow-src-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer func() {
		_ = in.Close()
		_ = os.Remove(in.Name())
	}()

	if _, err := in.Write(data); err != nil {
		return nil, fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("关闭临时文件失败: %w", err)
	}

	pageCount, err := api.PageCountFile(in.Name())
	if err != nil {
		return nil, fmt.Errorf("读取 PDF 页数失败: %w", err)
	}

	out, err := os.CreateTemp("", "docflow-thumb-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("创建缩略图临时文件失败: %w", err)
	}
	outName := out.Name()
	_ = out.Close()
	defer func() {
		_ = os.Remove(outName)
	}()

	if err := api.TrimFile(in.Name(), outName, []string{"1"}, nil); err != nil {
		return nil, fmt.Errorf("裁剪首页失败: %w", err)
	}

	thumb, err := os.ReadFile(outName)
	if err != nil {
		return nil, fmt.Errorf("读取缩略图失败: %w", err)
	}

	log.Infof("[ThumbnailExtractor] 首页裁剪成功, 页数: %d, 缩略图大小: %d 字节", pageCount, len(thumb))
	return &ThumbnailResult{Thumbnail: thumb, PageCount: pageCount}, nil
}
