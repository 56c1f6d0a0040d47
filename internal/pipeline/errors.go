// Package pipeline 实现了文档处理的核心状态机。
package pipeline

import (
	"errors"
	"fmt"
)

// maxErrorLen 是持久化到 Document/ProcessingJob 的错误信息长度上限。
// 错误原文保留给运维排障，只做截断不做翻译。
const maxErrorLen = 512

// DuplicateError 表示内容摘要与已有文档重复，在创建记录之前中止。
// 携带已有文档的信息，供调用方给出具体提示。
type DuplicateError struct {
	DocumentID uint
	FileName   string
	Title      string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("文件内容与已有文档重复 (id=%d, fileName=%s)", e.DocumentID, e.FileName)
}

// ErrIndexingTimeout 表示等待外部索引完成超过硬上限。
// 即使字节已上传到远端，也按失败处理，避免展示尚不可检索的文档。
var ErrIndexingTimeout = errors.New("等待外部索引完成超时")

// IndexingRejectedError 表示外部索引服务报告处理失败。
type IndexingRejectedError struct {
	FileID string
	Reason string
}

func (e *IndexingRejectedError) Error() string {
	return fmt.Sprintf("外部索引服务处理失败 (fileID=%s): %s", e.FileID, e.Reason)
}

// truncateError 截断错误文本到持久化上限。
func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	runes := []rune(msg)
	if len(runes) <= maxErrorLen {
		return msg
	}
	return string(runes[:maxErrorLen])
}
