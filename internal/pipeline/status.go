package pipeline

import (
	"docflow-go/internal/model"
	"docflow-go/pkg/assistant"
)

// StatusView 是 UI 可见的复合状态，每次读取时从源字段重新推导，绝不缓存。
type StatusView struct {
	Status      model.DocumentStatus `json:"status"`
	IndexStatus string               `json:"indexStatus"`
	Approved    bool                 `json:"approved"`
	// ReadyForReview 表示处理完成但尚未审核。
	ReadyForReview bool `json:"readyForReview"`
	// Indexed 表示外部索引已确认可检索。
	Indexed bool   `json:"indexed"`
	Error   string `json:"error,omitempty"`
}

// ProjectStatus 从文档的源字段推导复合状态。纯函数，无副作用。
func ProjectStatus(doc *model.Document) StatusView {
	return StatusView{
		Status:         doc.Status,
		IndexStatus:    doc.IndexStatus,
		Approved:       doc.Approved,
		ReadyForReview: doc.Status == model.StatusCompleted && !doc.Approved,
		Indexed:        doc.IndexStatus == string(assistant.StatusAvailable),
		Error:          doc.ProcessingError,
	}
}
