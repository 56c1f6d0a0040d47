// Package tasks defines the structure for tasks that are sent to the work queue.
package tasks

// IngestTask represents one document ingestion attempt handed to the queue.
// 记录在入队前已创建完成，任务体只携带定位信息。
type IngestTask struct {
	DocumentID uint   `json:"document_id"`
	FileHash   string `json:"file_hash"`
	// Reprocess 标记本次任务来自人工重试，仅用于日志观测。
	Reprocess bool `json:"reprocess"`
}
