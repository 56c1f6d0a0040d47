package model

import "time"

// JobStage 是处理任务的阶段枚举。
type JobStage string

const (
	StageExtracting JobStage = "extracting"
	StageEmbedding  JobStage = "embedding"
	StageStoring    JobStage = "storing"
	StageCompleted  JobStage = "completed"
	StageFailed     JobStage = "failed"
)

// ProcessingJob 对应 processing_jobs 表，是单次处理尝试的审计记录。
// 每次（重新）处理都创建一条新记录，历史永不删除，仅供观测与 UI 轮询。
type ProcessingJob struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uint     `gorm:"not null;index" json:"documentId"`
	Stage      JobStage `gorm:"type:varchar(20);not null" json:"stage"`
	// Metadata 以 JSON 字符串保存各阶段的自由格式计数（页数、分块数等）。
	Metadata  string    `gorm:"type:text" json:"metadata"`
	Error     string    `gorm:"type:varchar(512)" json:"error"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}
