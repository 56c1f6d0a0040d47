package repository

import (
	"gorm.io/gorm"

	"docflow-go/internal/model"
)

// JobRepository 接口定义了处理任务审计记录的持久化操作。
// 记录只增不删：每次处理尝试创建一条新记录。
type JobRepository interface {
	Create(job *model.ProcessingJob) error
	// UpdateStage 更新任务的阶段；metadata 与 errMsg 为空串时不覆盖已有值。
	UpdateStage(jobID uint, stage model.JobStage, metadata, errMsg string) error
	FindByDocumentID(documentID uint) ([]model.ProcessingJob, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建一个新的 JobRepository 实例。
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Create 为一次处理尝试创建审计记录。
func (r *jobRepository) Create(job *model.ProcessingJob) error {
	return r.db.Create(job).Error
}

// UpdateStage 记录一次阶段转移。
func (r *jobRepository) UpdateStage(jobID uint, stage model.JobStage, metadata, errMsg string) error {
	fields := map[string]interface{}{"stage": stage}
	if metadata != "" {
		fields["metadata"] = metadata
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	return r.db.Model(&model.ProcessingJob{}).Where("id = ?", jobID).Updates(fields).Error
}

// FindByDocumentID 返回一个文档的全部处理尝试历史，按时间倒序。
func (r *jobRepository) FindByDocumentID(documentID uint) ([]model.ProcessingJob, error) {
	var jobs []model.ProcessingJob
	err := r.db.Where("document_id = ?", documentID).Order("created_at desc").Find(&jobs).Error
	return jobs, err
}
