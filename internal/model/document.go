// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DocumentStatus 是文档处理管道的生命周期状态。
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// DocumentSource 标识文档的来源渠道。
type DocumentSource string

const (
	SourceUpload    DocumentSource = "upload"
	SourceURL       DocumentSource = "url"
	SourceDriveSync DocumentSource = "drive-sync"
)

// Document 定义了 documents 表的 ORM 模型，是整个系统的核心实体。
// file_hash 上的唯一索引在存储层兜底重复检测（查询级检查存在并发窗口）。
type Document struct {
	ID       uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	FileHash string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"fileHash"`
	FileName string         `gorm:"type:varchar(255);not null" json:"fileName"`
	Source   DocumentSource `gorm:"type:varchar(20);not null" json:"source"`

	// 来源引用：upload 对应对象存储，url 对应原始链接，drive-sync 对应 Drive 文件 ID。
	StorageRef  string `gorm:"type:varchar(255)" json:"storageRef"`
	SourceURL   string `gorm:"type:varchar(1024)" json:"sourceUrl"`
	DriveFileID string `gorm:"type:varchar(128)" json:"driveFileId"`

	// 管道生命周期状态，由 Orchestrator 独占写入。
	Status          DocumentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ProcessingError string         `gorm:"type:varchar(512)" json:"processingError"`

	// 审核状态，与处理状态相互独立，控制搜索可见性。
	Approved   bool   `gorm:"not null;default:false" json:"approved"`
	ApprovedBy string `gorm:"type:varchar(100)" json:"approvedBy"`

	// 外部索引服务的异步状态，与管道同步阶段解耦。
	IndexFileID string `gorm:"type:varchar(128)" json:"indexFileId"`
	IndexStatus string `gorm:"type:varchar(20)" json:"indexStatus"`

	// LLM 抽取的结构化元数据。
	Title     string `gorm:"type:varchar(512)" json:"title"`
	Company   string `gorm:"type:varchar(255)" json:"company"`
	Year      int    `gorm:"default:0" json:"year"`
	Topic     string `gorm:"type:varchar(255)" json:"topic"`
	Summary   string `gorm:"type:text" json:"summary"`
	Region    string `gorm:"type:varchar(50)" json:"region"`
	Industry  string `gorm:"type:varchar(50)" json:"industry"`
	DocType   string `gorm:"type:varchar(50)" json:"docType"`
	Authors   string `gorm:"type:varchar(512)" json:"authors"`  // 逗号分隔
	Keywords  string `gorm:"type:varchar(512)" json:"keywords"` // 逗号分隔
	TechAreas string `gorm:"type:varchar(512)" json:"techAreas"`
	PageCount int    `gorm:"default:0" json:"pageCount"`

	// 派生产物的存储引用。
	ThumbnailRef     string `gorm:"type:varchar(255)" json:"thumbnailRef"`
	ExtractedTextRef string `gorm:"type:varchar(255)" json:"extractedTextRef"`

	UploadedBy uint      `gorm:"not null" json:"uploadedBy"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DocumentSummary 是重复检测返回给调用方的最小文档信息。
type DocumentSummary struct {
	ID       uint   `json:"id"`
	FileName string `json:"fileName"`
	Title    string `json:"title"`
}
