// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docflow-go/internal/model"
	"docflow-go/internal/pipeline"
	"docflow-go/internal/repository"
	"docflow-go/pkg/assistant"
	"docflow-go/pkg/log"
)

// ErrDocumentNotFound 表示请求的文档不存在。
var ErrDocumentNotFound = errors.New("文档不存在")

// ErrNotReprocessable 表示文档当前状态不允许重新处理。
var ErrNotReprocessable = errors.New("只有失败状态的文档可以重新处理")

// DocumentListDTO 是分页列表的返回结构。
type DocumentListDTO struct {
	Documents []model.Document `json:"documents"`
	Total     int64            `json:"total"`
}

// DocumentStatusDTO 聚合了文档的派生状态视图与处理历史。
type DocumentStatusDTO struct {
	pipeline.StatusView
	Jobs []model.ProcessingJob `json:"jobs"`
}

// DownloadInfoDTO 封装了文件下载链接所需的信息。
type DownloadInfoDTO struct {
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
}

// Reprocessor 发起一次失败文档的重新处理。
type Reprocessor interface {
	Reprocess(ctx context.Context, documentID uint) error
}

// objectStore 是文档服务需要的对象存储能力子集。
type objectStore interface {
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, objectName string) error
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	List(offset, limit int) (*DocumentListDTO, error)
	Get(documentID uint) (*model.Document, error)
	ListFailed() ([]model.Document, error)
	GetStatus(documentID uint) (*DocumentStatusDTO, error)
	Approve(ctx context.Context, documentID uint, approved bool, approver string) error
	Reprocess(ctx context.Context, documentID uint) error
	GenerateDownloadURL(ctx context.Context, documentID uint) (*DownloadInfoDTO, error)
	GenerateThumbnailURL(ctx context.Context, documentID uint) (*DownloadInfoDTO, error)
	Delete(ctx context.Context, documentID uint) error
}

type documentService struct {
	docRepo      repository.DocumentRepository
	jobRepo      repository.JobRepository
	store        objectStore
	chunkIndexer pipeline.ChunkIndexer
	indexClient  assistant.Client
	reprocessor  Reprocessor
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	jobRepo repository.JobRepository,
	store objectStore,
	chunkIndexer pipeline.ChunkIndexer,
	indexClient assistant.Client,
	reprocessor Reprocessor,
) DocumentService {
	return &documentService{
		docRepo:      docRepo,
		jobRepo:      jobRepo,
		store:        store,
		chunkIndexer: chunkIndexer,
		indexClient:  indexClient,
		reprocessor:  reprocessor,
	}
}

// List 分页返回全部文档。
func (s *documentService) List(offset, limit int) (*DocumentListDTO, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	docs, total, err := s.docRepo.FindAll(offset, limit)
	if err != nil {
		return nil, err
	}
	return &DocumentListDTO{Documents: docs, Total: total}, nil
}

// Get 按 ID 返回单个文档。
func (s *documentService) Get(documentID uint) (*model.Document, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// ListFailed 返回所有处理失败的文档，供失败视图展示与重试。
func (s *documentService) ListFailed() ([]model.Document, error) {
	return s.docRepo.FindByStatus(model.StatusFailed)
}

// GetStatus 返回文档的派生状态视图与完整的处理历史。
func (s *documentService) GetStatus(documentID uint) (*DocumentStatusDTO, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	jobs, err := s.jobRepo.FindByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentStatusDTO{
		StatusView: pipeline.ProjectStatus(doc),
		Jobs:       jobs,
	}, nil
}

// Approve 切换文档的审核状态。审核状态与处理状态相互独立。
func (s *documentService) Approve(ctx context.Context, documentID uint, approved bool, approver string) error {
	if _, err := s.docRepo.FindByID(documentID); err != nil {
		return ErrDocumentNotFound
	}
	approvedBy := ""
	if approved {
		approvedBy = approver
	}
	return s.docRepo.Updates(documentID, map[string]interface{}{
		"approved":    approved,
		"approved_by": approvedBy,
	})
}

// Reprocess 对失败的文档发起一次新的处理尝试。
func (s *documentService) Reprocess(ctx context.Context, documentID uint) error {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return ErrDocumentNotFound
	}
	if doc.Status != model.StatusFailed {
		return ErrNotReprocessable
	}
	return s.reprocessor.Reprocess(ctx, documentID)
}

// GenerateDownloadURL 生成原始文件的临时下载链接，有效期为1小时。
func (s *documentService) GenerateDownloadURL(ctx context.Context, documentID uint) (*DownloadInfoDTO, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	if doc.StorageRef == "" {
		return nil, errors.New("文档没有归档的原始文件")
	}
	presignedURL, err := s.store.PresignedURL(ctx, doc.StorageRef, time.Hour)
	if err != nil {
		return nil, err
	}
	return &DownloadInfoDTO{FileName: doc.FileName, DownloadURL: presignedURL}, nil
}

// GenerateThumbnailURL 生成首页缩略图的临时下载链接。
func (s *documentService) GenerateThumbnailURL(ctx context.Context, documentID uint) (*DownloadInfoDTO, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	if doc.ThumbnailRef == "" {
		return nil, errors.New("文档没有生成缩略图")
	}
	presignedURL, err := s.store.PresignedURL(ctx, doc.ThumbnailRef, time.Hour)
	if err != nil {
		return nil, err
	}
	return &DownloadInfoDTO{FileName: fmt.Sprintf("%s-thumbnail.pdf", doc.FileHash), DownloadURL: presignedURL}, nil
}

// Delete 删除文档及其派生产物。外部系统的清理是尽力而为的，
// 清理失败只告警，数据库记录仍然删除。
func (s *documentService) Delete(ctx context.Context, documentID uint) error {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return ErrDocumentNotFound
	}

	if doc.IndexFileID != "" {
		if err := s.indexClient.Delete(ctx, doc.IndexFileID); err != nil {
			log.Warnf("[Document] 清理外部索引文件失败 (file_id=%s): %v", doc.IndexFileID, err)
		}
	}
	if err := s.chunkIndexer.DeleteByFileHash(ctx, doc.FileHash); err != nil {
		log.Warnf("[Document] 清理分块索引失败 (file_hash=%s): %v", doc.FileHash, err)
	}
	for _, ref := range []string{doc.StorageRef, doc.ThumbnailRef, doc.ExtractedTextRef} {
		if ref == "" {
			continue
		}
		if err := s.store.Remove(ctx, ref); err != nil {
			log.Warnf("[Document] 删除对象失败 (object=%s): %v", ref, err)
		}
	}

	return s.docRepo.Delete(documentID)
}
