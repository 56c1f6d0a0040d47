// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflow-go/internal/model"
	"docflow-go/internal/pipeline"
	"docflow-go/internal/repository"
	"docflow-go/pkg/digest"
	"docflow-go/pkg/log"
	"docflow-go/pkg/tasks"
)

// maxDownloadSize 限制 URL 摄取允许下载的最大字节数 (100MB)。
const maxDownloadSize = 100 * 1024 * 1024

// IngestService 接口定义了文档摄取入口的业务操作。
// 所有入口共享同一条核心路径：哈希、重复检查、归档、建档、入队。
type IngestService interface {
	IngestUpload(ctx context.Context, fileName string, data []byte, userID uint) (*model.Document, error)
	IngestURL(ctx context.Context, rawURL string, userID uint) (*model.Document, error)
	IngestDrive(ctx context.Context, driveFileID string, userID uint) (*model.Document, error)
	ImportSeedDir(ctx context.Context, dir string) error
}

type ingestService struct {
	docRepo     repository.DocumentRepository
	blobStore   pipeline.BlobStore
	queue       pipeline.TaskQueue
	driveClient pipeline.DriveFetcher
	httpClient  *http.Client
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(docRepo repository.DocumentRepository, blobStore pipeline.BlobStore, queue pipeline.TaskQueue, driveClient pipeline.DriveFetcher) IngestService {
	return &ingestService{
		docRepo:     docRepo,
		blobStore:   blobStore,
		queue:       queue,
		driveClient: driveClient,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// IngestUpload 处理浏览器直传的 PDF 文件。
func (s *ingestService) IngestUpload(ctx context.Context, fileName string, data []byte, userID uint) (*model.Document, error) {
	log.Infof("[Ingest] 收到上传文件, FileName: %s, 大小: %d字节, 用户ID: %d", fileName, len(data), userID)
	return s.ingest(ctx, fileName, data, &model.Document{Source: model.SourceUpload}, userID)
}

// IngestURL 从给定 URL 下载 PDF 并进入摄取流程。
func (s *ingestService) IngestURL(ctx context.Context, rawURL string, userID uint) (*model.Document, error) {
	log.Infof("[Ingest] 开始从URL下载文件: %s, 用户ID: %d", rawURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构造下载请求失败: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载源文件失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载源文件返回异常状态: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("读取下载内容失败: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("文件超过大小上限 (%d字节)", maxDownloadSize)
	}

	fileName := filepath.Base(rawURL)
	if idx := strings.IndexAny(fileName, "?#"); idx >= 0 {
		fileName = fileName[:idx]
	}
	if fileName == "" || fileName == "." || fileName == "/" {
		fileName = "document.pdf"
	}
	return s.ingest(ctx, fileName, data, &model.Document{Source: model.SourceURL, SourceURL: rawURL}, userID)
}

// IngestDrive 从云盘拉取指定文件并进入摄取流程。
func (s *ingestService) IngestDrive(ctx context.Context, driveFileID string, userID uint) (*model.Document, error) {
	log.Infof("[Ingest] 开始从云盘拉取文件, FileID: %s, 用户ID: %d", driveFileID, userID)
	data, fileName, err := s.driveClient.Download(ctx, driveFileID)
	if err != nil {
		return nil, fmt.Errorf("从云盘下载文件失败: %w", err)
	}
	return s.ingest(ctx, fileName, data, &model.Document{Source: model.SourceDriveSync, DriveFileID: driveFileID}, userID)
}

// ImportSeedDir 扫描本地目录并摄取其中的 PDF 文件，用于启动时的批量导入。
// 已存在的文件静默跳过，单个文件失败不中断整体导入。
func (s *ingestService) ImportSeedDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("读取种子目录失败: %w", err)
	}
	imported, skipped := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warnf("[Ingest] 读取种子文件失败, 跳过: %s: %v", entry.Name(), err)
			continue
		}
		if _, err := s.IngestUpload(ctx, entry.Name(), data, 0); err != nil {
			if _, ok := err.(*pipeline.DuplicateError); ok {
				skipped++
				continue
			}
			log.Warnf("[Ingest] 导入种子文件失败, 跳过: %s: %v", entry.Name(), err)
			continue
		}
		imported++
	}
	log.Infof("[Ingest] 种子目录导入完成, 目录: %s, 新导入: %d, 重复跳过: %d", dir, imported, skipped)
	return nil
}

// ingest 是所有入口共享的核心路径。
// 重复检查发生在建档之前：命中重复时不产生任何新记录，直接返回已有文档信息。
func (s *ingestService) ingest(ctx context.Context, fileName string, data []byte, doc *model.Document, userID uint) (*model.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("文件内容为空: %s", fileName)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("不是有效的PDF文件: %s", fileName)
	}

	// 1. 对完整字节计算内容哈希
	fileHash := digest.Sum(data)
	log.Infof("[Ingest] 步骤1: 内容哈希计算完成, FileHash: %s", fileHash)

	// 2. 重复检查（建档前置），命中时以错误形式携带已有文档信息返回
	existing, err := s.docRepo.FindByFileHash(fileHash)
	if err != nil {
		return nil, fmt.Errorf("重复检查失败: %w", err)
	}
	if existing != nil {
		log.Infof("[Ingest] 步骤2: 命中重复文档, FileHash: %s, 已有DocumentID: %d", fileHash, existing.ID)
		return nil, &pipeline.DuplicateError{
			DocumentID: existing.ID,
			FileName:   existing.FileName,
			Title:      existing.Title,
		}
	}

	// 3. 原始文件归档到对象存储
	storageRef := fmt.Sprintf("originals/%s.pdf", fileHash)
	if _, err := s.blobStore.Put(ctx, storageRef, data, "application/pdf"); err != nil {
		return nil, fmt.Errorf("归档原始文件失败: %w", err)
	}
	log.Infof("[Ingest] 步骤3: 原始文件归档完成, Object: %s", storageRef)

	// 4. 创建文档记录
	doc.FileHash = fileHash
	doc.FileName = fileName
	doc.StorageRef = storageRef
	doc.Status = model.StatusPending
	doc.UploadedBy = userID
	if err := s.docRepo.Create(doc); err != nil {
		// 并发摄取同一文件时唯一索引兜底，回查后按重复处理
		if again, findErr := s.docRepo.FindByFileHash(fileHash); findErr == nil && again != nil {
			return nil, &pipeline.DuplicateError{
				DocumentID: again.ID,
				FileName:   again.FileName,
				Title:      again.Title,
			}
		}
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}
	log.Infof("[Ingest] 步骤4: 文档记录创建完成, DocumentID: %d", doc.ID)

	// 5. 投递摄取任务
	if err := s.queue.Enqueue(ctx, tasks.IngestTask{DocumentID: doc.ID, FileHash: fileHash}); err != nil {
		log.Errorf("[Ingest] 投递摄取任务失败, DocumentID: %d, Error: %v", doc.ID, err)
		return nil, fmt.Errorf("投递摄取任务失败: %w", err)
	}
	log.Infof("[Ingest] 步骤5: 摄取任务已入队, DocumentID: %d", doc.ID)
	return doc, nil
}
