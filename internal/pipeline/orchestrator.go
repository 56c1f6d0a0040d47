// Package pipeline 定义了文档摄取的核心处理流程。
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docflow-go/internal/config"
	"docflow-go/internal/extract"
	"docflow-go/internal/model"
	"docflow-go/internal/repository"
	"docflow-go/pkg/assistant"
	"docflow-go/pkg/embedding"
	"docflow-go/pkg/log"
	"docflow-go/pkg/tasks"
)

// TextExtractor 抽取带页码标记的正文。失败视为致命错误。
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*extract.TextResult, error)
}

// ThumbnailExtractor 生成首页缩略图。失败不影响文档最终状态。
type ThumbnailExtractor interface {
	Extract(ctx context.Context, data []byte) (*extract.ThumbnailResult, error)
}

// MetadataExtractor 通过 LLM 抽取结构化元数据。失败不影响文档最终状态。
type MetadataExtractor interface {
	Extract(ctx context.Context, text string) (*extract.Metadata, error)
}

// ChunkIndexer 管理分块搜索索引的写入与清理。
type ChunkIndexer interface {
	IndexChunk(ctx context.Context, doc model.EsChunk) error
	DeleteByFileHash(ctx context.Context, fileHash string) error
}

// BlobStore 是对象存储的读写接口。
type BlobStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, objectName string) ([]byte, error)
}

// DriveFetcher 按文件 ID 从云盘下载文件内容。
type DriveFetcher interface {
	Download(ctx context.Context, fileID string) ([]byte, string, error)
}

// TaskQueue 是摄取任务的入队接口。
type TaskQueue interface {
	Enqueue(ctx context.Context, task tasks.IngestTask) error
}

// Orchestrator 驱动单个文档从原始字节到 completed/failed 的完整状态机。
// 各外部系统均以接口注入，自身不持有全局状态。
type Orchestrator struct {
	pipelineCfg  config.PipelineConfig
	embeddingCfg config.EmbeddingConfig

	docRepo repository.DocumentRepository
	jobRepo repository.JobRepository

	textExtractor  TextExtractor
	thumbExtractor ThumbnailExtractor
	metaExtractor  MetadataExtractor

	embeddingClient embedding.Client
	chunkIndexer    ChunkIndexer
	blobStore       BlobStore
	indexClient     assistant.Client
	driveClient     DriveFetcher
	queue           TaskQueue

	httpClient *http.Client
}

// NewOrchestrator 创建一个新的 Orchestrator 实例。
func NewOrchestrator(
	pipelineCfg config.PipelineConfig,
	embeddingCfg config.EmbeddingConfig,
	docRepo repository.DocumentRepository,
	jobRepo repository.JobRepository,
	textExtractor TextExtractor,
	thumbExtractor ThumbnailExtractor,
	metaExtractor MetadataExtractor,
	embeddingClient embedding.Client,
	chunkIndexer ChunkIndexer,
	blobStore BlobStore,
	indexClient assistant.Client,
	driveClient DriveFetcher,
	queue TaskQueue,
) *Orchestrator {
	return &Orchestrator{
		pipelineCfg:     pipelineCfg,
		embeddingCfg:    embeddingCfg,
		docRepo:         docRepo,
		jobRepo:         jobRepo,
		textExtractor:   textExtractor,
		thumbExtractor:  thumbExtractor,
		metaExtractor:   metaExtractor,
		embeddingClient: embeddingClient,
		chunkIndexer:    chunkIndexer,
		blobStore:       blobStore,
		indexClient:     indexClient,
		driveClient:     driveClient,
		queue:           queue,
		httpClient:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// Process 是单次摄取任务的主函数，由消费者协程调用。
// 返回非 nil 错误时由队列决定是否重试；业务性失败已在内部落库，
// 此时返回 nil 避免无意义的重复投递。
func (o *Orchestrator) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[Orchestrator] 开始处理文档, DocumentID: %d, FileHash: %s, Reprocess: %v", task.DocumentID, task.FileHash, task.Reprocess)

	doc, err := o.docRepo.FindByID(task.DocumentID)
	if err != nil {
		log.Errorf("[Orchestrator] 查询文档记录失败, DocumentID: %d, Error: %v", task.DocumentID, err)
		return fmt.Errorf("查询文档记录失败: %w", err)
	}

	// 每次处理尝试都新建一条审计记录，历史永不覆盖
	job := &model.ProcessingJob{DocumentID: doc.ID, Stage: model.StageExtracting}
	if err := o.jobRepo.Create(job); err != nil {
		log.Warnf("[Orchestrator] 创建处理记录失败 (document_id=%d): %v", doc.ID, err)
	}

	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"status":           model.StatusProcessing,
		"processing_error": "",
	}); err != nil {
		return fmt.Errorf("更新文档状态失败: %w", err)
	}

	// 1. 按来源渠道取回原始字节
	log.Infof("[Orchestrator] 步骤1: 获取文件内容, Source: %s", doc.Source)
	data, err := o.fetchSource(ctx, doc)
	if err != nil {
		// 网络/存储抖动交给队列重试，不标记文档失败
		log.Errorf("[Orchestrator] 获取文件内容失败, DocumentID: %d, Error: %v", doc.ID, err)
		return err
	}
	log.Infof("[Orchestrator] 步骤1: 文件获取成功, 大小: %d字节", len(data))

	// 2. 正文抽取（致命阶段）
	log.Info("[Orchestrator] 步骤2: 使用Tika提取文本内容")
	textResult, err := o.textExtractor.Extract(ctx, data)
	if err != nil {
		return o.fail(ctx, doc, job, fmt.Errorf("文本提取失败: %w", err))
	}

	// 提取出的全文落对象存储，失败仅告警
	textRef := fmt.Sprintf("texts/%s.txt", doc.FileHash)
	if _, err := o.blobStore.Put(ctx, textRef, []byte(textResult.Text), "text/plain; charset=utf-8"); err != nil {
		log.Warnf("[Orchestrator] 保存提取文本失败 (object=%s): %v", textRef, err)
		textRef = ""
	}

	// 3. 文本切块
	log.Infof("[Orchestrator] 步骤3: 进行文本分块, chunkSize: %d, chunkOverlap: %d", chunkSize, chunkOverlap)
	chunks := splitChunks(textResult.Text, chunkSize, chunkOverlap)
	log.Infof("[Orchestrator] 步骤3: 文本分块完成, 共生成 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		return o.fail(ctx, doc, job, errors.New("未生成任何文本分块"))
	}
	o.advance(job, model.StageEmbedding, map[string]interface{}{
		"page_count":  textResult.PageCount,
		"chunk_count": len(chunks),
	})

	// 4. 向量化
	log.Infof("[Orchestrator] 步骤4: 调用Embedding API, 批大小: %d", o.embeddingCfg.BatchSize)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.embeddingClient.CreateEmbeddings(ctx, texts)
	if err != nil {
		return o.fail(ctx, doc, job, fmt.Errorf("生成向量失败: %w", err))
	}
	o.advance(job, model.StageStoring, map[string]interface{}{"vector_count": len(vectors)})

	// 5. 写入分块索引。重新处理前旧分块已清理，此处直接覆盖写入
	log.Infof("[Orchestrator] 步骤5: 将 %d 个分块写入Elasticsearch", len(chunks))
	for i, c := range chunks {
		esDoc := model.EsChunk{
			ChunkID:      fmt.Sprintf("%s_%d", doc.FileHash, c.Seq),
			FileHash:     doc.FileHash,
			Page:         c.Page,
			Seq:          c.Seq,
			TextContent:  c.Text,
			Vector:       vectors[i],
			ModelVersion: o.embeddingCfg.Model,
		}
		if err := o.chunkIndexer.IndexChunk(ctx, esDoc); err != nil {
			return o.fail(ctx, doc, job, fmt.Errorf("写入分块索引失败 (seq=%d): %w", c.Seq, err))
		}
	}

	// 6. 上传到外部索引服务并等待其就绪
	log.Info("[Orchestrator] 步骤6: 上传文件到外部索引服务")
	fileID, err := o.indexClient.Upload(ctx, doc.FileName, data, map[string]string{
		"file_hash": doc.FileHash,
		"file_name": doc.FileName,
	})
	if err != nil {
		return o.fail(ctx, doc, job, fmt.Errorf("上传到外部索引失败: %w", err))
	}
	// 先落 FileID，即使后续等待失败也能在重新处理时清理远端文件
	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"index_file_id": fileID,
		"index_status":  string(assistant.StatusProcessing),
	}); err != nil {
		log.Warnf("[Orchestrator] 保存外部索引FileID失败 (document_id=%d): %v", doc.ID, err)
	}
	doc.IndexFileID = fileID

	log.Infof("[Orchestrator] 步骤6: 等待外部索引就绪, FileID: %s, 轮询间隔: %s, 超时: %s", fileID, o.pipelineCfg.IndexPollInterval, o.pipelineCfg.IndexPollTimeout)
	if err := o.waitForIndex(ctx, fileID); err != nil {
		_ = o.docRepo.Updates(doc.ID, map[string]interface{}{"index_status": string(assistant.StatusFailed)})
		return o.fail(ctx, doc, job, err)
	}
	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{"index_status": string(assistant.StatusAvailable)}); err != nil {
		log.Warnf("[Orchestrator] 更新外部索引状态失败 (document_id=%d): %v", doc.ID, err)
	}

	// 7. 增强阶段：缩略图与元数据，各自独立，失败不影响最终状态
	log.Info("[Orchestrator] 步骤7: 生成首页缩略图")
	pageCount := textResult.PageCount
	thumbnailRef := ""
	if thumb, err := o.thumbExtractor.Extract(ctx, data); err != nil {
		log.Warnf("[Orchestrator] 缩略图生成失败, 跳过 (document_id=%d): %v", doc.ID, err)
	} else {
		pageCount = thumb.PageCount
		ref := fmt.Sprintf("thumbnails/%s.pdf", doc.FileHash)
		if _, err := o.blobStore.Put(ctx, ref, thumb.Thumbnail, "application/pdf"); err != nil {
			log.Warnf("[Orchestrator] 保存缩略图失败 (object=%s): %v", ref, err)
		} else {
			thumbnailRef = ref
		}
	}
	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"page_count":         pageCount,
		"thumbnail_ref":      thumbnailRef,
		"extracted_text_ref": textRef,
	}); err != nil {
		log.Warnf("[Orchestrator] 保存缩略图引用失败 (document_id=%d): %v", doc.ID, err)
	}

	log.Info("[Orchestrator] 步骤8: 通过LLM抽取结构化元数据")
	if meta, err := o.metaExtractor.Extract(ctx, textResult.Text); err != nil {
		log.Warnf("[Orchestrator] 元数据抽取失败, 跳过 (document_id=%d): %v", doc.ID, err)
	} else if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"title":      meta.Title,
		"company":    meta.Company,
		"year":       meta.Year,
		"topic":      meta.Topic,
		"summary":    meta.Summary,
		"region":     meta.Region,
		"industry":   meta.Industry,
		"doc_type":   meta.DocType,
		"authors":    strings.Join(meta.Authors, ","),
		"keywords":   strings.Join(meta.Keywords, ","),
		"tech_areas": strings.Join(meta.TechAreas, ","),
	}); err != nil {
		log.Warnf("[Orchestrator] 保存元数据失败 (document_id=%d): %v", doc.ID, err)
	}

	// 9. 收尾
	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"status":           model.StatusCompleted,
		"processing_error": "",
	}); err != nil {
		return fmt.Errorf("更新文档完成状态失败: %w", err)
	}
	o.advance(job, model.StageCompleted, nil)
	log.Infof("[Orchestrator] 文档处理完成, DocumentID: %d, FileHash: %s", doc.ID, doc.FileHash)
	return nil
}

// Abandon 在队列耗尽重试次数后落库最终失败状态。
func (o *Orchestrator) Abandon(ctx context.Context, task tasks.IngestTask, cause error) {
	msg := truncateError(cause)
	log.Errorf("[Orchestrator] 任务重试耗尽, 标记文档失败, DocumentID: %d, Error: %s", task.DocumentID, msg)
	if err := o.docRepo.Updates(task.DocumentID, map[string]interface{}{
		"status":           model.StatusFailed,
		"processing_error": msg,
	}); err != nil {
		log.Errorf("[Orchestrator] 落库失败状态时出错 (document_id=%d): %v", task.DocumentID, err)
	}
}

// Reprocess 对失败的文档发起一次新的处理尝试。
// 远端与分块索引的清理是尽力而为的，清理失败不阻塞重新入队。
func (o *Orchestrator) Reprocess(ctx context.Context, documentID uint) error {
	doc, err := o.docRepo.FindByID(documentID)
	if err != nil {
		return fmt.Errorf("查询文档记录失败: %w", err)
	}
	log.Infof("[Orchestrator] 发起重新处理, DocumentID: %d, FileHash: %s, 当前状态: %s", doc.ID, doc.FileHash, doc.Status)

	if doc.IndexFileID != "" {
		if err := o.indexClient.Delete(ctx, doc.IndexFileID); err != nil {
			log.Warnf("[Orchestrator] 清理外部索引旧文件失败, 继续重新处理 (file_id=%s): %v", doc.IndexFileID, err)
		}
	}
	if err := o.chunkIndexer.DeleteByFileHash(ctx, doc.FileHash); err != nil {
		log.Warnf("[Orchestrator] 清理分块索引旧记录失败, 继续重新处理 (file_hash=%s): %v", doc.FileHash, err)
	}

	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"status":           model.StatusPending,
		"processing_error": "",
		"index_file_id":    "",
		"index_status":     "",
	}); err != nil {
		return fmt.Errorf("重置文档状态失败: %w", err)
	}

	return o.queue.Enqueue(ctx, tasks.IngestTask{
		DocumentID: doc.ID,
		FileHash:   doc.FileHash,
		Reprocess:  true,
	})
}

// fetchSource 按文档来源渠道取回原始 PDF 字节。
// 摄取时已归档到对象存储的文件优先从对象存储读取，避免依赖外部源的可用性。
func (o *Orchestrator) fetchSource(ctx context.Context, doc *model.Document) ([]byte, error) {
	if doc.StorageRef != "" {
		return o.blobStore.Get(ctx, doc.StorageRef)
	}
	switch doc.Source {
	case model.SourceUpload:
		return nil, fmt.Errorf("上传来源的文档缺少存储引用 (document_id=%d)", doc.ID)
	case model.SourceURL:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.SourceURL, nil)
		if err != nil {
			return nil, fmt.Errorf("构造下载请求失败: %w", err)
		}
		resp, err := o.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("下载源文件失败: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("下载源文件返回异常状态: %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	case model.SourceDriveSync:
		data, _, err := o.driveClient.Download(ctx, doc.DriveFileID)
		return data, err
	default:
		return nil, fmt.Errorf("未知的文档来源: %s", doc.Source)
	}
}

// waitForIndex 轮询外部索引服务直到文件就绪、被拒绝或超时。
func (o *Orchestrator) waitForIndex(ctx context.Context, fileID string) error {
	return pollUntil(ctx, o.pipelineCfg.IndexPollInterval, o.pipelineCfg.IndexPollTimeout, func(ctx context.Context) (bool, error) {
		info, err := o.indexClient.Describe(ctx, fileID)
		if err != nil {
			// 单次查询失败按瞬时抖动处理，留给下一个轮询周期
			log.Warnf("[Orchestrator] 查询外部索引状态失败 (file_id=%s): %v", fileID, err)
			return false, nil
		}
		switch info.Status {
		case assistant.StatusAvailable:
			return true, nil
		case assistant.StatusFailed:
			return false, &IndexingRejectedError{FileID: fileID, Reason: info.ErrorMessage}
		default:
			return false, nil
		}
	})
}

// fail 将文档标记为失败并记录错误原文（截断后），返回原错误供日志链路使用。
// 业务性失败对队列返回 nil，避免重试一个确定性失败的任务。
func (o *Orchestrator) fail(ctx context.Context, doc *model.Document, job *model.ProcessingJob, cause error) error {
	msg := truncateError(cause)
	log.Errorf("[Orchestrator] 文档处理失败, DocumentID: %d, FileHash: %s, Error: %s", doc.ID, doc.FileHash, msg)
	if err := o.docRepo.Updates(doc.ID, map[string]interface{}{
		"status":           model.StatusFailed,
		"processing_error": msg,
	}); err != nil {
		log.Errorf("[Orchestrator] 落库失败状态时出错 (document_id=%d): %v", doc.ID, err)
	}
	if job != nil && job.ID != 0 {
		if err := o.jobRepo.UpdateStage(job.ID, model.StageFailed, "", msg); err != nil {
			log.Warnf("[Orchestrator] 更新处理记录失败 (job_id=%d): %v", job.ID, err)
		}
	}
	return nil
}

// advance 推进审计记录到下一阶段并附带计数信息。
func (o *Orchestrator) advance(job *model.ProcessingJob, stage model.JobStage, counters map[string]interface{}) {
	if job == nil || job.ID == 0 {
		return
	}
	metadata := ""
	if len(counters) > 0 {
		if b, err := json.Marshal(counters); err == nil {
			metadata = string(b)
		}
	}
	if err := o.jobRepo.UpdateStage(job.ID, stage, metadata, ""); err != nil {
		log.Warnf("[Orchestrator] 更新处理记录失败 (job_id=%d, stage=%s): %v", job.ID, stage, err)
	}
}
