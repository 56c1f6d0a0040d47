package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-go/internal/config"
	"docflow-go/internal/extract"
	"docflow-go/internal/model"
	"docflow-go/pkg/assistant"
	"docflow-go/pkg/tasks"
)

// ---- 内存实现的协作方 ----

type fakeDocRepo struct {
	docs map[uint]*model.Document
}

func newFakeDocRepo(docs ...*model.Document) *fakeDocRepo {
	r := &fakeDocRepo{docs: make(map[uint]*model.Document)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocRepo) Create(doc *model.Document) error {
	doc.ID = uint(len(r.docs) + 1)
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocRepo) FindByID(id uint) (*model.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return doc, nil
}

func (r *fakeDocRepo) FindByFileHash(fileHash string) (*model.Document, error) {
	for _, d := range r.docs {
		if d.FileHash == fileHash {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) Update(doc *model.Document) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocRepo) Updates(id uint, fields map[string]interface{}) error {
	doc, ok := r.docs[id]
	if !ok {
		return errors.New("record not found")
	}
	for k, v := range fields {
		switch k {
		case "status":
			doc.Status = v.(model.DocumentStatus)
		case "processing_error":
			doc.ProcessingError = v.(string)
		case "index_file_id":
			doc.IndexFileID = v.(string)
		case "index_status":
			doc.IndexStatus = v.(string)
		case "page_count":
			doc.PageCount = v.(int)
		case "thumbnail_ref":
			doc.ThumbnailRef = v.(string)
		case "extracted_text_ref":
			doc.ExtractedTextRef = v.(string)
		case "title":
			doc.Title = v.(string)
		case "company":
			doc.Company = v.(string)
		case "year":
			doc.Year = v.(int)
		case "topic":
			doc.Topic = v.(string)
		case "summary":
			doc.Summary = v.(string)
		case "region":
			doc.Region = v.(string)
		case "industry":
			doc.Industry = v.(string)
		case "doc_type":
			doc.DocType = v.(string)
		case "authors":
			doc.Authors = v.(string)
		case "keywords":
			doc.Keywords = v.(string)
		case "tech_areas":
			doc.TechAreas = v.(string)
		case "approved":
			doc.Approved = v.(bool)
		case "approved_by":
			doc.ApprovedBy = v.(string)
		}
	}
	return nil
}

func (r *fakeDocRepo) FindByStatus(status model.DocumentStatus) ([]model.Document, error) {
	var out []model.Document
	for _, d := range r.docs {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) FindByFileHashes(fileHashes []string) ([]model.Document, error) {
	var out []model.Document
	for _, h := range fileHashes {
		for _, d := range r.docs {
			if d.FileHash == h {
				out = append(out, *d)
			}
		}
	}
	return out, nil
}

func (r *fakeDocRepo) FindAll(offset, limit int) ([]model.Document, int64, error) {
	var out []model.Document
	for _, d := range r.docs {
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (r *fakeDocRepo) CountByStatus() (map[model.DocumentStatus]int64, error) {
	counts := make(map[model.DocumentStatus]int64)
	for _, d := range r.docs {
		counts[d.Status]++
	}
	return counts, nil
}

func (r *fakeDocRepo) Delete(id uint) error {
	delete(r.docs, id)
	return nil
}

type stageRecord struct {
	Stage model.JobStage
	Err   string
}

type fakeJobRepo struct {
	jobs   []*model.ProcessingJob
	stages []stageRecord
}

func (r *fakeJobRepo) Create(job *model.ProcessingJob) error {
	job.ID = uint(len(r.jobs) + 1)
	r.jobs = append(r.jobs, job)
	r.stages = append(r.stages, stageRecord{Stage: job.Stage})
	return nil
}

func (r *fakeJobRepo) UpdateStage(jobID uint, stage model.JobStage, metadata, errMsg string) error {
	r.stages = append(r.stages, stageRecord{Stage: stage, Err: errMsg})
	return nil
}

func (r *fakeJobRepo) FindByDocumentID(documentID uint) ([]model.ProcessingJob, error) {
	var out []model.ProcessingJob
	for _, j := range r.jobs {
		if j.DocumentID == documentID {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeTextExtractor struct {
	result *extract.TextResult
	err    error
	calls  int
}

func (f *fakeTextExtractor) Extract(ctx context.Context, data []byte) (*extract.TextResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeThumbExtractor struct {
	result *extract.ThumbnailResult
	err    error
}

func (f *fakeThumbExtractor) Extract(ctx context.Context, data []byte) (*extract.ThumbnailResult, error) {
	return f.result, f.err
}

type fakeMetaExtractor struct {
	result *extract.Metadata
	err    error
}

func (f *fakeMetaExtractor) Extract(ctx context.Context, text string) (*extract.Metadata, error) {
	return f.result, f.err
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeIndexer struct {
	indexed  []model.EsChunk
	deleted  []string
	indexErr error
	delErr   error
}

func (f *fakeIndexer) IndexChunk(ctx context.Context, doc model.EsChunk) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeIndexer) DeleteByFileHash(ctx context.Context, fileHash string) error {
	f.deleted = append(f.deleted, fileHash)
	return f.delErr
}

type fakeBlobStore struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.objects[objectName] = data
	return objectName, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type fakeAssistant struct {
	uploadedID    string
	uploadErr     error
	uploads       int
	describeSeq   []assistant.FileStatus
	describeCalls int
	deleted       []string
	deleteErr     error
}

func (f *fakeAssistant) Upload(ctx context.Context, fileName string, data []byte, metadata map[string]string) (string, error) {
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.uploadedID, nil
}

func (f *fakeAssistant) Describe(ctx context.Context, fileID string) (*assistant.FileInfo, error) {
	status := assistant.StatusProcessing
	if f.describeCalls < len(f.describeSeq) {
		status = f.describeSeq[f.describeCalls]
	} else if len(f.describeSeq) > 0 {
		status = f.describeSeq[len(f.describeSeq)-1]
	}
	f.describeCalls++
	info := &assistant.FileInfo{ID: fileID, Status: status}
	if status == assistant.StatusFailed {
		info.ErrorMessage = "unsupported encoding"
	}
	return info, nil
}

func (f *fakeAssistant) Delete(ctx context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return f.deleteErr
}

type fakeQueue struct {
	enqueued []tasks.IngestTask
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, task tasks.IngestTask) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

type fakeDrive struct{}

func (fakeDrive) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	return []byte("%PDF-drive"), "drive.pdf", nil
}

// ---- 测试脚手架 ----

type orchestratorFixture struct {
	orch      *Orchestrator
	docRepo   *fakeDocRepo
	jobRepo   *fakeJobRepo
	text      *fakeTextExtractor
	thumb     *fakeThumbExtractor
	meta      *fakeMetaExtractor
	embedder  *fakeEmbedder
	indexer   *fakeIndexer
	blobs     *fakeBlobStore
	assistant *fakeAssistant
	queue     *fakeQueue
	doc       *model.Document
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	doc := &model.Document{
		ID:         1,
		FileHash:   "abc123",
		FileName:   "report.pdf",
		Source:     model.SourceUpload,
		StorageRef: "originals/abc123.pdf",
		Status:     model.StatusPending,
	}
	blobs := newFakeBlobStore()
	blobs.objects[doc.StorageRef] = []byte("%PDF-1.7 fake")

	f := &orchestratorFixture{
		docRepo: newFakeDocRepo(doc),
		jobRepo: &fakeJobRepo{},
		text: &fakeTextExtractor{result: &extract.TextResult{
			Text:      "[Page 1]\n第一页内容\n\n[Page 2]\n第二页内容",
			PageCount: 2,
		}},
		thumb:     &fakeThumbExtractor{result: &extract.ThumbnailResult{Thumbnail: []byte("%PDF-thumb"), PageCount: 2}},
		meta:      &fakeMetaExtractor{result: &extract.Metadata{Title: "年度报告", Year: 2024, Region: "global", Industry: "energy", DocType: "report"}},
		embedder:  &fakeEmbedder{},
		indexer:   &fakeIndexer{},
		blobs:     blobs,
		assistant: &fakeAssistant{uploadedID: "file-1", describeSeq: []assistant.FileStatus{assistant.StatusAvailable}},
		queue:     &fakeQueue{},
		doc:       doc,
	}
	f.orch = NewOrchestrator(
		config.PipelineConfig{
			MaxParallelism:    3,
			MaxAttempts:       3,
			IndexPollInterval: time.Millisecond,
			IndexPollTimeout:  100 * time.Millisecond,
		},
		config.EmbeddingConfig{Model: "text-embedding-3-small", BatchSize: 64},
		f.docRepo, f.jobRepo,
		f.text, f.thumb, f.meta,
		f.embedder, f.indexer, f.blobs, f.assistant, fakeDrive{}, f.queue,
	)
	return f
}

func (f *orchestratorFixture) task() tasks.IngestTask {
	return tasks.IngestTask{DocumentID: f.doc.ID, FileHash: f.doc.FileHash}
}

// ---- 用例 ----

func TestProcessHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)

	err := f.orch.Process(context.Background(), f.task())
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, f.doc.Status)
	assert.Empty(t, f.doc.ProcessingError)
	assert.Equal(t, "file-1", f.doc.IndexFileID)
	assert.Equal(t, "Available", f.doc.IndexStatus)
	assert.Equal(t, 2, f.doc.PageCount)
	assert.Equal(t, "thumbnails/abc123.pdf", f.doc.ThumbnailRef)
	assert.Equal(t, "texts/abc123.txt", f.doc.ExtractedTextRef)
	assert.Equal(t, "年度报告", f.doc.Title)

	// 分块写入了索引，且携带页码与模型版本
	require.NotEmpty(t, f.indexer.indexed)
	assert.Equal(t, "abc123_0", f.indexer.indexed[0].ChunkID)
	assert.Equal(t, 1, f.indexer.indexed[0].Page)
	assert.Equal(t, "text-embedding-3-small", f.indexer.indexed[0].ModelVersion)

	// 审计轨迹按顺序推进
	var stages []model.JobStage
	for _, s := range f.jobRepo.stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []model.JobStage{
		model.StageExtracting, model.StageEmbedding, model.StageStoring, model.StageCompleted,
	}, stages)
}

func TestProcessThumbnailFailureStillCompletes(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.thumb.result = nil
	f.thumb.err = errors.New("pdfcpu: corrupt xref")

	err := f.orch.Process(context.Background(), f.task())
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, f.doc.Status)
	assert.Empty(t, f.doc.ThumbnailRef)
	// 缩略图失败时页数回退为文本解析的页数
	assert.Equal(t, 2, f.doc.PageCount)
	assert.Equal(t, "年度报告", f.doc.Title)
}

func TestProcessMetadataFailureStillCompletes(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.meta.result = nil
	f.meta.err = errors.New("llm: rate limited")

	err := f.orch.Process(context.Background(), f.task())
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, f.doc.Status)
	assert.Empty(t, f.doc.Title)
	// 缩略图不受元数据失败影响
	assert.Equal(t, "thumbnails/abc123.pdf", f.doc.ThumbnailRef)
}

func TestProcessTextFailureIsFatal(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.text.result = nil
	f.text.err = extract.ErrEmptyText

	err := f.orch.Process(context.Background(), f.task())
	// 业务性失败已落库，不交给队列重试
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, f.doc.Status)
	assert.Contains(t, f.doc.ProcessingError, "文本提取失败")
	// 后续阶段未被触发
	assert.Zero(t, f.embedder.calls)
	assert.Empty(t, f.indexer.indexed)
	assert.Zero(t, f.assistant.uploads)

	last := f.jobRepo.stages[len(f.jobRepo.stages)-1]
	assert.Equal(t, model.StageFailed, last.Stage)
	assert.NotEmpty(t, last.Err)
}

func TestProcessIndexRejectionIsFatal(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.assistant.describeSeq = []assistant.FileStatus{assistant.StatusProcessing, assistant.StatusFailed}

	err := f.orch.Process(context.Background(), f.task())
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, f.doc.Status)
	assert.Equal(t, "Failed", f.doc.IndexStatus)
	assert.Contains(t, f.doc.ProcessingError, "unsupported encoding")
	// FileID 保留，供重新处理时清理远端文件
	assert.Equal(t, "file-1", f.doc.IndexFileID)
}

func TestProcessIndexTimeoutIsFatal(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.assistant.describeSeq = []assistant.FileStatus{assistant.StatusProcessing}

	err := f.orch.Process(context.Background(), f.task())
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, f.doc.Status)
	assert.Contains(t, f.doc.ProcessingError, "超时")
}

func TestProcessFetchFailureIsRetriable(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.blobs.getErr = errors.New("connection reset")

	err := f.orch.Process(context.Background(), f.task())
	// 瞬时 IO 错误返回给队列重试，不标记文档失败
	require.Error(t, err)
	assert.NotEqual(t, model.StatusFailed, f.doc.Status)
	assert.Zero(t, f.text.calls)
}

func TestProcessEmbeddingFailureIsFatal(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.embedder.err = errors.New("embedding api: 500")

	err := f.orch.Process(context.Background(), f.task())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, f.doc.Status)
	assert.Empty(t, f.indexer.indexed)
}

func TestReprocessCleansUpAndRequeues(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.doc.Status = model.StatusFailed
	f.doc.ProcessingError = "等待外部索引完成超时"
	f.doc.IndexFileID = "file-old"
	f.doc.IndexStatus = "Failed"

	err := f.orch.Reprocess(context.Background(), f.doc.ID)
	require.NoError(t, err)

	// 远端文件与分块索引先清理
	assert.Equal(t, []string{"file-old"}, f.assistant.deleted)
	assert.Equal(t, []string{"abc123"}, f.indexer.deleted)

	// 状态重置并重新入队
	assert.Equal(t, model.StatusPending, f.doc.Status)
	assert.Empty(t, f.doc.ProcessingError)
	assert.Empty(t, f.doc.IndexFileID)
	assert.Empty(t, f.doc.IndexStatus)
	require.Len(t, f.queue.enqueued, 1)
	assert.True(t, f.queue.enqueued[0].Reprocess)
	assert.Equal(t, f.doc.ID, f.queue.enqueued[0].DocumentID)
}

func TestReprocessToleratesCleanupFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.doc.Status = model.StatusFailed
	f.doc.IndexFileID = "file-old"
	f.assistant.deleteErr = errors.New("assistant unavailable")
	f.indexer.delErr = errors.New("es unavailable")

	err := f.orch.Reprocess(context.Background(), f.doc.ID)
	require.NoError(t, err)
	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, model.StatusPending, f.doc.Status)
}

func TestAbandonMarksFailed(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.doc.Status = model.StatusProcessing

	f.orch.Abandon(context.Background(), f.task(), errors.New(strings.Repeat("x", 600)))

	assert.Equal(t, model.StatusFailed, f.doc.Status)
	assert.Len(t, f.doc.ProcessingError, 512)
}
