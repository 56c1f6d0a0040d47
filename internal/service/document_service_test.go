package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-go/internal/model"
	"docflow-go/pkg/assistant"
)

type memJobRepo struct {
	jobs []model.ProcessingJob
}

func (r *memJobRepo) Create(job *model.ProcessingJob) error {
	job.ID = uint(len(r.jobs) + 1)
	r.jobs = append(r.jobs, *job)
	return nil
}

func (r *memJobRepo) UpdateStage(jobID uint, stage model.JobStage, metadata, errMsg string) error {
	return nil
}

func (r *memJobRepo) FindByDocumentID(documentID uint) ([]model.ProcessingJob, error) {
	var out []model.ProcessingJob
	for _, j := range r.jobs {
		if j.DocumentID == documentID {
			out = append(out, j)
		}
	}
	return out, nil
}

type memObjectStore struct {
	removed []string
}

func (s *memObjectStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.local/" + objectName + "?sig=x", nil
}

func (s *memObjectStore) Remove(ctx context.Context, objectName string) error {
	s.removed = append(s.removed, objectName)
	return nil
}

type memIndexer struct {
	deleted []string
}

func (m *memIndexer) IndexChunk(ctx context.Context, doc model.EsChunk) error { return nil }

func (m *memIndexer) DeleteByFileHash(ctx context.Context, fileHash string) error {
	m.deleted = append(m.deleted, fileHash)
	return nil
}

type memAssistant struct {
	deleted []string
}

func (m *memAssistant) Upload(ctx context.Context, fileName string, data []byte, metadata map[string]string) (string, error) {
	return "file-1", nil
}

func (m *memAssistant) Describe(ctx context.Context, fileID string) (*assistant.FileInfo, error) {
	return &assistant.FileInfo{ID: fileID, Status: assistant.StatusAvailable}, nil
}

func (m *memAssistant) Delete(ctx context.Context, fileID string) error {
	m.deleted = append(m.deleted, fileID)
	return nil
}

type memReprocessor struct {
	calls []uint
	err   error
}

func (m *memReprocessor) Reprocess(ctx context.Context, documentID uint) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, documentID)
	return nil
}

func newDocumentFixture(docs ...*model.Document) (DocumentService, *memDocRepo, *memJobRepo, *memObjectStore, *memIndexer, *memAssistant, *memReprocessor) {
	repo := newMemDocRepo()
	for _, d := range docs {
		repo.docs[d.FileHash] = d
		if d.ID >= repo.nextID {
			repo.nextID = d.ID + 1
		}
	}
	jobs := &memJobRepo{}
	store := &memObjectStore{}
	indexer := &memIndexer{}
	asst := &memAssistant{}
	rep := &memReprocessor{}
	svc := NewDocumentService(repo, jobs, store, indexer, asst, rep)
	return svc, repo, jobs, store, indexer, asst, rep
}

func TestGetStatusAggregatesJobTrail(t *testing.T) {
	doc := &model.Document{ID: 1, FileHash: "h1", Status: model.StatusCompleted, IndexStatus: "Available"}
	svc, _, jobs, _, _, _, _ := newDocumentFixture(doc)
	require.NoError(t, jobs.Create(&model.ProcessingJob{DocumentID: 1, Stage: model.StageCompleted}))
	require.NoError(t, jobs.Create(&model.ProcessingJob{DocumentID: 2, Stage: model.StageFailed}))

	status, err := svc.GetStatus(1)
	require.NoError(t, err)
	assert.True(t, status.ReadyForReview)
	assert.True(t, status.Indexed)
	// 只聚合本文档的处理历史
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, model.StageCompleted, status.Jobs[0].Stage)
}

func TestReprocessOnlyAllowedWhenFailed(t *testing.T) {
	failed := &model.Document{ID: 1, FileHash: "h1", Status: model.StatusFailed}
	completed := &model.Document{ID: 2, FileHash: "h2", Status: model.StatusCompleted}
	svc, _, _, _, _, _, rep := newDocumentFixture(failed, completed)

	require.NoError(t, svc.Reprocess(context.Background(), 1))
	assert.Equal(t, []uint{1}, rep.calls)

	err := svc.Reprocess(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotReprocessable)
	assert.Len(t, rep.calls, 1)

	err = svc.Reprocess(context.Background(), 404)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestApproveSetsAndClearsApprover(t *testing.T) {
	doc := &model.Document{ID: 1, FileHash: "h1", Status: model.StatusCompleted}
	svc, repo, _, _, _, _, _ := newDocumentFixture(doc)
	repo.updatesFn = func(id uint, fields map[string]interface{}) {
		if v, ok := fields["approved"]; ok {
			doc.Approved = v.(bool)
		}
		if v, ok := fields["approved_by"]; ok {
			doc.ApprovedBy = v.(string)
		}
	}

	require.NoError(t, svc.Approve(context.Background(), 1, true, "admin"))
	assert.True(t, doc.Approved)
	assert.Equal(t, "admin", doc.ApprovedBy)

	require.NoError(t, svc.Approve(context.Background(), 1, false, "admin"))
	assert.False(t, doc.Approved)
	assert.Empty(t, doc.ApprovedBy)
}

func TestGenerateDownloadURL(t *testing.T) {
	doc := &model.Document{ID: 1, FileHash: "h1", FileName: "report.pdf", StorageRef: "originals/h1.pdf"}
	svc, _, _, _, _, _, _ := newDocumentFixture(doc)

	info, err := svc.GenerateDownloadURL(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", info.FileName)
	assert.Contains(t, info.DownloadURL, "originals/h1.pdf")
}

func TestDeleteCleansDerivedArtifacts(t *testing.T) {
	doc := &model.Document{
		ID: 1, FileHash: "h1",
		StorageRef:       "originals/h1.pdf",
		ThumbnailRef:     "thumbnails/h1.pdf",
		ExtractedTextRef: "texts/h1.txt",
		IndexFileID:      "file-1",
	}
	svc, repo, _, store, indexer, asst, _ := newDocumentFixture(doc)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Equal(t, []string{"file-1"}, asst.deleted)
	assert.Equal(t, []string{"h1"}, indexer.deleted)
	assert.ElementsMatch(t, []string{"originals/h1.pdf", "thumbnails/h1.pdf", "texts/h1.txt"}, store.removed)
	_, err := repo.FindByID(1)
	assert.Error(t, err)
}

func TestListFailedDelegates(t *testing.T) {
	svc, repo, _, _, _, _, _ := newDocumentFixture()
	repo.failedDocs = []model.Document{{ID: 3, Status: model.StatusFailed, ProcessingError: "超时"}}

	docs, err := svc.ListFailed()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, uint(3), docs[0].ID)
}
