// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"

	"gorm.io/gorm"

	"docflow-go/internal/model"
)

// DocumentRepository 接口定义了文档记录的持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id uint) (*model.Document, error)
	// FindByFileHash 按内容摘要查找文档，未命中返回 (nil, nil)。
	FindByFileHash(fileHash string) (*model.Document, error)
	Update(doc *model.Document) error
	// Updates 只更新给定字段，避免覆盖并发写入的其它列。
	Updates(id uint, fields map[string]interface{}) error
	FindByStatus(status model.DocumentStatus) ([]model.Document, error)
	// FindByFileHashes 批量检索，用于搜索结果的文档信息回填。
	FindByFileHashes(fileHashes []string) ([]model.Document, error)
	FindAll(offset, limit int) ([]model.Document, int64, error)
	// CountByStatus 按生命周期状态统计文档数量，用于管理端总览。
	CountByStatus() (map[model.DocumentStatus]int64, error)
	Delete(id uint) error
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一条新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据主键检索文档记录。
func (r *documentRepository) FindByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByFileHash 根据内容摘要检索文档记录（重复检测入口）。
func (r *documentRepository) FindByFileHash(fileHash string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("file_hash = ?", fileHash).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// Update 保存一条完整的文档记录。
func (r *documentRepository) Update(doc *model.Document) error {
	return r.db.Save(doc).Error
}

// Updates 按字段更新文档记录。
func (r *documentRepository) Updates(id uint, fields map[string]interface{}) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Updates(fields).Error
}

// FindByStatus 按生命周期状态检索文档列表。
func (r *documentRepository) FindByStatus(status model.DocumentStatus) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("status = ?", status).Order("updated_at desc").Find(&docs).Error
	return docs, err
}

// FindByFileHashes 批量按内容摘要检索文档记录。
func (r *documentRepository) FindByFileHashes(fileHashes []string) ([]model.Document, error) {
	if len(fileHashes) == 0 {
		return nil, nil
	}
	var docs []model.Document
	err := r.db.Where("file_hash IN ?", fileHashes).Find(&docs).Error
	return docs, err
}

// FindAll 分页检索文档记录，返回列表与总数。
func (r *documentRepository) FindAll(offset, limit int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64
	if err := r.db.Model(&model.Document{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("created_at desc").Offset(offset).Limit(limit).Find(&docs).Error
	return docs, total, err
}

// CountByStatus 按状态分组统计文档数量。
func (r *documentRepository) CountByStatus() (map[model.DocumentStatus]int64, error) {
	var rows []struct {
		Status model.DocumentStatus
		Count  int64
	}
	err := r.db.Model(&model.Document{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.DocumentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Delete 删除一条文档记录。
func (r *documentRepository) Delete(id uint) error {
	return r.db.Delete(&model.Document{}, id).Error
}
