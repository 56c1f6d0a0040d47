// Package service 包含了应用的业务逻辑层。
package service

import (
	"docflow-go/internal/model"
	"docflow-go/internal/repository"
)

// PipelineOverviewDTO 是管理端总览的返回结构。
type PipelineOverviewDTO struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// UserListDTO 是用户列表的返回结构。
type UserListDTO struct {
	Users []model.User `json:"users"`
	Total int64        `json:"total"`
}

// AdminService 接口定义了管理端相关的业务操作。
type AdminService interface {
	PipelineOverview() (*PipelineOverviewDTO, error)
	ListUsers(page, size int) (*UserListDTO, error)
}

type adminService struct {
	docRepo  repository.DocumentRepository
	userRepo repository.UserRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(docRepo repository.DocumentRepository, userRepo repository.UserRepository) AdminService {
	return &adminService{docRepo: docRepo, userRepo: userRepo}
}

// PipelineOverview 按生命周期状态统计文档数量。
func (s *adminService) PipelineOverview() (*PipelineOverviewDTO, error) {
	counts, err := s.docRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	overview := &PipelineOverviewDTO{
		Pending:    counts[model.StatusPending],
		Processing: counts[model.StatusProcessing],
		Completed:  counts[model.StatusCompleted],
		Failed:     counts[model.StatusFailed],
	}
	overview.Total = overview.Pending + overview.Processing + overview.Completed + overview.Failed
	return overview, nil
}

// ListUsers 分页返回注册用户列表。
func (s *adminService) ListUsers(page, size int) (*UserListDTO, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	users, total, err := s.userRepo.FindAll((page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return &UserListDTO{Users: users, Total: total}, nil
}
