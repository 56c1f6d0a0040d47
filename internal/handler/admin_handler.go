package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docflow-go/internal/service"
	"docflow-go/pkg/log"
)

// AdminHandler 负责处理管理端相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Overview 返回按状态统计的管道总览。
func (h *AdminHandler) Overview(c *gin.Context) {
	overview, err := h.adminService.PipelineOverview()
	if err != nil {
		log.Errorf("[AdminHandler] 查询管道总览失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": overview})
}

// ListUsers 分页返回注册用户列表。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	result, err := h.adminService.ListUsers(page, size)
	if err != nil {
		log.Errorf("[AdminHandler] 查询用户列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
