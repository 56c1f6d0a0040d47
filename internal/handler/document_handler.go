// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docflow-go/internal/middleware"
	"docflow-go/internal/service"
	"docflow-go/pkg/log"
)

// DocumentHandler 负责处理文档管理相关的 API 请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// List 分页返回文档列表。
func (h *DocumentHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.documentService.List(offset, limit)
	if err != nil {
		log.Errorf("[DocumentHandler] 查询文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// Get 返回单个文档详情。
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	doc, err := h.documentService.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// ListFailed 返回所有处理失败的文档。
func (h *DocumentHandler) ListFailed(c *gin.Context) {
	docs, err := h.documentService.ListFailed()
	if err != nil {
		log.Errorf("[DocumentHandler] 查询失败文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// Status 返回文档的派生状态视图与处理历史。
func (h *DocumentHandler) Status(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	status, err := h.documentService.GetStatus(id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
			return
		}
		log.Errorf("[DocumentHandler] 查询文档状态失败, id: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": status})
}

// Retry 对失败的文档发起一次重新处理。
func (h *DocumentHandler) Retry(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.documentService.Reprocess(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
		case errors.Is(err, service.ErrNotReprocessable):
			c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "message": err.Error()})
		default:
			log.Errorf("[DocumentHandler] 发起重新处理失败, id: %d, error: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "重新处理失败"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "已重新入队"})
}

// ApproveRequest 定义了审核操作的请求体结构。
type ApproveRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// Approve 切换文档的审核状态，仅管理员可用。
func (h *DocumentHandler) Approve(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载"})
		return
	}
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return
	}

	if err := h.documentService.Approve(c.Request.Context(), id, *req.Approved, user.Username); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
			return
		}
		log.Errorf("[DocumentHandler] 更新审核状态失败, id: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "更新失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// Download 返回原始文件的临时下载链接。
func (h *DocumentHandler) Download(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	info, err := h.documentService.GenerateDownloadURL(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
			return
		}
		log.Errorf("[DocumentHandler] 生成下载链接失败, id: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": info})
}

// Thumbnail 返回首页缩略图的临时下载链接。
func (h *DocumentHandler) Thumbnail(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	info, err := h.documentService.GenerateThumbnailURL(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": info})
}

// Delete 删除文档及其派生产物，仅管理员可用。
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.documentService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
			return
		}
		log.Errorf("[DocumentHandler] 删除文档失败, id: %d, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

func (h *DocumentHandler) parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的文档ID"})
		return 0, false
	}
	return uint(id), true
}
