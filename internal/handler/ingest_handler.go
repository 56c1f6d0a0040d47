// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docflow-go/internal/middleware"
	"docflow-go/internal/pipeline"
	"docflow-go/internal/service"
	"docflow-go/pkg/log"
)

// maxUploadSize 限制单次上传允许的最大字节数 (100MB)。
const maxUploadSize = 100 * 1024 * 1024

// IngestHandler 负责处理文档摄取入口的 API 请求。
type IngestHandler struct {
	ingestService service.IngestService
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// Upload 处理浏览器直传的 PDF 文件。
func (h *IngestHandler) Upload(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少上传文件"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"code": http.StatusRequestEntityTooLarge, "message": "文件超过大小上限"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取上传文件失败"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取上传文件失败"})
		return
	}

	doc, err := h.ingestService.IngestUpload(c.Request.Context(), fileHeader.Filename, data, user.ID)
	h.respond(c, doc, err)
}

// IngestURLRequest 定义了 URL 摄取的请求体结构。
type IngestURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// IngestURL 从给定 URL 拉取 PDF 并摄取。
func (h *IngestHandler) IngestURL(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return
	}

	var req IngestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的URL参数"})
		return
	}

	doc, err := h.ingestService.IngestURL(c.Request.Context(), req.URL, user.ID)
	h.respond(c, doc, err)
}

// IngestDriveRequest 定义了云盘摄取的请求体结构。
type IngestDriveRequest struct {
	FileID string `json:"fileId" binding:"required"`
}

// IngestDrive 从云盘拉取指定文件并摄取。
func (h *IngestHandler) IngestDrive(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return
	}

	var req IngestDriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的FileID参数"})
		return
	}

	doc, err := h.ingestService.IngestDrive(c.Request.Context(), req.FileID, user.ID)
	h.respond(c, doc, err)
}

// respond 统一处理摄取结果。重复命中返回 409 并携带已有文档信息。
func (h *IngestHandler) respond(c *gin.Context, doc interface{}, err error) {
	if err != nil {
		var dup *pipeline.DuplicateError
		if errors.As(err, &dup) {
			c.JSON(http.StatusConflict, gin.H{
				"code":    http.StatusConflict,
				"message": "文档内容已存在",
				"data": gin.H{
					"documentId": dup.DocumentID,
					"fileName":   dup.FileName,
					"title":      dup.Title,
				},
			})
			return
		}
		log.Errorf("[IngestHandler] 摄取失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "已接受处理", "data": doc})
}
