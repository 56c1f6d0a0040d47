// Package assistant 提供外部向量/助手检索服务的客户端。
// 该服务接收完整文件，异步建立可检索表示；这里只使用
// upload / describe / delete 三个契约。
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"docflow-go/internal/config"
	"docflow-go/pkg/log"
)

// FileStatus 是远端索引的处理状态。
type FileStatus string

const (
	StatusProcessing FileStatus = "Processing"
	StatusAvailable  FileStatus = "Available"
	StatusFailed     FileStatus = "Failed"
)

// FileInfo 描述远端索引文件的当前状态。
type FileInfo struct {
	ID           string     `json:"id"`
	Status       FileStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Client defines the interface for the assistant store client.
type Client interface {
	// Upload 上传文件字节与元数据，返回远端文件句柄。
	Upload(ctx context.Context, fileName string, data []byte, metadata map[string]string) (string, error)
	// Describe 查询远端索引的处理状态。
	Describe(ctx context.Context, fileID string) (*FileInfo, error)
	// Delete 删除远端索引文件。
	Delete(ctx context.Context, fileID string) error
}

type httpClient struct {
	cfg    config.AssistantConfig
	client *http.Client
}

// NewClient 创建一个新的 assistant 客户端实例。
func NewClient(cfg config.AssistantConfig) Client {
	return &httpClient{cfg: cfg, client: &http.Client{}}
}

// Upload 以 multipart 形式上传文件，metadata 作为 JSON 字段附带。
func (c *httpClient) Upload(ctx context.Context, fileName string, data []byte, metadata map[string]string) (string, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("构造 multipart 请求失败: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("写入文件内容失败: %w", err)
	}
	if metadata != nil {
		metaBytes, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("序列化元数据失败: %w", err)
		}
		if err := mw.WriteField("metadata", string(metaBytes)); err != nil {
			return "", fmt.Errorf("写入元数据字段失败: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/files", body)
	if err != nil {
		return "", fmt.Errorf("创建上传请求失败: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[AssistantClient] 上传文件到索引服务失败, error: %v", err)
		return "", fmt.Errorf("failed to call assistant upload api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assistant upload api returned %s: %s", resp.Status, string(bodyBytes))
	}

	var info FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("解析上传响应失败: %w", err)
	}
	if info.ID == "" {
		return "", fmt.Errorf("assistant upload api returned empty file id")
	}
	log.Infof("[AssistantClient] 文件上传成功, fileID: %s", info.ID)
	return info.ID, nil
}

// Describe 查询文件的索引状态。
func (c *httpClient) Describe(ctx context.Context, fileID string) (*FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/files/"+fileID, nil)
	if err != nil {
		return nil, fmt.Errorf("创建查询请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call assistant describe api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("assistant describe api returned %s: %s", resp.Status, string(bodyBytes))
	}

	var info FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("解析查询响应失败: %w", err)
	}
	return &info, nil
}

// Delete 删除远端索引文件；文件不存在视为成功。
func (c *httpClient) Delete(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.cfg.BaseURL+"/files/"+fileID, nil)
	if err != nil {
		return fmt.Errorf("创建删除请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call assistant delete api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assistant delete api returned %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
