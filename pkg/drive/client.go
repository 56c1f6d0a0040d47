// Package drive 提供 Google Drive 同步来源的只读客户端。
package drive

import (
	"context"
	"fmt"
	"io"

	googledrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"docflow-go/internal/config"
)

// Client 封装 Drive 文件的按 ID 下载能力。
type Client struct {
	svc *googledrive.Service
}

// NewClient 使用服务账号凭证创建只读 Drive 客户端。
func NewClient(ctx context.Context, cfg config.DriveConfig) (*Client, error) {
	svc, err := googledrive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(googledrive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化 Drive 客户端失败: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Download 按文件 ID 下载文件内容，同时返回文件名。
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	meta, err := c.svc.Files.Get(fileID).Fields("name").Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("读取 Drive 文件元信息失败 (fileID=%s): %w", fileID, err)
	}

	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, "", fmt.Errorf("下载 Drive 文件失败 (fileID=%s): %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("读取 Drive 文件内容失败 (fileID=%s): %w", fileID, err)
	}
	return data, meta.Name, nil
}
