// Package tika 提供了一个与 Apache Tika 服务器交互的客户端。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(serverURL string) *Client {
	return &Client{serverURL: serverURL, client: &http.Client{}}
}

// ExtractPages 调用 Tika 提取 PDF 的纯文本，并按页拆分返回。
// Tika 的 text/plain 输出以换页符 (\f) 作为 PDF 页分隔符。
func (c *Client) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建 Tika 请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, fmt.Errorf("读取 Tika 响应失败: %w", err)
	}

	// 去掉末尾的分隔符后再拆页，避免出现一个空的尾页
	text := strings.TrimRight(buf.String(), "\f\n ")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\f"), nil
}
