// Package digest 提供基于文件内容的指纹计算，用于重复文件检测。
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum 计算原始字节的 SHA-256 十六进制摘要。
// 结果只取决于字节内容，与文件名、来源无关。
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
