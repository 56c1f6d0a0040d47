package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"docflow-go/pkg/llm"
	"docflow-go/pkg/log"
)

// Regions 是区域字段允许的取值。
var Regions = []string{
	"north-america", "latin-america", "europe", "asia-pacific",
	"middle-east-africa", "global", "other",
}

// Industries 是行业字段允许的取值。
var Industries = []string{
	"energy", "manufacturing", "healthcare", "finance", "technology",
	"transportation", "agriculture", "construction", "other",
}

// DocTypes 是文档类型字段允许的取值。
var DocTypes = []string{
	"report", "whitepaper", "standard", "patent", "paper",
	"presentation", "manual", "other",
}

// Metadata 是 LLM 抽取并经过校验的结构化元数据。
type Metadata struct {
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	Year      int      `json:"year"`
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	Region    string   `json:"region"`
	Industry  string   `json:"industry"`
	DocType   string   `json:"docType"`
	Authors   []string `json:"authors"`
	Keywords  []string `json:"keywords"`
	TechAreas []string `json:"techAreas"`
}

// MetadataExtractor 将正文前缀送入 LLM，抽取结构化元数据并逐字段校验。
// 校验失败的字段回退为默认值而不是拒绝整条记录。
type MetadataExtractor struct {
	llmClient llm.Client
	textLimit int
	// now 可注入，便于测试年份回退逻辑。
	now func() time.Time
}

// NewMetadataExtractor 创建一个新的 MetadataExtractor 实例。
func NewMetadataExtractor(llmClient llm.Client, textLimit int) *MetadataExtractor {
	if textLimit <= 0 {
		textLimit = 15000
	}
	return &MetadataExtractor{llmClient: llmClient, textLimit: textLimit, now: time.Now}
}

const metadataPrompt = `你是一个文档元数据抽取助手。根据下面的文档内容，输出一个 JSON 对象，不要输出任何其它文字。字段要求：
- "title": 文档标题
- "company": 发布机构或公司名称
- "year": 发布年份（四位数字）
- "topic": 主题（一句话）
- "summary": 摘要（不超过三句话）
- "region": 取值之一 %s
- "industry": 取值之一 %s
- "docType": 取值之一 %s
- "authors": 作者名数组
- "keywords": 关键词数组
- "techAreas": 涉及技术领域数组

文档内容：
%s`

// rawMetadata 容忍 LLM 返回的字段类型偏差（年份可能是字符串）。
type rawMetadata struct {
	Title     string          `json:"title"`
	Company   string          `json:"company"`
	Year      json.RawMessage `json:"year"`
	Topic     string          `json:"topic"`
	Summary   string          `json:"summary"`
	Region    string          `json:"region"`
	Industry  string          `json:"industry"`
	DocType   string          `json:"docType"`
	Authors   []string        `json:"authors"`
	Keywords  []string        `json:"keywords"`
	TechAreas []string        `json:"techAreas"`
}

// Extract 抽取并校验元数据。
func (e *MetadataExtractor) Extract(ctx context.Context, text string) (*Metadata, error) {
	prompt := fmt.Sprintf(metadataPrompt,
		strings.Join(Regions, "|"),
		strings.Join(Industries, "|"),
		strings.Join(DocTypes, "|"),
		truncateRunes(text, e.textLimit),
	)

	reply, err := e.llmClient.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("调用 LLM 抽取元数据失败: %w", err)
	}

	var raw rawMetadata
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return nil, fmt.Errorf("解析 LLM 元数据响应失败: %w", err)
	}

	meta := &Metadata{
		Title:     strings.TrimSpace(raw.Title),
		Company:   strings.TrimSpace(raw.Company),
		Year:      e.normalizeYear(raw.Year),
		Topic:     strings.TrimSpace(raw.Topic),
		Summary:   strings.TrimSpace(raw.Summary),
		Region:    normalizeEnum(raw.Region, Regions),
		Industry:  normalizeEnum(raw.Industry, Industries),
		DocType:   normalizeEnum(raw.DocType, DocTypes),
		Authors:   cleanList(raw.Authors),
		Keywords:  cleanList(raw.Keywords),
		TechAreas: cleanList(raw.TechAreas),
	}
	log.Infof("[MetadataExtractor] 元数据抽取成功, title: %q, year: %d, docType: %s", meta.Title, meta.Year, meta.DocType)
	return meta, nil
}

// normalizeYear 将年份约束到 [1900, 2100]，越界或无法解析时回退为当前年份。
func (e *MetadataExtractor) normalizeYear(raw json.RawMessage) int {
	fallback := e.now().Year()
	if len(raw) == 0 {
		return fallback
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 2100 {
		return fallback
	}
	return year
}

// normalizeEnum 对闭合枚举做大小写不敏感匹配，未命中时回退为 "other"。
func normalizeEnum(value string, allowed []string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return a
		}
	}
	return "other"
}

// stripCodeFence 去掉 LLM 偶尔包裹在响应外层的 markdown 代码块。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// truncateRunes 按字符数截断文本前缀，避免把超长文档整篇送入模型。
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
