package model

// EsChunk 定义了存储在 Elasticsearch 分块索引中的文档结构。
type EsChunk struct {
	ChunkID      string    `json:"chunk_id"` // 唯一标识，fileHash + seq
	FileHash     string    `json:"file_hash"`
	Page         int       `json:"page"` // 分块起始页码，用于引用定位
	Seq          int       `json:"seq"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// SearchHit 定义了返回给前端的分块搜索结果结构。
type SearchHit struct {
	FileHash    string  `json:"fileHash"`
	FileName    string  `json:"fileName"`
	Title       string  `json:"title"`
	Page        int     `json:"page"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}
