// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"docflow-go/internal/model"
	"docflow-go/internal/repository"
	"docflow-go/pkg/embedding"
	"docflow-go/pkg/es"
	"docflow-go/pkg/log"
)

// SearchService 接口定义了搜索操作。
type SearchService interface {
	HybridSearch(ctx context.Context, query string, topK int) ([]model.SearchHit, error)
}

type searchService struct {
	embeddingClient embedding.Client
	esClient        *es.Client
	docRepo         repository.DocumentRepository
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, esClient *es.Client, docRepo repository.DocumentRepository) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		docRepo:         docRepo,
	}
}

// HybridSearch 执行 kNN + BM25 的混合搜索，只返回已审核文档的分块。
func (s *searchService) HybridSearch(ctx context.Context, query string, topK int) ([]model.SearchHit, error) {
	if topK <= 0 || topK > 50 {
		topK = 10
	}
	log.Infof("[SearchService] 开始执行混合搜索, query: '%s', topK: %d", query, topK)

	// 1. 向量化查询
	log.Info("[SearchService] 步骤1: 开始向量化查询")
	vectors, err := s.embeddingClient.CreateEmbeddings(ctx, []string{query})
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	queryVector := vectors[0]
	log.Infof("[SearchService] 步骤1: 向量化查询成功, 向量维度: %d", len(queryVector))

	// 2. 构建混合搜索查询：kNN 召回 + BM25 重排
	// 审核过滤在 ES 之外完成，召回窗口放大以补偿被过滤的结果
	recallK := topK * 3
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              recallK,
			"num_candidates": recallK * 10,
		},
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"text_content": query,
			},
		},
		"rescore": map[string]interface{}{
			"window_size": recallK,
			"query": map[string]interface{}{
				"rescore_query": map[string]interface{}{
					"match": map[string]interface{}{
						"text_content": map[string]interface{}{
							"query": query,
						},
					},
				},
				"query_weight":         0.2,
				"rescore_query_weight": 1.0,
			},
		},
		"size": recallK,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	// 3. 执行搜索
	log.Info("[SearchService] 步骤2: 开始向 Elasticsearch 发送搜索请求")
	client := s.esClient.ES()
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(s.esClient.IndexName()),
		client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	// 4. 解析结果
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	if len(esResponse.Hits.Hits) == 0 {
		log.Info("[SearchService] Elasticsearch 返回 0 条命中结果")
		return []model.SearchHit{}, nil
	}

	// 5. 批量回填文档信息，并过滤未审核的文档
	log.Infof("[SearchService] 步骤3: 回填文档信息, 命中分块数: %d", len(esResponse.Hits.Hits))
	seen := make(map[string]struct{})
	hashes := make([]string, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		if _, ok := seen[hit.Source.FileHash]; ok {
			continue
		}
		seen[hit.Source.FileHash] = struct{}{}
		hashes = append(hashes, hit.Source.FileHash)
	}
	docs, err := s.docRepo.FindByFileHashes(hashes)
	if err != nil {
		return nil, fmt.Errorf("批量查询文档信息失败: %w", err)
	}
	docMap := make(map[string]*model.Document, len(docs))
	for i := range docs {
		docMap[docs[i].FileHash] = &docs[i]
	}

	results := make([]model.SearchHit, 0, topK)
	for _, hit := range esResponse.Hits.Hits {
		doc, ok := docMap[hit.Source.FileHash]
		if !ok || !doc.Approved {
			continue
		}
		results = append(results, model.SearchHit{
			FileHash:    hit.Source.FileHash,
			FileName:    doc.FileName,
			Title:       doc.Title,
			Page:        hit.Source.Page,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
		})
		if len(results) >= topK {
			break
		}
	}

	log.Infof("[SearchService] 混合搜索执行完毕, query: '%s', 返回 %d 条结果", query, len(results))
	return results, nil
}
