package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-go/internal/config"
)

func newEmbeddingStub(t *testing.T, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*batchSizes = append(*batchSizes, len(req.Input))

		resp := map[string]interface{}{"data": []map[string]interface{}{}}
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{"embedding": []float32{float32(i), 1.0}}
		}
		resp["data"] = data
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestCreateEmbeddingsBatching(t *testing.T) {
	var batchSizes []int
	srv := newEmbeddingStub(t, &batchSizes)
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, Model: "m", BatchSize: 3})
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d", i)
	}

	vectors, err := client.CreateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 7)
	// 7 条输入按批大小 3 拆成 3+3+1
	assert.Equal(t, []int{3, 3, 1}, batchSizes)
}

func TestCreateEmbeddingsEmptyInput(t *testing.T) {
	client := NewClient(config.EmbeddingConfig{BaseURL: "http://unused", BatchSize: 3})
	vectors, err := client.CreateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestCreateEmbeddingsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 返回的向量数量与输入不一致
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{0.1}}},
		})
	}))
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, BatchSize: 10})
	_, err := client.CreateEmbeddings(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestCreateEmbeddingsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{BaseURL: srv.URL})
	_, err := client.CreateEmbeddings(context.Background(), []string{"a"})
	assert.Error(t, err)
}
