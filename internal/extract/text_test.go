package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-go/pkg/tika"
)

func newTikaStub(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(response))
	}))
}

func TestTextExtractTagsPages(t *testing.T) {
	// Tika 的 text/plain 输出以换页符分隔 PDF 页
	srv := newTikaStub(t, "第一页内容\f第二页内容\f第三页内容\f\n")
	defer srv.Close()

	e := NewTextExtractor(tika.NewClient(srv.URL))
	result, err := e.Extract(context.Background(), []byte("%PDF-fake"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.PageCount)
	assert.Contains(t, result.Text, "[Page 1]\n第一页内容")
	assert.Contains(t, result.Text, "[Page 2]\n第二页内容")
	assert.Contains(t, result.Text, "[Page 3]\n第三页内容")
}

func TestTextExtractSkipsEmptyPages(t *testing.T) {
	srv := newTikaStub(t, "第一页\f   \f第三页")
	defer srv.Close()

	e := NewTextExtractor(tika.NewClient(srv.URL))
	result, err := e.Extract(context.Background(), []byte("%PDF-fake"))
	require.NoError(t, err)

	// 空白页被跳过，但页码保持原始位置
	assert.NotContains(t, result.Text, "[Page 2]")
	assert.Contains(t, result.Text, "[Page 3]\n第三页")
	assert.Equal(t, 3, result.PageCount)
}

func TestTextExtractAllEmptyFails(t *testing.T) {
	srv := newTikaStub(t, "   \f  \f \n")
	defer srv.Close()

	e := NewTextExtractor(tika.NewClient(srv.URL))
	_, err := e.Extract(context.Background(), []byte("%PDF-fake"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestTextExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unprocessable", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	e := NewTextExtractor(tika.NewClient(srv.URL))
	_, err := e.Extract(context.Background(), []byte("%PDF-fake"))
	assert.Error(t, err)
}
