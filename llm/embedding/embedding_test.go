package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentswarm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		// 逆序返回，验证按 index 重排
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float64{float64(len(req.Input[i])), 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  data,
			"model": req.Model,
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
}

func TestOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{})
	assert.Equal(t, "openai-embedding", p.Name())
	assert.Equal(t, "text-embedding-3-small", p.Model())
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, 2048, p.MaxBatchSize())
}

func TestOpenAIProvider_EmbedDocuments_Ordered(t *testing.T) {
	calls := 0
	server := newEmbeddingServer(t, &calls)
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "k", Dimensions: 2})
	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float64{1, 1}, vecs[0])
	assert.Equal(t, []float64{3, 1}, vecs[1])
	assert.Equal(t, []float64{2, 1}, vecs[2])
	assert.Equal(t, 1, calls)
}

func TestOpenAIProvider_EmbedDocuments_Batches(t *testing.T) {
	calls := 0
	server := newEmbeddingServer(t, &calls)
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	p.maxBatch = 2

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, 3, calls)
}

func TestOpenAIProvider_EmbedQuery(t *testing.T) {
	calls := 0
	server := newEmbeddingServer(t, &calls)
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	vec, err := p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1}, vec)
}

func TestOpenAIProvider_ErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := p.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestOpenAIProvider_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[],"model":"m"}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := p.EmbedDocuments(context.Background(), []string{"a"})
	assert.Error(t, err)
}
