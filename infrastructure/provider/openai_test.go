package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      string
		truncated bool
	}{
		{"plain", "hello", "hello", false},
		{"trims", "  hello  ", "hello", false},
		{"newlines to spaces", "a\nb\r\nc", "a b c", false},
		{"whitespace only", " \n\t ", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := sanitizeInput(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestSanitizeInput_Truncates(t *testing.T) {
	long := strings.Repeat("x", MaxInputChars+500)

	got, truncated := sanitizeInput(long)

	assert.True(t, truncated)
	assert.Len(t, got, MaxInputChars)
}

func newEmbeddingTestServer(t *testing.T, count *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)

		var req openai.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		inputs, ok := req.Input.([]any)
		require.True(t, ok, "input should decode as array")

		data := make([]openai.Embedding, len(inputs))
		for i := range inputs {
			data[i] = openai.Embedding{
				Index:     i,
				Embedding: []float32{0.1, 0.2, 0.3},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Data:  data,
			Model: "text-embedding-3-small",
			Usage: openai.Usage{PromptTokens: 10, TotalTokens: 10},
		})
	}))
}

func TestEmbed_OrderPreservingVectors(t *testing.T) {
	var count atomic.Int32
	srv := newEmbeddingTestServer(t, &count)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
	}, nil)

	vectors, err := e.Embed(t.Context(), []string{"first text", "second text"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.EqualValues(t, 1, count.Load())
}

func TestEmbed_DropsEmptyInputs(t *testing.T) {
	var count atomic.Int32
	srv := newEmbeddingTestServer(t, &count)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)

	vectors, err := e.Embed(t.Context(), []string{"real", "  \n ", ""})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
}

func TestEmbed_AllEmptySkipsAPICall(t *testing.T) {
	var count atomic.Int32
	srv := newEmbeddingTestServer(t, &count)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)

	vectors, err := e.Embed(t.Context(), []string{"", "   "})
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.EqualValues(t, 0, count.Load())
}

func TestEmbed_APIErrorWrapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)

	_, err := e.Embed(t.Context(), []string{"text"})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "embedding", provErr.Op)
}

func TestEmbed_CachedResponsesReplay(t *testing.T) {
	var count atomic.Int32
	srv := newEmbeddingTestServer(t, &count)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{
		APIKey:   "k",
		BaseURL:  srv.URL + "/v1",
		CacheDir: t.TempDir(),
	}, nil)

	texts := []string{"hello world", "foo bar"}

	_, err := e.Embed(t.Context(), texts)
	require.NoError(t, err)
	_, err = e.Embed(t.Context(), texts)
	require.NoError(t, err)

	assert.EqualValues(t, 1, count.Load())
}
