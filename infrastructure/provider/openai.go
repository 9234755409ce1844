// Package provider implements the embedding client over the OpenAI API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/twodHQ/rephole/domain/search"
)

// MaxInputChars is the per-text character cap sent to the embedding API.
// Longer inputs are truncated with a warning.
const MaxInputChars = 32000

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Config holds the embedding client settings.
type Config struct {
	APIKey         string
	OrganizationID string
	ProjectID      string
	Model          string
	BaseURL        string
	Timeout        time.Duration
	// CacheDir enables on-disk response caching when non-empty. Used by
	// tests and local re-ingestion runs.
	CacheDir string
}

// OpenAIEmbedder implements search.Embedder with a single CreateEmbeddings
// call per batch. Retries are owned by the job layer, not here.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIEmbedder builds the client. Organization and project IDs are
// attached as request headers when set.
func NewOpenAIEmbedder(cfg Config, logger *slog.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.OrganizationID != "" {
		clientCfg.OrgID = cfg.OrganizationID
	}

	var transport http.RoundTripper
	if cfg.ProjectID != "" {
		transport = NewHeaderTransport(map[string]string{"OpenAI-Project": cfg.ProjectID}, transport)
	}
	if cfg.CacheDir != "" {
		transport = NewCachingTransport(cfg.CacheDir, transport)
	}

	httpClient := &http.Client{Transport: transport}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	clientCfg.HTTPClient = httpClient

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Embed sanitizes inputs and requests embeddings in one API call. Output
// vectors correspond to the non-empty sanitized inputs, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make([]string, 0, len(texts))
	for i, text := range texts {
		sanitized, truncated := sanitizeInput(text)
		if sanitized == "" {
			continue
		}
		if truncated {
			e.logger.Warn("embedding input truncated",
				slog.Int("index", i),
				slog.Int("limit", MaxInputChars),
			)
		}
		inputs = append(inputs, sanitized)
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: inputs,
	})
	if err != nil {
		return nil, wrapAPIError("embedding", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, NewProviderError("embedding", 0,
			fmt.Sprintf("got %d vectors for %d inputs", len(resp.Data), len(inputs)), nil)
	}

	vectors := make([][]float32, len(resp.Data))
	dim := -1
	for i, data := range resp.Data {
		if dim == -1 {
			dim = len(data.Embedding)
		} else if len(data.Embedding) != dim {
			return nil, NewProviderError("embedding", 0,
				fmt.Sprintf("inconsistent vector dimensions: %d vs %d", dim, len(data.Embedding)), nil)
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

// sanitizeInput trims, flattens newlines, and truncates overlong inputs.
func sanitizeInput(text string) (sanitized string, truncated bool) {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.TrimSpace(text)

	if len(text) > MaxInputChars {
		runes := []rune(text)
		if len(runes) > MaxInputChars {
			text = string(runes[:MaxInputChars])
		}
		return text, true
	}
	return text, false
}

// wrapAPIError converts library errors into ProviderError, preserving the
// HTTP status so callers can classify the failure.
func wrapAPIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(op, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(op, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(op, 0, err.Error(), err)
}

var _ search.Embedder = (*OpenAIEmbedder)(nil)
