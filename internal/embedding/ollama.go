package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string
	// Model is the embedding model to use (default: all-minilm).
	Model string
	// Dimensions is the expected vector size; 0 means take it from the first response.
	Dimensions int
	// Timeout is the HTTP request timeout (default: 60s).
	Timeout time.Duration
}

// OllamaEmbedder calls Ollama's batch embeddings endpoint.
type OllamaEmbedder struct {
	client *resty.Client
	model  string

	mu         sync.RWMutex
	dimensions int
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an Ollama embedder. No request is made until the first Embed call.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return &OllamaEmbedder{client: c, model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed returns the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request and returns the vectors in input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	var out ollamaEmbedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(&ollamaEmbedRequest{Model: e.model, Input: texts}).
		SetResult(&out).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	dims := e.learnDimensions(len(out.Embeddings[0]))
	for i, v := range out.Embeddings {
		if len(v) != dims {
			return nil, fmt.Errorf("ollama embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}
	}
	return out.Embeddings, nil
}

// learnDimensions records n as the embedding size if none is known yet and
// returns the size in effect.
func (e *OllamaEmbedder) learnDimensions(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
	}
	return e.dimensions
}

// Dimensions returns the embedding size (0 until known).
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Model returns the model name.
func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Close is a no-op; the HTTP client holds no resources that need release.
func (e *OllamaEmbedder) Close() error {
	return nil
}
