package embedding

import (
	"fmt"
	"path/filepath"

	"github.com/hyperjump/seiri/internal/config"
	"go.uber.org/zap"
)

const (
	ProviderONNX   = "onnx"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// NewFromConfig builds the configured provider. A missing ONNX runtime, model or
// vocabulary is returned as an error; the mock embedder is only used when selected.
func NewFromConfig(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case ProviderONNX, "":
		vocabPath := cfg.VocabPath
		if vocabPath == "" {
			vocabPath = filepath.Join(filepath.Dir(cfg.ModelPath), "vocab.txt")
		}
		onnxEmbedder, err := NewONNXEmbedder(cfg.ModelPath, vocabPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			logger.Error("onnx embedder unavailable",
				zap.String("model_path", cfg.ModelPath),
				zap.String("vocab_path", vocabPath),
				zap.Error(err))
			return nil, fmt.Errorf("onnx embedder: %w", err)
		}
		logger.Info("onnx embedder loaded", zap.String("model", onnxEmbedder.Model()), zap.Int("dimensions", cfg.Dimensions))
		return onnxEmbedder, nil
	case ProviderOllama:
		ollama := NewOllamaEmbedder(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		logger.Info("ollama embedder configured", zap.String("url", cfg.OllamaURL), zap.String("model", ollama.Model()))
		return NewCachedEmbedder(ollama, cfg.CacheSize), nil
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, ollama, mock)", cfg.Provider)
	}
}
