package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/seiri/data/db/datasets.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/seiri/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Refine.DefaultThreshold == 0 {
		cfg.Refine.DefaultThreshold = 0.75
	}
	if cfg.Refine.Strategy == "" {
		cfg.Refine.Strategy = "greedy"
	}
	if cfg.Refine.Placeholder == "" {
		cfg.Refine.Placeholder = "Unspecified"
	}
	if cfg.Refine.PreviewRows == 0 {
		cfg.Refine.PreviewRows = 50
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".xlsx", ".ods", ".csv"}
	}
	// The watcher falls back to the refine default when no watch threshold is set.
	if cfg.Watch.Threshold == 0 {
		cfg.Watch.Threshold = cfg.Refine.DefaultThreshold
	}
}
