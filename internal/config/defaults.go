package config

import (
	"runtime"
	"time"
)

// DefaultMaxLoadedWorkspaces is the residency cap used when max_loaded_workspaces is unset.
const DefaultMaxLoadedWorkspaces = 256

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DataRoot == "" {
		cfg.Storage.DataRoot = "/usr/local/var/tana/data"
	}
	if cfg.Storage.IndexType == "" {
		cfg.Storage.IndexType = "memory"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "fastembed"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/tana/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.CacheDir == "" {
		cfg.Embedding.CacheDir = "/usr/local/var/tana/models/cache"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Workers.PoolSize == 0 {
		cfg.Workers.PoolSize = runtime.NumCPU()
	}
}
