// Package config provides configuration loading and structs for the tana server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Workers   WorkersConfig   `yaml:"workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the data root and per-workspace index settings.
type StorageConfig struct {
	DataRoot string `yaml:"data_root"`
	// IndexType selects the vector index backend: "memory" or "faiss".
	IndexType string `yaml:"index_type"`
	// MaxLoadedWorkspaces caps resident workspaces; 0 disables eviction.
	MaxLoadedWorkspaces *int `yaml:"max_loaded_workspaces"`
}

// MaxLoaded returns the workspace residency cap; defaults to 256 when unset.
func (s *StorageConfig) MaxLoaded() int {
	if s.MaxLoadedWorkspaces != nil {
		return *s.MaxLoadedWorkspaces
	}
	return DefaultMaxLoadedWorkspaces
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is one of "fastembed", "onnx" or "hash".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	ModelPath string `yaml:"model_path"`
	// TokenizerPath defaults to tokenizer.json beside ModelPath.
	TokenizerPath string `yaml:"tokenizer_path"`
	CacheDir      string `yaml:"cache_dir"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `yaml:"library_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
	EagerLoad   bool   `yaml:"eager_load"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	// MaxK caps k per search; 0 means k is only limited by the workspace size.
	MaxK int `yaml:"max_k"`
}

// WorkersConfig sizes the bounded pool used for embedding and index search.
type WorkersConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read, parsed, or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataRoot = expandPath(cfg.Storage.DataRoot, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.CacheDir = expandPath(cfg.Embedding.CacheDir, configDir)
	if cfg.Embedding.TokenizerPath == "" {
		cfg.Embedding.TokenizerPath = filepath.Join(filepath.Dir(cfg.Embedding.ModelPath), "tokenizer.json")
	} else {
		cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	switch c.Storage.IndexType {
	case "memory", "faiss":
	default:
		return fmt.Errorf("invalid config: unknown index_type %q (supported: memory, faiss)", c.Storage.IndexType)
	}
	switch c.Embedding.Provider {
	case "fastembed", "onnx", "hash":
	default:
		return fmt.Errorf("invalid config: unknown embedding provider %q (supported: fastembed, onnx, hash)", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("invalid config: embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Storage.MaxLoaded() < 0 {
		return fmt.Errorf("invalid config: max_loaded_workspaces must not be negative")
	}
	if c.Search.MaxK < 0 {
		return fmt.Errorf("invalid config: max_k must not be negative, got %d", c.Search.MaxK)
	}
	if c.Search.MaxK > 0 && c.Search.MaxK < c.Search.DefaultK {
		return fmt.Errorf("invalid config: max_k (%d) is below default_k (%d)", c.Search.MaxK, c.Search.DefaultK)
	}
	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("invalid config: workers pool_size must be positive, got %d", c.Workers.PoolSize)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
