// Package config provides configuration loading and structs for movierec.
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
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Provider   ProviderConfig   `yaml:"provider"`
	Generation GenerationConfig `yaml:"generation"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the record store settings. Driver is "sqlite3" (mattn, CGO)
// or "sqlite" (modernc, pure Go).
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
}

// ProviderConfig holds embedding provider settings. Type is "openai", "onnx" or "mock".
type ProviderConfig struct {
	Type           string        `yaml:"type"`
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key,omitempty"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Model          string        `yaml:"model"`
	Dimensions     int           `yaml:"dimensions"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	CacheSize      int           `yaml:"cache_size"`
	ModelPath      string        `yaml:"model_path"`
	MaxTokens      int           `yaml:"max_tokens"`
}

// GenerationConfig holds batch embedding generation settings.
type GenerationConfig struct {
	Workers   int   `yaml:"workers"`
	SkipEmpty *bool `yaml:"skip_empty"`
}

// SkipEmptyOrDefault returns whether blank descriptions are skipped; defaults to true when unset.
func (g *GenerationConfig) SkipEmptyOrDefault() bool {
	if g.SkipEmpty != nil {
		return *g.SkipEmpty
	}
	return true
}

// RecommendConfig holds query settings.
type RecommendConfig struct {
	TopK int `yaml:"top_k"`
}

// CatalogConfig lists catalog files imported at server start and optionally watched.
type CatalogConfig struct {
	Files []string `yaml:"files"`
	Watch bool     `yaml:"watch"`
}

// EnvOpenAIKey is the last fallback consulted by ResolveAPIKey.
const EnvOpenAIKey = "OPENAI_API_KEY"

// ResolveAPIKey returns the provider credential. Order: api_key in the config file,
// then the variable named by api_key_env, then OPENAI_API_KEY.
func (p *ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		if v := strings.TrimSpace(os.Getenv(p.APIKeyEnv)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(os.Getenv(EnvOpenAIKey))
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Provider.ModelPath = expandPath(cfg.Provider.ModelPath, configDir)
	for i := range cfg.Catalog.Files {
		cfg.Catalog.Files[i] = expandPath(cfg.Catalog.Files[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would make the services misbehave.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("invalid storage.driver %q (supported: sqlite3, sqlite)", c.Storage.Driver)
	}
	switch c.Provider.Type {
	case "openai", "onnx", "mock":
	default:
		return fmt.Errorf("invalid provider.type %q (supported: openai, onnx, mock)", c.Provider.Type)
	}
	if c.Provider.Dimensions <= 0 {
		return fmt.Errorf("provider.dimensions must be positive")
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must not be negative")
	}
	if c.Generation.Workers <= 0 {
		return fmt.Errorf("generation.workers must be positive")
	}
	if c.Recommend.TopK <= 0 {
		return fmt.Errorf("recommend.top_k must be positive")
	}
	return nil
}

// Save writes the config to path. The API key is never written back.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Provider.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
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
