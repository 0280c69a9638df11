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
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/movierec/data/movies.db"
	}
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "openai"
	}
	if cfg.Provider.Endpoint == "" {
		cfg.Provider.Endpoint = "https://api.openai.com"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "MOVIEREC_API_KEY"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "text-embedding-3-small"
	}
	if cfg.Provider.Dimensions == 0 {
		cfg.Provider.Dimensions = 1536
	}
	if cfg.Provider.RequestTimeout == 0 {
		cfg.Provider.RequestTimeout = 30 * time.Second
	}
	if cfg.Provider.RetryBackoff == 0 {
		cfg.Provider.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Provider.CacheSize == 0 {
		cfg.Provider.CacheSize = 1000
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = 256
	}
	if cfg.Generation.Workers == 0 {
		cfg.Generation.Workers = 4
	}
	if cfg.Recommend.TopK == 0 {
		cfg.Recommend.TopK = 3
	}
}
