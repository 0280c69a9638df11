package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  driver: sqlite
  database_path: "./data/movies.db"
provider:
  type: mock
  dimensions: 8
  request_timeout: 5s
  max_retries: 2
generation:
  workers: 2
  skip_empty: false
catalog:
  files: ["./movies.xlsx"]
  watch: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if want := filepath.Join(dir, "data", "movies.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if cfg.Provider.Type != "mock" || cfg.Provider.Dimensions != 8 {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.RequestTimeout != 5*time.Second || cfg.Provider.MaxRetries != 2 {
		t.Errorf("timeout=%v retries=%d", cfg.Provider.RequestTimeout, cfg.Provider.MaxRetries)
	}
	if cfg.Generation.Workers != 2 || cfg.Generation.SkipEmptyOrDefault() {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if cfg.Recommend.TopK != 3 {
		t.Errorf("top_k default = %d, want 3", cfg.Recommend.TopK)
	}
	if len(cfg.Catalog.Files) != 1 || cfg.Catalog.Files[0] != filepath.Join(dir, "movies.xlsx") || !cfg.Catalog.Watch {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed", "server: [", "failed to parse config"},
		{"bad driver", "storage:\n  driver: postgres\n", "storage.driver"},
		{"bad provider", "provider:\n  type: cohere\n", "provider.type"},
		{"negative dimensions", "provider:\n  dimensions: -1\n", "provider.dimensions"},
		{"negative retries", "provider:\n  max_retries: -1\n", "provider.max_retries"},
		{"negative workers", "generation:\n  workers: -2\n", "generation.workers"},
		{"negative top_k", "recommend:\n  top_k: -1\n", "recommend.top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Provider.Type != "openai" || cfg.Provider.Model != "text-embedding-3-small" || cfg.Provider.Dimensions != 1536 {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.MaxRetries != 0 {
		t.Errorf("max_retries default = %d, want 0", cfg.Provider.MaxRetries)
	}
	if !cfg.Generation.SkipEmptyOrDefault() || cfg.Generation.Workers != 4 {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		fileKey   string
		customEnv string
		openAIEnv string
		want      string
	}{
		{"file wins", "from-file", "from-custom", "from-openai", "from-file"},
		{"custom env second", "", "from-custom", "from-openai", "from-custom"},
		{"openai env last", "", "", "from-openai", "from-openai"},
		{"none", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MOVIEREC_TEST_KEY", tt.customEnv)
			t.Setenv(EnvOpenAIKey, tt.openAIEnv)
			p := ProviderConfig{APIKey: tt.fileKey, APIKeyEnv: "MOVIEREC_TEST_KEY"}
			if got := p.ResolveAPIKey(); got != tt.want {
				t.Errorf("ResolveAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSave_OmitsAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Provider.APIKey = "sk-secret"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("saved config must not contain the api key")
	}
	if cfg.Provider.APIKey != "sk-secret" {
		t.Error("Save must not modify the caller's config")
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Provider.Model != cfg.Provider.Model || loaded.Server.Port != cfg.Server.Port {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		path, want string
	}{
		{"", ""},
		{"/abs/movies.db", "/abs/movies.db"},
		{"./movies.db", "/etc/movierec/movies.db"},
		{"data/movies.db", filepath.Join(home, "data/movies.db")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.path, "/etc/movierec"); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
