package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/faqrag/internal/models"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  index_path: "./idx"
llm:
  provider: mock
embedding:
  provider: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.IndexPath != filepath.Join(dir, "idx") {
		t.Errorf("index_path = %q", cfg.Storage.IndexPath)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "llm:\n  provider: mock\nembedding:\n  provider: mock\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.ChunkSize != 1200 || cfg.Retrieval.ChunkOverlapOrDefault() != 150 {
		t.Errorf("chunking defaults = %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.TopK != 6 {
		t.Errorf("top_k = %d, want 6", cfg.Retrieval.TopK)
	}
	if cfg.LLM.TemperatureOrDefault() != 0.1 {
		t.Errorf("temperature = %v", cfg.LLM.TemperatureOrDefault())
	}
	if cfg.Storage.IndexType != IndexTypeMemory {
		t.Errorf("index_type = %q", cfg.Storage.IndexType)
	}
	if cfg.Storage.KnowledgePath != filepath.Join(dir, "data", "raw_faq.json") {
		t.Errorf("knowledge_path = %q", cfg.Storage.KnowledgePath)
	}
	if !cfg.Watch.ReloadIndexOrDefault() {
		t.Error("reload_index should default to true")
	}
}

func TestLoad_openAIDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Errorf("llm model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.Embedding.APIKey != "sk-test" {
		t.Error("api keys should come from OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_explicitZeroTemperature(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, "llm:\n  provider: mock\n  temperature: 0\n  timeout: 5s\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.TemperatureOrDefault() != 0 {
		t.Errorf("temperature = %v, want 0", cfg.LLM.TemperatureOrDefault())
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.Timeout)
	}
}

func TestLoad_explicitZeroOverlapAndRetries(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, "llm:\n  provider: mock\n  max_retries: 0\nembedding:\n  provider: mock\nretrieval:\n  chunk_overlap: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Retrieval.ChunkOverlapOrDefault(); got != 0 {
		t.Errorf("chunk_overlap = %d, want 0", got)
	}
	if got := cfg.LLM.MaxRetriesOrDefault(); got != 0 {
		t.Errorf("max_retries = %d, want 0", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_maxRetries(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, "llm:\n  provider: mock\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.LLM.MaxRetriesOrDefault(); got != 0 {
		t.Errorf("default max_retries = %d, want 0", got)
	}
	cfg, err = Load(writeConfig(t, dir, "llm:\n  provider: mock\n  max_retries: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.LLM.MaxRetriesOrDefault(); got != 3 {
		t.Errorf("max_retries = %d, want 3", got)
	}
}

func TestLoad_dotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEMINI_API_KEY", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })
	os.Unsetenv("GEMINI_API_KEY")
	cfg, err := Load(writeConfig(t, dir, "llm:\n  provider: gemini\nembedding:\n  provider: mock\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "from-dotenv" {
		t.Errorf("llm api key = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("llm model = %q", cfg.LLM.Model)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("EMBEDDING_PROVIDER", "mock")
	t.Setenv("FAQRAG_INDEX_PATH", "/srv/faq/index")
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, "llm:\n  provider: openai\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "mock" || cfg.Embedding.Provider != "mock" {
		t.Errorf("providers = %q / %q", cfg.LLM.Provider, cfg.Embedding.Provider)
	}
	if cfg.Storage.IndexPath != "/srv/faq/index" {
		t.Errorf("index_path = %q", cfg.Storage.IndexPath)
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeConfig(t, dir, "server: [unclosed"))
	if !errors.Is(err, models.ErrConfig) {
		t.Errorf("Load() error = %v, want ErrConfig", err)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Default(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		cfg.LLM.Provider = ProviderMock
		cfg.Embedding.Provider = ProviderMock
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap exceeds size", func(c *Config) { o := c.Retrieval.ChunkSize; c.Retrieval.ChunkOverlap = &o }},
		{"negative overlap", func(c *Config) { o := -1; c.Retrieval.ChunkOverlap = &o }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"unknown index type", func(c *Config) { c.Storage.IndexType = "faiss" }},
		{"openai without key", func(c *Config) { c.LLM.Provider = ProviderOpenAI; c.LLM.APIKey = "" }},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "yandex" }},
		{"onnx without model", func(c *Config) { c.Embedding.Provider = ProviderONNX; c.Embedding.ModelPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, models.ErrConfig) {
				t.Errorf("Validate() = %v, want ErrConfig", err)
			}
		})
	}
	if err := base().Validate(); err != nil {
		t.Errorf("base config invalid: %v", err)
	}
}

func TestValidateIndexing_ignoresLLM(t *testing.T) {
	cfg, err := Default(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Embedding.Provider = ProviderMock
	cfg.LLM.Provider = ProviderOpenAI
	cfg.LLM.APIKey = ""
	if err := cfg.ValidateIndexing(); err != nil {
		t.Errorf("ValidateIndexing() = %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, models.ErrConfig) {
		t.Errorf("Validate() = %v, want ErrConfig", err)
	}
}

func TestExpandPath(t *testing.T) {
	configDir := "/etc/faqrag"
	if got := expandPath("/abs/path", configDir); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := expandPath("./data/index", configDir); got != filepath.Join(configDir, "data", "index") {
		t.Errorf("dot-slash path = %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandPath("faq/index", configDir); got != filepath.Join(home, "faq", "index") {
		t.Errorf("home-relative path = %q", got)
	}
}
