// Package config provides configuration loading and structs for the faqrag pipeline and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/faqrag/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the knowledge source, the persisted index, and the dialog log.
type StorageConfig struct {
	KnowledgePath string `yaml:"knowledge_path"`
	IndexPath     string `yaml:"index_path"`
	IndexType     string `yaml:"index_type"`
	DialogDBPath  string `yaml:"dialog_db_path"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Dimensions        int           `yaml:"dimensions"`
	BatchSize         int           `yaml:"batch_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheSize         int           `yaml:"cache_size"`
	Timeout           time.Duration `yaml:"timeout"`
	ModelPath         string        `yaml:"model_path"`
	VocabPath         string        `yaml:"vocab_path"`
	Lowercase         *bool         `yaml:"lowercase"`
	MaxTokens         int           `yaml:"max_tokens"`
}

// LowercaseOrDefault reports whether the onnx tokenizer lowercases input; defaults to true.
func (e *EmbeddingConfig) LowercaseOrDefault() bool {
	if e.Lowercase != nil {
		return *e.Lowercase
	}
	return true
}

// LLMConfig selects and tunes the language-model provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  *int          `yaml:"max_retries"`
}

// MaxRetriesOrDefault returns how often the provider SDK retries a failed call; defaults to 0.
func (l *LLMConfig) MaxRetriesOrDefault() int {
	if l.MaxRetries != nil {
		return *l.MaxRetries
	}
	return 0
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.1 when unset.
func (l *LLMConfig) TemperatureOrDefault() float64 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return DefaultTemperature
}

// RetrievalConfig holds chunking and retrieval settings.
type RetrievalConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
	TopK         int  `yaml:"top_k"`
}

// ChunkOverlapOrDefault returns the chunk overlap; defaults to 150 when unset. Zero is allowed.
func (r *RetrievalConfig) ChunkOverlapOrDefault() int {
	if r.ChunkOverlap != nil {
		return *r.ChunkOverlap
	}
	return DefaultChunkOverlap
}

// WatchConfig controls reloading the served index when a new one is persisted.
type WatchConfig struct {
	ReloadIndex *bool `yaml:"reload_index"`
}

// ReloadIndexOrDefault returns whether to hot-reload the index; defaults to true when unset.
func (w *WatchConfig) ReloadIndexOrDefault() bool {
	if w.ReloadIndex != nil {
		return *w.ReloadIndex
	}
	return true
}

// Load reads and parses the config file at path, loads .env files, applies defaults
// and environment overrides, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", models.ErrConfig, err)
	}

	configDir := filepath.Dir(path)
	if err := finish(&cfg, configDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config built purely from defaults and the environment, with relative
// paths resolved against dir.
func Default(dir string) (*Config, error) {
	var cfg Config
	if err := finish(&cfg, dir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	if err := loadDotEnv(configDir); err != nil {
		return err
	}
	ApplyDefaults(cfg)
	applyEnv(cfg)

	cfg.Storage.KnowledgePath = expandPath(cfg.Storage.KnowledgePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.DialogDBPath = expandPath(cfg.Storage.DialogDBPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}
	return nil
}

// loadDotEnv loads .env from the config directory. Variables already set in the
// environment win.
func loadDotEnv(configDir string) error {
	path := filepath.Join(configDir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: failed to load %s: %w", models.ErrConfig, path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("FAQRAG_INDEX_PATH"); v != "" {
		cfg.Storage.IndexPath = v
	}
	if v := os.Getenv("FAQRAG_KNOWLEDGE_PATH"); v != "" {
		cfg.Storage.KnowledgePath = v
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKeyFromEnv(cfg.LLM.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = apiKeyFromEnv(cfg.Embedding.Provider)
	}
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Validate checks settings that cannot be defaulted. Errors wrap models.ErrConfig.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateIndexing is Validate without the language-model settings, for commands that
// only build or search the index.
func (c *Config) ValidateIndexing() error {
	return c.validate(false)
}

func (c *Config) validate(withLLM bool) error {
	var problems []string
	r := c.Retrieval
	overlap := r.ChunkOverlapOrDefault()
	if overlap < 0 {
		problems = append(problems, "retrieval.chunk_overlap must not be negative")
	}
	if r.ChunkSize <= overlap {
		problems = append(problems, fmt.Sprintf("retrieval.chunk_size (%d) must exceed chunk_overlap (%d)", r.ChunkSize, overlap))
	}
	if r.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}
	if c.Storage.IndexType != IndexTypeMemory && c.Storage.IndexType != IndexTypeSQLite {
		problems = append(problems, fmt.Sprintf("storage.index_type %q is not supported", c.Storage.IndexType))
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderGemini:
		if c.Embedding.APIKey == "" {
			problems = append(problems, fmt.Sprintf("embedding.api_key is required for provider %q", c.Embedding.Provider))
		}
	case ProviderONNX:
		if c.Embedding.ModelPath == "" {
			problems = append(problems, "embedding.model_path is required for provider \"onnx\"")
		}
	case ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	if withLLM {
		switch c.LLM.Provider {
		case ProviderOpenAI, ProviderGemini:
			if c.LLM.APIKey == "" {
				problems = append(problems, fmt.Sprintf("llm.api_key is required for provider %q", c.LLM.Provider))
			}
		case ProviderMock:
		default:
			problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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
