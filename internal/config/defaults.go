package config

import "time"

// Provider names accepted by embedding.provider and llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// Index persistence backends accepted by storage.index_type.
const (
	IndexTypeMemory = "memory"
	IndexTypeSQLite = "sqlite"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 150
	DefaultTopK         = 6
	DefaultTemperature  = 0.1
	DefaultLLMModel     = "gpt-4.1-mini"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxConcurrent == 0 {
		cfg.Server.MaxConcurrent = 16
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90 * time.Second
	}
	if cfg.Storage.KnowledgePath == "" {
		cfg.Storage.KnowledgePath = "./data/raw_faq.json"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./data/index"
	}
	if cfg.Storage.IndexType == "" {
		cfg.Storage.IndexType = IndexTypeMemory
	}
	if cfg.Storage.DialogDBPath == "" {
		cfg.Storage.DialogDBPath = "./data/dialogs.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case ProviderGemini:
			cfg.Embedding.Model = "text-embedding-004"
		case ProviderONNX:
			cfg.Embedding.Model = "all-MiniLM-L6-v2"
		case ProviderMock:
			cfg.Embedding.Model = "mock"
		default:
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case ProviderGemini:
			cfg.Embedding.Dimensions = 768
		case ProviderONNX, ProviderMock:
			cfg.Embedding.Dimensions = 384
		default:
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 5
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case ProviderGemini:
			cfg.LLM.Model = "gemini-1.5-flash"
		case ProviderMock:
			cfg.LLM.Model = "mock"
		default:
			cfg.LLM.Model = DefaultLLMModel
		}
	}
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = DefaultChunkSize
	}
	if cfg.Retrieval.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		cfg.Retrieval.ChunkOverlap = &o
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
}
