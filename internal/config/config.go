package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTopK          = 7
	defaultEmbedProvider = "local"
	defaultEmbedDims     = 512
	defaultLLMProvider   = "openai"
	defaultLLMBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultLLMModel      = "gemini-1.5-flash"
	defaultLLMKeyEnv     = "GEMINI_API_KEY"
	defaultTemperature   = 0.2
	defaultOllamaURL     = "http://localhost:11434"
	defaultServerAddr    = ":8080"
	defaultMaxUploadMB   = 32
)

type Config struct {
	Log          LogConfig    `yaml:"log"`
	EmbedLLM     LLMConfig    `yaml:"embed_llm"`
	InferenceLLM LLMConfig    `yaml:"inference_llm"`
	RAG          RAGConfig    `yaml:"rag"`
	Server       ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LLMConfig describes one model provider. Key is resolved from KeyEnv when empty.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	KeyEnv      string  `yaml:"key_env"`
	Temperature *float64 `yaml:"temperature"`
	Dimensions  int     `yaml:"dimensions"`
	BatchSize   int     `yaml:"batch_size"`
}

// SamplingTemperature returns the configured temperature, or the default when unset.
func (c LLMConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

type RAGConfig struct {
	TopK              int `yaml:"top_k"`
	LLMRetries        int `yaml:"llm_retries"`
	RetryBackoffMs    int `yaml:"retry_backoff_ms"`
	IngestTimeoutSecs int `yaml:"ingest_timeout_secs"`
	AnswerTimeoutSecs int `yaml:"answer_timeout_secs"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LoadConfig reads the YAML file at path. A missing file yields defaults.
// Variables from a .env file in the working directory are loaded first.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = defaultEmbedProvider
	}
	if cfg.EmbedLLM.Provider == "local" && cfg.EmbedLLM.Dimensions == 0 {
		cfg.EmbedLLM.Dimensions = defaultEmbedDims
	}
	if cfg.EmbedLLM.Provider == "ollama" && cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = defaultOllamaURL
	}

	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = defaultLLMProvider
	}
	switch cfg.InferenceLLM.Provider {
	case "openai", "responses":
		if cfg.InferenceLLM.BaseURL == "" {
			cfg.InferenceLLM.BaseURL = defaultLLMBaseURL
		}
		if cfg.InferenceLLM.Model == "" {
			cfg.InferenceLLM.Model = defaultLLMModel
		}
		if cfg.InferenceLLM.KeyEnv == "" {
			cfg.InferenceLLM.KeyEnv = defaultLLMKeyEnv
		}
	case "ollama":
		if cfg.InferenceLLM.BaseURL == "" {
			cfg.InferenceLLM.BaseURL = defaultOllamaURL
		}
	}
	// only an absent key takes the default, 0 is a valid choice
	if cfg.InferenceLLM.Temperature == nil {
		t := defaultTemperature
		cfg.InferenceLLM.Temperature = &t
	}

	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.LLMRetries < 0 {
		cfg.RAG.LLMRetries = 0
	}
	if cfg.RAG.RetryBackoffMs <= 0 {
		cfg.RAG.RetryBackoffMs = 1000
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultServerAddr
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = defaultMaxUploadMB
	}
}

// APIKey returns the configured key, falling back to the environment variable named by KeyEnv.
func (c LLMConfig) APIKey() string {
	if c.Key != "" {
		return strings.TrimPrefix(c.Key, "Bearer ")
	}
	if c.KeyEnv == "" {
		return ""
	}
	return strings.TrimPrefix(os.Getenv(c.KeyEnv), "Bearer ")
}

// IngestTimeout is zero when no timeout is configured.
func (c RAGConfig) IngestTimeout() time.Duration {
	return time.Duration(c.IngestTimeoutSecs) * time.Second
}

func (c RAGConfig) AnswerTimeout() time.Duration {
	return time.Duration(c.AnswerTimeoutSecs) * time.Second
}

func (c RAGConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}
