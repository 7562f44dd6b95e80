package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultChunkSize    = 1024 // characters
	defaultChunkOverlap = 200  // characters
	defaultTopK         = 5
	defaultSnippetLen   = 150
	defaultBatchDelay   = 2 * time.Second
	defaultVectorDim    = 768
	defaultKeyEnv       = "OPENAI_API_KEY"
)

type Config struct {
	LogLevel string      `yaml:"log_level"`
	Store    StoreConfig `yaml:"store"`
	Database DBConfig    `yaml:"database"`
	EmbedLLM LLMConfig   `yaml:"embed_llm"`
	InferLLM LLMConfig   `yaml:"infer_llm"`
	RAG      RAGConfig   `yaml:"rag"`
}

// LLMConfig describes one provider endpoint. Key is never read from
// YAML; it is filled from the environment variable named by KeyEnv.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "ollama" or "openai"
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	KeyEnv   string `yaml:"key_env"`
	Key      string `yaml:"-"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // "chromem" or "postgres"
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

type DBConfig struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	VectorDim int    `yaml:"vector_dim"`
	Debug     bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	TopK          int      `yaml:"top_k"`
	SnippetLen    int      `yaml:"snippet_len"`
	BatchDelay    Duration `yaml:"batch_delay"`
	EncryptionKey string   `yaml:"encryption_key"`
}

// Duration parses YAML strings like "2s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.EmbedLLM.Key = os.Getenv(cfg.EmbedLLM.KeyEnv)
	cfg.InferLLM.Key = os.Getenv(cfg.InferLLM.KeyEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "debug"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "chromem"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./chromemdb"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "documents"
	}
	if c.Database.VectorDim == 0 {
		c.Database.VectorDim = defaultVectorDim
	}
	if c.EmbedLLM.KeyEnv == "" {
		c.EmbedLLM.KeyEnv = defaultKeyEnv
	}
	if c.InferLLM.KeyEnv == "" {
		c.InferLLM.KeyEnv = defaultKeyEnv
	}
	if c.RAG.ChunkSize == 0 || c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkSize = defaultChunkSize
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.SnippetLen == 0 {
		c.RAG.SnippetLen = defaultSnippetLen
	}
	if c.RAG.BatchDelay == 0 {
		c.RAG.BatchDelay = Duration(defaultBatchDelay)
	}
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "chromem", "postgres":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	return nil
}

// MissingKeys reports the key env vars that providers need but that are
// unset. The caller logs a warning and continues; the remote call fails
// later when the key is actually used.
func (c *Config) MissingKeys() []string {
	seen := make(map[string]bool)
	var missing []string
	for _, llm := range []*LLMConfig{&c.EmbedLLM, &c.InferLLM} {
		if llm.Provider == "openai" && llm.Key == "" && !seen[llm.KeyEnv] {
			seen[llm.KeyEnv] = true
			missing = append(missing, llm.KeyEnv)
		}
	}
	return missing
}
