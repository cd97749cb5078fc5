package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragkit configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int     `yaml:"port"`
	ReadTimeoutSec  int     `yaml:"read_timeout_sec"`
	WriteTimeoutSec int     `yaml:"write_timeout_sec"`
	ShutdownSec     int     `yaml:"shutdown_timeout_sec"`
	RatePerMinute   float64 `yaml:"rate_per_minute"` // per-client request budget, 0 = unlimited
}

// CorpusConfig holds document ingestion settings.
type CorpusConfig struct {
	Root      string `yaml:"root"`
	MaxChars  int    `yaml:"max_chars"`
	Overlap   int    `yaml:"overlap"`
	PDFToText string `yaml:"pdftotext"` // extraction binary, default "pdftotext"
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Backend          string   `yaml:"backend"` // embedded, redis (default: embedded)
	Path             string   `yaml:"path"`    // embedded: sqlite file path
	Addrs            []string `yaml:"addrs"`   // redis: connection addresses
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	DocsCollection   string   `yaml:"docs_collection"`
	MemoryCollection string   `yaml:"memory_collection"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds generation settings.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
	KDocs       int     `yaml:"k_docs"`
	KMemories   int     `yaml:"k_memories"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Index builds and LLM round-trips run inside the request.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Corpus.MaxChars <= 0 {
		c.Corpus.MaxChars = 3000
	}
	if c.Corpus.Overlap <= 0 && c.Corpus.MaxChars > 400 {
		c.Corpus.Overlap = 400
	}
	if c.Corpus.PDFToText == "" {
		c.Corpus.PDFToText = "pdftotext"
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "embedded"
	}
	if c.Index.Path == "" {
		c.Index.Path = "data/ragkit.db"
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.DocsCollection == "" {
		c.Index.DocsCollection = "docs"
	}
	if c.Index.MemoryCollection == "" {
		c.Index.MemoryCollection = "memory"
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 4
	}
	if c.LLM.KDocs <= 0 {
		c.LLM.KDocs = 5
	}
	if c.LLM.KMemories <= 0 {
		c.LLM.KMemories = 3
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Corpus.Root == "" {
		return fmt.Errorf("corpus.root is required")
	}
	if c.Corpus.Overlap >= c.Corpus.MaxChars {
		return fmt.Errorf("corpus.overlap (%d) must be smaller than corpus.max_chars (%d)",
			c.Corpus.Overlap, c.Corpus.MaxChars)
	}
	switch c.Index.Backend {
	case "embedded":
		// path has a default
	case "redis":
		if len(c.Index.Addrs) == 0 {
			return fmt.Errorf("index.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("index.backend must be \"embedded\" or \"redis\", got %q", c.Index.Backend)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
