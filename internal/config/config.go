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

// Config holds the chunkquery API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Backends  BackendsConfig  `yaml:"backends"`
	Search    SearchConfig    `yaml:"search"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// EmbeddingConfig holds the embedding provider settings. The endpoint is
// OpenAI-compatible; dimensions (when >0) must match the stored vectors.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// BackendsConfig enumerates the configured vector stores. Each backend is
// registered at startup when enabled and held for the process lifetime.
type BackendsConfig struct {
	PGVector PGVectorConfig `yaml:"pgvector"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PGVectorConfig holds the SQL vector store settings.
type PGVectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
}

// RedisConfig holds the generic vector store settings.
type RedisConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Addrs        []string `yaml:"addrs"`
	Password     string   `yaml:"password"`
	Index        string   `yaml:"index"`
	ContentField string   `yaml:"content_field"`
	VectorField  string   `yaml:"vector_field"`
}

// SearchConfig holds result-set and fan-out settings.
type SearchConfig struct {
	DefaultK          int `yaml:"default_k"`
	MaxK              int `yaml:"max_k"`
	BackendTimeoutSec int `yaml:"backend_timeout_sec"`
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backends.PGVector.Table == "" {
		c.Backends.PGVector.Table = "documents"
	}
	if c.Backends.Redis.Index == "" {
		c.Backends.Redis.Index = "chunks"
	}
	if c.Backends.Redis.ContentField == "" {
		c.Backends.Redis.ContentField = "content"
	}
	if c.Backends.Redis.VectorField == "" {
		c.Backends.Redis.VectorField = "embedding"
	}
	if c.Search.DefaultK <= 0 {
		c.Search.DefaultK = 5
	}
	if c.Search.MaxK <= 0 {
		c.Search.MaxK = 50
	}
	if c.Search.BackendTimeoutSec <= 0 {
		c.Search.BackendTimeoutSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if !c.Backends.PGVector.Enabled && !c.Backends.Redis.Enabled {
		return fmt.Errorf("at least one backend must be enabled")
	}
	if c.Backends.PGVector.Enabled && c.Backends.PGVector.DSN == "" {
		return fmt.Errorf("backends.pgvector.dsn is required when pgvector is enabled")
	}
	if c.Backends.Redis.Enabled && len(c.Backends.Redis.Addrs) == 0 {
		return fmt.Errorf("backends.redis.addrs is required when redis is enabled")
	}
	if !validIdentifier(c.Backends.PGVector.Table) {
		return fmt.Errorf("backends.pgvector.table %q is not a valid identifier", c.Backends.PGVector.Table)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("search.default_k (%d) exceeds search.max_k (%d)",
			c.Search.DefaultK, c.Search.MaxK)
	}
	return nil
}

// validIdentifier restricts the table name to a plain SQL identifier. The
// table name is the only configuration value interpolated into query text;
// every per-request value is bound as a parameter.
var identRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdentifier(s string) bool {
	return identRegex.MatchString(s)
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
