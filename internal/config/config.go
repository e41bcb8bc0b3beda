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

// Config holds the caresearch API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds the default hybrid ranking weights. Per-request
// options override these.
type SearchConfig struct {
	SemanticWeight      float64 `yaml:"semantic_weight"`
	TextWeight          float64 `yaml:"text_weight"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DefaultLimit        int     `yaml:"default_limit"`
	HospitalLimit       int     `yaml:"hospital_limit"` // combined search cap
	DoctorLimit         int     `yaml:"doctor_limit"`   // combined search cap
}

// IndexingConfig holds batch indexing settings.
type IndexingConfig struct {
	BatchSize     int `yaml:"batch_size"`
	BatchDelayMs  int `yaml:"batch_delay_ms"`
	CacheTTLHours int `yaml:"cache_ttl_hours"`
}

// EmbeddingConfig holds embedding provider settings. Primary names the
// provider used first; Fallback, if set, is tried when the primary fails.
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Primary   string                    `yaml:"primary"`
	Fallback  string                    `yaml:"fallback"`
}

// ProviderConfig holds a single embedding provider's settings.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.SemanticWeight <= 0 {
		c.Search.SemanticWeight = 0.7
	}
	if c.Search.TextWeight <= 0 {
		c.Search.TextWeight = 0.3
	}
	if c.Search.SimilarityThreshold <= 0 {
		c.Search.SimilarityThreshold = 0.6
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 50
	}
	if c.Search.HospitalLimit <= 0 {
		c.Search.HospitalLimit = 20
	}
	if c.Search.DoctorLimit <= 0 {
		c.Search.DoctorLimit = 15
	}
	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = 10
	}
	if c.Indexing.BatchDelayMs <= 0 {
		c.Indexing.BatchDelayMs = 500
	}
	if c.Indexing.CacheTTLHours <= 0 {
		c.Indexing.CacheTTLHours = 24
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Primary != "" {
		if _, ok := c.Embedding.Providers[c.Embedding.Primary]; !ok {
			return fmt.Errorf("embedding.primary %q is not a configured provider", c.Embedding.Primary)
		}
	}
	if c.Embedding.Fallback != "" {
		if _, ok := c.Embedding.Providers[c.Embedding.Fallback]; !ok {
			return fmt.Errorf("embedding.fallback %q is not a configured provider", c.Embedding.Fallback)
		}
		if c.Embedding.Fallback == c.Embedding.Primary {
			return fmt.Errorf("embedding.fallback must differ from embedding.primary")
		}
	}
	if c.Search.SemanticWeight+c.Search.TextWeight > 2 {
		return fmt.Errorf("search weights out of range: semantic=%v text=%v",
			c.Search.SemanticWeight, c.Search.TextWeight)
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
