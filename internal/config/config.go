package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lgoty/benefitsearch/internal/domain"
)

// Config holds the benefitsearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Parser    ParserConfig    `yaml:"parser"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
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

// PostgresConfig holds catalog database settings.
type PostgresConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	ReadinessTimeout   int    `yaml:"readiness_timeout_sec"`
	AutoMigrate        bool   `yaml:"auto_migrate"`
}

// RedisConfig holds embedding cache and search history settings.
// An empty Addrs list disables both.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider          string `yaml:"provider"` // metrics label only
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	Dimensions        int    `yaml:"dimensions"`
	RequestDimensions bool   `yaml:"request_dimensions"` // send dimensions to the API (Matryoshka models)
	TimeoutSec        int    `yaml:"timeout_sec"`
	QueryPrefix       string `yaml:"query_prefix"`
	PassagePrefix     string `yaml:"passage_prefix"`
	Cache             bool   `yaml:"cache"`
	CacheTTLHours     int    `yaml:"cache_ttl_hours"`
}

// ParserConfig holds the semantic query parser settings.
// When disabled every query goes through the rule-based fallback.
type ParserConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// IndexConfig holds vector store settings.
type IndexConfig struct {
	DataDir         string `yaml:"data_dir"` // empty disables persistence
	OversampleRatio int    `yaml:"oversample_ratio"`
	Widen           *bool  `yaml:"widen"` // default true
}

// SearchConfig holds result sizing.
type SearchConfig struct {
	TopK        int `yaml:"top_k"`
	MaxBenefits int `yaml:"max_benefits"`
	MaxOffers   int `yaml:"max_offers"`
	HistorySize int `yaml:"history_size"`
}

// WidenEnabled reports whether candidate window widening is on.
func (c IndexConfig) WidenEnabled() bool { return c.Widen == nil || *c.Widen }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates the configuration at path.
func LoadFile(configPath string) (Config, error) {
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

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Postgres.MaxOpenConns <= 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns <= 0 {
		c.Postgres.MaxIdleConns = 5
	}
	if c.Postgres.ConnMaxLifetimeSec <= 0 {
		c.Postgres.ConnMaxLifetimeSec = 1800
	}
	if c.Postgres.ReadinessTimeout <= 0 {
		c.Postgres.ReadinessTimeout = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	vec := domain.DefaultVectorConfig()
	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vec.Dimensions
	}
	// Query and passage text are always embedded with their asymmetric prefixes.
	if c.Embedding.QueryPrefix == "" {
		c.Embedding.QueryPrefix = vec.QueryPrefix
	}
	if c.Embedding.PassagePrefix == "" {
		c.Embedding.PassagePrefix = vec.PassagePrefix
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 24 * 30
	}
	if c.Parser.Model == "" {
		c.Parser.Model = "gpt-4o-mini"
	}
	if c.Parser.TimeoutSec <= 0 {
		c.Parser.TimeoutSec = 10
	}
	if c.Index.OversampleRatio <= 0 {
		c.Index.OversampleRatio = vec.OversampleRatio
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 20
	}
	if c.Search.MaxBenefits <= 0 {
		c.Search.MaxBenefits = 10
	}
	if c.Search.MaxOffers <= 0 {
		c.Search.MaxOffers = 10
	}
	if c.Search.HistorySize <= 0 {
		c.Search.HistorySize = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Embedding.Cache && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("embedding.cache requires redis.addrs")
	}
	if c.Parser.Enabled && c.Parser.APIKey == "" {
		return fmt.Errorf("parser.api_key is required when the parser is enabled")
	}
	if c.Search.MaxBenefits > c.Search.TopK || c.Search.MaxOffers > c.Search.TopK {
		return fmt.Errorf("search.max_benefits and search.max_offers must not exceed search.top_k (%d)", c.Search.TopK)
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
