// Package config provides unified configuration loading for the processing
// engine. Supports YAML files, environment variables, and programmatic
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ExecutionMode selects which pipeline features are enabled for a run.
type ExecutionMode string

// Execution modes.
const (
	ModeProduction         ExecutionMode = "production"
	ModeDemo               ExecutionMode = "demo"
	ModeImageOnly          ExecutionMode = "image_only"
	ModeEmbeddingOnly      ExecutionMode = "embedding_only"
	ModeClassificationOnly ExecutionMode = "classification_only"
	ModeFullTest           ExecutionMode = "full_test"
)

// Config holds all configuration for the processing engine.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	Cache         CacheConfig         `yaml:"cache"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Patterns      PatternsConfig      `yaml:"patterns"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// StorageConfig holds Supabase object storage settings.
type StorageConfig struct {
	BaseURL        string `yaml:"base_url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	ImagesBucket   string `yaml:"images_bucket"`
	AssetsBucket   string `yaml:"assets_bucket"`
	PartsBucket    string `yaml:"parts_bucket"`
}

// OllamaConfig holds model server settings.
type OllamaConfig struct {
	BaseURL             string        `yaml:"base_url"`
	TextModel           string        `yaml:"text_model"`
	VisionModel         string        `yaml:"vision_model"`
	EmbeddingModel      string        `yaml:"embedding_model"`
	EmbeddingDimension  int           `yaml:"embedding_dimension"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
	MaxConcurrentText   int           `yaml:"max_concurrent_text"`
	MaxConcurrentVision int           `yaml:"max_concurrent_vision"`
	MaxConcurrentEmbed  int           `yaml:"max_concurrent_embed"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ProcessingConfig holds pipeline settings.
type ProcessingConfig struct {
	Mode                   ExecutionMode `yaml:"mode"`
	MaxConcurrentDocuments int           `yaml:"max_concurrent_documents"`
	MaxConcurrentChunks    int           `yaml:"max_concurrent_chunks"`
	StageTimeout           time.Duration `yaml:"stage_timeout"`
	BatchSize              int           `yaml:"batch_size"`
	ContentHeadChars       int           `yaml:"content_head_chars"`
	MinImageDimension      int           `yaml:"min_image_dimension"`
	MinImageBytes          int           `yaml:"min_image_bytes"`
}

// PatternsConfig holds pattern rule file settings.
type PatternsConfig struct {
	Dir string `yaml:"dir"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Verbose   bool   `yaml:"verbose"`
	Debug     bool   `yaml:"debug"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Storage: StorageConfig{
			ImagesBucket: "krai-documents-images",
			AssetsBucket: "krai-document-assets",
			PartsBucket:  "krai-parts-images",
		},
		Ollama: OllamaConfig{
			BaseURL:             "http://localhost:11434",
			TextModel:           "llama3.2:latest",
			VisionModel:         "llava:latest",
			EmbeddingModel:      "embeddinggemma",
			EmbeddingDimension:  768,
			RequestTimeout:      120 * time.Second,
			MaxRetries:          3,
			RetryBackoff:        time.Second,
			MaxConcurrentText:   2,
			MaxConcurrentVision: 1,
			MaxConcurrentEmbed:  4,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        time.Hour,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Processing: ProcessingConfig{
			Mode:                   ModeProduction,
			MaxConcurrentDocuments: 3,
			MaxConcurrentChunks:    10,
			StageTimeout:           10 * time.Minute,
			BatchSize:              75,
			ContentHeadChars:       10000,
			MinImageDimension:      50,
			MinImageBytes:          1024,
		},
		Patterns: PatternsConfig{
			Dir: "configs",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Processing.Mode {
	case ModeProduction, ModeDemo, ModeImageOnly, ModeEmbeddingOnly,
		ModeClassificationOnly, ModeFullTest:
	default:
		return fmt.Errorf("invalid execution mode: %s", c.Processing.Mode)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Processing.MaxConcurrentDocuments < 1 {
		return fmt.Errorf("max_concurrent_documents must be at least 1")
	}

	if c.Processing.MaxConcurrentChunks < 1 {
		return fmt.Errorf("max_concurrent_chunks must be at least 1")
	}

	if c.Ollama.EmbeddingDimension < 1 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	if c.Ollama.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.Storage.BaseURL = v
	}

	if v := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); v != "" {
		cfg.Storage.ServiceRoleKey = v
	}

	// Some deployments only provision the database password; the DSN is
	// assembled by the operator in that case, so the value is kept for
	// diagnostics only.
	if v := os.Getenv("SUPABASE_PASSWORD"); v != "" && cfg.Database.DSN == "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Ollama.TextModel = v
	}

	if v := os.Getenv("VISION_MODEL"); v != "" {
		cfg.Ollama.VisionModel = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Ollama.EmbeddingModel = v
	}

	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Processing.BatchSize = n
		}
	}

	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Processing.MaxConcurrentDocuments = n
		}
	}

	if v := os.Getenv("EXECUTION_MODE"); v != "" {
		cfg.Processing.Mode = ExecutionMode(v)
	}

	if v := os.Getenv("DEBUG_MODE"); v == "true" {
		cfg.Observability.Debug = true
		cfg.Observability.LogLevel = "debug"
	}

	if v := os.Getenv("VERBOSE_LOGGING"); v == "true" {
		cfg.Observability.Verbose = true
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = v
	}

	if v := os.Getenv("PATTERNS_DIR"); v != "" {
		cfg.Patterns.Dir = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
