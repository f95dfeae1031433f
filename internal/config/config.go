// Package config provides configuration management for mindual.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory config file, searched in the
// working directory.
const ProjectConfigName = ".mindual.yaml"

// Config represents the complete mindual configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Database   DatabaseConfig   `yaml:"database"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retry      RetryConfig      `yaml:"retry"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
}

// DatabaseConfig locates the manual database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GeminiConfig configures the shared Gemini client.
type GeminiConfig struct {
	// APIKey is read from GEMINI_API_KEY and never written to YAML.
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
	// RPM caps requests per minute across OCR, generation and embeddings.
	// Zero disables the limiter.
	RPM int `yaml:"rpm"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	DataDir     string `yaml:"data_dir"`
	DPI         int    `yaml:"dpi"`
	Language    string `yaml:"language"`
	Sleep       string `yaml:"sleep"`
	ChunkPolicy string `yaml:"chunk_policy"`
}

// SleepDuration parses Sleep, falling back to 1.2s when it is unparseable.
func (c IngestConfig) SleepDuration() time.Duration {
	d, err := time.ParseDuration(c.Sleep)
	if err != nil || d < 0 {
		return 1200 * time.Millisecond
	}
	return d
}

// RetryConfig configures backoff around external calls.
type RetryConfig struct {
	Retries int     `yaml:"retries"`
	Base    float64 `yaml:"base"`
	Jitter  float64 `yaml:"jitter"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	Backend     string `yaml:"backend"`
	MaxDocs     int    `yaml:"max_docs"`
	RRFConstant int    `yaml:"rrf_constant"`
	// IndexDir holds file-backed indexes (bleve, vector). Empty keeps
	// them next to the database.
	IndexDir string `yaml:"index_dir"`
}

// EmbeddingsConfig configures the embedder used by vector search.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport"`
	LogLevel  string `yaml:"log_level"`
}

var (
	validBackends  = []string{"fts", "bleve", "vector", "hybrid"}
	validPolicies  = []string{"replace", "append"}
	validProviders = []string{"gemini", "static"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Path: "./manuals.sqlite",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
			RPM:   15,
		},
		Ingest: IngestConfig{
			DataDir:     "data",
			DPI:         200,
			Language:    "ko",
			Sleep:       "1.2s",
			ChunkPolicy: "replace",
		},
		Retry: RetryConfig{
			Retries: 6,
			Base:    1.5,
			Jitter:  0.3,
		},
		Search: SearchConfig{
			Backend:     "fts",
			MaxDocs:     5,
			RRFConstant: 60,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Model:     "text-embedding-004",
			CacheSize: 1000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigDir returns the user config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/mindual.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mindual")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mindual")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	dir := GetUserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	path := GetUserConfigPath()
	return path != "" && fileExists(path)
}

// Load loads configuration for the working directory dir.
//
// Precedence, lowest first: defaults, user config, dir/.mindual.yaml,
// dir/.env, environment variables. Variables from .env never override
// ones already set in the environment.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); path != "" && fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config %s: %w", path, err)
		}
	}

	projectPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", projectPath, err)
		}
	}

	envPath := filepath.Join(dir, ".env")
	if fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML parses a YAML file and merges its non-zero values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	c.mergeWith(&fileCfg)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}

	if other.Gemini.Model != "" {
		c.Gemini.Model = other.Gemini.Model
	}
	if other.Gemini.RPM != 0 {
		c.Gemini.RPM = other.Gemini.RPM
	}

	if other.Ingest.DataDir != "" {
		c.Ingest.DataDir = other.Ingest.DataDir
	}
	if other.Ingest.DPI != 0 {
		c.Ingest.DPI = other.Ingest.DPI
	}
	if other.Ingest.Language != "" {
		c.Ingest.Language = other.Ingest.Language
	}
	if other.Ingest.Sleep != "" {
		c.Ingest.Sleep = other.Ingest.Sleep
	}
	if other.Ingest.ChunkPolicy != "" {
		c.Ingest.ChunkPolicy = other.Ingest.ChunkPolicy
	}

	if other.Retry.Retries != 0 {
		c.Retry.Retries = other.Retry.Retries
	}
	if other.Retry.Base != 0 {
		c.Retry.Base = other.Retry.Base
	}
	if other.Retry.Jitter != 0 {
		c.Retry.Jitter = other.Retry.Jitter
	}

	if other.Search.Backend != "" {
		c.Search.Backend = other.Search.Backend
	}
	if other.Search.MaxDocs != 0 {
		c.Search.MaxDocs = other.Search.MaxDocs
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.IndexDir != "" {
		c.Search.IndexDir = other.Search.IndexDir
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL_ID"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("RAG_MAX_DOCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxDocs = n
		}
	}
	if v := os.Getenv("MINDUAL_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("MINDUAL_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MINDUAL_CHUNK_POLICY"); v != "" {
		c.Ingest.ChunkPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("MINDUAL_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = strings.ToLower(v)
	}
}

// Validate checks the configuration for invalid values. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if !contains(validBackends, c.Search.Backend) {
		errs = append(errs, fmt.Errorf("invalid search.backend: %s (valid options: %s)",
			c.Search.Backend, strings.Join(validBackends, ", ")))
	}
	if !contains(validPolicies, c.Ingest.ChunkPolicy) {
		errs = append(errs, fmt.Errorf("invalid ingest.chunk_policy: %s (valid options: %s)",
			c.Ingest.ChunkPolicy, strings.Join(validPolicies, ", ")))
	}
	if !contains(validProviders, c.Embeddings.Provider) {
		errs = append(errs, fmt.Errorf("invalid embeddings.provider: %s (valid options: %s)",
			c.Embeddings.Provider, strings.Join(validProviders, ", ")))
	}
	if c.Server.LogLevel != "" && !contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid server.log_level: %s (valid options: %s)",
			c.Server.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if c.Server.Transport != "stdio" {
		errs = append(errs, fmt.Errorf("invalid server.transport: %s (only stdio is supported)", c.Server.Transport))
	}
	if c.Retry.Retries <= 0 {
		errs = append(errs, fmt.Errorf("retry.retries must be positive, got %d", c.Retry.Retries))
	}
	if c.Retry.Base < 1 {
		errs = append(errs, fmt.Errorf("retry.base must be at least 1, got %g", c.Retry.Base))
	}
	if c.Retry.Jitter < 0 {
		errs = append(errs, fmt.Errorf("retry.jitter must not be negative, got %g", c.Retry.Jitter))
	}
	if c.Ingest.DPI <= 0 {
		errs = append(errs, fmt.Errorf("ingest.dpi must be positive, got %d", c.Ingest.DPI))
	}
	if d, err := time.ParseDuration(c.Ingest.Sleep); err != nil || d < 0 {
		errs = append(errs, fmt.Errorf("invalid ingest.sleep: %q", c.Ingest.Sleep))
	}
	if c.Search.MaxDocs <= 0 {
		errs = append(errs, fmt.Errorf("search.max_docs must be positive, got %d", c.Search.MaxDocs))
	}
	if c.Search.RRFConstant <= 0 {
		errs = append(errs, fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant))
	}
	if c.Gemini.RPM < 0 {
		errs = append(errs, fmt.Errorf("gemini.rpm must not be negative, got %d", c.Gemini.RPM))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IndexDir returns the directory for file-backed indexes: Search.IndexDir
// when set, otherwise "<db dir>/index".
func (c *Config) IndexDir() string {
	if c.Search.IndexDir != "" {
		return c.Search.IndexDir
	}
	return filepath.Join(filepath.Dir(c.Database.Path), "index")
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# mindual configuration\n# GEMINI_API_KEY is read from the environment or .env, never from this file.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// MergeNewDefaults fills settings an older user config does not carry
// with their defaults and returns the YAML keys it added. Used by
// "config init --force".
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Gemini.RPM == 0 {
		c.Gemini.RPM = defaults.Gemini.RPM
		added = append(added, "gemini.rpm")
	}
	if c.Ingest.ChunkPolicy == "" {
		c.Ingest.ChunkPolicy = defaults.Ingest.ChunkPolicy
		added = append(added, "ingest.chunk_policy")
	}
	if c.Search.Backend == "" {
		c.Search.Backend = defaults.Search.Backend
		added = append(added, "search.backend")
	}
	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = defaults.Search.RRFConstant
		added = append(added, "search.rrf_constant")
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = defaults.Embeddings.Provider
		added = append(added, "embeddings.provider")
	}
	if c.Embeddings.CacheSize == 0 {
		c.Embeddings.CacheSize = defaults.Embeddings.CacheSize
		added = append(added, "embeddings.cache_size")
	}
	// search.index_dir stays empty on purpose: empty means next to the database.

	return added
}

// LoadUserConfig reads the user config file alone, without defaults,
// project files or environment. Returns nil when it does not exist.
func LoadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if path == "" || !fileExists(path) {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}
	return &cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
