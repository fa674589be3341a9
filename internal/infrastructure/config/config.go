// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for lore configuration.
	DefaultConfigDir = ".lore"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the default SQLite file name inside the config dir.
	DefaultDatabaseFile = "novel.db"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
	Memory   MemoryConfig   `yaml:"memory,omitempty"`
}

// LLMConfig holds configuration for the LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	// BaseURL points at an OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	// BaseURL points at an OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite relational database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. Relative paths are
	// resolved against the project base path; empty means .lore/novel.db.
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `yaml:"level,omitempty"`
	Encoding   string `yaml:"encoding,omitempty"`
	OutputPath string `yaml:"output_path,omitempty"`
}

// MetricsConfig configures the prometheus endpoint of the MCP server.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty disables it.
	Addr string `yaml:"addr,omitempty"`
}

// MemoryConfig controls semantic memory search.
type MemoryConfig struct {
	// Enabled wires the qdrant-backed memory search into context building.
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "novel_memories",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load loads configuration from the .lore directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'novel init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		if c.Qdrant.APIKey == "" {
			c.Qdrant.APIKey = key
		}
	}
	if level := os.Getenv("LORE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if path := os.Getenv("LORE_SQLITE_PATH"); path != "" {
		c.SQLite.Path = path
	}
}

// SQLitePath returns the database path for a project rooted at basePath.
func (c *Config) SQLitePath(basePath string) string {
	switch {
	case c.SQLite.Path == "":
		return filepath.Join(basePath, DefaultConfigDir, DefaultDatabaseFile)
	case c.SQLite.Path == ":memory:" || filepath.IsAbs(c.SQLite.Path):
		return c.SQLite.Path
	default:
		return filepath.Join(basePath, c.SQLite.Path)
	}
}

// ConfigDir returns the path to the .lore config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// Exists checks if a lore config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}

// SanitizeName converts a free-form name to a valid collection suffix.
func SanitizeName(name string) string {
	name = strings.ToLower(name)

	// Replace spaces and hyphens with underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// GenerateCollectionName creates the memory collection name for a novel
// workspace.
func GenerateCollectionName(workspace string) string {
	return "novel_" + SanitizeName(workspace)
}
