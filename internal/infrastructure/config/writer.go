package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultConfigTemplate is the default configuration content. %s is the
// qdrant collection name.
const defaultConfigTemplate = `# lore-novel configuration

llm:
  provider: openai
  model: gpt-4o-mini
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

embedder:
  provider: openai
  model: text-embedding-3-small
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

qdrant:
  host: localhost
  port: 6334
  collection: %s
  # api_key: your-api-key (for Qdrant Cloud)

sqlite:
  path: .lore/novel.db

log:
  level: info # or set LORE_LOG_LEVEL
  encoding: console

metrics:
  # addr: ":9090"

memory:
  enabled: false
`

// DefaultConfigYAML renders the default configuration for a collection.
func DefaultConfigYAML(collection string) string {
	return fmt.Sprintf(defaultConfigTemplate, collection)
}

// WriteDefault creates the .lore directory and writes a default config file.
func WriteDefault(basePath, collection string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML(collection)), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigFilePath(basePath), data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// SetMemoryEnabled toggles memory search in an existing config file.
// Environment overrides are not applied, so API keys taken from the
// environment are never written to disk.
func SetMemoryEnabled(basePath string, enabled bool) error {
	data, err := os.ReadFile(ConfigFilePath(basePath))
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Memory.Enabled = enabled
	return Write(basePath, cfg)
}
