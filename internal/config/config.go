// Package config loads and validates jivecore's YAML configuration file,
// in the same read-unmarshal-validate shape the teacher's aider config
// loader uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreConfig configures the Store (C1).
type StoreConfig struct {
	DataPath           string  `yaml:"data_path" json:"data_path"`
	EmbeddingDimension int     `yaml:"embedding_dimensions" json:"embedding_dimensions"`
	NormalizeEmbeddings bool   `yaml:"normalize_embeddings" json:"normalize_embeddings"`
	EnableFTS          bool    `yaml:"enable_fts" json:"enable_fts"`
	OpTimeoutSeconds   int     `yaml:"store_op_timeout_seconds" json:"store_op_timeout_seconds"`
	MaxRetries         int     `yaml:"store_max_retries" json:"store_max_retries"`
	RetryBaseSeconds   float64 `yaml:"store_retry_base" json:"store_retry_base"`
}

// EmbeddingConfig configures the embedding provider (mirrors the teacher's
// OllamaConfig shape).
type EmbeddingConfig struct {
	Endpoint string `yaml:"embedding_endpoint" json:"embedding_endpoint"`
	Model    string `yaml:"embedding_model" json:"embedding_model"`
}

// ExecutionConfig configures the Orchestrator/ExecutorDriver.
type ExecutionConfig struct {
	MaxParallel            int  `yaml:"max_parallel" json:"max_parallel"`
	SessionTimeoutMinutes  int  `yaml:"session_timeout_minutes" json:"session_timeout_minutes"`
}

// SyncConfig configures the SyncEngine.
type SyncConfig struct {
	TasksRoot             string `yaml:"tasks_root" json:"tasks_root"`
	CompressSyncPayloads  bool   `yaml:"compress_sync_payloads" json:"compress_sync_payloads"`
}

// ServerConfig configures the ambient process bootstrap (debug HTTP
// surface + embedded NATS event bus), not part of the core's own scope.
type ServerConfig struct {
	Port     int `yaml:"port" json:"port"`
	NATSPort int `yaml:"nats_port" json:"nats_port"`
}

// Config is the root configuration for jivecore.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Execution ExecutionConfig `yaml:"execution" json:"execution"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
}

// DefaultConfig returns sensible defaults, matching the defaults named in
// the external-interfaces configuration table.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8089,
			NATSPort: 4225,
		},
		Store: StoreConfig{
			DataPath:            "data",
			EmbeddingDimension:  384,
			NormalizeEmbeddings: false,
			EnableFTS:           true,
			OpTimeoutSeconds:    30,
			MaxRetries:          3,
			RetryBaseSeconds:    1.0,
		},
		Embedding: EmbeddingConfig{
			Endpoint: "http://localhost:1234/v1",
			Model:    "text-embedding-nomic-embed-text",
		},
		Execution: ExecutionConfig{
			MaxParallel:           3,
			SessionTimeoutMinutes: 60,
		},
		Sync: SyncConfig{
			TasksRoot:            ".jivedev/tasks",
			CompressSyncPayloads: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to
// DefaultConfig's zero-value fields being overwritten by whatever the file
// specifies.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the config for obviously broken values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.NATSPort <= 0 || c.Server.NATSPort > 65535 {
		return fmt.Errorf("invalid NATS port: %d", c.Server.NATSPort)
	}
	if c.Store.DataPath == "" {
		return fmt.Errorf("store data_path is required")
	}
	if c.Store.EmbeddingDimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", c.Store.EmbeddingDimension)
	}
	if c.Execution.MaxParallel <= 0 {
		return fmt.Errorf("invalid max_parallel: %d", c.Execution.MaxParallel)
	}
	if c.Execution.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("invalid session_timeout_minutes: %d", c.Execution.SessionTimeoutMinutes)
	}
	return nil
}
