// Package config provides configuration loading for knowledged.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/logging"
)

// Default retrieval and ingestion parameters.
const (
	DefaultMaxChunkSize     = 8000
	DefaultTopK             = 5
	DefaultSimilarityFloor  = 0.3
	DefaultHistoryWindow    = 6
	DefaultCorrectionWindow = 60 * time.Second
)

// Config is the root configuration for knowledged.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    logging.Config   `koanf:"logging"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Generation GenerationConfig `koanf:"generation"`
	Store      StoreConfig      `koanf:"store"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Ingest     IngestConfig     `koanf:"ingest"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// EmbeddingsConfig configures the embedding inference endpoint.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// GenerationConfig configures the generative model endpoint.
type GenerationConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// StoreConfig configures chunk persistence.
type StoreConfig struct {
	// Driver selects the backend: sqlite or memory.
	Driver string `koanf:"driver"`

	// Path is the SQLite database file (sqlite driver only).
	Path string `koanf:"path"`
}

// RetrievalConfig configures similarity search and prompt assembly.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`

	// SimilarityFloor drops matches scoring at or below it. An unset or
	// zero value means the 0.3 default; to admit every non-negative score,
	// set a small negative floor instead of 0.
	SimilarityFloor float64 `koanf:"similarity_floor"`

	HistoryWindow int `koanf:"history_window"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	MaxChunkSize     int           `koanf:"max_chunk_size"`
	CorrectionWindow time.Duration `koanf:"correction_window"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "knowledged.db"
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.SimilarityFloor == 0 {
		cfg.Retrieval.SimilarityFloor = DefaultSimilarityFloor
	}
	if cfg.Retrieval.HistoryWindow == 0 {
		cfg.Retrieval.HistoryWindow = DefaultHistoryWindow
	}

	if cfg.Ingest.MaxChunkSize == 0 {
		cfg.Ingest.MaxChunkSize = DefaultMaxChunkSize
	}
	if cfg.Ingest.CorrectionWindow == 0 {
		cfg.Ingest.CorrectionWindow = DefaultCorrectionWindow
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings base_url is required")
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings model is required")
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation model is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "memory" {
		return fmt.Errorf("invalid store driver %q (want sqlite or memory)", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store path is required for the sqlite driver")
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityFloor < -1 || c.Retrieval.SimilarityFloor > 1 {
		return fmt.Errorf("retrieval similarity_floor must be in [-1, 1], got %v", c.Retrieval.SimilarityFloor)
	}
	if c.Retrieval.HistoryWindow < 0 {
		return fmt.Errorf("retrieval history_window must be non-negative, got %d", c.Retrieval.HistoryWindow)
	}
	if c.Ingest.MaxChunkSize < 1 {
		return fmt.Errorf("ingest max_chunk_size must be positive, got %d", c.Ingest.MaxChunkSize)
	}
	if c.Ingest.CorrectionWindow < 0 {
		return fmt.Errorf("ingest correction_window must be non-negative, got %v", c.Ingest.CorrectionWindow)
	}
	return nil
}
