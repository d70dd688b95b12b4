package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by defaults in cmd/llmed.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	Manifest  string `json:"manifest" yaml:"manifest" toml:"manifest"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Native backend
	LibPath   string `json:"lib_path" yaml:"lib_path" toml:"lib_path"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`

	// Generation limits
	CtxSize     int `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	MMCtxSize   int `json:"mm_ctx_size" yaml:"mm_ctx_size" toml:"mm_ctx_size"`
	MMBatchSize int `json:"mm_batch_size" yaml:"mm_batch_size" toml:"mm_batch_size"`
	MaxTokens   int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	MMMaxTokens int `json:"mm_max_tokens" yaml:"mm_max_tokens" toml:"mm_max_tokens"`

	// Admission
	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS     int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`

	// HTTP
	InferTimeoutSeconds int      `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	MaxBodyBytes        int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled         bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins         []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods         []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders         []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`

	// InspectGGUF reads GGUF headers of catalog entries on load.
	InspectGGUF bool `json:"inspect_gguf" yaml:"inspect_gguf" toml:"inspect_gguf"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := Decode(filepath.Ext(path), b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode unmarshals b into v using the format implied by ext.
func Decode(ext string, b []byte, v any) error {
	switch ext = strings.ToLower(ext); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}
