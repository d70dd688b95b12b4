package manager

import (
	"time"

	"github.com/rs/zerolog"

	"llmed/internal/llm"
	"llmed/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second

	defaultContextSize = 2048
	defaultMaxTokens   = 64

	defaultMMContextSize = 4096
	defaultMMBatchSize   = 512
	defaultMMMaxTokens   = 256
	defaultMMGPULayers   = 99

	// DefaultImagePrompt wraps the user text in a single chat turn carrying
	// the image marker. {text} is replaced verbatim.
	DefaultImagePrompt = "<|im_start|>user\n" + llm.MediaMarker + "{text}<|im_end|>\n<|im_start|>assistant\n"
)

// DefaultEndMarkers terminate generation when they appear in the output.
var DefaultEndMarkers = []string{"<|im_end|>", "<end_of_utterance>"}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Backend provides native model handles. Nil means no backend is
	// available; loads then fail with a dependency-unavailable error.
	Backend llm.Backend

	// Catalog seeds the catalog directly. When nil, ManifestPath is read.
	Catalog      []types.ModelDescriptor
	ManifestPath string

	Logger    *zerolog.Logger
	Publisher EventPublisher

	// Text generation and embedding contexts.
	ContextSize int
	BatchSize   int
	Threads     int
	MaxTokens   int
	GPULayers   int

	// Multimodal contexts.
	MMContextSize int
	MMBatchSize   int
	MMMaxTokens   int
	MMGPULayers   int

	EndMarkers  []string
	ImagePrompt string

	MaxQueueDepth int
	MaxWait       time.Duration
}

func (cfg ManagerConfig) withDefaults() ManagerConfig {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = defaultContextSize
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MMContextSize <= 0 {
		cfg.MMContextSize = defaultMMContextSize
	}
	if cfg.MMBatchSize <= 0 {
		cfg.MMBatchSize = defaultMMBatchSize
	}
	if cfg.MMMaxTokens <= 0 {
		cfg.MMMaxTokens = defaultMMMaxTokens
	}
	if cfg.MMGPULayers <= 0 {
		cfg.MMGPULayers = defaultMMGPULayers
	}
	if cfg.EndMarkers == nil {
		cfg.EndMarkers = DefaultEndMarkers
	}
	if cfg.ImagePrompt == "" {
		cfg.ImagePrompt = DefaultImagePrompt
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	return cfg
}
