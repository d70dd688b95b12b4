package types

// ModelKind identifies which inference path a model serves.
type ModelKind string

const (
	// KindTextGeneration models answer Query.
	KindTextGeneration ModelKind = "llm"
	// KindEmbedding models answer Embed.
	KindEmbedding ModelKind = "embedding"
	// KindMultimodal models answer QueryImage and need a vision projector.
	KindMultimodal ModelKind = "multimodal"
)

// Valid reports whether k is one of the known kinds.
func (k ModelKind) Valid() bool {
	switch k {
	case KindTextGeneration, KindEmbedding, KindMultimodal:
		return true
	}
	return false
}

// ModelDescriptor is a catalog entry or, once loaded, a running instance.
// InstanceID is empty for catalog entries.
type ModelDescriptor struct {
	// Instance identifier assigned by load.
	// example: qwen2-vl-1720000000000-1
	InstanceID string `json:"model_id,omitempty" example:"qwen2-vl-1720000000000-1"`
	// Model kind: llm, embedding or multimodal.
	// example: multimodal
	Kind ModelKind `json:"type" example:"multimodal"`
	// Display name, unique within the catalog.
	// example: qwen2-vl
	Name string `json:"name" example:"qwen2-vl"`
	// Path to the weights file.
	// example: /models/Qwen2-VL-2B-Instruct-Q4_K_M.gguf
	WeightsPath string `json:"model" example:"/models/Qwen2-VL-2B-Instruct-Q4_K_M.gguf"`
	// Path to the vision projector (multimodal only).
	// example: /models/mmproj-Qwen2-VL-2B-Instruct-f16.gguf
	ProjectorPath string `json:"mmproj,omitempty" example:"/models/mmproj-Qwen2-VL-2B-Instruct-f16.gguf"`
}

// CatalogEntry returns a copy without the instance identifier.
func (d ModelDescriptor) CatalogEntry() ModelDescriptor {
	d.InstanceID = ""
	return d
}

// ModelInfo is optional metadata read from a GGUF weights file.
type ModelInfo struct {
	Name            string `json:"name"`
	Architecture    string `json:"architecture,omitempty"`
	Parameters      string `json:"parameters,omitempty"`
	Quantization    string `json:"quantization,omitempty"`
	Size            string `json:"size,omitempty"`
	EmbeddingLength int    `json:"embedding_length,omitempty"`
	ContextLength   int    `json:"context_length,omitempty"`
}
