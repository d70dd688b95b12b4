package types

// SamplingOptions selects the token sampling strategy for a query.
// A zero temperature means greedy arg-max decoding.
type SamplingOptions struct {
	// Sampling temperature (0 = greedy).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Random seed for reproducibility; 0 lets the server choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// LoadRequest is the body of POST /load.
type LoadRequest struct {
	// Catalog name of the model to load.
	// example: qwen2-vl
	Name string `json:"name" example:"qwen2-vl"`
}

// UnloadRequest is the body of POST /unload.
type UnloadRequest struct {
	// Instance identifier returned by load.
	ModelID string `json:"model_id"`
}

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	ModelID string `json:"model_id"`
	// Text to embed.
	// example: graph database
	Text string `json:"text" example:"graph database"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	ModelID string `json:"model_id"`
	// Prompt text.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens; capped by the server's step bound.
	// example: 64
	MaxTokens int              `json:"max_tokens,omitempty" example:"64"`
	Sampling  *SamplingOptions `json:"sampling,omitempty"`
}

// QueryImageRequest is the body of POST /query/image.
type QueryImageRequest struct {
	ModelID string `json:"model_id"`
	Text    string `json:"text"`
	// Path to an image file readable by the server.
	// example: /tmp/frame.jpg
	ImagePath string           `json:"image_path" example:"/tmp/frame.jpg"`
	MaxTokens int              `json:"max_tokens,omitempty"`
	Sampling  *SamplingOptions `json:"sampling,omitempty"`
}

// QueryImageBase64Request is the body of POST /query/image64.
type QueryImageBase64Request struct {
	ModelID     string `json:"model_id"`
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64"`
}

// ModelsResponse wraps the catalog returned by GET /models.
type ModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// RunningResponse wraps the instances returned by GET /running.
type RunningResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// OKResponse reports a boolean outcome (unload, cancel).
type OKResponse struct {
	OK bool `json:"ok"`
}

// EmbedResponse carries a fixed-width embedding vector.
type EmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// QueryResponse carries generated text.
type QueryResponse struct {
	Text string `json:"text"`
	// Why generation stopped: eos, end_of_turn, length.
	// example: eos
	FinishReason string `json:"finish_reason,omitempty" example:"eos"`
	// Number of generated tokens.
	// example: 12
	Tokens int `json:"tokens"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: qwen2-vl-1
	Error string `json:"error" example:"model not found: qwen2-vl-1"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
	// Machine-readable error kind (not_found, wrong_kind, resource, pipeline, cancelled, too_busy, not_implemented, unavailable).
	Kind string `json:"kind,omitempty"`
	// Output produced before a pipeline failure or cancellation.
	Partial string `json:"partial,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Human-readable status reflecting the last lifecycle transition.
	// example: model loaded
	Status string `json:"status" example:"model loaded"`
	// Most recently loaded instance, if still loaded.
	Current *ModelDescriptor `json:"current,omitempty"`
	// Number of loaded instances.
	Loaded int `json:"loaded"`
	// Number of generations currently running or queued.
	InFlight int `json:"inflight"`
	// Number of catalog entries.
	CatalogSize int `json:"catalog_size"`
	// Total loads and unloads since start.
	LoadsTotal   uint64 `json:"loads_total"`
	UnloadsTotal uint64 `json:"unloads_total"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
}
