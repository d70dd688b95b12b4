// Package llm is the boundary to the native inference library. The manager
// drives tokenization, decoding and sampling itself; implementations of these
// interfaces only expose the primitive operations and own the native handles.
package llm

import "errors"

// Token is a vocabulary id.
type Token = int32

// ErrUnavailable is returned when no native backend is compiled in or the
// shared libraries could not be loaded.
var ErrUnavailable = errors.New("llm: native backend unavailable")

// MediaMarker is the placeholder the projector replaces with image embeddings.
const MediaMarker = "<__media__>"

// ModelParams configures weight loading.
type ModelParams struct {
	// GPULayers is the number of layers offloaded to the GPU (0 = CPU only).
	GPULayers int
}

// ContextParams configures an execution context.
type ContextParams struct {
	WindowSize int
	BatchSize  int
	Threads    int
	Embeddings bool
}

// Backend loads model weights.
type Backend interface {
	Name() string
	LoadModel(path string, p ModelParams) (Model, error)
}

// Model is a loaded weights handle plus its vocabulary view.
type Model interface {
	// Tokenize converts text to vocabulary ids.
	Tokenize(text string, addSpecial, parseSpecial bool) ([]Token, error)
	// TokenToPiece renders one token as text.
	TokenToPiece(tok Token) string
	// EOS is the end-of-sequence token.
	EOS() Token
	NumVocab() int
	EmbeddingSize() int
	NewContext(p ContextParams) (Context, error)
	// NewProjector binds a vision projector to these weights.
	NewProjector(path string) (Projector, error)
	Close() error
}

// Context is an execution context holding the KV state of one generation.
type Context interface {
	WindowSize() int
	// Decode submits tokens at the next positions.
	Decode(tokens []Token) error
	// Logits returns the scores produced by the last decode step.
	Logits() ([]float32, error)
	// Embeddings returns the pooled embedding of the last decode step.
	Embeddings() ([]float32, error)
	Close() error
}

// Projector turns an image plus prompt into evaluable chunks.
type Projector interface {
	Tokenize(prompt, imagePath string) (Chunks, error)
	// Eval prefills the chunks into c starting at past and returns the new
	// position.
	Eval(c Context, chunks Chunks, past, batch int) (int, error)
	Close() error
}

// Chunks is a tokenized multimodal prompt.
type Chunks interface {
	NumTokens() int
	Close() error
}
