package manager

import (
	"errors"
	"fmt"

	"llmed/internal/llm"
	"llmed/pkg/types"
)

var (
	// ErrCancelled is the cause attached to generations stopped by Cancel.
	ErrCancelled = errors.New("generation cancelled")
	// ErrNotImplemented marks operations that are accepted but not supported.
	ErrNotImplemented = errors.New("not implemented")
	// ErrClosed is returned once the manager has shut down.
	ErrClosed = errors.New("manager closed")
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelNotFoundError covers unknown catalog names and unknown instance ids.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

type wrongKindError struct {
	id   string
	want types.ModelKind
	got  types.ModelKind
}

func (e wrongKindError) Error() string {
	return fmt.Sprintf("model %s is %s, operation needs %s", e.id, e.got, e.want)
}

// IsWrongKind reports whether an operation was invoked on an instance of the
// wrong model kind.
func IsWrongKind(err error) bool {
	var e wrongKindError
	return errors.As(err, &e)
}

type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return "invalid input: " + e.msg }

// IsInvalidInput reports caller errors such as a missing image file.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}

// ResourceError reports a failure to acquire a native resource.
type ResourceError struct {
	Resource string // weights, context, projector
	Path     string
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("acquire %s %s: %v", e.Resource, e.Path, e.Err)
	}
	return fmt.Sprintf("acquire %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// IsResourceError reports whether err is a resource acquisition failure.
func IsResourceError(err error) bool {
	var e *ResourceError
	return errors.As(err, &e)
}

// Stage names the pipeline step that failed.
type Stage string

const (
	StageTokenize Stage = "tokenize"
	StagePrefill  Stage = "prefill"
	StageDecode   Stage = "decode"
	StageWindow   Stage = "window"
)

// PipelineError is a failure inside tokenize/prefill/decode. Partial holds
// the output generated before the failure.
type PipelineError struct {
	Stage   Stage
	Partial string
	Err     error
}

func (e *PipelineError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *PipelineError) Unwrap() error { return e.Err }

// IsPipelineError reports whether err came from the inference pipeline.
func IsPipelineError(err error) bool {
	var e *PipelineError
	return errors.As(err, &e)
}

// PartialOutput returns the text generated before a pipeline failure.
func PartialOutput(err error) string {
	var e *PipelineError
	if errors.As(err, &e) {
		return e.Partial
	}
	return ""
}

// IsCancelled reports whether err resulted from Cancel.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsNotImplemented reports whether err marks an unsupported operation.
func IsNotImplemented(err error) bool { return errors.Is(err, ErrNotImplemented) }

// dependencyUnavailableError signals a missing native backend so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e) || errors.Is(err, llm.ErrUnavailable)
}

func errEmbeddingWidth(got, want int) error {
	return fmt.Errorf("embedding width %d, model reports %d", got, want)
}
