package manager

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llmed/internal/common/fsutil"
	"llmed/internal/llm"
	"llmed/pkg/types"
)

// Base64PlaceholderText is returned by QueryImageBase64.
const Base64PlaceholderText = "base64 decoding not implemented"

// job is one in-flight inference call.
type job struct {
	id         string
	instanceID string
	op         string
	started    time.Time
	cancel     context.CancelCauseFunc
}

// borrow validates the instance and its kind, takes a reference on its
// resources and registers a cancellable job.
func (m *Manager) borrow(ctx context.Context, id string, want types.ModelKind, opName string) (*lease, context.Context, error) {
	jctx, cancel := context.WithCancelCause(ctx)
	j := &job{id: uuid.NewString(), instanceID: id, op: opName, started: time.Now(), cancel: cancel}
	var inst *Instance
	var err error
	if derr := m.do(func(s *state) {
		inst = s.instances[id]
		switch {
		case inst == nil:
			err = ErrModelNotFound(id)
		case inst.Desc.Kind != want:
			err = wrongKindError{id: id, want: want, got: inst.Desc.Kind}
		case !inst.res.retain():
			err = ErrModelNotFound(id)
		default:
			s.jobs[j.id] = j
		}
	}); derr != nil {
		err = derr
	}
	if err != nil {
		cancel(nil)
		return nil, nil, err
	}
	return &lease{inst: inst, job: j, m: m}, jctx, nil
}

// admit borrows the instance and waits for its generation slot.
func (m *Manager) admit(ctx context.Context, id string, want types.ModelKind, opName string) (*lease, context.Context, func(), error) {
	l, jctx, err := m.borrow(ctx, id, want, opName)
	if err != nil {
		return nil, nil, nil, err
	}
	done, err := m.beginGeneration(jctx, l.inst)
	if err != nil {
		l.Release()
		return nil, nil, nil, err
	}
	return l, jctx, func() { done(); l.Release() }, nil
}

func (m *Manager) jobLogger(l *lease) zerolog.Logger {
	return m.log.With().Str("model", l.inst.Desc.InstanceID).Str("job", l.job.id).Str("op", l.job.op).Logger()
}

func (m *Manager) newContext(model llm.Model, p llm.ContextParams) (llm.Context, error) {
	ectx, err := model.NewContext(p)
	if err != nil {
		return nil, &ResourceError{Resource: "context", Err: err}
	}
	return ectx, nil
}

func closeWithLog(log zerolog.Logger, what string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msgf("free %s", what)
	}
}

// Embed returns the embedding of text computed by an embedding instance.
// The vector has the model's embedding width and is returned verbatim.
func (m *Manager) Embed(ctx context.Context, id, text string) ([]float32, error) {
	l, jctx, done, err := m.admit(ctx, id, types.KindEmbedding, "embed")
	if err != nil {
		return nil, err
	}
	defer done()
	start := time.Now()
	log := m.jobLogger(l)
	vec, err := m.embed(jctx, l, text, log)
	m.finish(l, start, len(vec), "", err)
	return vec, err
}

func (m *Manager) embed(ctx context.Context, l *lease, text string, log zerolog.Logger) ([]float32, error) {
	model := l.model()
	ectx, err := m.newContext(model, llm.ContextParams{
		WindowSize: m.cfg.ContextSize,
		BatchSize:  m.cfg.BatchSize,
		Threads:    m.cfg.Threads,
		Embeddings: true,
	})
	if err != nil {
		return nil, err
	}
	defer closeWithLog(log, "context", ectx)

	toks, err := tokenize(model, text)
	if err != nil {
		return nil, err
	}
	if err := prefill(ectx, toks); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, &PipelineError{Stage: StagePrefill, Err: context.Cause(ctx)}
	}
	emb, err := ectx.Embeddings()
	if err != nil {
		return nil, &PipelineError{Stage: StageDecode, Err: err}
	}
	if n := model.EmbeddingSize(); len(emb) != n {
		return nil, &PipelineError{Stage: StageDecode, Err: errEmbeddingWidth(len(emb), n)}
	}
	return append([]float32(nil), emb...), nil
}

// Query generates text from a text-generation instance with greedy decoding
// and the default step bound.
func (m *Manager) Query(ctx context.Context, id, text string) (Completion, error) {
	return m.QueryWith(ctx, id, text, GenerateOptions{})
}

// QueryWith is Query with explicit sampling and step bound.
func (m *Manager) QueryWith(ctx context.Context, id, text string, opts GenerateOptions) (Completion, error) {
	l, jctx, done, err := m.admit(ctx, id, types.KindTextGeneration, "query")
	if err != nil {
		return Completion{}, err
	}
	defer done()
	start := time.Now()
	log := m.jobLogger(l)
	c, err := m.query(jctx, l, text, opts, log)
	m.finish(l, start, c.Tokens, c.FinishReason, err)
	return c, err
}

func (m *Manager) query(ctx context.Context, l *lease, text string, opts GenerateOptions, log zerolog.Logger) (Completion, error) {
	model := l.model()
	ectx, err := m.newContext(model, llm.ContextParams{
		WindowSize: m.cfg.ContextSize,
		BatchSize:  m.cfg.BatchSize,
		Threads:    m.cfg.Threads,
	})
	if err != nil {
		return Completion{}, err
	}
	defer closeWithLog(log, "context", ectx)

	toks, err := tokenize(model, text)
	if err != nil {
		return Completion{}, err
	}
	if err := prefill(ectx, toks); err != nil {
		return Completion{}, err
	}
	return generate(ctx, model, ectx, len(toks), m.genParams(opts, m.cfg.MaxTokens), log)
}

// QueryImage answers text about the image at imagePath with a multimodal
// instance.
func (m *Manager) QueryImage(ctx context.Context, id, text, imagePath string) (Completion, error) {
	return m.QueryImageWith(ctx, id, text, imagePath, GenerateOptions{})
}

// QueryImageWith is QueryImage with explicit sampling and step bound.
func (m *Manager) QueryImageWith(ctx context.Context, id, text, imagePath string, opts GenerateOptions) (Completion, error) {
	l, jctx, done, err := m.admit(ctx, id, types.KindMultimodal, "query_image")
	if err != nil {
		return Completion{}, err
	}
	defer done()
	if !fsutil.FileExists(imagePath) {
		return Completion{}, invalidInputError{msg: "image not found: " + imagePath}
	}
	start := time.Now()
	log := m.jobLogger(l)
	c, err := m.queryImage(jctx, l, text, imagePath, opts, log)
	m.finish(l, start, c.Tokens, c.FinishReason, err)
	return c, err
}

func (m *Manager) queryImage(ctx context.Context, l *lease, text, imagePath string, opts GenerateOptions, log zerolog.Logger) (Completion, error) {
	model, proj := l.model(), l.projector()
	ectx, err := m.newContext(model, llm.ContextParams{
		WindowSize: m.cfg.MMContextSize,
		BatchSize:  m.cfg.MMBatchSize,
		Threads:    m.cfg.Threads,
	})
	if err != nil {
		return Completion{}, err
	}
	defer closeWithLog(log, "context", ectx)

	prompt := strings.Replace(m.cfg.ImagePrompt, "{text}", text, 1)
	chunks, err := proj.Tokenize(prompt, imagePath)
	if err != nil {
		return Completion{}, &PipelineError{Stage: StageTokenize, Err: err}
	}
	defer closeWithLog(log, "chunks", chunks)
	if err := fitsWindow(ectx, chunks.NumTokens()); err != nil {
		return Completion{}, err
	}
	past, err := proj.Eval(ectx, chunks, 0, m.cfg.MMBatchSize)
	if err != nil {
		return Completion{}, &PipelineError{Stage: StagePrefill, Err: err}
	}
	log.Debug().Int("prompt_tokens", chunks.NumTokens()).Int("past", past).Msg("image prompt evaluated")
	return generate(ctx, model, ectx, past, m.genParams(opts, m.cfg.MMMaxTokens), log)
}

// QueryImageBase64 validates the instance like QueryImage but does not
// decode images: it acquires nothing and returns Base64PlaceholderText with
// ErrNotImplemented.
func (m *Manager) QueryImageBase64(ctx context.Context, id, text, imageBase64 string) (string, error) {
	var err error
	if derr := m.do(func(s *state) {
		inst := s.instances[id]
		switch {
		case inst == nil:
			err = ErrModelNotFound(id)
		case inst.Desc.Kind != types.KindMultimodal:
			err = wrongKindError{id: id, want: types.KindMultimodal, got: inst.Desc.Kind}
		}
	}); derr != nil {
		return "", derr
	}
	if err != nil {
		return "", err
	}
	return Base64PlaceholderText, ErrNotImplemented
}

// finish records metrics and publishes the outcome of a call.
func (m *Manager) finish(l *lease, start time.Time, tokens int, reason FinishReason, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsCancelled(err):
		result = "cancelled"
	default:
		result = "error"
	}
	op := l.job.op
	generationsTotal.WithLabelValues(op, result).Inc()
	generationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if op != "embed" {
		generatedTokens.WithLabelValues(op).Add(float64(tokens))
	}
	fields := map[string]any{"op": op, "job": l.job.id, "tokens": tokens, "result": result}
	if reason != "" {
		fields["finish"] = string(reason)
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.pub.Publish(Event{Name: "generation_done", ModelID: l.inst.Desc.InstanceID, Fields: fields})
}
