package manager

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"llmed/internal/llm/llmfake"
	"llmed/internal/sampling"
)

func TestQuery_StopsAtEOS(t *testing.T) {
	b := llmfake.New("Hel", "lo")
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	c, err := m.Query(testCtx(t), id, "say hello")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if c.Text != "Hello" || c.FinishReason != FinishEOS || c.Tokens != 2 {
		t.Fatalf("completion=%+v", c)
	}
	if n := b.Outstanding(llmfake.KindContext); n != 0 {
		t.Fatalf("context leaked: %d", n)
	}
	if b.Acquired(llmfake.KindModel) != 1 {
		t.Fatalf("weights reloaded per call: %d", b.Acquired(llmfake.KindModel))
	}
}

func TestQuery_RespectsStepBound(t *testing.T) {
	b := llmfake.New("a")
	b.Loop = true
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	c, err := m.Query(testCtx(t), id, "go on forever")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if c.Text == "" || c.Tokens > defaultMaxTokens || c.FinishReason != FinishLength {
		t.Fatalf("completion=%+v", c)
	}
	if c.Tokens != defaultMaxTokens || len(c.Text) != defaultMaxTokens {
		t.Fatalf("expected exactly %d tokens, got %d", defaultMaxTokens, c.Tokens)
	}

	c, err = m.QueryWith(testCtx(t), id, "short", GenerateOptions{MaxTokens: 3})
	if err != nil || c.Tokens != 3 || c.Text != "aaa" {
		t.Fatalf("max tokens: %+v err=%v", c, err)
	}
	c, err = m.QueryWith(testCtx(t), id, "capped", GenerateOptions{MaxTokens: 10_000})
	if err != nil || c.Tokens != defaultMaxTokens {
		t.Fatalf("request must not raise the bound: %+v err=%v", c, err)
	}
}

func TestQuery_TruncatesAtEndOfTurnMarker(t *testing.T) {
	b := llmfake.New("Hi", " there", "<|im_", "end|>", "junk")
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	c, err := m.Query(testCtx(t), id, "greet")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if c.Text != "Hi there" || c.FinishReason != FinishEndOfTurn {
		t.Fatalf("completion=%+v", c)
	}

	b2 := llmfake.New("ok", "<end_of_utterance>tail")
	m2 := newTestManager(t, b2, ManagerConfig{})
	id2 := mustLoad(t, m2, "chat")
	c, err = m2.Query(testCtx(t), id2, "x")
	if err != nil || c.Text != "ok" {
		t.Fatalf("completion=%+v err=%v", c, err)
	}
}

func TestQuery_GreedyIsDeterministic(t *testing.T) {
	b := llmfake.New("the", " same", " answer")
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	first, err := m.Query(testCtx(t), id, "what")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	second, err := m.Query(testCtx(t), id, "what")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if first != second {
		t.Fatalf("outputs differ: %+v vs %+v", first, second)
	}
	seeded, err := m.QueryWith(testCtx(t), id, "what", GenerateOptions{Sampling: sampling.Params{Temperature: 0.8, TopK: 1, Seed: 42}})
	if err != nil || seeded.Text != first.Text {
		t.Fatalf("top-k 1 sampling should match greedy: %+v err=%v", seeded, err)
	}
}

func TestQuery_PromptFillingWindowFailsPrefill(t *testing.T) {
	b := llmfake.New("a")
	b.Window = 4
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	// BOS + 3 words = 4 tokens >= window of 4.
	_, err := m.Query(testCtx(t), id, "one two three")
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Stage != StageWindow {
		t.Fatalf("expected window pipeline error, got %v", err)
	}
	if n := b.Outstanding(llmfake.KindContext); n != 0 {
		t.Fatalf("context leaked: %d", n)
	}
}

func TestQuery_WindowExhaustedDuringGeneration(t *testing.T) {
	b := llmfake.New("a")
	b.Loop = true
	b.Window = 4
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	c, err := m.Query(testCtx(t), id, "x")
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Stage != StageWindow {
		t.Fatalf("expected window error, got %v", err)
	}
	if pe.Partial != "aaa" || c.Text != "aaa" {
		t.Fatalf("partial=%q text=%q", pe.Partial, c.Text)
	}
}

func TestQuery_DecodeFailureKeepsPartial(t *testing.T) {
	b := llmfake.New("a", "b", "c")
	b.FailDecodeAt = 2
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "chat")
	_, err := m.Query(testCtx(t), id, "x")
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Stage != StageDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if PartialOutput(err) != "ab" {
		t.Fatalf("partial=%q", PartialOutput(err))
	}
}

func TestInference_WrongKindAndUnknownInstance(t *testing.T) {
	b := llmfake.New("a")
	m := newTestManager(t, b, ManagerConfig{})
	chat := mustLoad(t, m, "chat")
	emb := mustLoad(t, m, "embed")
	before := m.RunningModels()

	vec, err := m.Embed(testCtx(t), chat, "text")
	if !IsWrongKind(err) || vec != nil {
		t.Fatalf("embed on llm: vec=%v err=%v", vec, err)
	}
	if _, err := m.Query(testCtx(t), emb, "text"); !IsWrongKind(err) {
		t.Fatalf("query on embedding: %v", err)
	}
	if _, err := m.QueryImage(testCtx(t), chat, "text", writeImage(t)); !IsWrongKind(err) {
		t.Fatalf("query image on llm: %v", err)
	}
	if _, err := m.Query(testCtx(t), "ghost", "text"); !IsModelNotFound(err) {
		t.Fatalf("unknown id: %v", err)
	}
	after := m.RunningModels()
	if len(after) != len(before) {
		t.Fatalf("registry changed: %v -> %v", before, after)
	}
	if b.Acquired(llmfake.KindContext) != 0 {
		t.Fatalf("contexts created for rejected calls")
	}
	if m.Snapshot().InFlight != 0 {
		t.Fatalf("jobs leaked")
	}
}

func TestEmbed_ReturnsModelWidthVerbatim(t *testing.T) {
	b := llmfake.New()
	b.EmbeddingDim = 12
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "embed")
	v1, err := m.Embed(testCtx(t), id, "graph database")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v1) != 12 {
		t.Fatalf("len=%d", len(v1))
	}
	v2, _ := m.Embed(testCtx(t), id, "graph database")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
	cp := b.ContextParams()
	if len(cp) != 2 || !cp[0].Embeddings {
		t.Fatalf("context params=%+v", cp)
	}
	if b.Acquired(llmfake.KindContext) != 2 || b.Outstanding(llmfake.KindContext) != 0 {
		t.Fatalf("contexts not released per call")
	}
}

func TestQueryImage_UsesMultimodalContext(t *testing.T) {
	b := llmfake.New("a ", "cat")
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "vision")
	c, err := m.QueryImage(testCtx(t), id, "describe", writeImage(t))
	if err != nil {
		t.Fatalf("query image: %v", err)
	}
	if c.Text != "a cat" {
		t.Fatalf("text=%q", c.Text)
	}
	cp := b.ContextParams()
	if cp[0].WindowSize != defaultMMContextSize || cp[0].BatchSize != defaultMMBatchSize {
		t.Fatalf("context params=%+v", cp[0])
	}
	if b.Outstanding(llmfake.KindChunks) != 0 || b.Outstanding(llmfake.KindContext) != 0 {
		t.Fatalf("per-call resources leaked")
	}
	if b.Acquired(llmfake.KindProjector) != 1 {
		t.Fatalf("projector re-created per call")
	}
}

func TestQueryImage_MultimodalStepBound(t *testing.T) {
	b := llmfake.New("z")
	b.Loop = true
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "vision")
	c, err := m.QueryImage(testCtx(t), id, "describe", writeImage(t))
	if err != nil || c.Tokens != defaultMMMaxTokens || c.FinishReason != FinishLength {
		t.Fatalf("completion=%+v err=%v", c, err)
	}
}

func TestQueryImage_MissingImageIsInvalidInput(t *testing.T) {
	b := llmfake.New("x")
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "vision")
	_, err := m.QueryImage(testCtx(t), id, "describe", filepath.Join(t.TempDir(), "none.jpg"))
	if !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestQueryImage_WindowTooSmallForImage(t *testing.T) {
	b := llmfake.New("x")
	b.Window = 10
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "vision")
	_, err := m.QueryImage(testCtx(t), id, "describe", writeImage(t))
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Stage != StageWindow {
		t.Fatalf("expected window error, got %v", err)
	}
	if b.Outstanding(llmfake.KindChunks) != 0 {
		t.Fatalf("chunks leaked")
	}
}

func TestQueryImageBase64_NotImplemented(t *testing.T) {
	b := llmfake.New("x")
	m := newTestManager(t, b, ManagerConfig{})
	id := mustLoad(t, m, "vision")
	before := b.Acquired(llmfake.KindContext)
	text, err := m.QueryImageBase64(testCtx(t), id, "describe", "aGVsbG8=")
	if !IsNotImplemented(err) || text != Base64PlaceholderText {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if b.Acquired(llmfake.KindContext) != before {
		t.Fatalf("base64 path acquired resources")
	}
	if _, err := m.QueryImageBase64(testCtx(t), "ghost", "x", ""); !IsModelNotFound(err) {
		t.Fatalf("unknown id: %v", err)
	}
	chat := mustLoad(t, m, "chat")
	if _, err := m.QueryImageBase64(testCtx(t), chat, "x", ""); !IsWrongKind(err) {
		t.Fatalf("wrong kind: %v", err)
	}
}

func TestCancel_StopsInFlightGeneration(t *testing.T) {
	b := llmfake.New("tok ")
	b.Loop = true
	b.StepDelay = 5 * time.Millisecond
	hook, started := startedHook()
	b.DecodeHook = hook
	m := newTestManager(t, b, ManagerConfig{MaxTokens: 1 << 20})
	id := mustLoad(t, m, "chat")

	type result struct {
		c   Completion
		err error
	}
	done := make(chan result, 1)
	ctx := testCtx(t)
	go func() {
		c, err := m.Query(ctx, id, "stream please")
		done <- result{c, err}
	}()
	waitStarted(t, started)
	if m.Snapshot().InFlight != 1 {
		t.Fatalf("in-flight=%d", m.Snapshot().InFlight)
	}
	if !m.Cancel() {
		t.Fatalf("cancel returned false")
	}
	select {
	case r := <-done:
		if !IsCancelled(r.err) || !IsPipelineError(r.err) {
			t.Fatalf("expected cancelled pipeline error, got %v", r.err)
		}
		if !strings.HasPrefix(PartialOutput(r.err), "tok ") {
			t.Fatalf("partial=%q", PartialOutput(r.err))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("generation ignored cancel")
	}
	if m.Status() != StatusCancelled {
		t.Fatalf("status=%q", m.Status())
	}
	if m.Snapshot().InFlight != 0 {
		t.Fatalf("job not removed")
	}
}

func TestUnload_DuringGenerationFreesAfterReturn(t *testing.T) {
	b := llmfake.New("w")
	b.Loop = true
	b.StepDelay = 5 * time.Millisecond
	hook, started := startedHook()
	b.DecodeHook = hook
	m := newTestManager(t, b, ManagerConfig{MaxTokens: 1 << 20})
	id := mustLoad(t, m, "chat")

	done := make(chan error, 1)
	ctx := testCtx(t)
	go func() {
		_, err := m.Query(ctx, id, "long")
		done <- err
	}()
	waitStarted(t, started)

	// Status and registry calls must not wait for the generation.
	statusDone := make(chan string, 1)
	go func() { statusDone <- m.Status() }()
	select {
	case <-statusDone:
	case <-time.After(time.Second):
		t.Fatalf("status blocked by generation")
	}

	if !m.Unload(id) {
		t.Fatalf("unload")
	}
	if b.Outstanding(llmfake.KindModel) != 1 {
		t.Fatalf("weights freed while generation still running")
	}
	m.Cancel()
	if err := <-done; !IsCancelled(err) {
		t.Fatalf("err=%v", err)
	}
	assertBalanced(t, b)
}

func TestAdmission_QueueFullIsTooBusy(t *testing.T) {
	b := llmfake.New("q")
	b.Loop = true
	b.StepDelay = 5 * time.Millisecond
	hook, started := startedHook()
	b.DecodeHook = hook
	m := newTestManager(t, b, ManagerConfig{MaxTokens: 1 << 20, MaxQueueDepth: 1, MaxWait: 50 * time.Millisecond})
	id := mustLoad(t, m, "chat")

	done := make(chan error, 1)
	ctx := testCtx(t)
	go func() {
		_, err := m.Query(ctx, id, "hold")
		done <- err
	}()
	waitStarted(t, started)

	_, err := m.Query(ctx, id, "second")
	if !IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}
	m.Cancel()
	<-done
	if m.Snapshot().InFlight != 0 {
		t.Fatalf("jobs leaked")
	}
}
