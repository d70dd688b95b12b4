// Package llmfake provides an instrumented in-memory llm.Backend for tests.
// Every native handle it hands out is counted on acquire and release so tests
// can assert that each call path leaves the books balanced.
package llmfake

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"time"

	"llmed/internal/llm"
)

// Kind names a resource class tracked by the fake.
type Kind string

const (
	KindModel     Kind = "model"
	KindContext   Kind = "context"
	KindProjector Kind = "projector"
	KindChunks    Kind = "chunks"
)

// Special token ids.
const (
	EOS llm.Token = 0
	BOS llm.Token = 1
)

const wordBuckets = 256

// Backend scripts model behaviour. Fields must be set before first use.
type Backend struct {
	// Reply holds the pieces generated in order; EOS follows the last one.
	Reply []string
	// Loop cycles Reply forever instead of emitting EOS.
	Loop bool
	// EmbeddingDim is the embedding width (default 8).
	EmbeddingDim int
	// Window overrides the requested context window when > 0.
	Window int
	// ImageTokens is the number of positions an image occupies (default 16).
	ImageTokens int
	// StepDelay sleeps before each generation decode.
	StepDelay time.Duration
	// DecodeHook is called with the generation step before each decode.
	DecodeHook func(step int)

	FailLoad      error
	FailContext   error
	FailProjector error
	FailTokenize  error
	FailPrefill   error
	// FailDecodeAt fails the n-th generation decode (1-based); 0 disables.
	FailDecodeAt int

	mu            sync.Mutex
	acquired      map[Kind]int
	released      map[Kind]int
	modelParams   []llm.ModelParams
	contextParams []llm.ContextParams
}

// New returns a backend that generates reply and then EOS.
func New(reply ...string) *Backend {
	return &Backend{Reply: reply}
}

func (b *Backend) Name() string { return "fake" }

func (b *Backend) acquire(k Kind) {
	b.mu.Lock()
	if b.acquired == nil {
		b.acquired = map[Kind]int{}
		b.released = map[Kind]int{}
	}
	b.acquired[k]++
	b.mu.Unlock()
}

func (b *Backend) release(k Kind) {
	b.mu.Lock()
	if b.released == nil {
		b.acquired = map[Kind]int{}
		b.released = map[Kind]int{}
	}
	b.released[k]++
	b.mu.Unlock()
}

// Acquired returns how many handles of kind k were handed out.
func (b *Backend) Acquired(k Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquired[k]
}

// Released returns how many handles of kind k were closed.
func (b *Backend) Released(k Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released[k]
}

// Outstanding returns acquired minus released for kind k.
func (b *Backend) Outstanding(k Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquired[k] - b.released[k]
}

// Balanced reports whether every acquired handle has been released. On
// failure the returned string describes the first imbalance.
func (b *Backend) Balanced() (bool, string) {
	for _, k := range []Kind{KindModel, KindContext, KindProjector, KindChunks} {
		if n := b.Outstanding(k); n != 0 {
			return false, fmt.Sprintf("%s: acquired=%d released=%d", k, b.Acquired(k), b.Released(k))
		}
	}
	return true, ""
}

// ModelParams returns the parameters of every LoadModel call.
func (b *Backend) ModelParams() []llm.ModelParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.ModelParams(nil), b.modelParams...)
}

// ContextParams returns the parameters of every NewContext call.
func (b *Backend) ContextParams() []llm.ContextParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.ContextParams(nil), b.contextParams...)
}

func (b *Backend) LoadModel(path string, p llm.ModelParams) (llm.Model, error) {
	b.mu.Lock()
	b.modelParams = append(b.modelParams, p)
	b.mu.Unlock()
	if b.FailLoad != nil {
		return nil, b.FailLoad
	}
	b.acquire(KindModel)
	return &model{b: b, path: path}, nil
}

type model struct {
	b      *Backend
	path   string
	closed bool
}

// ReplyToken returns the token id the fake emits for Reply[i].
func ReplyToken(i int) llm.Token { return llm.Token(2 + i) }

func (m *model) wordToken(w string) llm.Token {
	h := fnv.New32a()
	_, _ = h.Write([]byte(w))
	return llm.Token(2 + len(m.b.Reply) + int(h.Sum32()%wordBuckets))
}

func (m *model) Tokenize(text string, addSpecial, parseSpecial bool) ([]llm.Token, error) {
	if m.b.FailTokenize != nil {
		return nil, m.b.FailTokenize
	}
	var out []llm.Token
	if addSpecial {
		out = append(out, BOS)
	}
	for _, w := range strings.Fields(text) {
		out = append(out, m.wordToken(w))
	}
	return out, nil
}

func (m *model) TokenToPiece(tok llm.Token) string {
	i := int(tok) - 2
	switch {
	case tok == EOS || tok == BOS:
		return ""
	case i < len(m.b.Reply):
		return m.b.Reply[i]
	default:
		return "?"
	}
}

func (m *model) EOS() llm.Token { return EOS }

func (m *model) NumVocab() int { return 2 + len(m.b.Reply) + wordBuckets }

func (m *model) EmbeddingSize() int {
	if m.b.EmbeddingDim > 0 {
		return m.b.EmbeddingDim
	}
	return 8
}

func (m *model) NewContext(p llm.ContextParams) (llm.Context, error) {
	m.b.mu.Lock()
	m.b.contextParams = append(m.b.contextParams, p)
	m.b.mu.Unlock()
	if m.b.FailContext != nil {
		return nil, m.b.FailContext
	}
	w := p.WindowSize
	if m.b.Window > 0 {
		w = m.b.Window
	}
	m.b.acquire(KindContext)
	return &execContext{m: m, window: w}, nil
}

func (m *model) NewProjector(path string) (llm.Projector, error) {
	if m.b.FailProjector != nil {
		return nil, m.b.FailProjector
	}
	m.b.acquire(KindProjector)
	return &projector{m: m}, nil
}

func (m *model) Close() error {
	if m.closed {
		return errors.New("model closed twice")
	}
	m.closed = true
	m.b.release(KindModel)
	return nil
}

type execContext struct {
	m       *model
	window  int
	past    int
	prefill bool
	steps   int
	sum     int64
	closed  bool
}

func (c *execContext) WindowSize() int { return c.window }

func (c *execContext) advance(n int) error {
	if c.window > 0 && c.past+n > c.window {
		return fmt.Errorf("kv cache full: %d+%d > %d", c.past, n, c.window)
	}
	c.past += n
	return nil
}

func (c *execContext) Decode(tokens []llm.Token) error {
	b := c.m.b
	if !c.prefill {
		c.prefill = true
		if b.FailPrefill != nil {
			return b.FailPrefill
		}
		for _, t := range tokens {
			c.sum += int64(t)
		}
		return c.advance(len(tokens))
	}
	c.steps++
	if b.DecodeHook != nil {
		b.DecodeHook(c.steps)
	}
	if b.StepDelay > 0 {
		time.Sleep(b.StepDelay)
	}
	if b.FailDecodeAt > 0 && c.steps == b.FailDecodeAt {
		return fmt.Errorf("decode failed at step %d", c.steps)
	}
	return c.advance(len(tokens))
}

// next is the token the fake predicts after c.steps generation decodes.
func (c *execContext) next() llm.Token {
	reply := c.m.b.Reply
	if len(reply) == 0 {
		return EOS
	}
	i := c.steps
	if i >= len(reply) {
		if !c.m.b.Loop {
			return EOS
		}
		i %= len(reply)
	}
	return ReplyToken(i)
}

func (c *execContext) Logits() ([]float32, error) {
	if !c.prefill {
		return nil, errors.New("logits before decode")
	}
	out := make([]float32, c.m.NumVocab())
	for i := range out {
		out[i] = -1
	}
	out[c.next()] = 10
	return out, nil
}

func (c *execContext) Embeddings() ([]float32, error) {
	if !c.prefill {
		return nil, errors.New("embeddings before decode")
	}
	out := make([]float32, c.m.EmbeddingSize())
	for i := range out {
		out[i] = float32((c.sum+int64(i))%97) / 97
	}
	return out, nil
}

func (c *execContext) Close() error {
	if c.closed {
		return errors.New("context closed twice")
	}
	c.closed = true
	c.m.b.release(KindContext)
	return nil
}

type projector struct {
	m      *model
	closed bool
}

type chunks struct {
	b      *Backend
	n      int
	closed bool
}

func (ch *chunks) NumTokens() int { return ch.n }

func (ch *chunks) Close() error {
	if ch.closed {
		return errors.New("chunks closed twice")
	}
	ch.closed = true
	ch.b.release(KindChunks)
	return nil
}

func (p *projector) Tokenize(prompt, imagePath string) (llm.Chunks, error) {
	b := p.m.b
	if b.FailTokenize != nil {
		return nil, b.FailTokenize
	}
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	img := b.ImageTokens
	if img <= 0 {
		img = 16
	}
	text := strings.ReplaceAll(prompt, llm.MediaMarker, " ")
	b.acquire(KindChunks)
	return &chunks{b: b, n: len(strings.Fields(text)) + img}, nil
}

func (p *projector) Eval(c llm.Context, ch llm.Chunks, past, batch int) (int, error) {
	fc, ok := c.(*execContext)
	if !ok {
		return past, errors.New("foreign context")
	}
	n := ch.NumTokens()
	if !fc.prefill {
		fc.prefill = true
		if p.m.b.FailPrefill != nil {
			return past, p.m.b.FailPrefill
		}
	}
	fc.sum += int64(n)
	if err := fc.advance(n); err != nil {
		return past, err
	}
	return past + n, nil
}

func (p *projector) Close() error {
	if p.closed {
		return errors.New("projector closed twice")
	}
	p.closed = true
	p.m.b.release(KindProjector)
	return nil
}
