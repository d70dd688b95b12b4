//go:build yzma

package llm

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
	"github.com/hybridgroup/yzma/pkg/mtmd"
)

var (
	initOnce sync.Once
	initErr  error
)

type yzmaBackend struct{}

// NewYzmaBackend loads the llama.cpp shared libraries from libPath once per
// process. An empty libPath falls back to $YZMA_LIB.
func NewYzmaBackend(libPath string) (Backend, error) {
	initOnce.Do(func() {
		if libPath == "" {
			libPath = os.Getenv("YZMA_LIB")
		}
		if libPath == "" {
			initErr = fmt.Errorf("%w: no library path", ErrUnavailable)
			return
		}
		if err := llama.Load(libPath); err != nil {
			initErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		if err := mtmd.Load(libPath); err != nil {
			initErr = fmt.Errorf("%w: mtmd: %v", ErrUnavailable, err)
			return
		}
		llama.Init()
	})
	if initErr != nil {
		return nil, initErr
	}
	return yzmaBackend{}, nil
}

func (yzmaBackend) Name() string { return "yzma" }

func (yzmaBackend) LoadModel(path string, p ModelParams) (Model, error) {
	params := llama.ModelDefaultParams()
	params.NGpuLayers = int32(p.GPULayers)
	m, err := llama.ModelLoadFromFile(path, params)
	if err != nil {
		return nil, err
	}
	return &yzmaModel{m: m, vocab: llama.ModelGetVocab(m)}, nil
}

type yzmaModel struct {
	m     llama.Model
	vocab llama.Vocab
}

func (m *yzmaModel) Tokenize(text string, addSpecial, parseSpecial bool) ([]Token, error) {
	toks := llama.Tokenize(m.vocab, text, addSpecial, parseSpecial)
	if len(toks) == 0 && text != "" {
		return nil, errors.New("tokenize produced no tokens")
	}
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = Token(t)
	}
	return out, nil
}

func (m *yzmaModel) TokenToPiece(tok Token) string {
	buf := make([]byte, 256)
	n := llama.TokenToPiece(m.vocab, llama.Token(tok), buf, 0, true)
	if n <= 0 {
		return ""
	}
	return string(buf[:n])
}

func (m *yzmaModel) EOS() Token         { return Token(llama.VocabEOS(m.vocab)) }
func (m *yzmaModel) NumVocab() int      { return int(llama.VocabNTokens(m.vocab)) }
func (m *yzmaModel) EmbeddingSize() int { return int(llama.ModelNEmbd(m.m)) }

func (m *yzmaModel) NewContext(p ContextParams) (Context, error) {
	params := llama.ContextDefaultParams()
	if p.WindowSize > 0 {
		params.NCtx = uint32(p.WindowSize)
	}
	if p.BatchSize > 0 {
		params.NBatch = uint32(p.BatchSize)
	}
	if p.Threads > 0 {
		params.NThreads = int32(p.Threads)
	}
	if p.Embeddings {
		params.Embeddings = 1
	}
	c, err := llama.InitFromModel(m.m, params)
	if err != nil {
		return nil, err
	}
	return &yzmaContext{c: c, model: m, window: int(llama.NCtx(c))}, nil
}

func (m *yzmaModel) NewProjector(path string) (Projector, error) {
	params := mtmd.ContextParamsDefault()
	params.MediaMarker = MediaMarker
	pc, err := mtmd.InitFromFile(path, m.m, params)
	if err != nil {
		return nil, err
	}
	return &yzmaProjector{pc: pc}, nil
}

func (m *yzmaModel) Close() error {
	llama.ModelFree(m.m)
	return nil
}

type yzmaContext struct {
	c      llama.Context
	model  *yzmaModel
	window int
}

func (c *yzmaContext) WindowSize() int { return c.window }

func (c *yzmaContext) Decode(tokens []Token) error {
	toks := make([]llama.Token, len(tokens))
	for i, t := range tokens {
		toks[i] = llama.Token(t)
	}
	rc, err := llama.Decode(c.c, llama.BatchGetOne(toks))
	if err != nil {
		return err
	}
	if rc != 0 {
		return fmt.Errorf("decode status %d", rc)
	}
	return nil
}

func (c *yzmaContext) Logits() ([]float32, error) {
	return llama.GetLogitsIth(c.c, -1, c.model.NumVocab())
}

func (c *yzmaContext) Embeddings() ([]float32, error) {
	return llama.GetEmbeddings(c.c, 1, c.model.EmbeddingSize())
}

func (c *yzmaContext) Close() error {
	llama.Free(c.c)
	return nil
}

type yzmaProjector struct {
	pc mtmd.Context
}

type yzmaChunks struct {
	ch mtmd.InputChunks
}

func (y yzmaChunks) NumTokens() int { return int(mtmd.HelperGetNTokens(y.ch)) }

func (y yzmaChunks) Close() error {
	mtmd.InputChunksFree(y.ch)
	return nil
}

func (p *yzmaProjector) Tokenize(prompt, imagePath string) (Chunks, error) {
	bitmap := mtmd.BitmapInitFromFile(p.pc, imagePath)
	if bitmap == 0 {
		return nil, fmt.Errorf("load image %s", imagePath)
	}
	defer mtmd.BitmapFree(bitmap)
	out := mtmd.InputChunksInit()
	text := mtmd.NewInputText(prompt, true, true)
	if rc := mtmd.Tokenize(p.pc, out, text, []mtmd.Bitmap{bitmap}); rc != 0 {
		mtmd.InputChunksFree(out)
		return nil, fmt.Errorf("mtmd tokenize status %d", rc)
	}
	return yzmaChunks{ch: out}, nil
}

func (p *yzmaProjector) Eval(c Context, chunks Chunks, past, batch int) (int, error) {
	yc, ok := c.(*yzmaContext)
	if !ok {
		return past, errors.New("projector: foreign context")
	}
	ych, ok := chunks.(yzmaChunks)
	if !ok {
		return past, errors.New("projector: foreign chunks")
	}
	newPast := llama.Pos(past)
	if rc := mtmd.HelperEvalChunks(p.pc, yc.c, ych.ch, llama.Pos(past), 0, int32(batch), true, &newPast); rc != 0 {
		return past, fmt.Errorf("eval chunks status %d", rc)
	}
	return int(newPast), nil
}

func (p *yzmaProjector) Close() error {
	mtmd.Free(p.pc)
	return nil
}
