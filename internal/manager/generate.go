package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"llmed/internal/llm"
	"llmed/internal/sampling"
)

// debugTokens is how many leading tokens are logged at debug level.
const debugTokens = 10

// GenerationState is the running state of the decode/sample loop.
type GenerationState struct {
	Tokens []llm.Token
	Past   int
	Output string
	Steps  int
	Stop   bool
	Reason FinishReason
}

type genParams struct {
	maxSteps int
	sampler  sampling.Sampler
	markers  []string
}

// GenerateOptions tunes one text-producing call.
type GenerateOptions struct {
	// MaxTokens lowers the step bound; zero or larger values keep the default.
	MaxTokens int
	Sampling  sampling.Params
}

func (m *Manager) genParams(opts GenerateOptions, bound int) genParams {
	steps := bound
	if opts.MaxTokens > 0 && opts.MaxTokens < bound {
		steps = opts.MaxTokens
	}
	return genParams{maxSteps: steps, sampler: sampling.New(opts.Sampling), markers: m.cfg.EndMarkers}
}

func tokenize(model llm.Model, text string) ([]llm.Token, error) {
	toks, err := model.Tokenize(text, true, false)
	if err != nil {
		return nil, &PipelineError{Stage: StageTokenize, Err: err}
	}
	if len(toks) == 0 {
		return nil, &PipelineError{Stage: StageTokenize, Err: errors.New("prompt produced no tokens")}
	}
	return toks, nil
}

// fitsWindow rejects prompts that leave no room in the context window.
func fitsWindow(ectx llm.Context, n int) error {
	if w := ectx.WindowSize(); w > 0 && n >= w {
		return &PipelineError{Stage: StageWindow, Err: fmt.Errorf("prompt of %d tokens does not fit window of %d", n, w)}
	}
	return nil
}

// prefill submits the whole prompt in one decode step.
func prefill(ectx llm.Context, toks []llm.Token) error {
	if err := fitsWindow(ectx, len(toks)); err != nil {
		return err
	}
	if err := ectx.Decode(toks); err != nil {
		return &PipelineError{Stage: StagePrefill, Err: err}
	}
	return nil
}

// earliestMarker returns the lowest index in out at which a marker starts,
// searching from `from`, or -1.
func earliestMarker(out string, from int, markers []string) int {
	best := -1
	for _, mk := range markers {
		if mk == "" {
			continue
		}
		if i := strings.Index(out[from:], mk); i >= 0 && (best < 0 || from+i < best) {
			best = from + i
		}
	}
	return best
}

func maxLen(ss []string) int {
	n := 0
	for _, s := range ss {
		n = max(n, len(s))
	}
	return n
}

// generate runs the decode/sample loop after prefill left the context at
// position past. Each step samples from the last logits, stops on EOS or an
// end-of-turn marker (output truncated at the marker), and otherwise feeds
// the token back. Reaching maxSteps is a normal stop. Cancellation is
// checked once per token. Failures carry the partial output.
func generate(ctx context.Context, model llm.Model, ectx llm.Context, past int, p genParams, log zerolog.Logger) (Completion, error) {
	st := GenerationState{Past: past}
	var out strings.Builder
	window := ectx.WindowSize()
	eos := model.EOS()
	markerLen := maxLen(p.markers)

	fail := func(stage Stage, err error) (Completion, error) {
		st.Output = out.String()
		log.Debug().Str("stage", string(stage)).Int("steps", st.Steps).Err(err).Msg("generation stopped")
		return Completion{Text: st.Output, Tokens: len(st.Tokens)}, &PipelineError{Stage: stage, Partial: st.Output, Err: err}
	}

	for !st.Stop {
		if ctx.Err() != nil {
			return fail(StageDecode, context.Cause(ctx))
		}
		logits, err := ectx.Logits()
		if err != nil {
			return fail(StageDecode, err)
		}
		tok := p.sampler.Sample(logits)
		if tok < 0 {
			return fail(StageDecode, errors.New("no candidate token"))
		}
		next := llm.Token(tok)
		if len(st.Tokens) < debugTokens {
			log.Debug().Int("step", st.Steps).Int32("token", next).Msg("sampled")
		}
		if next == eos {
			st.Stop, st.Reason = true, FinishEOS
			break
		}
		st.Tokens = append(st.Tokens, next)
		piece := model.TokenToPiece(next)
		from := max(0, out.Len()-markerLen+1)
		out.WriteString(piece)
		if i := earliestMarker(out.String(), from, p.markers); i >= 0 {
			truncated := out.String()[:i]
			out.Reset()
			out.WriteString(truncated)
			st.Stop, st.Reason = true, FinishEndOfTurn
			break
		}
		if window > 0 && st.Past+1 > window {
			return fail(StageWindow, fmt.Errorf("position %d exceeds window of %d", st.Past+1, window))
		}
		if err := ectx.Decode([]llm.Token{next}); err != nil {
			return fail(StageDecode, err)
		}
		st.Past++
		st.Steps++
		if st.Steps >= p.maxSteps {
			st.Stop, st.Reason = true, FinishLength
		}
	}
	st.Output = out.String()
	log.Debug().Str("finish", string(st.Reason)).Int("tokens", len(st.Tokens)).Int("chars", len(st.Output)).Msg("generation done")
	return Completion{Text: st.Output, FinishReason: st.Reason, Tokens: len(st.Tokens)}, nil
}
