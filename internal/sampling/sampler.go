// Package sampling selects the next token from a logits vector.
package sampling

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// Params configures a sampler. A zero Temperature selects greedy decoding.
type Params struct {
	Temperature float64
	TopK        int
	TopP        float64
	Seed        int64
}

// Greedy reports whether p selects arg-max decoding.
func (p Params) Greedy() bool { return p.Temperature <= 0 }

// Sampler picks a token index from logits. Implementations may keep state
// between calls and are not safe for concurrent use.
type Sampler interface {
	Sample(logits []float32) int
}

// New returns Greedy for zero temperature and a seeded Stochastic otherwise.
func New(p Params) Sampler {
	if p.Greedy() {
		return Greedy{}
	}
	return NewStochastic(p)
}

// Greedy always selects the highest-scoring token.
type Greedy struct{}

func (Greedy) Sample(logits []float32) int { return ArgMax(logits) }

// ArgMax returns the index of the largest finite-or-infinite non-NaN value.
// Ties resolve to the lowest index. It returns -1 for an empty or all-NaN
// slice.
func ArgMax(logits []float32) int {
	best := -1
	for i, v := range logits {
		if math.IsNaN(float64(v)) {
			continue
		}
		if best < 0 || v > logits[best] {
			best = i
		}
	}
	return best
}

// Stochastic samples from the temperature-scaled softmax restricted to the
// top-k candidates and then to the top-p probability mass.
type Stochastic struct {
	params Params
	rng    *rand.Rand
}

func NewStochastic(p Params) *Stochastic {
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Stochastic{params: p, rng: rand.New(rand.NewSource(seed))}
}

type candidate struct {
	id   int
	prob float64
}

func (s *Stochastic) Sample(logits []float32) int {
	if len(logits) == 0 {
		return -1
	}
	cands := softmax(logits, s.params.Temperature)
	if len(cands) == 0 {
		return ArgMax(logits)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].prob > cands[j].prob })
	cands = topK(cands, s.params.TopK)
	cands = topP(cands, s.params.TopP)

	sum := 0.0
	for _, c := range cands {
		sum += c.prob
	}
	r := s.rng.Float64() * sum
	acc := 0.0
	for _, c := range cands {
		acc += c.prob
		if r < acc {
			return c.id
		}
	}
	return cands[0].id
}

func softmax(logits []float32, temp float64) []candidate {
	maxv := math.Inf(-1)
	for _, v := range logits {
		f := float64(v)
		if !math.IsNaN(f) && !math.IsInf(f, 0) && f > maxv {
			maxv = f
		}
	}
	if math.IsInf(maxv, -1) {
		return nil
	}
	out := make([]candidate, 0, len(logits))
	sum := 0.0
	for i, v := range logits {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		p := math.Exp((f - maxv) / temp)
		sum += p
		out = append(out, candidate{id: i, prob: p})
	}
	kept := out[:0]
	for _, c := range out {
		c.prob /= sum
		if c.prob > 1e-10 {
			kept = append(kept, c)
		}
	}
	return kept
}

func topK(c []candidate, k int) []candidate {
	if k <= 0 || k >= len(c) {
		return c
	}
	return c[:k]
}

// topP keeps the smallest prefix whose cumulative probability reaches p.
func topP(c []candidate, p float64) []candidate {
	if p <= 0 || p >= 1 {
		return c
	}
	sum := 0.0
	for i := range c {
		sum += c[i].prob
		if sum >= p {
			return c[:i+1]
		}
	}
	return c
}
