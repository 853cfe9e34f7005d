// Package generate drives a cached decoder token by token.
//
// A Generator runs the prompt through the model once (prefill), then feeds
// back one sampled token per step together with the StackCache returned by
// the previous call, so every step costs one position of attention instead of
// a full recompute.
package generate

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// SamplingConfig selects how the next token is drawn from the logits.
type SamplingConfig struct {
	// Temperature divides the logits. 0 selects greedy decoding (argmax).
	Temperature float32

	// TopK keeps only the K most likely tokens. 0 disables the filter.
	TopK int

	// TopP keeps the smallest set of tokens whose probability mass reaches P.
	// 1 (or 0) disables the filter.
	TopP float32

	// RepeatPenalty divides positive (multiplies negative) logits of tokens
	// already present in the history. 1 disables it.
	RepeatPenalty float32

	// Seed makes sampling reproducible. Negative seeds draw a random one.
	Seed int64
}

// DefaultSamplingConfig returns plain multinomial sampling at temperature 1.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature:   1,
		TopP:          1,
		RepeatPenalty: 1,
		Seed:          -1,
	}
}

// GreedyConfig returns a configuration that always picks the most likely
// token.
func GreedyConfig() SamplingConfig {
	cfg := DefaultSamplingConfig()
	cfg.Temperature = 0
	return cfg
}

// Validate checks the ranges of every field.
func (c SamplingConfig) Validate() error {
	switch {
	case c.Temperature < 0:
		return fmt.Errorf("temperature must be >= 0, got %v", c.Temperature)
	case c.TopK < 0:
		return fmt.Errorf("top-k must be >= 0, got %d", c.TopK)
	case c.TopP < 0 || c.TopP > 1:
		return fmt.Errorf("top-p must be in [0, 1], got %v", c.TopP)
	case c.RepeatPenalty < 0:
		return fmt.Errorf("repeat penalty must be >= 0, got %v", c.RepeatPenalty)
	}
	return nil
}

// Sampler draws token ids from logits. It is not safe for concurrent use.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
}

// NewSampler creates a sampler for config.
func NewSampler(config SamplingConfig) *Sampler {
	seed := config.Seed
	if seed < 0 {
		seed = rand.Int63() //nolint:gosec // sampling is not security sensitive
	}
	return &Sampler{
		config: config,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible sampling
	}
}

// Sample returns the next token id for one row of logits [vocab]. history
// holds the ids seen so far (prompt and generated) for the repeat penalty.
// logits is not modified.
func (s *Sampler) Sample(logits []float32, history []int32) int32 {
	if len(logits) == 0 {
		panic("Sampler.Sample: empty logits")
	}

	scores := make([]float64, len(logits))
	for i, v := range logits {
		scores[i] = float64(v)
	}
	if s.config.RepeatPenalty != 0 && s.config.RepeatPenalty != 1 {
		penalize(scores, history, float64(s.config.RepeatPenalty))
	}

	if s.config.Temperature == 0 {
		return argmax(scores)
	}
	if s.config.Temperature != 1 {
		t := float64(s.config.Temperature)
		for i := range scores {
			scores[i] /= t
		}
	}

	// Candidates in descending score order; filters shrink the prefix kept.
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	keep := len(order)
	if k := s.config.TopK; k > 0 && k < keep {
		keep = k
	}

	probs := softmax(scores, order[:keep])
	if p := float64(s.config.TopP); p > 0 && p < 1 {
		mass := 0.0
		for i, pr := range probs {
			mass += pr
			if mass >= p {
				keep = i + 1
				break
			}
		}
		probs = softmax(scores, order[:keep])
	}

	r := s.rng.Float64()
	acc := 0.0
	for i, pr := range probs {
		acc += pr
		if r < acc {
			return int32(order[i]) //nolint:gosec // bounded by vocabulary size
		}
	}
	return int32(order[keep-1]) //nolint:gosec // bounded by vocabulary size
}

func penalize(scores []float64, history []int32, penalty float64) {
	seen := make(map[int32]struct{}, len(history))
	for _, id := range history {
		if id < 0 || int(id) >= len(scores) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if scores[id] > 0 {
			scores[id] /= penalty
		} else {
			scores[id] *= penalty
		}
	}
}

func argmax(scores []float64) int32 {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return int32(best) //nolint:gosec // bounded by vocabulary size
}

// softmax returns the probabilities of the candidates idx (in order),
// normalized over idx only.
func softmax(scores []float64, idx []int) []float64 {
	maxVal := math.Inf(-1)
	for _, i := range idx {
		maxVal = math.Max(maxVal, scores[i])
	}

	probs := make([]float64, len(idx))
	sum := 0.0
	for j, i := range idx {
		probs[j] = math.Exp(scores[i] - maxVal)
		sum += probs[j]
	}
	for j := range probs {
		probs[j] /= sum
	}
	return probs
}
