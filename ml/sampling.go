package ml

import (
	"math"
	"math/rand/v2"
	"sort"
)

const (
	// Sampling types
	SamplingGreedy      = "greedy"
	SamplingMultinomial = "multinomial"
	SamplingTopK        = "topk"
)

// SamplingConfig selects how a class is drawn from a softmax distribution.
type SamplingConfig struct {
	SamplingType string  // "greedy", "multinomial", "topk"
	Temperature  float64 // T > 0; 0 means 1
	TopK         int     // only for "topk"
}

func (c SamplingConfig) validate() error {
	switch c.SamplingType {
	case SamplingGreedy, SamplingMultinomial, SamplingTopK:
	default:
		return configErr("unknown sampling type %q", c.SamplingType)
	}
	if c.Temperature < 0 {
		return configErr("temperature must be non-negative, got %g", c.Temperature)
	}
	return nil
}

// Sample draws a class index from probs. scratch must be at least as long as
// probs; it receives the temperature-adjusted distribution.
func Sample(rng *rand.Rand, probs, scratch []float64, cfg SamplingConfig) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	if cfg.SamplingType == SamplingGreedy {
		return ArgMax(probs), nil
	}
	adjusted := scratch[:len(probs)]
	applyTemperature(adjusted, probs, cfg.Temperature)
	if cfg.SamplingType == SamplingTopK {
		return topKSample(rng, adjusted, cfg.TopK), nil
	}
	return multinomialSample(rng, adjusted), nil
}

// applyTemperature rescales log-probabilities by 1/T and renormalises.
func applyTemperature(dst, probs []float64, temperature float64) {
	if temperature == 0 || temperature == 1 {
		copy(dst, probs)
		return
	}
	for i, p := range probs {
		dst[i] = math.Log(math.Max(p, probEpsilon)) / temperature
	}
	SoftmaxInPlace(dst)
}

// ArgMax returns the index of the largest value, the first on ties.
func ArgMax(v []float64) int {
	maxIdx := 0
	for i, x := range v {
		if x > v[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}

// multinomialSample picks each class with a chance proportional to its
// probability.
func multinomialSample(rng *rand.Rand, probs []float64) int {
	r := rng.Float64()
	cumulativeProb := 0.0
	for i, p := range probs {
		cumulativeProb += p
		if r < cumulativeProb {
			return i
		}
	}
	// rounding left r above the total
	return len(probs) - 1
}

// topKSample keeps the K most likely classes, renormalises them and samples.
func topKSample(rng *rand.Rand, probs []float64, k int) int {
	if k <= 0 || k >= len(probs) {
		return multinomialSample(rng, probs)
	}

	indices := NewIndexList(len(probs))
	sort.SliceStable(indices, func(i, j int) bool {
		return probs[indices[i]] > probs[indices[j]]
	})
	indices = indices[:k]

	sum := 0.0
	for _, idx := range indices {
		sum += probs[idx]
	}
	if sum == 0 {
		return multinomialSample(rng, probs)
	}

	r := rng.Float64() * sum
	cumulativeProb := 0.0
	for _, idx := range indices {
		cumulativeProb += probs[idx]
		if r < cumulativeProb {
			return idx
		}
	}
	return indices[k-1]
}
