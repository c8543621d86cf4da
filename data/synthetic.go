package data

import (
	"math"
	"math/rand/v2"
)

// OneHot writes a one-hot encoding of class into dst.
func OneHot(dst []float64, class int) {
	clear(dst)
	dst[class] = 1
}

// Blobs draws samples from isotropic Gaussian clusters whose centres sit
// evenly on a circle of radius 2 in the first two dimensions. It returns
// row-major inputs [samples x dim] and one-hot labels [samples x classes].
func Blobs(rng *rand.Rand, samples, classes, dim int, spread float64) (x, y []float64) {
	x = make([]float64, samples*dim)
	y = make([]float64, samples*classes)

	for s := range samples {
		class := s % classes
		angle := 2 * math.Pi * float64(class) / float64(classes)
		row := x[s*dim : (s+1)*dim]
		for d := range row {
			row[d] = rng.NormFloat64() * spread
		}
		row[0] += 2 * math.Cos(angle)
		if dim > 1 {
			row[1] += 2 * math.Sin(angle)
		}
		OneHot(y[s*classes:(s+1)*classes], class)
	}
	return x, y
}

// Echo builds a delayed-recall task. Each sample is a sequence of seqLen
// one-hot symbols drawn from [1, symbols); the label at step t is the input
// at step t-delay, or symbol 0 for the first delay steps. Inputs and labels are both
// [samples x seqLen x symbols]. symbols must be at least 2 and delay
// non-negative.
func Echo(rng *rand.Rand, samples, seqLen, symbols, delay int) (x, y []float64) {
	x = make([]float64, samples*seqLen*symbols)
	y = make([]float64, samples*seqLen*symbols)
	seq := make([]int, seqLen)

	for s := range samples {
		for t := range seq {
			seq[t] = 1 + rng.IntN(symbols-1)
		}
		for t := range seq {
			off := (s*seqLen + t) * symbols
			OneHot(x[off:off+symbols], seq[t])
			target := 0
			if t >= delay {
				target = seq[t-delay]
			}
			OneHot(y[off:off+symbols], target)
		}
	}
	return x, y
}
