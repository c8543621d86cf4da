package ml

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Model is a cost function over a flat parameter buffer. ComputeGrad zeroes
// grad, fills it with the minibatch-mean gradient and returns the mean cost.
type Model interface {
	ParamSize() int
	MinibatchSize() int
	InitParams(params []float64, scheme InitScheme, rng *rand.Rand) error
	ComputeGrad(grad, params, data, label []float64) (float64, error)
	Clone(minibatchSize int) (Model, error)
}

// InitScheme selects how InitParams draws initial weights.
type InitScheme int

const (
	// InitSigmoidUniform draws from ±4·sqrt(6/(fanIn+fanOut)), the Glorot
	// range scaled for sigmoid units.
	InitSigmoidUniform InitScheme = iota
	// InitSymmetricUniform draws from ±0.08.
	InitSymmetricUniform
)

const symmetricUniformRange = 0.08

func initWeights(w []float64, fanIn, fanOut int, scheme InitScheme, rng *rand.Rand) error {
	var limit float64
	switch scheme {
	case InitSigmoidUniform:
		limit = 4 * math.Sqrt(6/float64(fanIn+fanOut))
	case InitSymmetricUniform:
		limit = symmetricUniformRange
	default:
		return configErr("unknown weight initialisation scheme %d", scheme)
	}
	for i := range w {
		w[i] = limit * (rng.Float64()*2 - 1)
	}
	return nil
}

// LinearRegression is the least-squares model θ·x ≈ y with one scalar label
// per sample.
type LinearRegression struct {
	dim           int
	minibatchSize int
}

func NewLinearRegression(dim, minibatchSize int) (*LinearRegression, error) {
	if dim < 1 || minibatchSize < 1 {
		return nil, configErr("linear regression needs positive dim and minibatch, got %d and %d", dim, minibatchSize)
	}
	return &LinearRegression{dim: dim, minibatchSize: minibatchSize}, nil
}

func (m *LinearRegression) ParamSize() int     { return m.dim }
func (m *LinearRegression) MinibatchSize() int { return m.minibatchSize }

func (m *LinearRegression) Clone(minibatchSize int) (Model, error) {
	return NewLinearRegression(m.dim, minibatchSize)
}

func (m *LinearRegression) InitParams(params []float64, scheme InitScheme, rng *rand.Rand) error {
	if len(params) < m.dim {
		return preconditionErr("buffer holds %d values, model needs %d", len(params), m.dim)
	}
	return initWeights(params[:m.dim], m.dim, 1, scheme, rng)
}

// ComputeGrad returns the mean of ½(θ·x−y)² and its gradient (θ·x−y)·x.
func (m *LinearRegression) ComputeGrad(grad, params, data, label []float64) (float64, error) {
	if len(params) < m.dim || len(grad) < m.dim {
		return 0, preconditionErr("buffers hold %d/%d values, model needs %d", len(params), len(grad), m.dim)
	}
	if len(data) != m.minibatchSize*m.dim || len(label) != m.minibatchSize {
		return 0, preconditionErr("data/label have %d/%d values, want %d/%d",
			len(data), len(label), m.minibatchSize*m.dim, m.minibatchSize)
	}
	theta, grad := params[:m.dim], grad[:m.dim]
	clear(grad)

	cost := 0.0
	for s := 0; s < m.minibatchSize; s++ {
		x := data[s*m.dim : (s+1)*m.dim]
		diff := floats.Dot(theta, x) - label[s]
		floats.AddScaled(grad, diff, x)
		cost += 0.5 * diff * diff
	}

	scale := 1.0 / float64(m.minibatchSize)
	floats.Scale(scale, grad)
	cost *= scale
	return cost, checkFinite("linear-regression", cost, grad)
}
