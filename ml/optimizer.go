package ml

import (
	"gonum.org/v1/gonum/floats"
)

// Optimizer consumes a gradient buffer and updates the parameter buffer it
// mirrors.
type Optimizer interface {
	Update(params, grad []float64) error
}

type SGDOptimizer struct {
	LearningRate float64
}

func NewSGD(learningRate float64) (*SGDOptimizer, error) {
	if learningRate <= 0 {
		return nil, configErr("learning rate must be positive, got %g", learningRate)
	}
	return &SGDOptimizer{LearningRate: learningRate}, nil
}

// ------ SGD OPTIMIZER METHODS ------ //
// Update applies params -= lr * grad.
func (opt *SGDOptimizer) Update(params, grad []float64) error {
	if len(params) != len(grad) {
		return preconditionErr("params has %d values, grad %d", len(params), len(grad))
	}
	floats.AddScaled(params, -opt.LearningRate, grad)
	return nil
}
