package ml

import "math/rand/v2"

// Predict runs one input through the network and returns the most likely
// class and its probability.
func (nn *FeedforwardNet) Predict(params, input []float64) (int, float64, error) {
	if err := nn.BindWeights(params, nil); err != nil {
		return 0, 0, err
	}
	if err := nn.FeedForward(input); err != nil {
		return 0, 0, err
	}
	probabilities := nn.Output()
	best := ArgMax(probabilities)
	return best, probabilities[best], nil
}

// Accuracy is the fraction of samples in ds whose predicted class matches the
// argmax of their label.
func (nn *FeedforwardNet) Accuracy(params []float64, ds Dataset) (float64, error) {
	xDim, yDim, err := ds.dims()
	if err != nil {
		return 0, err
	}
	correct := 0
	for s := 0; s < ds.Samples; s++ {
		class, _, err := nn.Predict(params, ds.X[s*xDim:(s+1)*xDim])
		if err != nil {
			return 0, err
		}
		if class == ArgMax(ds.Y[s*yDim:(s+1)*yDim]) {
			correct++
		}
	}
	return float64(correct) / float64(ds.Samples), nil
}

// PredictSequence returns the most likely class at each of the seqLen steps
// of x, which is row-major [seqLen x inputSize].
func (r *RecurrentNet) PredictSequence(params, x []float64, seqLen int) ([]int, error) {
	if err := r.BindWeights(params, nil); err != nil {
		return nil, err
	}
	if len(x) != seqLen*r.InputSize() {
		return nil, preconditionErr("sequence has %d values, want %d x %d", len(x), seqLen, r.InputSize())
	}
	if err := r.Forward(x, seqLen); err != nil {
		return nil, err
	}
	classes := make([]int, seqLen)
	for t := 1; t <= seqLen; t++ {
		classes[t-1] = ArgMax(r.Classify(t))
	}
	return classes, nil
}

// Accuracy is the fraction of timesteps across ds whose predicted class
// matches the argmax of their label. Every sample is a sequence of seqLen
// steps.
func (r *RecurrentNet) Accuracy(params []float64, ds Dataset, seqLen int) (float64, error) {
	xDim, yDim, err := ds.dims()
	if err != nil {
		return 0, err
	}
	if xDim != seqLen*r.InputSize() || yDim != seqLen*r.outputSize {
		return 0, preconditionErr("dataset rows are %d/%d wide, want %d/%d", xDim, yDim, seqLen*r.InputSize(), seqLen*r.outputSize)
	}
	correct := 0
	for s := 0; s < ds.Samples; s++ {
		classes, err := r.PredictSequence(params, ds.X[s*xDim:(s+1)*xDim], seqLen)
		if err != nil {
			return 0, err
		}
		y := ds.Y[s*yDim : (s+1)*yDim]
		for t, c := range classes {
			if c == ArgMax(y[t*r.outputSize:(t+1)*r.outputSize]) {
				correct++
			}
		}
	}
	return float64(correct) / float64(ds.Samples*seqLen), nil
}

// SampleSequence is PredictSequence with each step's class drawn according
// to cfg instead of by argmax.
func (r *RecurrentNet) SampleSequence(params, x []float64, seqLen int, cfg SamplingConfig, rng *rand.Rand) ([]int, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := r.BindWeights(params, nil); err != nil {
		return nil, err
	}
	if len(x) != seqLen*r.InputSize() {
		return nil, preconditionErr("sequence has %d values, want %d x %d", len(x), seqLen, r.InputSize())
	}
	if err := r.Forward(x, seqLen); err != nil {
		return nil, err
	}
	scratch := make([]float64, r.outputSize)
	classes := make([]int, seqLen)
	for t := 1; t <= seqLen; t++ {
		c, err := Sample(rng, r.Classify(t), scratch, cfg)
		if err != nil {
			return nil, err
		}
		classes[t-1] = c
	}
	return classes, nil
}
