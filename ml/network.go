package ml

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// FeedforwardNet is a chain of activation layers joined by fully connected
// weights, topped by an implicit softmax classifier. Weights live in a
// caller-owned flat buffer that is bound on every ComputeGrad.
type FeedforwardNet struct {
	configs       []LayerConfig
	neurons       []int
	layers        []Activator
	softmax       *SoftmaxLayer
	layout        Layout
	minibatchSize int

	weights     []*Matrix
	weightsGrad []*Matrix

	// forward holds each non-input layer's pre-activation, backprop each
	// non-output layer's incoming error signal.
	forward  [][]float64
	backprop [][]float64
}

// NewFeedforward builds a network from an Input layer followed by at least
// one Dense layer.
func NewFeedforward(minibatchSize int, configs ...LayerConfig) (*FeedforwardNet, error) {
	if len(configs) < 2 {
		return nil, configErr("network needs an input and at least one output layer, got %d layers", len(configs))
	}
	if !configs[0].IsInput {
		return nil, configErr("first layer must be Input()")
	}
	if minibatchSize < 1 {
		return nil, configErr("minibatch size must be positive, got %d", minibatchSize)
	}

	nn := &FeedforwardNet{
		configs:       append([]LayerConfig(nil), configs...),
		neurons:       Topology(configs),
		minibatchSize: minibatchSize,
	}

	for _, cfg := range configs {
		layer, err := newActivator(cfg)
		if err != nil {
			return nil, err
		}
		nn.layers = append(nn.layers, layer)
	}
	nn.softmax = NewSoftmaxLayer(nn.neurons[len(nn.neurons)-1])
	nn.layout = FeedforwardLayout(nn.neurons)

	for i := 0; i+1 < len(nn.neurons); i++ {
		nn.forward = append(nn.forward, make([]float64, nn.neurons[i+1]))
		nn.backprop = append(nn.backprop, make([]float64, nn.neurons[i]))
	}
	return nn, nil
}

// -------- NEURAL NETWORK METHODS -------- //
func (nn *FeedforwardNet) ParamSize() int     { return nn.layout.Size() }
func (nn *FeedforwardNet) Layout() Layout     { return nn.layout }
func (nn *FeedforwardNet) MinibatchSize() int { return nn.minibatchSize }
func (nn *FeedforwardNet) InputSize() int     { return nn.neurons[0] }
func (nn *FeedforwardNet) OutputSize() int    { return nn.neurons[len(nn.neurons)-1] }

// Output returns the softmax probabilities of the most recent forward pass.
func (nn *FeedforwardNet) Output() []float64 { return nn.softmax.Activation() }

// Clone builds an independent network with the same topology. It shares no
// buffers with the receiver.
func (nn *FeedforwardNet) Clone(minibatchSize int) (Model, error) {
	return NewFeedforward(minibatchSize, nn.configs...)
}

// InitParams fills params connection by connection using scheme.
func (nn *FeedforwardNet) InitParams(params []float64, scheme InitScheme, rng *rand.Rand) error {
	views, err := nn.layout.Bind(params)
	if err != nil {
		return err
	}
	for _, w := range views {
		if err := initWeights(w.Data(), w.Rows(), w.Cols(), scheme, rng); err != nil {
			return err
		}
	}
	return nil
}

// BindWeights points the network at params and grad. A nil grad binds the
// weights for inference only; BackProp then fails.
func (nn *FeedforwardNet) BindWeights(params, grad []float64) error {
	weights, err := nn.layout.Bind(params)
	if err != nil {
		return err
	}
	var weightsGrad []*Matrix
	if grad != nil {
		if weightsGrad, err = nn.layout.Bind(grad); err != nil {
			return err
		}
	}
	nn.weights, nn.weightsGrad = weights, weightsGrad
	return nil
}

// FeedForward runs one sample through the network.
func (nn *FeedforwardNet) FeedForward(input []float64) error {
	if nn.weights == nil {
		return preconditionErr("FeedForward before BindWeights")
	}
	// a failed pass must not leave the previous sample's activations usable
	for _, layer := range nn.layers {
		layer.Reset()
	}
	nn.softmax.Reset()

	if len(input) != nn.neurons[0] {
		return preconditionErr("input has %d values, network expects %d", len(input), nn.neurons[0])
	}

	// input layer
	nn.layers[0].Activate(input)

	for i, w := range nn.weights {
		fanIn := w.Rows()
		pre := nn.forward[i]

		// bias row times the implicit constant-1 input, then the weighted sum
		copy(pre, w.Row(fanIn-1))
		MulTransVecTo(pre, w.RowsView(0, fanIn-1), nn.layers[i].Activation(), 1)

		nn.layers[i+1].Activate(pre)
	}

	// softmax classification
	nn.softmax.Activate(nn.layers[len(nn.layers)-1].Activation())
	return nil
}

// BackProp accumulates the gradient of the cross-entropy against target into
// the bound gradient buffer. FeedForward must have run on the same sample.
func (nn *FeedforwardNet) BackProp(target []float64) error {
	if nn.weightsGrad == nil {
		return preconditionErr("BackProp before BindWeights")
	}
	if len(target) != nn.OutputSize() {
		return preconditionErr("target has %d values, network expects %d", len(target), nn.OutputSize())
	}

	if err := nn.softmax.ComputeDelta(target); err != nil {
		return err
	}
	// the output layer's error signal comes from the softmax, not from weights
	if err := nn.layers[len(nn.layers)-1].ComputeDelta(nn.softmax.Delta()); err != nil {
		return err
	}

	for i := len(nn.weights) - 1; i >= 0; i-- {
		w, wGrad := nn.weights[i], nn.weightsGrad[i]
		fanIn := w.Rows()
		inAct := nn.layers[i].Activation()
		outDelta := nn.layers[i+1].Delta()

		OuterAdd(wGrad.RowsView(0, fanIn-1), inAct, outDelta)
		floats.Add(wGrad.Row(fanIn-1), outDelta)

		// non-input layers pass the signal on
		if i > 0 {
			signal := nn.backprop[i]
			MulVecTo(signal, w.RowsView(0, fanIn-1), outDelta, 0)
			if err := nn.layers[i].ComputeDelta(signal); err != nil {
				return err
			}
		}
	}
	return nil
}

// ComputeGrad binds params and grad, zeroes grad, and runs the minibatch in
// buffer order. The returned cost is the mean negative log-likelihood and grad
// holds the mean gradient.
func (nn *FeedforwardNet) ComputeGrad(grad, params, data, label []float64) (float64, error) {
	if err := nn.BindWeights(params, grad); err != nil {
		return 0, err
	}
	dataDim, labelDim := nn.InputSize(), nn.OutputSize()
	if len(data) != nn.minibatchSize*dataDim {
		return 0, preconditionErr("data has %d values, want %d x %d", len(data), nn.minibatchSize, dataDim)
	}
	if len(label) != nn.minibatchSize*labelDim {
		return 0, preconditionErr("label has %d values, want %d x %d", len(label), nn.minibatchSize, labelDim)
	}

	grad = grad[:nn.ParamSize()]
	clear(grad)

	cost := 0.0
	for s := 0; s < nn.minibatchSize; s++ {
		x := data[s*dataDim : (s+1)*dataDim]
		y := label[s*labelDim : (s+1)*labelDim]
		if err := nn.FeedForward(x); err != nil {
			return 0, err
		}
		if err := nn.BackProp(y); err != nil {
			return 0, err
		}
		cost += nn.softmax.CrossEntropy(y)
	}

	scale := 1.0 / float64(nn.minibatchSize)
	floats.Scale(scale, grad)
	cost *= scale

	return cost, checkFinite("feedforward", cost, grad)
}
