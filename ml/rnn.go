package ml

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// ReadoutWeights names the hidden-to-output matrix that follows the LSTM
// weights in a RecurrentNet buffer. Its last row holds the biases.
const ReadoutWeights = "W_y"

// RecurrentNet classifies every timestep of a sequence: an LSTM layer
// followed by a softmax readout applied to h_t.
type RecurrentNet struct {
	lstm          *LSTMLayer
	softmax       *SoftmaxLayer
	layout        Layout
	minibatchSize int
	outputSize    int

	readout     *Matrix
	readoutGrad *Matrix

	logits []float64
	hErr   []float64
}

func NewRecurrentNet(minibatchSize, inputSize, numNeuron, outputSize, maxSeqLen int) (*RecurrentNet, error) {
	if minibatchSize < 1 {
		return nil, configErr("minibatch size must be positive, got %d", minibatchSize)
	}
	if outputSize < 1 {
		return nil, configErr("output size must be positive, got %d", outputSize)
	}
	lstm, err := NewLSTMLayer(numNeuron, maxSeqLen, inputSize)
	if err != nil {
		return nil, err
	}
	return &RecurrentNet{
		lstm:          lstm,
		softmax:       NewSoftmaxLayer(outputSize),
		layout:        lstm.Layout().Append(View{Name: ReadoutWeights, Rows: numNeuron + 1, Cols: outputSize}),
		minibatchSize: minibatchSize,
		outputSize:    outputSize,
		logits:        make([]float64, outputSize),
		hErr:          make([]float64, numNeuron),
	}, nil
}

func (r *RecurrentNet) ParamSize() int     { return r.layout.Size() }
func (r *RecurrentNet) Layout() Layout     { return r.layout }
func (r *RecurrentNet) MinibatchSize() int { return r.minibatchSize }
func (r *RecurrentNet) InputSize() int     { return r.lstm.InputSize() }
func (r *RecurrentNet) OutputSize() int    { return r.outputSize }
func (r *RecurrentNet) LSTM() *LSTMLayer   { return r.lstm }

func (r *RecurrentNet) Clone(minibatchSize int) (Model, error) {
	return NewRecurrentNet(minibatchSize, r.lstm.InputSize(), r.lstm.NumNeuron(), r.outputSize, r.lstm.MaxSeqLen())
}

// Reshape changes the longest sequence ComputeGrad accepts.
func (r *RecurrentNet) Reshape(newMaxSeqLen int) error {
	return r.lstm.Reshape(newMaxSeqLen)
}

// InitParams initialises the LSTM weights with ±0.08 and the readout with
// scheme.
func (r *RecurrentNet) InitParams(params []float64, scheme InitScheme, rng *rand.Rand) error {
	views, err := r.layout.Bind(params)
	if err != nil {
		return err
	}
	if err := r.lstm.InitParams(params, rng); err != nil {
		return err
	}
	w := views[len(views)-1]
	return initWeights(w.Data(), w.Rows(), w.Cols(), scheme, rng)
}

// BindWeights points the LSTM and readout at params and grad. A nil grad
// binds for inference only.
func (r *RecurrentNet) BindWeights(params, grad []float64) error {
	pv, err := r.layout.Bind(params)
	if err != nil {
		return err
	}
	lstmSize := r.lstm.ParamSize()
	if grad == nil {
		r.readout, r.readoutGrad = pv[len(pv)-1], nil
		return r.lstm.BindWeights(params[:lstmSize], nil)
	}
	gv, err := r.layout.Bind(grad)
	if err != nil {
		return err
	}
	if err := r.lstm.BindWeights(params[:lstmSize], grad[:lstmSize]); err != nil {
		return err
	}
	r.readout, r.readoutGrad = pv[len(pv)-1], gv[len(gv)-1]
	return nil
}

// seqLenOf derives T from the data length.
func (r *RecurrentNet) seqLenOf(data, label []float64) (int, error) {
	per := r.minibatchSize * r.lstm.InputSize()
	if len(data) == 0 || len(data)%per != 0 {
		return 0, preconditionErr("data has %d values, not a multiple of %d x %d", len(data), r.minibatchSize, r.lstm.InputSize())
	}
	seqLen := len(data) / per
	if seqLen > r.lstm.MaxSeqLen() {
		return 0, preconditionErr("sequence length %d exceeds maximum %d", seqLen, r.lstm.MaxSeqLen())
	}
	if len(label) != r.minibatchSize*seqLen*r.outputSize {
		return 0, preconditionErr("label has %d values, want %d x %d x %d", len(label), r.minibatchSize, seqLen, r.outputSize)
	}
	return seqLen, nil
}

// Forward runs one sequence of seqLen steps through the LSTM. x is row-major
// [seqLen x inputSize].
func (r *RecurrentNet) Forward(x []float64, seqLen int) error {
	r.softmax.Reset()
	if err := r.lstm.ResetStates(seqLen); err != nil {
		return err
	}
	in := r.lstm.InputSize()
	for t := 1; t <= seqLen; t++ {
		if err := r.lstm.SetInput(t, x[(t-1)*in:t*in]); err != nil {
			return err
		}
	}
	return r.lstm.FeedForward(seqLen)
}

// Classify applies the readout to h_t and returns the softmax probabilities.
func (r *RecurrentNet) Classify(t int) []float64 {
	h := r.lstm.Output(t)
	n := len(h)
	copy(r.logits, r.readout.Row(n))
	MulTransVecTo(r.logits, r.readout.RowsView(0, n), h, 1)
	r.softmax.Activate(r.logits)
	return r.softmax.Activation()
}

// ComputeGrad runs every sequence in the minibatch, accumulating the per-step
// cross-entropy and its gradient. Cost and gradient are averaged over the
// minibatch.
func (r *RecurrentNet) ComputeGrad(grad, params, data, label []float64) (float64, error) {
	if err := r.BindWeights(params, grad); err != nil {
		return 0, err
	}
	seqLen, err := r.seqLenOf(data, label)
	if err != nil {
		return 0, err
	}

	grad = grad[:r.ParamSize()]
	clear(grad)

	dataDim := seqLen * r.lstm.InputSize()
	labelDim := seqLen * r.outputSize
	n := r.lstm.NumNeuron()

	cost := 0.0
	for s := 0; s < r.minibatchSize; s++ {
		x := data[s*dataDim : (s+1)*dataDim]
		y := label[s*labelDim : (s+1)*labelDim]

		if err := r.Forward(x, seqLen); err != nil {
			return 0, err
		}

		for t := 1; t <= seqLen; t++ {
			target := y[(t-1)*r.outputSize : t*r.outputSize]
			r.Classify(t)
			if err := r.softmax.ComputeDelta(target); err != nil {
				return 0, err
			}
			cost += r.softmax.CrossEntropy(target)

			delta := r.softmax.Delta()
			h := r.lstm.Output(t)
			OuterAdd(r.readoutGrad.RowsView(0, n), h, delta)
			floats.Add(r.readoutGrad.Row(n), delta)

			MulVecTo(r.hErr, r.readout.RowsView(0, n), delta, 0)
			if err := r.lstm.AddOutputErr(t, r.hErr); err != nil {
				return 0, err
			}
		}

		if err := r.lstm.FeedBackward(seqLen); err != nil {
			return 0, err
		}
	}

	scale := 1.0 / float64(r.minibatchSize)
	floats.Scale(scale, grad)
	cost *= scale

	return cost, checkFinite("recurrent", cost, grad)
}
