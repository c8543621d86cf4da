package ml

import (
	"math"
	"math/rand/v2"
)

// LSTMLayer is a layer of gated memory cells with peephole connections.
// Gate weights are views into a caller-owned parameter buffer, bound with
// BindWeights; gradients accumulate into the matching views of the gradient
// buffer across every FeedBackward until the caller clears it.
//
// A sequence of length T is processed as
//
//	ResetStates(T); SetInput(1..T); FeedForward(T);
//	AddOutputErr(1..T); FeedBackward(T)
type LSTMLayer struct {
	numNeuron int
	inputSize int
	layout    Layout
	seq       *SequenceBuffer

	// weights, same order as LSTMLayout
	wix, wih, wic *Matrix
	wfx, wfh, wfc *Matrix
	wcx, wch      *Matrix
	wox, woh, woc *Matrix

	gwix, gwih, gwic *Matrix
	gwfx, gwfh, gwfc *Matrix
	gwcx, gwch       *Matrix
	gwox, gwoh, gwoc *Matrix

	bound     bool
	gradBound bool
}

func NewLSTMLayer(numNeuron, maxSeqLen, inputSize int) (*LSTMLayer, error) {
	seq, err := NewSequenceBuffer(numNeuron, inputSize, maxSeqLen)
	if err != nil {
		return nil, err
	}
	return &LSTMLayer{
		numNeuron: numNeuron,
		inputSize: inputSize,
		layout:    LSTMLayout(numNeuron, inputSize),
		seq:       seq,
	}, nil
}

func (l *LSTMLayer) ParamSize() int             { return l.layout.Size() }
func (l *LSTMLayer) Layout() Layout             { return l.layout }
func (l *LSTMLayer) NumNeuron() int             { return l.numNeuron }
func (l *LSTMLayer) InputSize() int             { return l.inputSize }
func (l *LSTMLayer) MaxSeqLen() int             { return l.seq.MaxSeqLen() }
func (l *LSTMLayer) Sequence() *SequenceBuffer { return l.seq }

// InitParams draws every weight from ±0.08.
func (l *LSTMLayer) InitParams(params []float64, rng *rand.Rand) error {
	size := l.ParamSize()
	if len(params) < size {
		return preconditionErr("buffer holds %d values, layer needs %d", len(params), size)
	}
	return initWeights(params[:size], l.inputSize, l.numNeuron, InitSymmetricUniform, rng)
}

// BindWeights points the layer at params and grad. A nil grad binds the
// weights for inference only; FeedBackward then fails.
func (l *LSTMLayer) BindWeights(params, grad []float64) error {
	w, err := l.layout.Bind(params)
	if err != nil {
		return err
	}
	var g []*Matrix
	if grad != nil {
		if g, err = l.layout.Bind(grad); err != nil {
			return err
		}
	}
	l.wix, l.wih, l.wic = w[0], w[1], w[2]
	l.wfx, l.wfh, l.wfc = w[3], w[4], w[5]
	l.wcx, l.wch = w[6], w[7]
	l.wox, l.woh, l.woc = w[8], w[9], w[10]
	l.bound = true

	l.gradBound = g != nil
	if !l.gradBound {
		return nil
	}
	l.gwix, l.gwih, l.gwic = g[0], g[1], g[2]
	l.gwfx, l.gwfh, l.gwfc = g[3], g[4], g[5]
	l.gwcx, l.gwch = g[6], g[7]
	l.gwox, l.gwoh, l.gwoc = g[8], g[9], g[10]
	return nil
}

// Reshape changes the maximum sequence length the layer can hold.
func (l *LSTMLayer) Reshape(newMaxSeqLen int) error {
	return l.seq.Resize(newMaxSeqLen)
}

// ResetStates zeroes the timesteps a sequence of length seqLen will use,
// including both sentinels. Call it before every new sequence.
func (l *LSTMLayer) ResetStates(seqLen int) error {
	return l.seq.ResetStates(seqLen)
}

// SetInput copies x into the input slot of timestep t (1-based).
func (l *LSTMLayer) SetInput(t int, x []float64) error {
	if err := l.checkStep(t); err != nil {
		return err
	}
	if len(x) != l.inputSize {
		return preconditionErr("input has %d values, layer expects %d", len(x), l.inputSize)
	}
	copy(l.seq.At(FieldInput, t), x)
	return nil
}

// AddOutputErr adds an external ∂L/∂h_t. The recurrent contribution is added
// by FeedBackward.
func (l *LSTMLayer) AddOutputErr(t int, e []float64) error {
	if err := l.checkStep(t); err != nil {
		return err
	}
	if len(e) != l.numNeuron {
		return preconditionErr("output error has %d values, layer expects %d", len(e), l.numNeuron)
	}
	dst := l.seq.At(FieldOutputErr, t)
	for k, v := range e {
		dst[k] += v
	}
	return nil
}

// Output returns h_t.
func (l *LSTMLayer) Output(t int) []float64 { return l.seq.At(FieldOutput, t) }

// InputErr returns ∂L/∂x_t after FeedBackward.
func (l *LSTMLayer) InputErr(t int) []float64 { return l.seq.At(FieldInputErr, t) }

func (l *LSTMLayer) checkStep(t int) error {
	if t < 1 || t > l.seq.MaxSeqLen() {
		return preconditionErr("timestep %d outside [1, %d]", t, l.seq.MaxSeqLen())
	}
	return nil
}

func (l *LSTMLayer) checkRun(seqLen int) error {
	if !l.bound {
		return preconditionErr("LSTM layer used before BindWeights")
	}
	return l.seq.checkSeqLen(seqLen)
}

// FeedForward runs the recurrence for t = 1..seqLen. Slot 0 supplies the
// zero initial state.
func (l *LSTMLayer) FeedForward(seqLen int) error {
	if err := l.checkRun(seqLen); err != nil {
		return err
	}
	seq := l.seq

	for t := 1; t <= seqLen; t++ {
		x := seq.At(FieldInput, t)
		hPrev := seq.At(FieldOutput, t-1)
		sPrev := seq.At(FieldState, t-1)

		// input gate
		inGate := seq.At(FieldInGate, t)
		MulVecTo(inGate, l.wix, x, 0)
		MulVecTo(inGate, l.wih, hPrev, 1)
		mulAdd(inGate, l.wic.Data(), sPrev)
		sigmoidInPlace(inGate)

		// forget gate
		forgetGate := seq.At(FieldForgetGate, t)
		MulVecTo(forgetGate, l.wfx, x, 0)
		MulVecTo(forgetGate, l.wfh, hPrev, 1)
		mulAdd(forgetGate, l.wfc.Data(), sPrev)
		sigmoidInPlace(forgetGate)

		// candidate
		candidate := seq.At(FieldCandidate, t)
		MulVecTo(candidate, l.wcx, x, 0)
		MulVecTo(candidate, l.wch, hPrev, 1)
		tanhInPlace(candidate)

		// cell state
		state := seq.At(FieldState, t)
		for k := range state {
			state[k] = forgetGate[k]*sPrev[k] + inGate[k]*candidate[k]
		}

		// output gate peeks at the current state
		outGate := seq.At(FieldOutGate, t)
		MulVecTo(outGate, l.wox, x, 0)
		MulVecTo(outGate, l.woh, hPrev, 1)
		mulAdd(outGate, l.woc.Data(), state)
		sigmoidInPlace(outGate)

		stateTanh := seq.At(FieldStateTanh, t)
		output := seq.At(FieldOutput, t)
		for k := range output {
			stateTanh[k] = math.Tanh(state[k])
			output[k] = outGate[k] * stateTanh[k]
		}
	}
	return nil
}

// FeedBackward runs backpropagation through time for t = seqLen..1 and adds
// the weight gradients into the bound gradient buffer. Slot seqLen+1 supplies
// the zero deltas after the sequence ends.
func (l *LSTMLayer) FeedBackward(seqLen int) error {
	if err := l.checkRun(seqLen); err != nil {
		return err
	}
	if !l.gradBound {
		return preconditionErr("FeedBackward without a bound gradient buffer")
	}
	seq := l.seq

	for t := seqLen; t > 0; t-- {
		inGate := seq.At(FieldInGate, t)
		forgetGate := seq.At(FieldForgetGate, t)
		outGate := seq.At(FieldOutGate, t)
		candidate := seq.At(FieldCandidate, t)
		state := seq.At(FieldState, t)
		stateTanh := seq.At(FieldStateTanh, t)
		sPrev := seq.At(FieldState, t-1)
		hPrev := seq.At(FieldOutput, t-1)
		x := seq.At(FieldInput, t)

		inDeltaNext := seq.At(FieldInGateDelta, t+1)
		forgetDeltaNext := seq.At(FieldForgetGateDelta, t+1)
		candDeltaNext := seq.At(FieldCandidateDelta, t+1)
		outDeltaNext := seq.At(FieldOutGateDelta, t+1)

		// output error: recurrent credit from the gates at t+1
		outputErr := seq.At(FieldOutputErr, t)
		MulTransVecTo(outputErr, l.wih, inDeltaNext, 1)
		MulTransVecTo(outputErr, l.wfh, forgetDeltaNext, 1)
		MulTransVecTo(outputErr, l.wch, candDeltaNext, 1)
		MulTransVecTo(outputErr, l.woh, outDeltaNext, 1)

		// output gate delta
		outDelta := seq.At(FieldOutGateDelta, t)
		for k := range outDelta {
			o := outGate[k]
			outDelta[k] = outputErr[k] * o * (1 - o) * stateTanh[k]
		}

		// cell error: direct path, carry from t+1, peepholes at t+1 and t
		cellErr := seq.At(FieldCellErr, t)
		cellErrNext := seq.At(FieldCellErr, t+1)
		forgetGateNext := seq.At(FieldForgetGate, t+1)
		wic, wfc, woc := l.wic.Data(), l.wfc.Data(), l.woc.Data()
		for k := range cellErr {
			st := stateTanh[k]
			cellErr[k] = outputErr[k]*outGate[k]*(1-st*st) +
				cellErrNext[k]*forgetGateNext[k] +
				wic[k]*inDeltaNext[k] +
				wfc[k]*forgetDeltaNext[k] +
				woc[k]*outDelta[k]
		}

		candDelta := seq.At(FieldCandidateDelta, t)
		forgetDelta := seq.At(FieldForgetGateDelta, t)
		inDelta := seq.At(FieldInGateDelta, t)
		for k := range cellErr {
			c, f, i := candidate[k], forgetGate[k], inGate[k]
			candDelta[k] = cellErr[k] * i * (1 - c*c)
			forgetDelta[k] = cellErr[k] * sPrev[k] * f * (1 - f)
			inDelta[k] = cellErr[k] * c * i * (1 - i)
		}

		// input error: gate deltas at the same timestep
		inputErr := seq.At(FieldInputErr, t)
		MulTransVecTo(inputErr, l.wix, inDelta, 0)
		MulTransVecTo(inputErr, l.wfx, forgetDelta, 1)
		MulTransVecTo(inputErr, l.wcx, candDelta, 1)
		MulTransVecTo(inputErr, l.wox, outDelta, 1)

		// gradients
		OuterAdd(l.gwix, inDelta, x)
		OuterAdd(l.gwih, inDelta, hPrev)
		mulAdd(l.gwic.Data(), inDelta, sPrev)

		OuterAdd(l.gwfx, forgetDelta, x)
		OuterAdd(l.gwfh, forgetDelta, hPrev)
		mulAdd(l.gwfc.Data(), forgetDelta, sPrev)

		OuterAdd(l.gwcx, candDelta, x)
		OuterAdd(l.gwch, candDelta, hPrev)

		OuterAdd(l.gwox, outDelta, x)
		OuterAdd(l.gwoh, outDelta, hPrev)
		mulAdd(l.gwoc.Data(), outDelta, state)
	}
	return nil
}

func sigmoidInPlace(v []float64) {
	for i, x := range v {
		v[i] = Sigmoid(x)
	}
}

func tanhInPlace(v []float64) {
	for i, x := range v {
		v[i] = math.Tanh(x)
	}
}
