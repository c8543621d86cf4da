package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestRecurrentNetGradientCheck(t *testing.T) {
	rng := newRNG(61)
	const batch, in, n, out, seqLen = 2, 2, 3, 3, 3
	r, err := NewRecurrentNet(batch, in, n, out, 4)
	require.NoError(t, err)

	params := fillUniform(rng, make([]float64, r.ParamSize()), 0.5)
	data := fillUniform(rng, make([]float64, batch*seqLen*in), 1)
	label := oneHotRows(rng, batch*seqLen, out)

	grad := make([]float64, r.ParamSize())
	_, err = r.ComputeGrad(grad, params, data, label)
	require.NoError(t, err)

	scratch := make([]float64, r.ParamSize())
	numeric := numericGrad(func(p []float64) float64 {
		cost, err := r.ComputeGrad(scratch, p, data, label)
		require.NoError(t, err)
		return cost
	}, params)
	requireGradClose(t, numeric, grad)
}

func TestRecurrentNetLayout(t *testing.T) {
	r, err := NewRecurrentNet(1, 4, 5, 3, 2)
	require.NoError(t, err)
	lstmSize := LSTMLayout(5, 4).Size()
	assert.Equal(t, lstmSize+6*3, r.ParamSize())
	v := r.Layout().Views()[r.Layout().Index(ReadoutWeights)]
	assert.Equal(t, lstmSize, v.Offset)
}

func TestRecurrentNetRejectsLongSequence(t *testing.T) {
	r, err := NewRecurrentNet(1, 2, 2, 2, 3)
	require.NoError(t, err)
	params := make([]float64, r.ParamSize())
	grad := make([]float64, r.ParamSize())

	data := make([]float64, 4*2)
	label := make([]float64, 4*2)
	_, err = r.ComputeGrad(grad, params, data, label)
	assert.True(t, errors.Is(err, ErrPrecondition))

	// growing the buffer makes the same call legal
	require.NoError(t, r.Reshape(4))
	_, err = r.ComputeGrad(grad, params, data, label)
	require.NoError(t, err)

	_, err = r.ComputeGrad(grad, params, data[:3], label)
	assert.True(t, errors.Is(err, ErrPrecondition))
}

func TestRecurrentNetDeterministic(t *testing.T) {
	rng := newRNG(71)
	r, err := NewRecurrentNet(1, 3, 4, 3, 5)
	require.NoError(t, err)
	params := make([]float64, r.ParamSize())
	require.NoError(t, r.InitParams(params, InitSigmoidUniform, rng))

	x := fillUniform(rng, make([]float64, 5*3), 1)
	first, err := r.PredictSequence(params, x, 5)
	require.NoError(t, err)
	probs := append([]float64(nil), r.Classify(5)...)
	assert.InDelta(t, 1, floats.Sum(probs), 1e-12)

	_, err = r.PredictSequence(params, fillUniform(rng, make([]float64, 2*3), 1), 2)
	require.NoError(t, err)

	again, err := r.PredictSequence(params, x, 5)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, probs, r.Classify(5))
}

func TestRecurrentNetClonesIndependently(t *testing.T) {
	r, err := NewRecurrentNet(4, 2, 3, 2, 6)
	require.NoError(t, err)
	c, err := r.Clone(2)
	require.NoError(t, err)
	clone := c.(*RecurrentNet)
	assert.Equal(t, 2, clone.MinibatchSize())
	assert.Equal(t, r.ParamSize(), clone.ParamSize())
	assert.NotSame(t, r.LSTM().Sequence(), clone.LSTM().Sequence())
}

func TestRecurrentNetForwardInvalidatesReadout(t *testing.T) {
	r, err := NewRecurrentNet(1, 2, 2, 2, 3)
	require.NoError(t, err)
	require.NoError(t, r.BindWeights(make([]float64, r.ParamSize()), nil))
	require.NoError(t, r.Forward([]float64{1, 0, 0, 1}, 2))
	r.Classify(1)
	require.NoError(t, r.softmax.ComputeDelta([]float64{1, 0}))

	require.Error(t, r.Forward([]float64{1, 0, 0, 1}, 4))
	assert.True(t, errors.Is(r.softmax.ComputeDelta([]float64{1, 0}), ErrPrecondition))
}
