package ml

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestDeltaBeforeActivate(t *testing.T) {
	for _, kind := range []ActivationType{ActIdentity, ActSigmoid} {
		layer, err := newActivator(Dense(3, Kind(kind)))
		require.NoError(t, err)
		err = layer.ComputeDelta([]float64{1, 1, 1})
		assert.True(t, errors.Is(err, ErrPrecondition), "kind %s", kind)
	}

	sm := NewSoftmaxLayer(2)
	assert.True(t, errors.Is(sm.ComputeDelta([]float64{1, 0}), ErrPrecondition))

	// Reset forgets the previous pass.
	sm.Activate([]float64{0, 0})
	require.NoError(t, sm.ComputeDelta([]float64{1, 0}))
	sm.Reset()
	assert.True(t, errors.Is(sm.ComputeDelta([]float64{1, 0}), ErrPrecondition))
}

func TestUnknownLayerKind(t *testing.T) {
	_, err := NewFeedforward(1, Input(2), Dense(3, Activation("relu")), Dense(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "relu")

	// Softmax is only the implicit terminal classifier.
	_, err = NewFeedforward(1, Input(2), Dense(3, Activation("softmax")), Dense(2))
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewFeedforward(1, Input(2), Dense(0))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestSigmoidDelta(t *testing.T) {
	layer, err := newActivator(Dense(2, Activation("sigmoid")))
	require.NoError(t, err)
	layer.Activate([]float64{0, 2})
	require.NoError(t, layer.ComputeDelta([]float64{1, 3}))

	a := Sigmoid(2)
	assert.InDelta(t, 0.25, layer.Delta()[0], 1e-15)
	assert.InDelta(t, 3*a*(1-a), layer.Delta()[1], 1e-15)
}

func TestIdentityPassThrough(t *testing.T) {
	layer, err := newActivator(Dense(3, Activation("linear")))
	require.NoError(t, err)
	layer.Activate([]float64{-1, 0, 5})
	assert.Equal(t, []float64{-1, 0, 5}, layer.Activation())
	require.NoError(t, layer.ComputeDelta([]float64{0.5, 1, 2}))
	assert.Equal(t, []float64{0.5, 1, 2}, layer.Delta())
}

func TestSigmoidIsStable(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.False(t, math.IsNaN(Sigmoid(-1000)))
	assert.InDelta(t, 0, Sigmoid(-1000), 1e-300)
	assert.Equal(t, 1.0, Sigmoid(1000))
}

func TestSoftmaxIsDistribution(t *testing.T) {
	v := []float64{1000, 1001, 999}
	SoftmaxInPlace(v)
	assert.False(t, floats.HasNaN(v))
	assert.InDelta(t, 1, floats.Sum(v), 1e-12)
	assert.Greater(t, v[1], v[0])

	rng := newRNG(3)
	logits := fillUniform(rng, make([]float64, 5), 4)
	SoftmaxInPlace(logits)
	assert.InDelta(t, 1, floats.Sum(logits), 1e-12)
}

func TestCrossEntropyFloor(t *testing.T) {
	sm := NewSoftmaxLayer(2)
	sm.Activate([]float64{800, -800})
	loss := sm.CrossEntropy([]float64{0, 1})
	assert.False(t, math.IsInf(loss, 0))
	assert.InDelta(t, -math.Log(probEpsilon), loss, 1e-9)

	require.NoError(t, sm.ComputeDelta([]float64{0, 1}))
	assert.InDeltaSlice(t, []float64{1, -1}, sm.Delta(), 1e-12)
}

func TestInitSchemes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	w := make([]float64, 200)

	require.NoError(t, initWeights(w, 4, 6, InitSigmoidUniform, rng))
	limit := 4 * math.Sqrt(6.0/10)
	assert.LessOrEqual(t, floats.Max(w), limit)
	assert.GreaterOrEqual(t, floats.Min(w), -limit)

	require.NoError(t, initWeights(w, 4, 6, InitSymmetricUniform, rng))
	assert.LessOrEqual(t, floats.Max(w), 0.08)
	assert.GreaterOrEqual(t, floats.Min(w), -0.08)

	err := initWeights(w, 4, 6, InitScheme(99), rng)
	assert.True(t, errors.Is(err, ErrConfiguration))
}
