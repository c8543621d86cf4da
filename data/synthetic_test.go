package data

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestBlobsShapesAndLabels(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x, y := Blobs(rng, 30, 3, 4, 0.1)
	require.Len(t, x, 30*4)
	require.Len(t, y, 30*3)

	for s := 0; s < 30; s++ {
		label := y[s*3 : (s+1)*3]
		assert.Equal(t, 1.0, floats.Sum(label))
		assert.Equal(t, 1.0, label[s%3])
	}
	// class 0 sits near (2, 0)
	assert.InDelta(t, 2, x[0], 0.6)
	assert.InDelta(t, 0, x[1], 0.6)
}

func TestEchoDelaysInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const samples, seqLen, symbols, delay = 5, 6, 4, 2
	x, y := Echo(rng, samples, seqLen, symbols, delay)
	require.Len(t, x, samples*seqLen*symbols)
	require.Len(t, y, samples*seqLen*symbols)

	at := func(v []float64, s, step int) []float64 {
		off := (s*seqLen + step) * symbols
		return v[off : off+symbols]
	}
	for s := range samples {
		for step := range seqLen {
			in := at(x, s, step)
			assert.Zero(t, in[0], "blank symbol is never an input")
			assert.Equal(t, 1.0, floats.Sum(in))
			if step < delay {
				assert.Equal(t, 1.0, at(y, s, step)[0])
			} else {
				assert.Equal(t, at(x, s, step-delay), at(y, s, step))
			}
		}
	}
}

func TestOneHotClears(t *testing.T) {
	v := []float64{3, 3, 3}
	OneHot(v, 2)
	assert.Equal(t, []float64{0, 0, 1}, v)
}
