package ml

import (
	"testing"
)

// --- Global Variables to prevent compiler optimizations ---
var resultLoss float64

// --- 1. Benchmarks: Feedforward minibatch gradient ---

func benchmarkFeedforward(b *testing.B, batchSize, workers int) {
	rng := newRNG(1)
	nn, err := NewFeedforward(batchSize,
		Input(64),
		Dense(128),
		Dense(32),
		Dense(10, Activation("identity")),
	)
	if err != nil {
		b.Fatal(err)
	}
	var eval gradEvaluator = nn
	if workers > 1 {
		if eval, err = NewParallelGrad(nn, workers); err != nil {
			b.Fatal(err)
		}
	}

	params := make([]float64, nn.ParamSize())
	if err := nn.InitParams(params, InitSigmoidUniform, rng); err != nil {
		b.Fatal(err)
	}
	grad := make([]float64, nn.ParamSize())
	data := fillUniform(rng, make([]float64, batchSize*64), 1)
	label := oneHotRows(rng, batchSize, 10)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultLoss, _ = eval.ComputeGrad(grad, params, data, label)
	}
}

func BenchmarkFeedforward_Batch_1(b *testing.B)            { benchmarkFeedforward(b, 1, 1) }
func BenchmarkFeedforward_Batch_64(b *testing.B)           { benchmarkFeedforward(b, 64, 1) }
func BenchmarkFeedforward_Batch_64_Workers_4(b *testing.B) { benchmarkFeedforward(b, 64, 4) }

// --- 2. Benchmarks: LSTM BPTT ---

func benchmarkLSTM(b *testing.B, seqLen int) {
	rng := newRNG(2)
	r, err := NewRecurrentNet(4, 16, 32, 16, seqLen)
	if err != nil {
		b.Fatal(err)
	}
	params := make([]float64, r.ParamSize())
	if err := r.InitParams(params, InitSigmoidUniform, rng); err != nil {
		b.Fatal(err)
	}
	grad := make([]float64, r.ParamSize())
	data := fillUniform(rng, make([]float64, 4*seqLen*16), 1)
	label := oneHotRows(rng, 4*seqLen, 16)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultLoss, _ = r.ComputeGrad(grad, params, data, label)
	}
}

func BenchmarkLSTM_T16(b *testing.B)  { benchmarkLSTM(b, 16) }
func BenchmarkLSTM_T64(b *testing.B)  { benchmarkLSTM(b, 64) }
func BenchmarkLSTM_T256(b *testing.B) { benchmarkLSTM(b, 256) }
