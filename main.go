package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/b0tShaman/neuro-bptt/data"
	. "github.com/b0tShaman/neuro-bptt/ml"
)

type trainOptions struct {
	epochs       int
	batch        int
	lr           float64
	workers      int
	hidden       int
	samples      int
	seed         uint64
	verboseEvery int

	// lstm only
	seqLen    int
	maxSeqLen int
	delay     int
	symbols   int
	sampling  SamplingConfig
}

// -------- MAIN -------- //
func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("neuro failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "neuro",
		Short:         "Train feedforward and LSTM networks on synthetic data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			logrus.SetLevel(level)
			Logger().SetLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level for the CLI and the training loop")
	root.AddCommand(newFFNNCmd(), newLSTMCmd())
	return root
}

func addCommonFlags(cmd *cobra.Command, o *trainOptions) {
	f := cmd.Flags()
	f.IntVar(&o.epochs, "epochs", 50, "training epochs")
	f.IntVar(&o.batch, "batch", 16, "minibatch size")
	f.Float64Var(&o.lr, "lr", 0.5, "SGD learning rate")
	f.IntVar(&o.workers, "workers", 1, "gradient workers (must divide --batch)")
	f.IntVar(&o.hidden, "hidden", 8, "hidden units")
	f.IntVar(&o.samples, "samples", 512, "synthetic samples")
	f.Uint64Var(&o.seed, "seed", 1, "random seed")
	f.IntVar(&o.verboseEvery, "verbose-every", 10, "log every N epochs")
}

func (o *trainOptions) trainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:       o.epochs,
		BatchSize:    o.batch,
		LearningRate: o.lr,
		NumWorkers:   o.workers,
		VerboseEvery: o.verboseEvery,
		Seed:         o.seed,
	}
}

func newFFNNCmd() *cobra.Command {
	o := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "ffnn",
		Short: "Train a sigmoid feedforward classifier on Gaussian blobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFFNN(o)
		},
	}
	addCommonFlags(cmd, o)
	return cmd
}

func runFFNN(o *trainOptions) error {
	const inputDim, classes = 2, 3
	rng := rand.New(rand.NewPCG(o.seed, o.seed+1))

	X_raw, Y_raw := data.Blobs(rng, o.samples, classes, inputDim, 0.5)
	ds := Dataset{X: X_raw, Y: Y_raw, Samples: o.samples}

	nw, err := NewFeedforward(o.batch,
		Input(inputDim),
		Dense(o.hidden, Activation("sigmoid")),
		Dense(classes, Activation("identity")),
	)
	if err != nil {
		return err
	}
	params := make([]float64, nw.ParamSize())
	if err := nw.InitParams(params, InitSigmoidUniform, rng); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"cores":   runtime.GOMAXPROCS(0),
		"samples": o.samples,
	}).Info("feedforward run")

	loss, err := Train(nw, params, ds, o.trainingConfig())
	if err != nil {
		return err
	}
	acc, err := nw.Accuracy(params, ds)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"loss": loss, "accuracy": acc}).Info("feedforward done")
	return nil
}

func newLSTMCmd() *cobra.Command {
	o := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "lstm",
		Short: "Train an LSTM sequence classifier on a delayed-echo task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLSTM(o)
		},
	}
	addCommonFlags(cmd, o)
	f := cmd.Flags()
	f.IntVar(&o.seqLen, "seq-len", 8, "sequence length")
	f.IntVar(&o.maxSeqLen, "max-seq-len", 8, "longest sequence the layer holds; grown to --seq-len if smaller")
	f.IntVar(&o.delay, "delay", 1, "echo delay in steps")
	f.IntVar(&o.symbols, "symbols", 4, "alphabet size, including the blank symbol")
	f.StringVar(&o.sampling.SamplingType, "sampling", SamplingGreedy, "decoding for the sample sequence: greedy, multinomial, topk")
	f.Float64Var(&o.sampling.Temperature, "temperature", 1, "sampling temperature")
	f.IntVar(&o.sampling.TopK, "top-k", 2, "K for topk sampling")
	return cmd
}

// validateEcho rejects flag values the echo generator cannot honour.
func (o *trainOptions) validateEcho() error {
	switch {
	case o.symbols < 2:
		return fmt.Errorf("%w: --symbols must be at least 2 (blank plus one symbol), got %d", ErrConfiguration, o.symbols)
	case o.delay < 0:
		return fmt.Errorf("%w: --delay must be non-negative, got %d", ErrConfiguration, o.delay)
	case o.seqLen < 1:
		return fmt.Errorf("%w: --seq-len must be positive, got %d", ErrConfiguration, o.seqLen)
	case o.samples < 1:
		return fmt.Errorf("%w: --samples must be positive, got %d", ErrConfiguration, o.samples)
	}
	return nil
}

func runLSTM(o *trainOptions) error {
	if err := o.validateEcho(); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(o.seed, o.seed+1))

	X_raw, Y_raw := data.Echo(rng, o.samples, o.seqLen, o.symbols, o.delay)
	ds := Dataset{X: X_raw, Y: Y_raw, Samples: o.samples}

	nw, err := NewRecurrentNet(o.batch, o.symbols, o.hidden, o.symbols, o.maxSeqLen)
	if err != nil {
		return err
	}
	if o.seqLen > o.maxSeqLen {
		if err := nw.Reshape(o.seqLen); err != nil {
			return err
		}
	}
	params := make([]float64, nw.ParamSize())
	if err := nw.InitParams(params, InitSigmoidUniform, rng); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"cores":   runtime.GOMAXPROCS(0),
		"samples": o.samples,
		"seq_len": o.seqLen,
	}).Info("lstm run")

	loss, err := Train(nw, params, ds, o.trainingConfig())
	if err != nil {
		return err
	}
	acc, err := nw.Accuracy(params, ds, o.seqLen)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"loss": loss, "accuracy": acc}).Info("lstm done")

	// decode the first sequence
	xDim := o.seqLen * o.symbols
	decoded, err := nw.SampleSequence(params, X_raw[:xDim], o.seqLen, o.sampling, rng)
	if err != nil {
		return err
	}
	expected := make([]int, o.seqLen)
	for t := range expected {
		expected[t] = ArgMax(Y_raw[t*o.symbols : (t+1)*o.symbols])
	}
	logrus.WithFields(logrus.Fields{
		"sampling": o.sampling.SamplingType,
		"decoded":  decoded,
		"expected": expected,
	}).Info("sample sequence")
	return nil
}
