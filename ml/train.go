package ml

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

type TrainingConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	NumWorkers   int
	VerboseEvery int    // How often to log progress (in epochs)
	Seed         uint64 // Shuffle seed
}

// Dataset holds Samples rows of inputs and labels, each stored flat and
// row-major. Every sample has the same width.
type Dataset struct {
	X, Y    []float64
	Samples int
}

func (d Dataset) dims() (int, int, error) {
	if d.Samples < 1 || len(d.X)%d.Samples != 0 || len(d.Y)%d.Samples != 0 {
		return 0, 0, preconditionErr("dataset of %d samples has %d inputs and %d labels", d.Samples, len(d.X), len(d.Y))
	}
	return len(d.X) / d.Samples, len(d.Y) / d.Samples, nil
}

// Train runs minibatch SGD on model over ds, updating params in place. It
// returns the mean loss of the last epoch. Minibatches whose gradient is not
// finite are logged and skipped.
func Train(model Model, params []float64, ds Dataset, cfg TrainingConfig) (float64, error) {
	logger.WithFields(logrus.Fields{
		"epochs":     cfg.Epochs,
		"batch":      cfg.BatchSize,
		"lr":         cfg.LearningRate,
		"workers":    cfg.NumWorkers,
		"parameters": model.ParamSize(),
	}).Info("training config")
	if err := validateConfig(model, cfg); err != nil {
		return 0, err
	}
	xDim, yDim, err := ds.dims()
	if err != nil {
		return 0, err
	}

	// 1. Setup & Allocation
	optimizer, err := NewSGD(cfg.LearningRate)
	if err != nil {
		return 0, err
	}
	evaluator, err := newEvaluator(model, cfg.NumWorkers)
	if err != nil {
		return 0, err
	}
	grad := make([]float64, model.ParamSize())
	batchX := make([]float64, cfg.BatchSize*xDim)
	batchY := make([]float64, cfg.BatchSize*yDim)
	globalIndices := NewIndexList(ds.Samples)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	// 2. Training Loop
	start := time.Now()
	var avgLoss float64
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		ShuffleIndices(rng, globalIndices)

		var totalLoss float64
		batchesProcessed, batchesSkipped := 0, 0

		for batchStart := 0; batchStart+cfg.BatchSize <= ds.Samples; batchStart += cfg.BatchSize {
			Gather(globalIndices[batchStart:batchStart+cfg.BatchSize], ds.X, ds.Y, xDim, yDim, batchX, batchY)

			loss, err := evaluator.ComputeGrad(grad, params, batchX, batchY)
			if errors.Is(err, ErrNumericInstability) {
				batchesSkipped++
				continue
			}
			if err != nil {
				return 0, err
			}
			if err := optimizer.Update(params, grad); err != nil {
				return 0, err
			}
			totalLoss += loss
			batchesProcessed++
		}

		if batchesProcessed > 0 {
			avgLoss = totalLoss / float64(batchesProcessed)
		}
		if cfg.VerboseEvery > 0 && (epoch%cfg.VerboseEvery == 0 || epoch == 1) {
			logger.WithFields(logrus.Fields{
				"epoch":   epoch,
				"loss":    avgLoss,
				"skipped": batchesSkipped,
				"elapsed": time.Since(start).Round(time.Millisecond),
			}).Info("epoch finished")
		}
	}

	logger.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("training complete")
	return avgLoss, nil
}

type gradEvaluator interface {
	ComputeGrad(grad, params, data, label []float64) (float64, error)
}

func newEvaluator(model Model, numWorkers int) (gradEvaluator, error) {
	if numWorkers <= 1 {
		return model, nil
	}
	return NewParallelGrad(model, numWorkers)
}

func validateConfig(model Model, cfg TrainingConfig) error {
	if cfg.Epochs < 0 {
		return configErr("negative epoch count %d", cfg.Epochs)
	}
	if cfg.BatchSize != model.MinibatchSize() {
		return configErr("batch size %d does not match model minibatch %d", cfg.BatchSize, model.MinibatchSize())
	}
	if cfg.NumWorkers > 1 && cfg.BatchSize%cfg.NumWorkers != 0 {
		return configErr("batch size %d must be divisible by %d workers", cfg.BatchSize, cfg.NumWorkers)
	}
	return nil
}

// ------ DATA HANDLING HELPERS ------
func NewIndexList(size int) []int {
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func ShuffleIndices(rng *rand.Rand, indices []int) {
	rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

// Gather copies the selected rows of the global inputs and labels into the
// contiguous minibatch buffers destX and destY.
func Gather(batchIndices []int, globalX, globalY []float64, xDim, yDim int, destX, destY []float64) {
	for localRowIdx, realDataIdx := range batchIndices {
		copy(destX[localRowIdx*xDim:(localRowIdx+1)*xDim], globalX[realDataIdx*xDim:(realDataIdx+1)*xDim])
		copy(destY[localRowIdx*yDim:(localRowIdx+1)*yDim], globalY[realDataIdx*yDim:(realDataIdx+1)*yDim])
	}
}
