package ml

import (
	"errors"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ParallelGrad evaluates a minibatch by splitting it into equal shards, one
// per worker. Each worker owns a cloned model and a private gradient buffer;
// the shared parameter buffer is only read. Shard results are summed after
// all workers finish, so the result matches a sequential ComputeGrad up to
// floating-point reassociation.
type ParallelGrad struct {
	model         Model
	workers       []Model
	workerGrads   [][]float64
	workerCosts   []float64
	minibatchSize int
}

// NewParallelGrad clones m into numWorkers shards. The minibatch size must be
// divisible by numWorkers.
func NewParallelGrad(m Model, numWorkers int) (*ParallelGrad, error) {
	batch := m.MinibatchSize()
	if numWorkers < 1 || batch%numWorkers != 0 {
		return nil, configErr("minibatch size %d must be divisible by %d workers", batch, numWorkers)
	}
	localBatchSize := batch / numWorkers

	p := &ParallelGrad{
		model:         m,
		workers:       make([]Model, numWorkers),
		workerGrads:   make([][]float64, numWorkers),
		workerCosts:   make([]float64, numWorkers),
		minibatchSize: batch,
	}
	for i := range p.workers {
		w, err := m.Clone(localBatchSize)
		if err != nil {
			return nil, err
		}
		p.workers[i] = w
		p.workerGrads[i] = make([]float64, m.ParamSize())
	}
	return p, nil
}

func (p *ParallelGrad) ParamSize() int     { return p.model.ParamSize() }
func (p *ParallelGrad) MinibatchSize() int { return p.minibatchSize }
func (p *ParallelGrad) NumWorkers() int    { return len(p.workers) }

// ComputeGrad fills grad with the minibatch-mean gradient and returns the
// mean cost. data and label are split evenly between the workers.
func (p *ParallelGrad) ComputeGrad(grad, params, data, label []float64) (float64, error) {
	numWorkers := len(p.workers)
	if len(data)%numWorkers != 0 || len(label)%numWorkers != 0 {
		return 0, preconditionErr("data/label lengths %d/%d do not split across %d workers", len(data), len(label), numWorkers)
	}
	size := p.ParamSize()
	if len(grad) < size {
		return 0, preconditionErr("buffer holds %d values, layout needs %d", len(grad), size)
	}
	dataShard, labelShard := len(data)/numWorkers, len(label)/numWorkers

	var g errgroup.Group
	for i, w := range p.workers {
		g.Go(func() error {
			cost, err := w.ComputeGrad(p.workerGrads[i], params,
				data[i*dataShard:(i+1)*dataShard],
				label[i*labelShard:(i+1)*labelShard])
			p.workerCosts[i] = cost
			if errors.Is(err, ErrNumericInstability) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	// --- Aggregation: mean of equal-sized shard means ---
	grad = grad[:size]
	copy(grad, p.workerGrads[0])
	for i := 1; i < numWorkers; i++ {
		floats.Add(grad, p.workerGrads[i])
	}
	scale := 1.0 / float64(numWorkers)
	floats.Scale(scale, grad)
	cost := floats.Sum(p.workerCosts) * scale

	return cost, checkFinite("parallel", cost, grad)
}
