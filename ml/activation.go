package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Activator is one layer of units. Activate writes the layer's activation
// from its raw input; ComputeDelta writes the layer's error delta from the
// signal arriving from downstream, using the activation of the same pass.
// ComputeDelta fails unless Activate ran since construction or the last
// Reset; the engines Reset every layer at the start of each forward pass.
type Activator interface {
	Activate(input []float64)
	ComputeDelta(signal []float64) error
	Activation() []float64
	Delta() []float64
	Size() int
	Reset()
}

// layerRegistry maps hidden/output kinds to constructors. Softmax is only
// ever the implicit terminal layer and is deliberately absent.
var layerRegistry = map[ActivationType]func(n int) Activator{
	ActIdentity: func(n int) Activator { return &identityLayer{newUnits(n)} },
	ActSigmoid:  func(n int) Activator { return &sigmoidLayer{newUnits(n)} },
}

func newActivator(cfg LayerConfig) (Activator, error) {
	if cfg.Neurons < 1 {
		return nil, configErr("layer needs at least one neuron, got %d", cfg.Neurons)
	}
	ctor, ok := layerRegistry[cfg.Activation]
	if !ok {
		return nil, configErr("unsupported layer kind %q", cfg.kindName())
	}
	return ctor(cfg.Neurons), nil
}

type units struct {
	activation []float64
	delta      []float64
	activated  bool
}

func newUnits(n int) units {
	return units{
		activation: make([]float64, n),
		delta:      make([]float64, n),
	}
}

func (u *units) Activation() []float64 { return u.activation }
func (u *units) Delta() []float64      { return u.delta }
func (u *units) Size() int             { return len(u.activation) }

func (u *units) Reset() {
	clear(u.activation)
	clear(u.delta)
	u.activated = false
}

func (u *units) checkActivated() error {
	if !u.activated {
		return preconditionErr("ComputeDelta called before Activate")
	}
	return nil
}

// identityLayer passes both directions through unchanged.
type identityLayer struct{ units }

func (l *identityLayer) Activate(input []float64) {
	copy(l.activation, input)
	l.activated = true
}

func (l *identityLayer) ComputeDelta(signal []float64) error {
	if err := l.checkActivated(); err != nil {
		return err
	}
	copy(l.delta, signal)
	return nil
}

type sigmoidLayer struct{ units }

func (l *sigmoidLayer) Activate(input []float64) {
	for i, v := range input {
		l.activation[i] = Sigmoid(v)
	}
	l.activated = true
}

func (l *sigmoidLayer) ComputeDelta(signal []float64) error {
	if err := l.checkActivated(); err != nil {
		return err
	}
	for i, a := range l.activation {
		l.delta[i] = signal[i] * a * (1 - a)
	}
	return nil
}

// SoftmaxLayer is the terminal classifier. Its delta is taken against the
// target distribution directly (softmax + cross-entropy).
type SoftmaxLayer struct{ units }

func NewSoftmaxLayer(n int) *SoftmaxLayer {
	return &SoftmaxLayer{newUnits(n)}
}

func (l *SoftmaxLayer) Activate(input []float64) {
	copy(l.activation, input)
	SoftmaxInPlace(l.activation)
	l.activated = true
}

// ComputeDelta sets delta = activation - target.
func (l *SoftmaxLayer) ComputeDelta(target []float64) error {
	if err := l.checkActivated(); err != nil {
		return err
	}
	floats.SubTo(l.delta, l.activation, target)
	return nil
}

// CrossEntropy returns -Σ target·log(activation), with probabilities floored
// at probEpsilon.
func (l *SoftmaxLayer) CrossEntropy(target []float64) float64 {
	loss := 0.0
	for i, t := range target {
		if t == 0 {
			continue
		}
		loss -= t * math.Log(math.Max(l.activation[i], probEpsilon))
	}
	return loss
}

const probEpsilon = 1e-15

// Sigmoid is the logistic function, evaluated without overflowing exp for
// large negative inputs.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// SoftmaxInPlace normalises v into a probability distribution. The max logit
// is subtracted before exponentiating.
func SoftmaxInPlace(v []float64) {
	maxVal := floats.Max(v)
	sum := 0.0
	for i, x := range v {
		e := math.Exp(x - maxVal)
		v[i] = e
		sum += e
	}
	floats.Scale(1/sum, v)
}
