package ml

const (
	ActIdentity ActivationType = iota
	ActSigmoid
	ActSoftmax
)

// actUnknown marks a name that did not resolve; NewFeedforward rejects it.
const actUnknown ActivationType = -1

var activationMap = map[string]ActivationType{
	"identity": ActIdentity,
	"linear":   ActIdentity,
	"sigmoid":  ActSigmoid,
	"softmax":  ActSoftmax,
}

// -------- TYPE DEFINITIONS -------- //
type ActivationType int
type LayerOption func(*LayerConfig)

func (a ActivationType) String() string {
	switch a {
	case ActIdentity:
		return "identity"
	case ActSigmoid:
		return "sigmoid"
	case ActSoftmax:
		return "softmax"
	}
	return "unknown"
}

// LayerConfig holds the blueprint for a layer
type LayerConfig struct {
	Neurons    int
	IsInput    bool
	Activation ActivationType

	activationName string
}

// ------- LAYER CONFIG HELPERS ------- //
// Input defines the entry point dimensions
func Input(size int) LayerConfig {
	return LayerConfig{
		Neurons:    size,
		IsInput:    true,
		Activation: ActIdentity,
	}
}

// Dense defines a fully connected layer. Hidden layers default to sigmoid.
func Dense(size int, opts ...LayerOption) LayerConfig {
	d := LayerConfig{
		Neurons:    size,
		Activation: ActSigmoid,
	}

	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Activation selects the layer kind by name ("identity", "sigmoid").
func Activation(activation string) LayerOption {
	return func(lc *LayerConfig) {
		act, exists := activationMap[activation]
		if !exists {
			act = actUnknown
		}
		lc.Activation = act
		lc.activationName = activation
	}
}

// Kind selects the layer kind by tag.
func Kind(kind ActivationType) LayerOption {
	return func(lc *LayerConfig) {
		lc.Activation = kind
		lc.activationName = ""
	}
}

func (lc LayerConfig) kindName() string {
	if lc.activationName != "" {
		return lc.activationName
	}
	return lc.Activation.String()
}

// Topology returns the neuron count of each layer.
func Topology(configs []LayerConfig) []int {
	neurons := make([]int, len(configs))
	for i, c := range configs {
		neurons[i] = c.Neurons
	}
	return neurons
}
